package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/todo-api/internal/domain"
)

// TodoRepository implements domain.TodoRepository using SQLite.
// Every query is keyed by owner so one user can never reach another's todos.
type TodoRepository struct {
	db *sql.DB
}

// NewTodoRepository creates a new SQLite-backed TodoRepository.
func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db.SqlDB}
}

var _ domain.TodoRepository = (*TodoRepository)(nil)

const todoColumns = `id, owner_id, text, completed, completed_at, created_at, updated_at`

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.OwnerID, todo.Text, todo.Completed, todo.CompletedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	todo.CreatedAt = now
	todo.UpdatedAt = now
	return nil
}

func (r *TodoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE owner_id = ? ORDER BY created_at, id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

func (r *TodoRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query todo: %w", err)
	}
	return todo, nil
}

// Update writes the change with one UPDATE ... RETURNING. Text that was
// not sent is left as stored.
func (r *TodoRepository) Update(ctx context.Context, ownerID, id string, change domain.TodoChange) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE todos
		 SET text = COALESCE(?, text), completed = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?
		 RETURNING `+todoColumns,
		change.Text, change.Completed, change.CompletedAt, time.Now().UTC(), id, ownerID,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// Delete removes the owned todo and returns it as it was.
func (r *TodoRepository) Delete(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM todos WHERE id = ? AND owner_id = ? RETURNING `+todoColumns, id, ownerID,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("delete todo: %w", err)
	}
	return todo, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (*domain.Todo, error) {
	todo := &domain.Todo{}
	var completedAt sql.NullTime
	if err := s.Scan(&todo.ID, &todo.OwnerID, &todo.Text, &todo.Completed, &completedAt, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		todo.CompletedAt = &t
	}
	return todo, nil
}
