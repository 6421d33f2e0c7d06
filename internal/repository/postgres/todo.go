package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/msomdec/todo-api/internal/domain"
)

// TodoRepository implements domain.TodoRepository on Postgres.
type TodoRepository struct {
	db DBTX
}

func NewTodoRepository(db DBTX) *TodoRepository {
	return &TodoRepository{db: db}
}

var _ domain.TodoRepository = (*TodoRepository)(nil)

const todoColumns = `id, owner_id, text, completed, completed_at, created_at, updated_at`

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	query :=
		`INSERT INTO todos (id, owner_id, text, completed, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, todo.ID, todo.OwnerID, todo.Text, todo.Completed, todo.CompletedAt).
		Scan(&todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *TodoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE owner_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		if notFound(err) {
			return []domain.Todo{}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND owner_id = $2`

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return todo, nil
}

// Update writes the change in one statement. A nil Text keeps the stored text.
func (r *TodoRepository) Update(ctx context.Context, ownerID, id string, change domain.TodoChange) (*domain.Todo, error) {
	query :=
		`UPDATE todos
		 SET text = COALESCE($1, text), completed = $2, completed_at = $3, updated_at = now()
		 WHERE id = $4 AND owner_id = $5
		 RETURNING ` + todoColumns

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, change.Text, change.Completed, change.CompletedAt, id, ownerID))
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	query := `DELETE FROM todos WHERE id = $1 AND owner_id = $2 RETURNING ` + todoColumns

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
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
