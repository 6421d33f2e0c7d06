package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/msomdec/todo-api/internal/domain"
)

// UserRepository implements domain.UserRepository on Postgres.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

var _ domain.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Sessions == nil {
		user.Sessions = []domain.Session{}
	}
	sessions, err := json.Marshal(user.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	query :=
		`INSERT INTO users (id, email, password_hash, sessions)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.PasswordHash, string(sessions)).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query :=
		`SELECT id, email, password_hash, sessions, created_at, updated_at
		 FROM users WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query :=
		`SELECT id, email, password_hash, sessions, created_at, updated_at
		 FROM users WHERE email = $1`
	return r.get(ctx, query, email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg string) (*domain.User, error) {
	user := &domain.User{}
	var sessions []byte
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &sessions, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(sessions, &user.Sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(result)
}

// Delete removes the user; todos follow through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(result)
}
