package domain

import (
	"context"
	"time"
)

// Todo is a note/task owned by exactly one user.
type Todo struct {
	ID          string
	OwnerID     string
	Text        string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoChange is a partial update of a todo. Text is written only when
// non-nil; the completion fields are always written.
type TodoChange struct {
	Text        *string
	Completed   bool
	CompletedAt *time.Time
}

// TodoRepository persists todos. Every lookup and mutation is scoped by
// ownerID; a todo owned by someone else behaves exactly like a missing one.
type TodoRepository interface {
	Create(ctx context.Context, todo *Todo) error
	ListByOwner(ctx context.Context, ownerID string) ([]Todo, error)
	GetByID(ctx context.Context, ownerID, id string) (*Todo, error)
	// Update applies change to an owned todo in a single write and returns
	// the todo as stored afterwards.
	Update(ctx context.Context, ownerID, id string, change TodoChange) (*Todo, error)
	// Delete removes an owned todo and returns it as it was.
	Delete(ctx context.Context, ownerID, id string) (*Todo, error)
}
