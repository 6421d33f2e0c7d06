package mongo

import (
	"time"

	"github.com/juju/mgo/v3/bson"

	"github.com/msomdec/todo-api/internal/domain"
)

type userDoc struct {
	ID           string           `bson:"_id"`
	Email        string           `bson:"email"`
	PasswordHash string           `bson:"password_hash"`
	Sessions     []domain.Session `bson:"sessions"`
	CreatedAt    time.Time        `bson:"created_at"`
	UpdatedAt    time.Time        `bson:"updated_at"`
}

func (d *userDoc) toDomain() *domain.User {
	sessions := d.Sessions
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return &domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Sessions:     sessions,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type todoDoc struct {
	ID          string     `bson:"_id"`
	OwnerID     string     `bson:"owner_id"`
	Text        string     `bson:"text"`
	Completed   bool       `bson:"completed"`
	CompletedAt *time.Time `bson:"completed_at"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func newTodoDoc(t *domain.Todo) todoDoc {
	return todoDoc{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Text:        t.Text,
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d *todoDoc) toDomain() *domain.Todo {
	todo := &domain.Todo{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Text:      d.Text,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.CompletedAt != nil {
		at := d.CompletedAt.UTC()
		todo.CompletedAt = &at
	}
	return todo
}

// todoChangeSet lists the fields a todo update writes. text is included
// only when it was sent.
func todoChangeSet(change domain.TodoChange, ts time.Time) bson.M {
	set := bson.M{
		"completed":    change.Completed,
		"completed_at": change.CompletedAt,
		"updated_at":   ts,
	}
	if change.Text != nil {
		set["text"] = *change.Text
	}
	return set
}

// now is truncated to the millisecond precision BSON dates carry.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
