package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"github.com/msomdec/todo-api/internal/domain"
)

// UserRepository implements domain.UserRepository on the users collection.
type UserRepository struct {
	db *DB
}

var _ domain.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Sessions == nil {
		user.Sessions = []domain.Session{}
	}
	ts := now()
	doc := userDoc{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Sessions:     user.Sessions,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	users, closer := r.db.collection(usersCollection)
	defer closer()
	if err := users.Insert(doc); err != nil {
		if mgo.IsDup(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, query bson.M) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, closer := r.db.collection(usersCollection)
	defer closer()

	var doc userDoc
	if err := users.Find(query).One(&doc); err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closer := r.db.collection(usersCollection)
	defer closer()

	err := users.UpdateId(id, bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": now()}})
	if err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

// Delete removes the user document and then every todo it owns.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closeUsers := r.db.collection(usersCollection)
	defer closeUsers()
	if err := users.RemoveId(id); err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("remove user: %w", err)
	}

	todos, closeTodos := r.db.collection(todosCollection)
	defer closeTodos()
	if _, err := todos.RemoveAll(bson.M{"owner_id": id}); err != nil {
		return fmt.Errorf("remove owned todos: %w", err)
	}
	return nil
}
