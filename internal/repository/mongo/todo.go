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

// TodoRepository implements domain.TodoRepository on the todos collection.
type TodoRepository struct {
	db *DB
}

var _ domain.TodoRepository = (*TodoRepository)(nil)

func ownedBy(ownerID, id string) bson.M {
	return bson.M{"_id": id, "owner_id": ownerID}
}

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	ts := now()
	todo.CreatedAt = ts
	todo.UpdatedAt = ts

	todos, closer := r.db.collection(todosCollection)
	defer closer()
	if err := todos.Insert(newTodoDoc(todo)); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *TodoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	todos, closer := r.db.collection(todosCollection)
	defer closer()

	var docs []todoDoc
	if err := todos.Find(bson.M{"owner_id": ownerID}).Sort("created_at", "_id").All(&docs); err != nil {
		return nil, fmt.Errorf("find todos: %w", err)
	}
	out := make([]domain.Todo, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toDomain())
	}
	return out, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	todos, closer := r.db.collection(todosCollection)
	defer closer()

	var doc todoDoc
	if err := todos.Find(ownedBy(ownerID, id)).One(&doc); err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find todo: %w", err)
	}
	return doc.toDomain(), nil
}

// Update applies the change with findAndModify and returns the new document.
func (r *TodoRepository) Update(ctx context.Context, ownerID, id string, change domain.TodoChange) (*domain.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	todos, closer := r.db.collection(todosCollection)
	defer closer()

	var doc todoDoc
	_, err := todos.Find(ownedBy(ownerID, id)).Apply(mgo.Change{
		Update:    bson.M{"$set": todoChangeSet(change, now())},
		ReturnNew: true,
	}, &doc)
	if err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return doc.toDomain(), nil
}

// Delete removes the owned todo atomically with findAndModify and returns it.
func (r *TodoRepository) Delete(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	todos, closer := r.db.collection(todosCollection)
	defer closer()

	var doc todoDoc
	if _, err := todos.Find(ownedBy(ownerID, id)).Apply(mgo.Change{Remove: true}, &doc); err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("remove todo: %w", err)
	}
	return doc.toDomain(), nil
}
