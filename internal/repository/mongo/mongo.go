// Package mongo implements the repositories on MongoDB using mgo.
// Users and todos live in two collections; a user's sessions are an
// embedded array edited with $push and $pull.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/mgo/v3"

	"github.com/msomdec/todo-api/internal/domain"
)

const (
	usersCollection = "users"
	todosCollection = "todos"
	dialTimeout     = 10 * time.Second
)

// DB holds the root mgo session. Each operation works on a copy of it.
type DB struct {
	session *mgo.Session
	name    string
}

var _ domain.Database = (*DB)(nil)

// New dials url and selects the named database.
func New(url, database string) (*DB, error) {
	session, err := mgo.DialWithTimeout(url, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial mongo: %w", err)
	}
	session.SetMode(mgo.Monotonic, true)
	session.SetSafe(&mgo.Safe{WMode: "majority"})
	return &DB{session: session, name: database}, nil
}

// collection returns a collection bound to a fresh session copy.
// The caller must call the returned close func.
func (d *DB) collection(name string) (*mgo.Collection, func()) {
	s := d.session.Copy()
	return s.DB(d.name).C(name), s.Close
}

// Migrate ensures the indexes the repositories rely on.
func (d *DB) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closeUsers := d.collection(usersCollection)
	defer closeUsers()
	if err := users.EnsureIndex(mgo.Index{Key: []string{"email"}, Unique: true}); err != nil {
		return fmt.Errorf("ensure users.email index: %w", err)
	}
	if err := users.EnsureIndex(mgo.Index{Key: []string{"sessions.token"}}); err != nil {
		return fmt.Errorf("ensure users.sessions.token index: %w", err)
	}

	todos, closeTodos := d.collection(todosCollection)
	defer closeTodos()
	if err := todos.EnsureIndex(mgo.Index{Key: []string{"owner_id", "created_at"}}); err != nil {
		return fmt.Errorf("ensure todos.owner_id index: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := d.session.Copy()
	defer s.Close()
	return s.Ping()
}

func (d *DB) Close() error {
	d.session.Close()
	return nil
}

func (d *DB) Users() *UserRepository {
	return &UserRepository{db: d}
}

func (d *DB) Sessions() *SessionLedger {
	return &SessionLedger{db: d}
}

func (d *DB) Todos() *TodoRepository {
	return &TodoRepository{db: d}
}
