package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"github.com/msomdec/todo-api/internal/domain"
)

// SessionLedger implements domain.SessionLedger on the embedded
// users.sessions array.
type SessionLedger struct {
	db *DB
}

var _ domain.SessionLedger = (*SessionLedger)(nil)

func (l *SessionLedger) Record(ctx context.Context, userID string, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closer := l.db.collection(usersCollection)
	defer closer()

	err := users.UpdateId(userID, bson.M{
		"$push": bson.M{"sessions": session},
		"$set":  bson.M{"updated_at": now()},
	})
	if err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("push session: %w", err)
	}
	return nil
}

func (l *SessionLedger) IsLive(ctx context.Context, userID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	users, closer := l.db.collection(usersCollection)
	defer closer()

	n, err := users.Find(bson.M{"_id": userID, "sessions.token": token}).Count()
	if err != nil {
		return false, fmt.Errorf("count session: %w", err)
	}
	return n > 0, nil
}

func (l *SessionLedger) Revoke(ctx context.Context, userID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closer := l.db.collection(usersCollection)
	defer closer()

	err := users.Update(
		bson.M{"_id": userID, "sessions.token": token},
		bson.M{
			"$pull": bson.M{"sessions": bson.M{"token": token}},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil && !errors.Is(err, mgo.ErrNotFound) {
		return fmt.Errorf("pull session: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeAll(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closer := l.db.collection(usersCollection)
	defer closer()

	err := users.UpdateId(userID, bson.M{"$set": bson.M{"sessions": []domain.Session{}, "updated_at": now()}})
	if err != nil && !errors.Is(err, mgo.ErrNotFound) {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeOthers(ctx context.Context, userID, keepToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users, closer := l.db.collection(usersCollection)
	defer closer()

	err := users.UpdateId(userID, bson.M{
		"$pull": bson.M{"sessions": bson.M{"token": bson.M{"$ne": keepToken}}},
		"$set":  bson.M{"updated_at": now()},
	})
	if err != nil && !errors.Is(err, mgo.ErrNotFound) {
		return fmt.Errorf("pull other sessions: %w", err)
	}
	return nil
}
