package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/msomdec/todo-api/internal/domain"
)

// SessionLedger implements domain.SessionLedger on the users.sessions JSON
// array. Each mutation is a single UPDATE that edits the array in place,
// so concurrent logins and logouts for one user cannot overwrite each other.
type SessionLedger struct {
	db *sql.DB
}

// NewSessionLedger creates a new SQLite-backed SessionLedger.
func NewSessionLedger(db *DB) *SessionLedger {
	return &SessionLedger{db: db.SqlDB}
}

var _ domain.SessionLedger = (*SessionLedger)(nil)

func (l *SessionLedger) Record(ctx context.Context, userID string, session domain.Session) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE users
		 SET sessions = json_insert(sessions, '$[#]', json_object('scope', ?, 'token', ?)),
		     updated_at = ?
		 WHERE id = ?`,
		session.Scope, session.Token, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	return requireAffected(result)
}

func (l *SessionLedger) IsLive(ctx context.Context, userID, token string) (bool, error) {
	var live bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM users, json_each(users.sessions) AS s
		   WHERE users.id = ? AND json_extract(s.value, '$.token') = ?
		 )`,
		userID, token,
	).Scan(&live)
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return live, nil
}

func (l *SessionLedger) Revoke(ctx context.Context, userID, token string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE users
		 SET sessions = (
		       SELECT json_group_array(json(s.value)) FROM json_each(users.sessions) AS s
		       WHERE json_extract(s.value, '$.token') <> ?
		     ),
		     updated_at = ?
		 WHERE id = ?
		   AND EXISTS (
		       SELECT 1 FROM json_each(users.sessions) AS s
		       WHERE json_extract(s.value, '$.token') = ?
		     )`,
		token, time.Now().UTC(), userID, token,
	)
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeAll(ctx context.Context, userID string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE users SET sessions = '[]', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeOthers(ctx context.Context, userID, keepToken string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE users
		 SET sessions = (
		       SELECT json_group_array(json(s.value)) FROM json_each(users.sessions) AS s
		       WHERE json_extract(s.value, '$.token') = ?
		     ),
		     updated_at = ?
		 WHERE id = ?`,
		keepToken, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("remove other sessions: %w", err)
	}
	return nil
}
