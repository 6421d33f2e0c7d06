package postgres

import (
	"context"
	"fmt"

	"github.com/msomdec/todo-api/internal/domain"
)

// SessionLedger keeps sessions in the users.sessions jsonb array and edits
// it with single-statement jsonb operators.
type SessionLedger struct {
	db DBTX
}

func NewSessionLedger(db DBTX) *SessionLedger {
	return &SessionLedger{db: db}
}

var _ domain.SessionLedger = (*SessionLedger)(nil)

func (l *SessionLedger) Record(ctx context.Context, userID string, session domain.Session) error {
	query :=
		`UPDATE users
		 SET sessions = sessions || jsonb_build_array(jsonb_build_object('scope', $1::text, 'token', $2::text)),
		     updated_at = now()
		 WHERE id = $3`

	result, err := l.db.ExecContext(ctx, query, session.Scope, session.Token, userID)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(result)
}

func (l *SessionLedger) IsLive(ctx context.Context, userID, token string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM users
		   WHERE id = $1 AND sessions @> jsonb_build_array(jsonb_build_object('token', $2::text))
		 )`

	var live bool
	if err := l.db.QueryRowContext(ctx, query, userID, token).Scan(&live); err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return live, nil
}

func (l *SessionLedger) Revoke(ctx context.Context, userID, token string) error {
	query :=
		`UPDATE users
		 SET sessions = COALESCE(
		       (SELECT jsonb_agg(s) FROM jsonb_array_elements(sessions) AS s WHERE s->>'token' <> $2),
		       '[]'::jsonb),
		     updated_at = now()
		 WHERE id = $1 AND sessions @> jsonb_build_array(jsonb_build_object('token', $2::text))`

	if _, err := l.db.ExecContext(ctx, query, userID, token); err != nil {
		if notFound(err) {
			return nil
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeAll(ctx context.Context, userID string) error {
	query := `UPDATE users SET sessions = '[]'::jsonb, updated_at = now() WHERE id = $1`

	if _, err := l.db.ExecContext(ctx, query, userID); err != nil {
		if notFound(err) {
			return nil
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (l *SessionLedger) RevokeOthers(ctx context.Context, userID, keepToken string) error {
	query :=
		`UPDATE users
		 SET sessions = COALESCE(
		       (SELECT jsonb_agg(s) FROM jsonb_array_elements(sessions) AS s WHERE s->>'token' = $2),
		       '[]'::jsonb),
		     updated_at = now()
		 WHERE id = $1`

	if _, err := l.db.ExecContext(ctx, query, userID, keepToken); err != nil {
		if notFound(err) {
			return nil
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
