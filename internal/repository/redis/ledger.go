// Package redis provides a SessionLedger backed by Redis. Each user's live
// sessions are one hash: field = token, value = scope.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/msomdec/todo-api/internal/domain"
)

const prefixSessions = "todo:sessions:"

// revokeOthersScript deletes every field of the hash except ARGV[1] and
// returns how many were removed. Scripts run atomically.
var revokeOthersScript = redis.NewScript(`
	local removed = 0
	for _, token in ipairs(redis.call('HKEYS', KEYS[1])) do
		if token ~= ARGV[1] then
			removed = removed + redis.call('HDEL', KEYS[1], token)
		end
	end
	return removed
`)

// Config holds Redis ledger configuration.
type Config struct {
	// Client is an existing Redis client.
	// If provided, other options are ignored.
	Client redis.UniversalClient

	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize is the maximum number of connections.
	PoolSize int
}

// Ledger implements domain.SessionLedger using Redis hashes.
//
// Redis does not know which users exist, so Record consults the primary
// user store before writing.
type Ledger struct {
	client redis.UniversalClient
	users  domain.UserRepository
}

var _ domain.SessionLedger = (*Ledger)(nil)

// New creates a Redis ledger. users is used to reject sessions for
// accounts that do not exist.
func New(cfg *Config, users domain.UserRepository) (*Ledger, error) {
	if users == nil {
		return nil, fmt.Errorf("redis ledger: user repository is required")
	}
	var client redis.UniversalClient
	if cfg.Client != nil {
		client = cfg.Client
	} else {
		opts := &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		client = redis.NewClient(opts)
	}
	return &Ledger{client: client, users: users}, nil
}

// Ping verifies the Redis connection is alive.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}

func sessionsKey(userID string) string {
	return prefixSessions + userID
}

func (l *Ledger) Record(ctx context.Context, userID string, session domain.Session) error {
	if _, err := l.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := l.client.HSet(ctx, sessionsKey(userID), session.Token, session.Scope).Err(); err != nil {
		return fmt.Errorf("hset session: %w", err)
	}
	return nil
}

func (l *Ledger) IsLive(ctx context.Context, userID, token string) (bool, error) {
	live, err := l.client.HExists(ctx, sessionsKey(userID), token).Result()
	if err != nil {
		return false, fmt.Errorf("hexists session: %w", err)
	}
	return live, nil
}

func (l *Ledger) Revoke(ctx context.Context, userID, token string) error {
	if err := l.client.HDel(ctx, sessionsKey(userID), token).Err(); err != nil {
		return fmt.Errorf("hdel session: %w", err)
	}
	return nil
}

func (l *Ledger) RevokeAll(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, sessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("del sessions: %w", err)
	}
	return nil
}

func (l *Ledger) RevokeOthers(ctx context.Context, userID, keepToken string) error {
	if err := revokeOthersScript.Run(ctx, l.client, []string{sessionsKey(userID)}, keepToken).Err(); err != nil {
		return fmt.Errorf("revoke other sessions: %w", err)
	}
	return nil
}

// Sessions lists the live sessions recorded for userID, in no particular order.
func (l *Ledger) Sessions(ctx context.Context, userID string) ([]domain.Session, error) {
	fields, err := l.client.HGetAll(ctx, sessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall sessions: %w", err)
	}
	sessions := make([]domain.Session, 0, len(fields))
	for token, scope := range fields {
		sessions = append(sessions, domain.Session{Scope: scope, Token: token})
	}
	return sessions, nil
}
