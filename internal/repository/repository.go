// Package repository opens the configured primary store and session ledger.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/msomdec/todo-api/internal/config"
	"github.com/msomdec/todo-api/internal/domain"
	"github.com/msomdec/todo-api/internal/repository/mongo"
	"github.com/msomdec/todo-api/internal/repository/postgres"
	"github.com/msomdec/todo-api/internal/repository/redis"
	"github.com/msomdec/todo-api/internal/repository/sqlite"
)

// Store bundles the repositories the services need with the lifecycle of
// the connections behind them.
type Store struct {
	Users    domain.UserRepository
	Sessions domain.SessionLedger
	Todos    domain.TodoRepository

	db     domain.Database
	ledger *redis.Ledger
}

var _ domain.Database = (*Store)(nil)

// Open connects to the configured storage driver and, when asked, swaps the
// in-store session ledger for the Redis one.
func Open(ctx context.Context, storage config.Storage, ledger config.Ledger) (*Store, error) {
	s := &Store{}

	switch storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.New(storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.db, s.Users, s.Sessions, s.Todos = db, db.Users(), db.Sessions(), db.Todos()
	case config.DriverPostgres:
		db, err := postgres.New(ctx, storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.db, s.Users, s.Sessions, s.Todos = db, db.Users(), db.Sessions(), db.Todos()
	case config.DriverMongo:
		db, err := mongo.New(storage.MongoURL, storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		s.db, s.Users, s.Sessions, s.Todos = db, db.Users(), db.Sessions(), db.Todos()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", storage.Driver)
	}
	slog.Info("storage opened", "driver", storage.Driver)

	if ledger.Backend == config.LedgerRedis {
		l, err := redis.New(&redis.Config{
			Addr:     ledger.RedisAddr,
			Password: ledger.RedisPassword,
			DB:       ledger.RedisDB,
		}, s.Users)
		if err != nil {
			s.db.Close()
			return nil, err
		}
		if err := l.Ping(ctx); err != nil {
			l.Close()
			s.db.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.ledger = l
		s.Sessions = l
		slog.Info("session ledger opened", "backend", ledger.Backend, "addr", ledger.RedisAddr)
	}

	return s, nil
}

// Migrate applies the primary store's schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx)
}

// Ping checks the primary store and, if configured, the Redis ledger.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	if s.ledger != nil {
		return s.ledger.Ping(ctx)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
