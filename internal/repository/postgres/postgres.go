// Package postgres implements the repositories on PostgreSQL through the
// pgx database/sql driver. Schema changes are applied with goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/msomdec/todo-api/internal/domain"
	"github.com/msomdec/todo-api/internal/repository/postgres/migrations"
)

const (
	codeUniqueViolation    = "23505"
	codeInvalidTextForm    = "22P02"
	defaultMaxOpenConns    = 10
	defaultConnMaxIdleTime = 5 * time.Minute
)

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a Postgres connection pool and vends the repositories built on it.
type DB struct {
	SqlDB *sql.DB
}

var _ domain.Database = (*DB)(nil)

// New opens a pool for dsn and verifies it is reachable.
func New(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{SqlDB: db}, nil
}

// Migrate applies pending goose migrations.
func (d *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.SqlDB, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.SqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.SqlDB.Close()
}

func (d *DB) Users() *UserRepository {
	return NewUserRepository(d.SqlDB)
}

func (d *DB) Sessions() *SessionLedger {
	return NewSessionLedger(d.SqlDB)
}

func (d *DB) Todos() *TodoRepository {
	return NewTodoRepository(d.SqlDB)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// notFound maps a missing row, or an id that is not a UUID, to ErrNotFound.
func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || pgErrorCode(err) == codeInvalidTextForm
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
