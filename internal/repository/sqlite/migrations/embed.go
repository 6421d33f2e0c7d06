// Package migrations holds the goose migrations for the SQLite schema.
package migrations

import "embed"

// FS contains the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
