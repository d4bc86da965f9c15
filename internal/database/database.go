// Package database defines the contract all metadata database drivers
// implement. Repositories above this package talk only to the DB
// interface — they never import the postgres or mysql packages directly.
//
// Repository SQL is written with `?` placeholders; each driver rebinds
// them to its native style before execution.
package database

import (
	"context"
	"strconv"
	"strings"
)

// DB is the central contract for all metadata database operations.
type DB interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// Scan on the result reports a not-found error kind for zero rows.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a SQL statement that returns no rows
	// (INSERT, UPDATE, DELETE, DDL).
	Exec(ctx context.Context, sql string, args ...any) error

	// Dialect reports the SQL dialect of the driver.
	Dialect() Dialect
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// Dialect identifies which SQL placeholder style a driver expects.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders.
	DialectMySQL
)

// Rebind rewrites `?` placeholders to the dialect's native style.
// MySQL SQL passes through unchanged. Question marks inside single-quoted
// literals are not handled — repository SQL never embeds literals.
func Rebind(d Dialect, sql string) string {
	if d == DialectMySQL {
		return sql
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 8)
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
