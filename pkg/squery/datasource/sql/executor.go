package sql

import (
	"context"
	"database/sql"
)

// Executor captures the query operations shared by DB and Tx.
// It is what the statement builder runs against, so a builder works the same
// inside and outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Select(ctx context.Context, data any, query string, args ...any) error
	Dialect() string
}

var (
	_ Executor = (*DB)(nil)
	_ Executor = (*Tx)(nil)
)
