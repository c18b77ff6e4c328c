package qb

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/sllt/squery/pkg/squery/datasource"
	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
	"github.com/sllt/squery/pkg/squery/logging"
)

// Store runs @name statements against a DB or a transaction and hands out
// TableQuery builders bound to it.
type Store struct {
	exec    squerySQL.Executor
	logger  datasource.Logger
	builder *Builder
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*squerySQL.Tx, error)
}

// NewStore returns a Store executing through exec. The dialect is taken from
// exec. A nil logger discards the store's own messages.
func NewStore(exec squerySQL.Executor, logger datasource.Logger) (*Store, error) {
	b, err := FromDB(exec)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewWriterLogger(io.Discard, logging.FATAL)
	}

	return &Store{exec: exec, logger: logger, builder: b}, nil
}

// From returns a fresh TableQuery for table.
func (s *Store) From(table string) *TableQuery {
	return newTableQuery(s, table)
}

// Builder returns the dialect binder of the store.
func (s *Store) Builder() *Builder {
	return s.builder
}

// WithTx returns a Store running its statements inside tx.
func (s *Store) WithTx(tx *squerySQL.Tx) *Store {
	return &Store{exec: tx, logger: s.logger, builder: s.builder}
}

// Transaction runs fn with a Store bound to a new transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	b, ok := s.exec.(txBeginner)
	if !ok {
		return fmt.Errorf("%w: store is already inside a transaction", ErrInvalidOperation)
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return squerySQL.NewDriverError("BEGIN", err)
	}

	if err := fn(s.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Errorf("rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return squerySQL.NewDriverError("COMMIT", err)
	}

	return nil
}

// ExecuteNonQuery binds and executes rawQuery and returns the affected row count.
func (s *Store) ExecuteNonQuery(ctx context.Context, rawQuery string, args ...any) (int64, error) {
	query, bound, err := s.builder.Bind(rawQuery, args...)
	if err != nil {
		return 0, err
	}

	res, err := s.exec.ExecContext(ctx, query, bound...)
	if err != nil {
		return 0, squerySQL.NewDriverError(query, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, squerySQL.NewDriverError(query, err)
	}

	return n, nil
}

// ExecuteScalar returns the first column of the first row, or nil when the
// statement yields no rows.
func (s *Store) ExecuteScalar(ctx context.Context, rawQuery string, args ...any) (any, error) {
	cur, err := s.ExecuteQuery(ctx, rawQuery, args...)
	if err != nil {
		return nil, err
	}

	defer cur.Close()

	if !cur.Next() {
		return nil, cur.Err()
	}

	var v any
	if err := cur.Scan(&v); err != nil {
		return nil, err
	}

	return v, nil
}

// ExecuteQuery binds and runs rawQuery. The returned Cursor holds a connection
// until it is closed.
func (s *Store) ExecuteQuery(ctx context.Context, rawQuery string, args ...any) (*Cursor, error) {
	query, bound, err := s.builder.Bind(rawQuery, args...)
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, bound...)
	if err != nil {
		return nil, squerySQL.NewDriverError(query, err)
	}

	return newCursor(query, rows)
}
