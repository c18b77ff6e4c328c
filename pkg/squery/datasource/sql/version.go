package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userVersionTable = "squery_user_version"

var errNegativeVersion = errors.New("user version must not be negative")

type versionStore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Dialect() string
}

// UserVersion reads the schema version persisted in the database. SQLite keeps it
// in PRAGMA user_version, other dialects in a one-row squery_user_version table
// which is created on first use. A database that never had a version reports 0.
func (d *DB) UserVersion(ctx context.Context) (int64, error) {
	return getUserVersion(ctx, d)
}

// SetUserVersion persists v as the schema version.
func (d *DB) SetUserVersion(ctx context.Context, v int64) error {
	return setUserVersion(ctx, d, v)
}

// NeedsUpgrade reports whether the stored schema version is below target.
func (d *DB) NeedsUpgrade(ctx context.Context, target int64) (bool, error) {
	return needsUpgrade(ctx, d, target)
}

func (t *Tx) UserVersion(ctx context.Context) (int64, error) {
	return getUserVersion(ctx, t)
}

func (t *Tx) SetUserVersion(ctx context.Context, v int64) error {
	return setUserVersion(ctx, t, v)
}

func (t *Tx) NeedsUpgrade(ctx context.Context, target int64) (bool, error) {
	return needsUpgrade(ctx, t, target)
}

func needsUpgrade(ctx context.Context, s versionStore, target int64) (bool, error) {
	v, err := getUserVersion(ctx, s)
	if err != nil {
		return false, err
	}

	return v < target, nil
}

func getUserVersion(ctx context.Context, s versionStore) (int64, error) {
	var (
		v     int64
		query string
	)

	if s.Dialect() == DialectSQLite {
		query = "PRAGMA user_version"
	} else {
		if err := ensureVersionTable(ctx, s); err != nil {
			return 0, err
		}

		query = "SELECT version FROM " + userVersionTable + " WHERE id = 1"
	}

	err := s.QueryRowContext(ctx, query).Scan(&v)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, NewDriverError(query, err)
	}

	return v, nil
}

func setUserVersion(ctx context.Context, s versionStore, v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: %d", errNegativeVersion, v)
	}

	var query string

	switch s.Dialect() {
	case DialectSQLite:
		// PRAGMA does not accept bound parameters
		query = fmt.Sprintf("PRAGMA user_version = %d", v)
	case DialectMySQL:
		if err := ensureVersionTable(ctx, s); err != nil {
			return err
		}

		query = fmt.Sprintf("INSERT INTO %s (id, version) VALUES (1, %d) ON DUPLICATE KEY UPDATE version = VALUES(version)",
			userVersionTable, v)
	default:
		if err := ensureVersionTable(ctx, s); err != nil {
			return err
		}

		query = fmt.Sprintf("INSERT INTO %s (id, version) VALUES (1, %d) ON CONFLICT (id) DO UPDATE SET version = excluded.version",
			userVersionTable, v)
	}

	if _, err := s.ExecContext(ctx, query); err != nil {
		return NewDriverError(query, err)
	}

	return nil
}

func ensureVersionTable(ctx context.Context, s versionStore) error {
	query := "CREATE TABLE IF NOT EXISTS " + userVersionTable + " (id INTEGER PRIMARY KEY, version BIGINT NOT NULL)"

	if _, err := s.ExecContext(ctx, query); err != nil {
		return NewDriverError(query, err)
	}

	return nil
}
