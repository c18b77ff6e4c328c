package migration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
	"github.com/sllt/squery/pkg/squery/datasource/sql/qb"
	"github.com/sllt/squery/pkg/squery/logging"
)

var errStep = errors.New("step failed")

func openDB(t *testing.T) *squerySQL.DB {
	t.Helper()

	db, err := squerySQL.Open(&squerySQL.DBConfig{
		Dialect:  squerySQL.DialectSQLite,
		Database: filepath.Join(t.TempDir(), "migrate.db"),
	}, nil, nil)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func execStep(query string) Migrate {
	return Migrate{UP: func(ctx context.Context, d Datasource) error {
		_, err := d.Tx.ExecContext(ctx, query)
		return err
	}}
}

func tableExists(t *testing.T, db *squerySQL.DB, name string) bool {
	t.Helper()

	var tables []string
	require.NoError(t, db.Select(context.Background(), &tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name))

	return len(tables) == 1
}

func TestRun(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	buf := &bytes.Buffer{}
	logger := logging.NewWriterLogger(buf, logging.INFO)

	var order []int64

	migrations := map[int64]Migrate{
		2: {UP: func(ctx context.Context, d Datasource) error {
			order = append(order, 2)

			_, err := d.Store.From("users").InsertValues(ctx, 1, "root")

			return err
		}},
		1: {UP: func(ctx context.Context, d Datasource) error {
			order = append(order, 1)

			_, err := d.Tx.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")

			return err
		}},
	}

	require.NoError(t, Run(ctx, db, logger, migrations))
	assert.Equal(t, []int64{1, 2}, order)
	assert.Contains(t, buf.String(), "Migration 2 ran successfully")

	v, err := db.UserVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	store, err := qb.NewStore(db, nil)
	require.NoError(t, err)

	count, err := store.From("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	buf.Reset()

	require.NoError(t, Run(ctx, db, logger, migrations))
	assert.Equal(t, []int64{1, 2}, order)
	assert.Contains(t, buf.String(), "no pending migrations")
}

func TestRun_FailureRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	migrations := map[int64]Migrate{
		1: execStep("CREATE TABLE a (id INTEGER)"),
		2: {UP: func(ctx context.Context, d Datasource) error {
			if _, err := d.Tx.ExecContext(ctx, "CREATE TABLE b (id INTEGER)"); err != nil {
				return err
			}

			return errStep
		}},
		3: execStep("CREATE TABLE c (id INTEGER)"),
	}

	err := Run(ctx, db, nil, migrations)
	require.ErrorIs(t, err, errStep)
	assert.Contains(t, err.Error(), "migration 2 failed and rolled back")

	v, err := db.UserVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	assert.True(t, tableExists(t, db, "a"))
	assert.False(t, tableExists(t, db, "b"))
	assert.False(t, tableExists(t, db, "c"))
}

func TestPending(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetUserVersion(ctx, 5))

	pending, err := Pending(ctx, db, map[int64]Migrate{
		9: execStep("SELECT 1"),
		3: execStep("SELECT 1"),
		6: execStep("SELECT 1"),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 9}, pending)
}

func TestRun_InvalidMigrations(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	err := Run(ctx, db, nil, map[int64]Migrate{0: execStep("SELECT 1")})
	require.ErrorIs(t, err, errInvalidVersion)

	err = Run(ctx, db, nil, map[int64]Migrate{1: {}})
	assert.ErrorIs(t, err, errMissingUP)
}
