package qb

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
	"github.com/sllt/squery/pkg/squery/logging"
)

const usersSchema = `CREATE TABLE users (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	age  INTEGER
)`

func newSQLiteStore(t *testing.T, logger logging.Logger) *Store {
	t.Helper()

	db, err := squerySQL.Open(&squerySQL.DBConfig{
		Dialect:  squerySQL.DialectSQLite,
		Database: filepath.Join(t.TempDir(), "qb.db"),
	}, nil, nil)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), usersSchema)
	require.NoError(t, err)

	store, err := NewStore(db, logger)
	require.NoError(t, err)

	return store
}

func TestSQLite_InsertAndSelect(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	n, err := store.From("users").InsertRow(ctx, &user{ID: 1, Name: "ann", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.From("users").InsertValues(ctx, 2, "bob", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.From("users").Values(NewValues("id", 3, "name", "cid")).Insert(ctx)
	require.NoError(t, err)

	got, err := SelectMany(ctx, store.From("users").OrderBy("id", true), func() *user { return &user{} })
	require.NoError(t, err)
	assert.Equal(t, []*user{
		{ID: 1, Name: "ann", Age: 30},
		{ID: 2, Name: "bob", Age: 25},
		{ID: 3, Name: "cid"},
	}, got)

	one, found, err := SelectOne(ctx, store.From("users").Keys("id"), func() *user { return &user{ID: 2} })
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", one.Name)

	_, found, err = SelectOne(ctx, store.From("users").Keys("id"), func() *user { return &user{ID: 99} })
	require.NoError(t, err)
	assert.False(t, found)

	page, err := SelectMany(ctx, store.From("users").OrderBy("id", false).Limit(1, 1), func() *user { return &user{} })
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID)
}

func TestSQLite_InsertOrUpdateFallsBackOnConstraint(t *testing.T) {
	buf := &bytes.Buffer{}
	store := newSQLiteStore(t, logging.NewWriterLogger(buf, logging.DEBUG))
	ctx := context.Background()

	q := store.From("users").Keys("id")

	n, err := q.InsertOrUpdateRow(ctx, &user{ID: 1, Name: "ann", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, buf.String())

	_, err = q.Reset().InsertRow(ctx, &user{ID: 1, Name: "dup", Age: 1})
	require.ErrorIs(t, err, squerySQL.ErrConstraintViolation)

	n, err = q.Reset().InsertOrUpdateRow(ctx, &user{ID: 1, Name: "ann", Age: 31})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, buf.String(), "trying update")

	got, found, err := SelectOne(ctx, q.Reset(), func() *user { return &user{ID: 1} })
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, &user{ID: 1, Name: "ann", Age: 31}, got)

	count, err := store.From("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLite_UpdateRowAndDelete(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	for _, u := range []*user{{ID: 1, Name: "a", Age: 10}, {ID: 2, Name: "b", Age: 20}, {ID: 3, Name: "c", Age: 30}} {
		_, err := store.From("users").InsertRow(ctx, u)
		require.NoError(t, err)
	}

	n, err := store.From("users").Keys("id").UpdateRow(ctx, &user{ID: 2, Name: "B", Age: 21})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	name, err := store.ExecuteScalar(ctx, "SELECT name FROM users WHERE id=@id", 2)
	require.NoError(t, err)
	assert.Equal(t, "B", name)

	n, err = store.From("users").Where("age >= @min", 21).WhereAnd("name <> @skip", "c").Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.From("users").Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_UpsertAndAggregate(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	q := store.From("users").Keys("id")

	_, err := q.UpsertRow(ctx, &user{ID: 1, Name: "a", Age: 10})
	require.NoError(t, err)

	_, err = q.UpsertRow(ctx, &user{ID: 1, Name: "a2", Age: 15})
	require.NoError(t, err)

	_, err = q.UpsertRow(ctx, &user{ID: 2, Name: "b", Age: 5})
	require.NoError(t, err)

	sum, err := store.From("users").Aggregate(ctx, AggregateSum("age"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum.Int64())

	avg, err := store.From("users").Where("id = @id", 1).Aggregate(ctx, AggregateAvg("age"))
	require.NoError(t, err)
	assert.InDelta(t, 15.0, avg.Float64(), 1e-9)

	distinct, err := store.From("users").Distinct().Count(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, int64(2), distinct)
}

func TestSQLite_Transaction(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.From("users").InsertValues(ctx, 1, "a", 1); err != nil {
			return err
		}

		_, err := tx.From("users").InsertValues(ctx, 1, "again", 2)

		return err
	})
	require.ErrorIs(t, err, squerySQL.ErrConstraintViolation)

	count, err := store.From("users").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLite_RawStatements(t *testing.T) {
	store := newSQLiteStore(t, nil)
	ctx := context.Background()

	n, err := store.ExecuteNonQuery(ctx, "INSERT INTO users (id, name, age) VALUES (@id, @name, @id)", 4, "dora")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	cur, err := store.ExecuteQuery(ctx, "SELECT id, name, age FROM users WHERE name LIKE @p ESCAPE '\\'",
		EscapeLike("do", '\\')+"%")
	require.NoError(t, err)

	defer cur.Close()

	require.True(t, cur.Next())
	assert.Equal(t, int64(4), cur.Int64("id"))
	assert.Equal(t, int64(4), cur.Int64("age"))
	assert.False(t, cur.Next())
	require.NoError(t, cur.Err())
}
