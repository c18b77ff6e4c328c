package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/squery/pkg/squery/migration"
)

const usersMigration = `
migrations:
  - version: 1
    up:
      - CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)
      - "INSERT INTO users (id, name) VALUES (1, 'bob'), (2, 'alice'), (3, 'bob')"
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}

	app := newApp()
	app.Writer = out
	app.ErrWriter = io.Discard

	err := app.Run(context.Background(), append([]string{"squery"}, args...))

	return out.String(), err
}

func setupSQLite(t *testing.T) string {
	t.Helper()

	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("DB_NAME", filepath.Join(t.TempDir(), "cli.db"))

	return t.TempDir()
}

func TestParams(t *testing.T) {
	out, err := run(t, "params", "SELECT * FROM t WHERE a=@a AND b=@b OR a=@a")

	require.NoError(t, err)
	assert.Equal(t, "a\nb\na\n", out)

	_, err = run(t, "params")
	assert.ErrorContains(t, err, "please provide a statement")
}

func TestDatabaseCommands(t *testing.T) {
	configDir := setupSQLite(t)

	file := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(file, []byte(usersMigration), 0o600))

	out, err := run(t, "--config", configDir, "migrate", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "applied 1 migration(s)\n", out)

	out, err = run(t, "--config", configDir, "migrate", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "applied 0 migration(s)\n", out)

	out, err = run(t, "--config", configDir, "tables")
	require.NoError(t, err)
	assert.Equal(t, "users\n", out)

	out, err = run(t, "--config", configDir, "count", "users")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = run(t, "--config", configDir, "count", "--where", "name = @name", "--arg", "bob", "users")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, "--config", configDir, "count", "--distinct", "--column", "name", "users")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, "--config", configDir, "version")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = run(t, "--config", configDir, "version", "--set", "7")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)

	out, err = run(t, "--config", configDir, "query", "--arg", "2", "SELECT id, name FROM users WHERE id = @id")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"id", "name"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"2", "alice"}, strings.Fields(lines[1]))
}

func TestMetricsOut(t *testing.T) {
	configDir := setupSQLite(t)
	metricsFile := filepath.Join(t.TempDir(), "squery.prom")

	_, err := run(t, "--config", configDir, "--metrics-out", metricsFile, "version")
	require.NoError(t, err)

	b, err := os.ReadFile(metricsFile)
	require.NoError(t, err)

	assert.Contains(t, string(b), "# TYPE app_sql_stats histogram")
	assert.Contains(t, string(b), `app_sql_stats_count{database=`)
}

func TestMigrate_NoSource(t *testing.T) {
	_, err := run(t, "migrate")

	assert.ErrorIs(t, err, errNoMigrationSource)
}

func TestCount_MissingTable(t *testing.T) {
	configDir := setupSQLite(t)

	_, err := run(t, "--config", configDir, "count")
	require.ErrorContains(t, err, "please provide a table name")

	_, err = run(t, "--config", configDir, "count", "nope")
	assert.ErrorContains(t, err, "counting nope")
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)

	path, err := createMigration(dir, "add_users", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20261018123000_add_users.yaml"), path)

	migrations, err := migration.LoadFile(path)
	require.NoError(t, err)
	assert.Contains(t, migrations, int64(20261018123000))

	_, err = createMigration(dir, "add_users", now)
	require.Error(t, err, "file already exists")

	_, err = createMigration(dir, "", now)
	require.ErrorIs(t, err, errNameEmpty)

	_, err = createMigration(dir, "add users", now)
	assert.ErrorIs(t, err, errNameInvalid)
}

func TestTablesQuery(t *testing.T) {
	assert.Contains(t, tablesQuery("mysql"), "DATABASE()")
	assert.Contains(t, tablesQuery("postgres"), "current_schema()")
	assert.Contains(t, tablesQuery("sqlite"), "sqlite_master")
}

func TestVersion_WithTracing(t *testing.T) {
	configDir := setupSQLite(t)

	t.Setenv("TRACE_EXPORTER", "zipkin")
	t.Setenv("TRACER_URL", "http://127.0.0.1:1/api/v2/spans")

	out, err := run(t, "--config", configDir, "version")

	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	t.Setenv("TRACE_EXPORTER", "carrier-pigeon")

	_, err = run(t, "--config", configDir, "version")
	assert.ErrorContains(t, err, "configuring tracing")
}
