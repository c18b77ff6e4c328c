package sql

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/squery/pkg/squery/config"
)

func TestGetDBConfig(t *testing.T) {
	cfg := config.NewMockConfig(map[string]string{
		"DB_DIALECT":             "postgresql",
		"DB_HOST":                "db.local",
		"DB_USER":                "admin",
		"DB_PASSWORD":            "secret",
		"DB_NAME":                "shop",
		"DB_MAX_OPEN_CONNECTION": "10",
	})

	got := getDBConfig(cfg)

	assert.Equal(t, &DBConfig{
		Dialect:     DialectPostgres,
		HostName:    "db.local",
		User:        "admin",
		Password:    "secret",
		Port:        "5432",
		Database:    "shop",
		MaxIdleConn: defaultMaxIdle,
		MaxOpenConn: 10,
	}, got)
}

func TestGetDBConnectionString(t *testing.T) {
	tests := []struct {
		desc string
		cfg  DBConfig
		dsn  string
	}{
		{
			desc: "postgres defaults sslmode",
			cfg:  DBConfig{Dialect: DialectPostgres, HostName: "localhost", User: "pg", Password: "pw", Port: "5432", Database: "app"},
			dsn:  "host=localhost port=5432 user=pg password=pw dbname=app sslmode=disable",
		},
		{
			desc: "sqlite",
			cfg:  DBConfig{Dialect: DialectSQLite, Database: "/tmp/app.db"},
			dsn:  "file:/tmp/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		},
	}

	for i, tc := range tests {
		dsn, err := getDBConnectionString(&tc.cfg)

		require.NoError(t, err, "TEST[%d], Failed.\n%s", i, tc.desc)
		assert.Equal(t, tc.dsn, dsn, "TEST[%d], Failed.\n%s", i, tc.desc)
	}

	_, err := getDBConnectionString(&DBConfig{Dialect: "oracle"})
	assert.ErrorIs(t, err, errUnsupportedDialect)
}

func TestGetDBConnectionString_MySQL(t *testing.T) {
	dsn, err := getDBConnectionString(&DBConfig{Dialect: DialectMySQL, HostName: "localhost", User: "root",
		Password: "pw", Port: "3306", Database: "app"})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)

	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Equal(t, "app", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		desc string
		cfg  DBConfig
	}{
		{"missing dialect", DBConfig{Database: "x"}},
		{"unknown dialect", DBConfig{Dialect: "oracle", Database: "x"}},
		{"mysql without host", DBConfig{Dialect: DialectMySQL, User: "u", Database: "x"}},
		{"bad port", DBConfig{Dialect: DialectMySQL, HostName: "h", User: "u", Port: "abc", Database: "x"}},
		{"sqlite without file", DBConfig{Dialect: DialectSQLite}},
	}

	for i, tc := range tests {
		db, err := Open(&tc.cfg, nil, nil)

		assert.Nil(t, db, "TEST[%d], Failed.\n%s", i, tc.desc)
		assert.ErrorContains(t, err, "invalid database configuration", "TEST[%d], Failed.\n%s", i, tc.desc)
	}
}

func TestOpen_ValidationMessages(t *testing.T) {
	_, err := Open(&DBConfig{Dialect: DialectSQLite}, nil, nil)

	var cfgErr *ConfigError

	require.ErrorAs(t, err, &cfgErr)
	require.Len(t, cfgErr.Errors, 1)
	assert.Equal(t, "DB_NAME is a required field", cfgErr.Error())

	var ve validator.ValidationErrors

	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve[0].Tag())

	t.Setenv("VALIDATION_LOCALE", "zh")

	assert.Equal(t, "DB_NAME为必填字段", cfgErr.Error())
}

func TestNewSQL_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := NewSQL(config.NewMockConfig(map[string]string{
		"DB_DIALECT": "sqlite3",
		"DB_NAME":    path,
	}), nil, nil)
	require.NoError(t, err)

	defer db.Close()

	assert.Equal(t, DialectSQLite, db.Dialect())

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
