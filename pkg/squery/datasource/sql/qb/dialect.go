package qb

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect represents a SQL dialect that qb can generate queries for.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	// ErrInvalidOperation is returned when a statement cannot be built from the
	// current TableQuery state.
	ErrInvalidOperation = errors.New("[builder] invalid operation")
	// ErrArgumentMismatch is returned when the arguments do not fit the placeholders
	// of a statement.
	ErrArgumentMismatch = errors.New("[builder] argument mismatch")

	errUnsupportedDialect   = errors.New("[builder] unsupported dialect")
	errEmptyConflictColumns = errors.New("[builder] conflict columns cannot be empty")
	errNilDialectProvider   = errors.New("[builder] dialect provider is nil")
)

// Builder binds @name statements for a specific dialect.
type Builder struct {
	dialect Dialect
}

// DialectProvider describes a type that can expose SQL dialect.
type DialectProvider interface {
	Dialect() string
}

// New returns a Builder for the provided dialect.
//
// Supported values include:
//   - mysql, mariadb
//   - postgres, postgresql, supabase, cockroachdb
//   - sqlite, sqlite3
func New(dialect string) (*Builder, error) {
	d, err := normalizeDialect(dialect)
	if err != nil {
		return nil, err
	}

	return &Builder{dialect: d}, nil
}

// FromDB creates a Builder from a provider that exposes Dialect().
func FromDB(db DialectProvider) (*Builder, error) {
	if db == nil {
		return nil, errNilDialectProvider
	}

	return New(db.Dialect())
}

// Dialect returns the dialect the builder renders for.
func (b Builder) Dialect() Dialect {
	return b.dialect
}

func normalizeDialect(dialect string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case string(DialectMySQL), "mariadb":
		return DialectMySQL, nil
	case string(DialectPostgres), "postgresql", "supabase", "cockroachdb":
		return DialectPostgres, nil
	case "", string(DialectSQLite), "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedDialect, dialect)
	}
}

// Bind turns a statement written with @name placeholders into the query text and
// argument list expected by the dialect's driver. The Nth argument belongs to the
// Nth distinct placeholder; a repeated placeholder reuses its argument. Arguments
// beyond the distinct placeholders are ignored.
func (b Builder) Bind(query string, args ...any) (string, []any, error) {
	names := distinctParams(query)
	if len(args) < len(names) {
		return "", nil, fmt.Errorf("%w: %d placeholders but %d arguments in %q",
			ErrArgumentMismatch, len(names), len(args), query)
	}

	values := make(map[string]any, len(names))

	for i, name := range names {
		v, err := normalizeArg(args[i])
		if err != nil {
			return "", nil, fmt.Errorf("%w: @%s: %v", ErrArgumentMismatch, name, err)
		}

		values[name] = v
	}

	switch b.dialect {
	case DialectSQLite:
		named := make([]any, 0, len(names))
		for _, name := range names {
			named = append(named, sql.Named(name, values[name]))
		}

		return query, named, nil
	case DialectMySQL:
		var bound []any

		out := rewriteParams(query, func(name string) string {
			bound = append(bound, values[name])

			return "?"
		})

		return out, bound, nil
	case DialectPostgres:
		index := make(map[string]int, len(names))
		for i, name := range names {
			index[name] = i + 1
		}

		bound := make([]any, 0, len(names))
		for _, name := range names {
			bound = append(bound, values[name])
		}

		out := rewriteParams(query, func(name string) string {
			return "$" + strconv.Itoa(index[name])
		})

		return out, bound, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", errUnsupportedDialect, b.dialect)
	}
}

func rewriteParams(query string, replace func(name string) string) string {
	var (
		out  strings.Builder
		last int
	)

	out.Grow(len(query))

	scanParams(query, func(start, end int, name string) {
		out.WriteString(query[last:start])
		out.WriteString(replace(name))

		last = end
	})

	out.WriteString(query[last:])

	return out.String()
}

// normalizeArg converts v into one of the kinds every supported driver accepts:
// int64, float64, bool, string, []byte, time.Time or nil.
func normalizeArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	return driver.DefaultParameterConverter.ConvertValue(v)
}

func (b Builder) limitClause(count, offset int) string {
	if count <= 0 {
		return ""
	}

	if offset <= 0 {
		return " LIMIT " + strconv.Itoa(count)
	}

	if b.dialect == DialectPostgres {
		return " LIMIT " + strconv.Itoa(count) + " OFFSET " + strconv.Itoa(offset)
	}

	return " LIMIT " + strconv.Itoa(offset) + "," + strconv.Itoa(count)
}
