// Package sql is the driver adapter underneath the squery statement builder. It
// wraps database/sql with query logging, metrics, tracing, driver error
// classification and the schema user-version primitive.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sllt/squery/pkg/squery/datasource"
	"github.com/sllt/squery/pkg/squery/logging"
)

// DB is a wrapper around sql.DB which provides some more features.
type DB struct {
	// contains unexported or private fields
	*sql.DB
	logger  datasource.Logger
	config  *DBConfig
	metrics Metrics
	tracer  trace.Tracer
}

// Log is the payload written for every executed statement.
type Log struct {
	Type     string `json:"type"`
	Query    string `json:"query"`
	Duration int64  `json:"duration"`
	Args     []any  `json:"args,omitempty"`
}

var (
	errSelectDataNotPointer = errors.New("data is not a pointer")
	errSelectUnsupported    = errors.New("unsupported select destination type")

	whitespace = regexp.MustCompile(`\s+`)
)

func (l *Log) PrettyPrint(writer io.Writer) {
	fmt.Fprintf(writer, "\u001B[38;5;8m%-32s \u001B[38;5;24m%-6s\u001B[0m %8d\u001B[38;5;8mµs\u001B[0m %s\n",
		l.Type, "SQL", l.Duration, clean(l.Query))
}

func clean(query string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(query, " "))
}

// NewFromDB wraps an already opened *sql.DB. It is how tests plug in sqlmock.
func NewFromDB(db *sql.DB, config *DBConfig, logger datasource.Logger, metrics Metrics) *DB {
	if config == nil {
		config = &DBConfig{Dialect: DialectSQLite}
	}

	return &DB{DB: db, config: config, logger: logger, metrics: metrics}
}

// UseTracer makes every statement run inside its own span.
func (d *DB) UseTracer(tracer trace.Tracer) {
	d.tracer = tracer
}

type stats struct {
	logger  datasource.Logger
	metrics Metrics
	config  *DBConfig
}

func (s stats) startSpan(ctx context.Context, tracer trace.Tracer, queryType, query string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, nil
	}

	return tracer.Start(ctx, "sql-"+strings.ToLower(getOperationType(query)), trace.WithAttributes(
		attribute.String("db.system", s.config.Dialect),
		attribute.String("db.statement", clean(query)),
		attribute.String("squery.call", queryType),
	))
}

func (s stats) send(ctx context.Context, span trace.Span, err error, start time.Time, queryType, query string, args ...any) {
	duration := time.Since(start).Microseconds()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}

	if s.logger != nil {
		logging.NewContextLogger(ctx, s.logger).Debug(&Log{
			Type:     queryType,
			Query:    query,
			Duration: duration,
			Args:     args,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordHistogram(ctx, "app_sql_stats", float64(duration), "hostname", s.config.HostName,
			"database", s.config.Database, "type", getOperationType(query))
	}
}

func (d *DB) stats() stats {
	return stats{logger: d.logger, metrics: d.metrics, config: d.config}
}

func getOperationType(query string) string {
	query = strings.TrimSpace(query)
	words := strings.Fields(query)

	if len(words) == 0 {
		return ""
	}

	return strings.ToUpper(words[0])
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.query(context.Background(), "Query", query, args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.query(ctx, "QueryContext", query, args...)
}

func (d *DB) query(ctx context.Context, queryType, query string, args ...any) (rows *sql.Rows, err error) {
	s := d.stats()
	ctx, span := s.startSpan(ctx, d.tracer, queryType, query)

	defer func(start time.Time) { s.send(ctx, span, err, start, queryType, query, args...) }(time.Now())

	return d.DB.QueryContext(ctx, query, args...)
}

// Dialect reports the configured SQL dialect (mysql, postgres or sqlite).
func (d *DB) Dialect() string {
	return d.config.Dialect
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.QueryRowContext(context.Background(), query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	s := d.stats()
	ctx, span := s.startSpan(ctx, d.tracer, "QueryRowContext", query)

	start := time.Now()
	row := d.DB.QueryRowContext(ctx, query, args...)

	s.send(ctx, span, row.Err(), start, "QueryRowContext", query, args...)

	return row
}

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.exec(context.Background(), "Exec", query, args...)
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.exec(ctx, "ExecContext", query, args...)
}

func (d *DB) exec(ctx context.Context, queryType, query string, args ...any) (res sql.Result, err error) {
	s := d.stats()
	ctx, span := s.startSpan(ctx, d.tracer, queryType, query)

	defer func(start time.Time) { s.send(ctx, span, err, start, queryType, query, args...) }(time.Now())

	return d.DB.ExecContext(ctx, query, args...)
}

func (d *DB) Prepare(query string) (*sql.Stmt, error) {
	defer d.stats().send(context.Background(), nil, nil, time.Now(), "Prepare", query)
	return d.DB.PrepareContext(context.Background(), query)
}

func (d *DB) Begin() (*Tx, error) {
	return d.BeginTx(context.Background(), nil)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Tx{Tx: tx, config: d.config, logger: d.logger, metrics: d.metrics, tracer: d.tracer}, nil
}

func (d *DB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}

	return nil
}

type Tx struct {
	*sql.Tx
	config  *DBConfig
	logger  datasource.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func (t *Tx) stats() stats {
	return stats{logger: t.logger, metrics: t.metrics, config: t.config}
}

// Dialect reports the dialect of the DB the transaction was started on.
func (t *Tx) Dialect() string {
	return t.config.Dialect
}

func (t *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.query(context.Background(), "TxQuery", query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.query(ctx, "TxQueryContext", query, args...)
}

func (t *Tx) query(ctx context.Context, queryType, query string, args ...any) (rows *sql.Rows, err error) {
	s := t.stats()
	ctx, span := s.startSpan(ctx, t.tracer, queryType, query)

	defer func(start time.Time) { s.send(ctx, span, err, start, queryType, query, args...) }(time.Now())

	return t.Tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRow(query string, args ...any) *sql.Row {
	return t.QueryRowContext(context.Background(), query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	s := t.stats()
	ctx, span := s.startSpan(ctx, t.tracer, "TxQueryRowContext", query)

	start := time.Now()
	row := t.Tx.QueryRowContext(ctx, query, args...)

	s.send(ctx, span, row.Err(), start, "TxQueryRowContext", query, args...)

	return row
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.exec(context.Background(), "TxExec", query, args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.exec(ctx, "TxExecContext", query, args...)
}

func (t *Tx) exec(ctx context.Context, queryType, query string, args ...any) (res sql.Result, err error) {
	s := t.stats()
	ctx, span := s.startSpan(ctx, t.tracer, queryType, query)

	defer func(start time.Time) { s.send(ctx, span, err, start, queryType, query, args...) }(time.Now())

	return t.Tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Prepare(query string) (*sql.Stmt, error) {
	defer t.stats().send(context.Background(), nil, nil, time.Now(), "TxPrepare", query)
	return t.Tx.PrepareContext(context.Background(), query)
}

func (t *Tx) Commit() error {
	defer t.stats().send(context.Background(), nil, nil, time.Now(), "TxCommit", "COMMIT")
	return t.Tx.Commit()
}

func (t *Tx) Rollback() error {
	defer t.stats().send(context.Background(), nil, nil, time.Now(), "TxRollback", "ROLLBACK")
	return t.Tx.Rollback()
}

// Select runs a query with args and binds the result of the query to data.
// data should be a pointer to a slice or struct.
//
// Example:
//
//  1. Get multiple rows with only one column
//     names := make([]string, 0)
//     err := db.Select(ctx, &names, "SELECT name FROM sqlite_master WHERE type='table'")
//
//  2. Get a single object from database
//     type user struct {
//     Name  string
//     ID    int
//     }
//     u := user{}
//     err := db.Select(ctx, &u, "SELECT * FROM users WHERE id=?", 1)
//
//  3. Get array of objects from multiple rows
//     type user struct {
//     Name  string
//     ID    int
//     Image string `db:"image_url"`
//     }
//     users := []user{}
//     err := db.Select(ctx, &users, "SELECT * FROM users")
//
//nolint:exhaustive // We only support slice and struct destinations.
func (d *DB) Select(ctx context.Context, data any, query string, args ...any) error {
	return selectData(ctx, d.logger, d.QueryContext, data, query, args...)
}

// Select executes query using the active transaction and binds rows into data.
func (t *Tx) Select(ctx context.Context, data any, query string, args ...any) error {
	return selectData(ctx, t.logger, t.QueryContext, data, query, args...)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

//nolint:exhaustive // We only support slice and struct destinations.
func selectData(ctx context.Context, logger datasource.Logger, queryContext queryFunc, data any, query string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Destination must be settable so callers can read scanned results.
	rvo := reflect.ValueOf(data)
	if !rvo.IsValid() || rvo.Kind() != reflect.Ptr || rvo.IsNil() {
		if logger != nil {
			logger.Error("we did not get a pointer. data is not settable.")
		}

		return errSelectDataNotPointer
	}

	rv := rvo.Elem()

	switch rv.Kind() {
	case reflect.Slice:
		return selectSlice(ctx, logger, queryContext, query, args, rvo, rv)
	case reflect.Struct:
		return selectStruct(ctx, logger, queryContext, query, args, rv)
	default:
		if logger != nil {
			logger.Debugf("a pointer to %v was not expected.", rv.Kind().String())
		}

		return fmt.Errorf("%w: %s", errSelectUnsupported, rv.Kind())
	}
}

func selectSlice(ctx context.Context, logger datasource.Logger, queryContext queryFunc, query string, args []any, rvo, rv reflect.Value) error {
	rows, err := queryContext(ctx, query, args...)
	if err != nil {
		if logger != nil {
			logger.Errorf("error running query: %v", err)
		}

		return NewDriverError(query, err)
	}

	defer rows.Close()

	for rows.Next() {
		val := reflect.New(rv.Type().Elem())

		if rv.Type().Elem().Kind() == reflect.Struct {
			if err := rowsToStruct(rows, val); err != nil {
				return err
			}
		} else if err := rows.Scan(val.Interface()); err != nil {
			return err
		}

		rv = reflect.Append(rv, val.Elem())
	}

	if err := rows.Err(); err != nil {
		if logger != nil {
			logger.Errorf("error parsing rows : %v", err)
		}

		return err
	}

	if rvo.Elem().CanSet() {
		rvo.Elem().Set(rv)
	}

	return nil
}

func selectStruct(ctx context.Context, logger datasource.Logger, queryContext queryFunc, query string, args []any, rv reflect.Value) error {
	rows, err := queryContext(ctx, query, args...)
	if err != nil {
		if logger != nil {
			logger.Errorf("error running query: %v", err)
		}

		return NewDriverError(query, err)
	}

	defer rows.Close()

	rowFound := false

	for rows.Next() {
		rowFound = true
		if err := rowsToStruct(rows, rv); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		if logger != nil {
			logger.Errorf("error parsing rows : %v", err)
		}

		return err
	}

	if !rowFound {
		return sql.ErrNoRows
	}

	return nil
}

func rowsToStruct(rows *sql.Rows, vo reflect.Value) error {
	v := vo
	if vo.Kind() == reflect.Ptr {
		v = vo.Elem()
	}

	// Map fields and their indexes by normalized name
	fieldNameIndex := map[string]int{}

	for i := 0; i < v.Type().NumField(); i++ {
		var name string

		f := v.Type().Field(i)
		tag := f.Tag.Get("db")

		if tag != "" {
			name = tag
		} else {
			name = ToSnakeCase(f.Name)
		}

		fieldNameIndex[name] = i
	}

	fields := []any{}
	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	for _, c := range columns {
		if i, ok := fieldNameIndex[c]; ok {
			fields = append(fields, v.Field(i).Addr().Interface())
		} else {
			var i any

			fields = append(fields, &i)
		}
	}

	if err := rows.Scan(fields...); err != nil {
		return err
	}

	if vo.CanSet() {
		vo.Set(v)
	}

	return nil
}

var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")

func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")

	return strings.ToLower(snake)
}
