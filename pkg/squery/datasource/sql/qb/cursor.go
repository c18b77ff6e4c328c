package qb

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
)

var (
	errNoColumn     = errors.New("[cursor] no such column")
	errNoRow        = errors.New("[cursor] no current row")
	errConvert      = errors.New("[cursor] cannot convert")
	errScanArgCount = errors.New("[cursor] scan destination count mismatch")
)

// Cursor is a forward-only view over a result set. It owns the connection the
// rows come from: callers must Close it, typically with defer right after the
// query succeeded.
//
// Each Next buffers the whole row, so column getters can be called in any order
// and more than once. A getter that fails to convert returns the zero value and
// records the error, reported by Err.
type Cursor struct {
	query   string
	rows    *sql.Rows
	columns []string
	index   map[string]int
	current []any
	hasRow  bool
	err     error
}

func newCursor(query string, rows *sql.Rows) (*Cursor, error) {
	c := &Cursor{query: query, rows: rows}

	if err := c.loadColumns(); err != nil {
		_ = rows.Close()

		return nil, err
	}

	return c, nil
}

func (c *Cursor) loadColumns() error {
	cols, err := c.rows.Columns()
	if err != nil {
		return squerySQL.NewDriverError(c.query, err)
	}

	c.columns = cols
	c.index = make(map[string]int, len(cols))

	for i, col := range cols {
		if _, ok := c.index[col]; !ok {
			c.index[col] = i
		}
	}

	return nil
}

// Next advances to the next row of the current result set.
func (c *Cursor) Next() bool {
	c.hasRow = false

	if c.err != nil || !c.rows.Next() {
		return false
	}

	c.current = make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))

	for i := range c.current {
		ptrs[i] = &c.current[i]
	}

	if err := c.rows.Scan(ptrs...); err != nil {
		c.setErr(squerySQL.NewDriverError(c.query, err))
		return false
	}

	c.hasRow = true

	return true
}

// NextResultSet moves to the next result set, if the driver produced one.
func (c *Cursor) NextResultSet() bool {
	c.hasRow = false

	if c.err != nil || !c.rows.NextResultSet() {
		return false
	}

	if err := c.loadColumns(); err != nil {
		c.setErr(err)
		return false
	}

	return true
}

// Columns returns the column names of the current result set.
func (c *Cursor) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Err returns the first conversion or iteration error.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}

	if err := c.rows.Err(); err != nil {
		return squerySQL.NewDriverError(c.query, err)
	}

	return nil
}

// Close releases the result set and its connection. It is safe to call twice.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

func (c *Cursor) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Value returns the raw driver value of col in the current row.
func (c *Cursor) Value(col string) (any, error) {
	if !c.hasRow {
		return nil, errNoRow
	}

	i, ok := c.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errNoColumn, col)
	}

	return c.current[i], nil
}

func (c *Cursor) value(col string) (any, bool) {
	v, err := c.Value(col)
	if err != nil {
		c.setErr(err)
		return nil, false
	}

	return v, true
}

// IsNull reports whether col is NULL in the current row.
func (c *Cursor) IsNull(col string) bool {
	v, ok := c.value(col)
	return ok && v == nil
}

func (c *Cursor) Int64(col string) int64 {
	v, ok := c.value(col)
	if !ok {
		return 0
	}

	i, err := asInt64(v)
	if err != nil {
		c.setErr(fmt.Errorf("column %q: %w", col, err))
	}

	return i
}

func (c *Cursor) Int(col string) int {
	return int(c.Int64(col))
}

func (c *Cursor) Float64(col string) float64 {
	v, ok := c.value(col)
	if !ok {
		return 0
	}

	f, err := asFloat64(v)
	if err != nil {
		c.setErr(fmt.Errorf("column %q: %w", col, err))
	}

	return f
}

func (c *Cursor) String(col string) string {
	v, ok := c.value(col)
	if !ok {
		return ""
	}

	return asString(v)
}

func (c *Cursor) Bool(col string) bool {
	v, ok := c.value(col)
	if !ok {
		return false
	}

	b, err := asBool(v)
	if err != nil {
		c.setErr(fmt.Errorf("column %q: %w", col, err))
	}

	return b
}

func (c *Cursor) Bytes(col string) []byte {
	v, ok := c.value(col)
	if !ok || v == nil {
		return nil
	}

	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...)
	default:
		return []byte(asString(v))
	}
}

// Time reads col as a time. Text columns are parsed as RFC 3339 or in the
// FormatDateTime layouts.
func (c *Cursor) Time(col string) time.Time {
	v, ok := c.value(col)
	if !ok {
		return time.Time{}
	}

	t, err := asTime(v)
	if err != nil {
		c.setErr(fmt.Errorf("column %q: %w", col, err))
	}

	return t
}

// Scan copies the current row into dest, one destination per column. Supported
// destinations are *any, *string, *[]byte, *int, *int64, *float64, *bool,
// *time.Time and sql.Scanner implementations.
func (c *Cursor) Scan(dest ...any) error {
	if !c.hasRow {
		return errNoRow
	}

	if len(dest) != len(c.current) {
		return fmt.Errorf("%w: %d columns, %d destinations", errScanArgCount, len(c.current), len(dest))
	}

	for i, d := range dest {
		if err := assign(d, c.current[i]); err != nil {
			return fmt.Errorf("column %q: %w", c.columns[i], err)
		}
	}

	return nil
}

func assign(dest, v any) error {
	var err error

	switch d := dest.(type) {
	case sql.Scanner:
		return d.Scan(v)
	case *any:
		*d = v
	case *string:
		*d = asString(v)
	case *[]byte:
		if v == nil {
			*d = nil
		} else if b, ok := v.([]byte); ok {
			*d = append([]byte(nil), b...)
		} else {
			*d = []byte(asString(v))
		}
	case *int64:
		*d, err = asInt64(v)
	case *int:
		var i int64
		i, err = asInt64(v)
		*d = int(i)
	case *float64:
		*d, err = asFloat64(v)
	case *bool:
		*d, err = asBool(v)
	case *time.Time:
		*d, err = asTime(v)
	default:
		return fmt.Errorf("%w: %T into %T", errConvert, v, dest)
	}

	return err
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}

		return 0, nil
	case []byte:
		return parseIntText(string(t))
	case string:
		return parseIntText(t)
	default:
		return 0, fmt.Errorf("%w: %T to int64", errConvert, v)
	}
}

func parseIntText(s string) (int64, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q to int64", errConvert, s)
	}

	return i, nil
}

func asFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case []byte:
		return parseFloatText(string(t))
	case string:
		return parseFloatText(t)
	default:
		return 0, fmt.Errorf("%w: %T to float64", errConvert, v)
	}
}

func parseFloatText(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q to float64", errConvert, s)
	}

	return f, nil
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case []byte:
		return strconv.ParseBool(string(t))
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("%w: %T to bool", errConvert, v)
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return FormatDateTime(t, false)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

//nolint:gochecknoglobals // layouts tried in order when a time is stored as text.
var timeLayouts = []string{time.RFC3339Nano, dateTimeLayout, dateLayout}

func asTime(v any) (time.Time, error) {
	var s string

	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case []byte:
		s = string(t)
	case string:
		s = t
	default:
		return time.Time{}, fmt.Errorf("%w: %T to time", errConvert, v)
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q to time", errConvert, s)
}
