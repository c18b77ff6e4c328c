package qb

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

var errInvalidAggregateBuilder = errors.New(`[builder] aggregate builder must implement Symbol()`)

// ResultResolver is a helper for retrieving data
// caller should know the type and call the responding method
type ResultResolver interface {
	Int64() int64
	Float64() float64
}

type resultResolve struct {
	data any
}

func (r resultResolve) Int64() int64 {
	switch t := r.data.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case bool:
		if t {
			return 1
		}

		return 0
	case string:
		return parseInt64(t)
	case []uint8:
		return parseInt64(string(t))
	default:
		return 0
	}
}

func parseInt64(s string) int64 {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		f64, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return int64(f64)
	}

	return i64
}

// from go-mysql-driver/mysql the value returned could be int64 float64 float32

func (r resultResolve) Float64() float64 {
	switch t := r.data.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case string:
		f64, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f64
	case []uint8:
		f64, _ := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f64
	default:
		return float64(r.Int64())
	}
}

// AggregateSymbolBuilder needs to be implemented so executor can
// get what should be put into `select Symbol() from xxx where yyy`.
type AggregateSymbolBuilder interface {
	Symbol() string
}

type agBuilder string

func (a agBuilder) Symbol() string {
	return string(a)
}

// AggregateCount count(col)
func AggregateCount(col string) AggregateSymbolBuilder {
	return agBuilder("count(" + col + ")")
}

// AggregateSum sum(col)
func AggregateSum(col string) AggregateSymbolBuilder {
	return agBuilder("sum(" + col + ")")
}

// AggregateAvg avg(col)
func AggregateAvg(col string) AggregateSymbolBuilder {
	return agBuilder("avg(" + col + ")")
}

// AggregateMax max(col)
func AggregateMax(col string) AggregateSymbolBuilder {
	return agBuilder("max(" + col + ")")
}

// AggregateMin min(col)
func AggregateMin(col string) AggregateSymbolBuilder {
	return agBuilder("min(" + col + ")")
}

func resolveAggregateSymbol(aggregate AggregateSymbolBuilder) (string, error) {
	if aggregate == nil {
		return "", errInvalidAggregateBuilder
	}

	symbol := strings.TrimSpace(aggregate.Symbol())
	if symbol == "" {
		return "", errInvalidAggregateBuilder
	}

	return symbol, nil
}

type IsZeroer interface {
	IsZero() bool
}

var IsZeroType = reflect.TypeOf((*IsZeroer)(nil)).Elem()

// isZero reports whether a value is a zero value
// Including support: Bool, Array, String, Float32, Float64, Int, Int8, Int16, Int32, Int64, Uint, Uint8, Uint16, Uint32, Uint64, Uintptr
// Map, Slice, Interface, Pointer, Struct
func isZero(v reflect.Value) bool {
	if v.IsValid() && v.Type().Implements(IsZeroType) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return true
		}

		return v.Interface().(IsZeroer).IsZero()
	}

	switch v.Kind() {
	case reflect.Bool:
		return !v.Bool()
	case reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Map, reflect.Slice:
		return v.IsNil() || v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Invalid:
		return true
	}

	if v.Kind() != reflect.Struct {
		return false
	}

	// Traverse the Struct and only return true
	// if all of its fields return IsZero == true
	n := v.NumField()
	for i := 0; i < n; i++ {
		vf := v.Field(i)
		if !isZero(vf) {
			return false
		}
	}

	return true
}

// FormatDateTime renders t as "2006-01-02 15:04:05", or "2006-01-02" when
// dateOnly is set. It is the text form dates are stored in by sqlite schemas.
func FormatDateTime(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format(dateLayout)
	}

	return t.Format(dateTimeLayout)
}

// ParseDateTime parses text written by FormatDateTime and returns fallback when
// it does not match the layout.
func ParseDateTime(text string, fallback time.Time, dateOnly bool) time.Time {
	layout := dateTimeLayout
	if dateOnly {
		layout = dateLayout
	}

	t, err := time.Parse(layout, text)
	if err != nil {
		return fallback
	}

	return t
}

// EscapeLike prefixes the LIKE wildcards % and _ in source with esc. The
// statement must declare the same character with ESCAPE.
func EscapeLike(source string, esc rune) string {
	var out strings.Builder

	out.Grow(len(source) * 2)

	for _, c := range source {
		if c == '%' || c == '_' {
			out.WriteRune(esc)
		}

		out.WriteRune(c)
	}

	return out.String()
}
