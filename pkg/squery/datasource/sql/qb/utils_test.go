package qb

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultResolve(t *testing.T) {
	tests := []struct {
		data any
		i    int64
		f    float64
	}{
		{int64(7), 7, 7},
		{float64(2.5), 2, 2.5},
		{[]uint8("12"), 12, 12},
		{[]uint8("3.75"), 3, 3.75},
		{"41", 41, 41},
		{true, 1, 1},
		{nil, 0, 0},
	}

	for i, tc := range tests {
		r := resultResolve{tc.data}

		assert.Equal(t, tc.i, r.Int64(), "TEST[%d], Failed.\n%v", i, tc.data)
		assert.InDelta(t, tc.f, r.Float64(), 1e-9, "TEST[%d], Failed.\n%v", i, tc.data)
	}
}

func TestAggregateSymbols(t *testing.T) {
	assert.Equal(t, "count(id)", AggregateCount("id").Symbol())
	assert.Equal(t, "sum(total)", AggregateSum("total").Symbol())
	assert.Equal(t, "avg(total)", AggregateAvg("total").Symbol())
	assert.Equal(t, "max(total)", AggregateMax("total").Symbol())
	assert.Equal(t, "min(total)", AggregateMin("total").Symbol())
}

type zeroer struct{ zero bool }

func (z zeroer) IsZero() bool { return z.zero }

func TestIsZero(t *testing.T) {
	var nilTime *time.Time

	tests := []struct {
		v    any
		zero bool
	}{
		{0, true},
		{1, false},
		{"", true},
		{"x", false},
		{false, true},
		{0.0, true},
		{uint(0), true},
		{[]int(nil), true},
		{[]int{1}, false},
		{map[string]int{}, true},
		{nil, true},
		{nilTime, true},
		{&time.Time{}, true},
		{time.Now(), false},
		{zeroer{zero: true}, true},
		{zeroer{zero: false}, false},
		{struct{ A, B int }{}, true},
		{struct{ A, B int }{B: 1}, false},
	}

	for i, tc := range tests {
		assert.Equal(t, tc.zero, isZero(reflect.ValueOf(tc.v)), "TEST[%d], Failed.\n%#v", i, tc.v)
	}
}

func TestFormatAndParseDateTime(t *testing.T) {
	ts := time.Date(2023, 11, 5, 8, 9, 10, 0, time.UTC)

	assert.Equal(t, "2023-11-05 08:09:10", FormatDateTime(ts, false))
	assert.Equal(t, "2023-11-05", FormatDateTime(ts, true))

	assert.Equal(t, ts, ParseDateTime("2023-11-05 08:09:10", time.Time{}, false))
	assert.Equal(t, time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC), ParseDateTime("2023-11-05", time.Time{}, true))

	fallback := time.Unix(1, 0)
	assert.Equal(t, fallback, ParseDateTime("05/11/2023", fallback, false))
	assert.Equal(t, fallback, ParseDateTime("2023-11-05", fallback, false))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_done`, EscapeLike("100% _done", '\\'))
	assert.Equal(t, "plain", EscapeLike("plain", '!'))
	assert.Equal(t, "!%!%", EscapeLike("%%", '!'))
}
