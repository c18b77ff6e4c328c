package qb

import (
	"fmt"
	"reflect"
)

// Values is an insertion ordered column to value mapping. The column order drives
// the column lists of generated INSERT and UPDATE statements.
type Values struct {
	cols  []string
	index map[string]int
	args  []any
}

// NewValues builds Values from alternating column, value pairs. It panics when a
// column is not a string or the last column has no value.
func NewValues(pairs ...any) *Values {
	if len(pairs)%2 != 0 {
		panic("qb: NewValues needs column, value pairs")
	}

	v := &Values{index: make(map[string]int, len(pairs)/2)}

	for i := 0; i < len(pairs); i += 2 {
		col, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("qb: column %v is %T, not string", pairs[i], pairs[i]))
		}

		v.Set(col, pairs[i+1])
	}

	return v
}

// Set assigns val to col. An existing column keeps its position.
func (v *Values) Set(col string, val any) *Values {
	if v.index == nil {
		v.index = make(map[string]int)
	}

	if i, ok := v.index[col]; ok {
		v.args[i] = val
		return v
	}

	v.index[col] = len(v.cols)
	v.cols = append(v.cols, col)
	v.args = append(v.args, val)

	return v
}

// Get returns the value of col and whether it is set.
func (v *Values) Get(col string) (any, bool) {
	if v == nil {
		return nil, false
	}

	i, ok := v.index[col]
	if !ok {
		return nil, false
	}

	return v.args[i], true
}

// Columns returns the column names in insertion order.
func (v *Values) Columns() []string {
	if v == nil {
		return nil
	}

	return append([]string(nil), v.cols...)
}

// Args returns the values in column order.
func (v *Values) Args() []any {
	if v == nil {
		return nil
	}

	return append([]any(nil), v.args...)
}

func (v *Values) Len() int {
	if v == nil {
		return 0
	}

	return len(v.cols)
}

// Clone returns an independent copy of v.
func (v *Values) Clone() *Values {
	c := &Values{index: make(map[string]int, v.Len())}

	for i := 0; i < v.Len(); i++ {
		c.Set(v.cols[i], v.args[i])
	}

	return c
}

// OmitEmpty returns a copy of v without the listed columns whose value is the
// zero value of its type. With no columns listed every column is checked.
func (v *Values) OmitEmpty(cols ...string) *Values {
	check := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		check[c] = struct{}{}
	}

	out := &Values{index: make(map[string]int, v.Len())}

	for i := 0; i < v.Len(); i++ {
		_, listed := check[v.cols[i]]
		if (listed || len(cols) == 0) && isZero(reflect.ValueOf(v.args[i])) {
			continue
		}

		out.Set(v.cols[i], v.args[i])
	}

	return out
}
