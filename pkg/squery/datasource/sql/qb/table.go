package qb

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const cmdBufferSize = 128

// TableQuery accumulates the clauses of single-table statements across fluent
// calls. It is mutable and not safe for concurrent use; use Clone to hand a copy
// to another goroutine.
//
// WHERE clauses refer to their arguments with @name placeholders. The Nth
// argument binds the Nth distinct placeholder of the finished statement.
type TableQuery struct {
	store *Store
	table string

	where     string
	whereArgs []any
	values    *Values
	orderBy   string
	groupBy   string
	limit     int
	offset    int
	distinct  bool
	keys      []string
}

func newTableQuery(store *Store, table string) *TableQuery {
	return &TableQuery{store: store, table: table, values: &Values{}}
}

// Table returns the table the query was created for.
func (q *TableQuery) Table() string {
	return q.table
}

// Reset clears every clause and the values. Keys are kept since they describe
// the table rather than a single statement.
func (q *TableQuery) Reset() *TableQuery {
	q.where = ""
	q.whereArgs = nil
	q.values = &Values{}
	q.orderBy = ""
	q.groupBy = ""
	q.limit = 0
	q.offset = 0
	q.distinct = false

	return q
}

// Clone returns an independent copy sharing only the store.
func (q *TableQuery) Clone() *TableQuery {
	c := *q
	c.whereArgs = slices.Clone(q.whereArgs)
	c.values = q.values.Clone()
	c.keys = slices.Clone(q.keys)

	return &c
}

// Keys replaces the key columns identifying a row of the table.
func (q *TableQuery) Keys(names ...string) *TableQuery {
	q.keys = append(q.keys[:0:0], names...)
	return q
}

// Where replaces the WHERE clause and its arguments.
func (q *TableQuery) Where(clause string, args ...any) *TableQuery {
	q.where = clause
	q.whereArgs = append([]any(nil), args...)

	return q
}

// WhereAnd adds "AND (clause)" to the WHERE clause and appends args after the
// existing arguments.
func (q *TableQuery) WhereAnd(clause string, args ...any) *TableQuery {
	if q.where == "" {
		return q.Where("("+clause+")", args...)
	}

	q.where += " AND (" + clause + ")"
	q.whereArgs = append(q.whereArgs, args...)

	return q
}

// Values replaces the values used by Insert, Update and InsertOrUpdate.
func (q *TableQuery) Values(v *Values) *TableQuery {
	if v == nil {
		v = &Values{}
	}

	q.values = v

	return q
}

// OrderBy appends a sort key.
func (q *TableQuery) OrderBy(column string, asc bool) *TableQuery {
	dir := " DESC"
	if asc {
		dir = " ASC"
	}

	if q.orderBy != "" {
		q.orderBy += ", "
	}

	q.orderBy += column + dir

	return q
}

// SetOrderBy replaces the whole ORDER BY clause with raw.
func (q *TableQuery) SetOrderBy(raw string) *TableQuery {
	q.orderBy = raw
	return q
}

func (q *TableQuery) GroupBy(raw string) *TableQuery {
	q.groupBy = raw
	return q
}

// Limit sets LIMIT count with an optional offset. A count of zero removes the
// clause; negative numbers count as zero.
func (q *TableQuery) Limit(count, offset int) *TableQuery {
	q.limit = max(count, 0)
	q.offset = max(offset, 0)

	return q
}

func (q *TableQuery) Distinct() *TableQuery {
	q.distinct = true
	return q
}

func (q *TableQuery) isKey(col string) bool {
	return slices.Contains(q.keys, col)
}

// deriveKeyWhere sets "k1=@kcArg<i> AND k2=@kcArg<j>" from the key columns found
// in v, i being the column position in v. It does nothing when keys are unset or
// a WHERE clause is present.
func (q *TableQuery) deriveKeyWhere(v *Values) {
	if len(q.keys) == 0 || q.where != "" {
		return
	}

	var (
		clause strings.Builder
		args   []any
	)

	for i, col := range v.Columns() {
		if !q.isKey(col) {
			continue
		}

		if clause.Len() > 0 {
			clause.WriteString(" AND ")
		}

		clause.WriteString(col)
		clause.WriteString("=@kcArg")
		clause.WriteString(strconv.Itoa(i))

		val, _ := v.Get(col)
		args = append(args, val)
	}

	q.Where(clause.String(), args...)
}

// BuildInsertValues renders INSERT INTO t VALUES(@insArg1, ...) for positional
// values covering every column of the table.
func (q *TableQuery) BuildInsertValues(vals ...any) (string, []any, error) {
	if len(vals) == 0 {
		return "", nil, fmt.Errorf("%w: insert into %s without values", ErrInvalidOperation, q.table)
	}

	var cmd strings.Builder

	cmd.Grow(cmdBufferSize)
	cmd.WriteString("INSERT INTO ")
	cmd.WriteString(q.table)
	cmd.WriteString(" VALUES(")

	for i := range vals {
		if i > 0 {
			cmd.WriteString(", ")
		}

		cmd.WriteString("@insArg")
		cmd.WriteString(strconv.Itoa(i + 1))
	}

	cmd.WriteString(");")

	return cmd.String(), append([]any(nil), vals...), nil
}

// BuildInsert renders INSERT INTO t (c1, c2) VALUES(@insArg1, @insArg2) from the
// current values.
func (q *TableQuery) BuildInsert() (string, []any, error) {
	if q.values.Len() == 0 {
		return "", nil, fmt.Errorf("%w: insert into %s without values", ErrInvalidOperation, q.table)
	}

	var (
		cmd    strings.Builder
		fields strings.Builder
		params strings.Builder
	)

	for i, col := range q.values.Columns() {
		if i > 0 {
			fields.WriteString(", ")
			params.WriteString(", ")
		}

		fields.WriteString(col)
		params.WriteString("@insArg")
		params.WriteString(strconv.Itoa(i + 1))
	}

	cmd.Grow(cmdBufferSize * 2)
	cmd.WriteString("INSERT INTO ")
	cmd.WriteString(q.table)
	cmd.WriteString(" (")
	cmd.WriteString(fields.String())
	cmd.WriteString(") VALUES(")
	cmd.WriteString(params.String())
	cmd.WriteString(");")

	return cmd.String(), q.values.Args(), nil
}

// BuildUpdate renders UPDATE t SET c=@upArg1 [WHERE ...]. Key columns are left
// out of SET. Without a WHERE clause every row is updated.
func (q *TableQuery) BuildUpdate() (string, []any, error) {
	var cmd strings.Builder

	cmd.Grow(cmdBufferSize)
	cmd.WriteString("UPDATE ")
	cmd.WriteString(q.table)
	cmd.WriteString(" SET ")

	args := make([]any, 0, q.values.Len()+len(q.whereArgs))
	cnt := 0

	for i, col := range q.values.Columns() {
		if q.isKey(col) {
			continue
		}

		if cnt > 0 {
			cmd.WriteString(", ")
		}

		cnt++

		cmd.WriteString(col)
		cmd.WriteString("=@upArg")
		cmd.WriteString(strconv.Itoa(cnt))

		args = append(args, q.values.args[i])
	}

	if cnt == 0 {
		return "", nil, fmt.Errorf("%w: nothing to update in %s", ErrInvalidOperation, q.table)
	}

	q.writeWhere(&cmd)
	cmd.WriteString(";")

	return cmd.String(), append(args, q.whereArgs...), nil
}

// BuildDelete renders DELETE FROM t [WHERE ...]. Without a WHERE clause every
// row is deleted.
func (q *TableQuery) BuildDelete() (string, []any, error) {
	var cmd strings.Builder

	cmd.Grow(cmdBufferSize)
	cmd.WriteString("DELETE FROM ")
	cmd.WriteString(q.table)
	q.writeWhere(&cmd)
	cmd.WriteString(";")

	return cmd.String(), slices.Clone(q.whereArgs), nil
}

// BuildSelect renders
// SELECT [DISTINCT] cols FROM t [WHERE] [GROUP BY] [ORDER BY] [LIMIT].
func (q *TableQuery) BuildSelect(columns ...string) (string, []any, error) {
	proj := "*"
	if len(columns) > 0 {
		proj = strings.Join(columns, ", ")
	}

	if q.distinct {
		proj = "DISTINCT " + proj
	}

	return q.buildSelect(proj), slices.Clone(q.whereArgs), nil
}

// BuildCount renders the SELECT of BuildSelect with the projection wrapped in
// count(...). Distinct applies inside count when columns are given.
func (q *TableQuery) BuildCount(columns ...string) (string, []any, error) {
	return q.BuildAggregate(countSymbol(q.distinct, columns))
}

func countSymbol(distinct bool, columns []string) AggregateSymbolBuilder {
	if len(columns) == 0 {
		return AggregateCount("*")
	}

	proj := strings.Join(columns, ", ")
	if distinct {
		proj = "DISTINCT " + proj
	}

	return AggregateCount(proj)
}

// BuildAggregate renders SELECT <aggregate> FROM t with the current clauses.
func (q *TableQuery) BuildAggregate(aggregate AggregateSymbolBuilder) (string, []any, error) {
	symbol, err := resolveAggregateSymbol(aggregate)
	if err != nil {
		return "", nil, err
	}

	return q.buildSelect(symbol), slices.Clone(q.whereArgs), nil
}

func (q *TableQuery) buildSelect(proj string) string {
	var cmd strings.Builder

	cmd.Grow(cmdBufferSize)
	cmd.WriteString("SELECT ")
	cmd.WriteString(proj)
	cmd.WriteString(" FROM ")
	cmd.WriteString(q.table)
	q.writeWhere(&cmd)

	if q.groupBy != "" {
		cmd.WriteString(" GROUP BY ")
		cmd.WriteString(q.groupBy)
	}

	if q.orderBy != "" {
		cmd.WriteString(" ORDER BY ")
		cmd.WriteString(q.orderBy)
	}

	cmd.WriteString(q.builder().limitClause(q.limit, q.offset))
	cmd.WriteString(";")

	return cmd.String()
}

func (q *TableQuery) writeWhere(cmd *strings.Builder) {
	if q.where == "" {
		return
	}

	cmd.WriteString(" WHERE ")
	cmd.WriteString(q.where)
}

func (q *TableQuery) builder() Builder {
	if q.store == nil || q.store.builder == nil {
		return Builder{dialect: DialectSQLite}
	}

	return *q.store.builder
}
