package qb

import (
	"context"
	"fmt"

	"github.com/sllt/squery/pkg/squery/logging"
)

var errNoStore = fmt.Errorf("%w: table query is not bound to a store", ErrInvalidOperation)

type renderFunc func() (string, []any, error)

func (q *TableQuery) execNonQuery(ctx context.Context, render renderFunc) (int64, error) {
	if q.store == nil {
		return 0, errNoStore
	}

	query, args, err := render()
	if err != nil {
		return 0, err
	}

	return q.store.ExecuteNonQuery(ctx, query, args...)
}

// InsertValues inserts one row given every column value in table order.
func (q *TableQuery) InsertValues(ctx context.Context, vals ...any) (int64, error) {
	return q.execNonQuery(ctx, func() (string, []any, error) { return q.BuildInsertValues(vals...) })
}

// Insert inserts the current values. Constraint failures satisfy
// errors.Is(err, sql.ErrConstraintViolation).
func (q *TableQuery) Insert(ctx context.Context) (int64, error) {
	return q.execNonQuery(ctx, q.BuildInsert)
}

// InsertRow makes row the current values and inserts it.
func (q *TableQuery) InsertRow(ctx context.Context, row Row) (int64, error) {
	q.Values(row.Values())

	return q.Insert(ctx)
}

// Update updates with the current values and WHERE clause. An empty WHERE
// updates every row of the table.
func (q *TableQuery) Update(ctx context.Context) (int64, error) {
	return q.execNonQuery(ctx, q.BuildUpdate)
}

// UpdateRow makes row the current values, derives the WHERE clause from the key
// columns when none is set, and updates.
//
// The derived WHERE stays on q. Call Reset before reusing q for another row,
// otherwise the next call updates the first row's keys again.
func (q *TableQuery) UpdateRow(ctx context.Context, row Row) (int64, error) {
	q.Values(row.Values())
	q.deriveKeyWhere(q.values)

	return q.Update(ctx)
}

// InsertOrUpdate inserts the current values and falls back to Update when the
// insert fails or affects no row. It needs values and a WHERE clause, derived
// from the key columns when none is set.
//
// Inside a postgres transaction a failed insert aborts the transaction; use
// Upsert there.
func (q *TableQuery) InsertOrUpdate(ctx context.Context) (int64, error) {
	if q.store == nil {
		return 0, errNoStore
	}

	q.deriveKeyWhere(q.values)

	if q.values.Len() == 0 || q.where == "" {
		return 0, fmt.Errorf("%w: need WHERE", ErrInvalidOperation)
	}

	n, err := q.Insert(ctx)
	if err != nil {
		logging.NewContextLogger(ctx, q.store.logger).Debugf("insert into %s failed, trying update: %v", q.table, err)
	}

	if err != nil || n < 1 {
		return q.Update(ctx)
	}

	return n, nil
}

// InsertOrUpdateRow makes row the current values and runs InsertOrUpdate.
// Like UpdateRow it leaves the derived WHERE on q, so Reset q between rows.
func (q *TableQuery) InsertOrUpdateRow(ctx context.Context, row Row) (int64, error) {
	q.Values(row.Values())

	return q.InsertOrUpdate(ctx)
}

// Delete deletes the rows matching the WHERE clause. An empty WHERE deletes every
// row of the table.
func (q *TableQuery) Delete(ctx context.Context) (int64, error) {
	return q.execNonQuery(ctx, q.BuildDelete)
}

// Select runs BuildSelect. The caller owns the returned Cursor and must close it.
func (q *TableQuery) Select(ctx context.Context, columns ...string) (*Cursor, error) {
	if q.store == nil {
		return nil, errNoStore
	}

	query, args, err := q.BuildSelect(columns...)
	if err != nil {
		return nil, err
	}

	return q.store.ExecuteQuery(ctx, query, args...)
}

// Count returns count(*) or count(columns) over the current clauses.
func (q *TableQuery) Count(ctx context.Context, columns ...string) (int64, error) {
	r, err := q.Aggregate(ctx, countSymbol(q.distinct, columns))
	if err != nil {
		return 0, err
	}

	return r.Int64(), nil
}

// Aggregate runs SELECT <aggregate> FROM t with the current clauses.
func (q *TableQuery) Aggregate(ctx context.Context, aggregate AggregateSymbolBuilder) (ResultResolver, error) {
	if q.store == nil {
		return resultResolve{0}, errNoStore
	}

	query, args, err := q.BuildAggregate(aggregate)
	if err != nil {
		return resultResolve{0}, err
	}

	v, err := q.store.ExecuteScalar(ctx, query, args...)
	if err != nil {
		return resultResolve{0}, err
	}

	return resultResolve{v}, nil
}
