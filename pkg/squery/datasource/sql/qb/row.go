package qb

import "context"

// Row is implemented by caller types mapped to a table row.
type Row interface {
	// ParseFrom populates the row from the current row of c.
	ParseFrom(c *Cursor) error
	// Values exports the row as ordered column values.
	Values() *Values
}

// SelectOne selects at most one row with LIMIT 1 and returns it populated by a
// row from newRow. found is false when nothing matched.
//
// Without explicit columns the projection is the column list of a blank row, and
// when keys are set and no WHERE is present the blank row's key values become
// the WHERE clause.
func SelectOne[T Row](ctx context.Context, q *TableQuery, newRow func() T, columns ...string) (row T, found bool, err error) {
	if len(columns) == 0 {
		columns = q.columnsFrom(newRow())
	}

	q.Limit(1, 0)

	cur, err := q.Select(ctx, columns...)
	if err != nil {
		return row, false, err
	}

	defer cur.Close()

	if !cur.Next() {
		return row, false, cur.Err()
	}

	row = newRow()
	if err := row.ParseFrom(cur); err != nil {
		return row, false, err
	}

	if err := cur.Err(); err != nil {
		return row, false, err
	}

	return row, true, nil
}

// SelectMany selects every matching row, following additional result sets when
// the driver returns more than one. Columns are derived as in SelectOne.
func SelectMany[T Row](ctx context.Context, q *TableQuery, newRow func() T, columns ...string) ([]T, error) {
	if len(columns) == 0 {
		columns = q.columnsFrom(newRow())
	}

	cur, err := q.Select(ctx, columns...)
	if err != nil {
		return nil, err
	}

	defer cur.Close()

	var rows []T

	for {
		for cur.Next() {
			row := newRow()
			if err := row.ParseFrom(cur); err != nil {
				return nil, err
			}

			rows = append(rows, row)
		}

		if !cur.NextResultSet() {
			break
		}
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// columnsFrom returns the columns of a blank row and derives the key WHERE from
// it the same way UpdateRow does.
func (q *TableQuery) columnsFrom(blank Row) []string {
	v := blank.Values()
	q.deriveKeyWhere(v)

	return v.Columns()
}
