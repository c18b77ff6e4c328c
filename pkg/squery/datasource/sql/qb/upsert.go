package qb

import (
	"context"
	"fmt"
	"strings"
)

// BuildUpsert renders a single-statement upsert of the current values keyed on
// the key columns.
//
// For MySQL the key columns only decide which columns are left out of the
// update; ON DUPLICATE KEY relies on the table's unique indexes. PostgreSQL and
// SQLite require keys to form the ON CONFLICT target.
func (q *TableQuery) BuildUpsert() (string, []any, error) {
	insert, args, err := q.BuildInsert()
	if err != nil {
		return "", nil, err
	}

	insert = strings.TrimSuffix(insert, ";")

	var sets []string

	for _, col := range q.values.Columns() {
		if q.isKey(col) {
			continue
		}

		sets = append(sets, col)
	}

	switch d := q.builder().dialect; d {
	case DialectMySQL:
		if len(sets) == 0 {
			return "INSERT IGNORE" + strings.TrimPrefix(insert, "INSERT") + ";", args, nil
		}

		for i, col := range sets {
			sets[i] = col + "=VALUES(" + col + ")"
		}

		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s;", insert, strings.Join(sets, ", ")), args, nil

	case DialectPostgres, DialectSQLite:
		target, err := buildConflictTarget(q.keys)
		if err != nil {
			return "", nil, err
		}

		if target == "" {
			return "", nil, errEmptyConflictColumns
		}

		if len(sets) == 0 {
			return fmt.Sprintf("%s ON CONFLICT %s DO NOTHING;", insert, target), args, nil
		}

		for i, col := range sets {
			sets[i] = col + "=excluded." + col
		}

		return fmt.Sprintf("%s ON CONFLICT %s DO UPDATE SET %s;", insert, target, strings.Join(sets, ", ")), args, nil

	default:
		return "", nil, fmt.Errorf("%w: %q", errUnsupportedDialect, d)
	}
}

// Upsert inserts the current values or updates the row with the same keys in one
// statement.
func (q *TableQuery) Upsert(ctx context.Context) (int64, error) {
	return q.execNonQuery(ctx, q.BuildUpsert)
}

// UpsertRow makes row the current values and runs Upsert.
func (q *TableQuery) UpsertRow(ctx context.Context, row Row) (int64, error) {
	q.Values(row.Values())

	return q.Upsert(ctx)
}

func buildConflictTarget(conflictColumns []string) (string, error) {
	if len(conflictColumns) == 0 {
		return "", nil
	}

	columns := make([]string, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		c := strings.TrimSpace(col)
		if c == "" {
			return "", errEmptyConflictColumns
		}

		columns = append(columns, c)
	}

	return fmt.Sprintf("(%s)", strings.Join(columns, ", ")), nil
}
