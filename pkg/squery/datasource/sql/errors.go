package sql

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConstraintViolation matches, via errors.Is, every DriverError caused by a
// unique, primary key, foreign key, not null or check constraint.
var ErrConstraintViolation = errors.New("constraint violation")

// DriverError is returned for any failure reported by the underlying store while
// executing a statement.
type DriverError struct {
	Query string
	Err   error
}

// NewDriverError wraps err together with the statement that caused it. A nil err
// or an error that already is a DriverError is returned unchanged.
func NewDriverError(query string, err error) error {
	if err == nil {
		return nil
	}

	var de *DriverError
	if errors.As(err, &de) {
		return err
	}

	return &DriverError{Query: query, Err: err}
}

func (e *DriverError) Error() string {
	if e.IsConstraintViolation() {
		return fmt.Sprintf("%v: %v", ErrConstraintViolation, e.Err)
	}

	return fmt.Sprintf("driver error: %v", e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConstraintViolation) classify the wrapped driver error.
func (e *DriverError) Is(target error) bool {
	return target == ErrConstraintViolation && e.IsConstraintViolation()
}

// IsConstraintViolation reports whether the wrapped error is a constraint failure
// for any of the supported drivers.
func (e *DriverError) IsConstraintViolation() bool {
	return isConstraintError(e.Err)
}

//nolint:gochecknoglobals // MySQL server error numbers for constraint failures.
var mysqlConstraintCodes = map[uint16]struct{}{
	1048: {}, // ER_BAD_NULL_ERROR
	1062: {}, // ER_DUP_ENTRY
	1216: {}, // ER_NO_REFERENCED_ROW
	1217: {}, // ER_ROW_IS_REFERENCED
	1451: {}, // ER_ROW_IS_REFERENCED_2
	1452: {}, // ER_NO_REFERENCED_ROW_2
	3819: {}, // ER_CHECK_CONSTRAINT_VIOLATED
}

// postgres integrity_constraint_violation class
const pqIntegrityClass = "23"

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended result codes keep the primary code in the low byte
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		_, ok := mysqlConstraintCodes[mysqlErr.Number]
		return ok
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pqIntegrityClass
	}

	return false
}

// IsConstraintViolation reports whether err is, or wraps, a constraint failure.
func IsConstraintViolation(err error) bool {
	if errors.Is(err, ErrConstraintViolation) {
		return true
	}

	return isConstraintError(err)
}
