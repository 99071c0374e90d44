package database

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrConnectionLost is returned when no live connection could be obtained
	// after the reconnect policy was exhausted.
	ErrConnectionLost = errors.New("database connection lost")

	// ErrNotFound is returned when a by-id lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidColumn is returned when a column or table name is not a plain
	// identifier or is not known to the store.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrInvalidValue is returned when a record value is not a scalar.
	ErrInvalidValue = errors.New("invalid value")

	// ErrEmptyRecord is returned when a write carries no columns.
	ErrEmptyRecord = errors.New("empty record")

	// ErrInsufficientStock is returned when an order asks for more units than a product has.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// QueryError wraps a failed SQL execution against a table.
type QueryError struct {
	Op    string
	Table string
	Err   error

	// Conflict is set for constraint violations (duplicate keys, foreign keys).
	Conflict bool
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newQueryError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	// Connection loss and not-found keep their own identity.
	if errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &QueryError{Op: op, Table: table, Err: err, Conflict: isConstraintViolation(err)}
}

// IsConflict reports whether err is a constraint violation.
func IsConflict(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Conflict
	}
	return isConstraintViolation(err)
}

// IsInputError reports whether err was caused by caller input rejected before any SQL ran.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidColumn) || errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrEmptyRecord)
}

func isConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1451, 1452: // duplicate entry, fk parent row, fk child row
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
