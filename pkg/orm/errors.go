package orm

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/netbrain/simphple-orm/internal/orm/schema"
)

var (
	// ErrNotFound is returned when no row matches a primary key
	ErrNotFound = errors.New("record not found")

	// ErrOptimisticLock is returned when an update or delete matched no row: the
	// row was deleted or another session committed a newer version
	ErrOptimisticLock = errors.New("optimistic lock failed: row was deleted or modified concurrently")

	// ErrTransientEntity is returned when an operation needs a persisted entity
	ErrTransientEntity = errors.New("entity is transient")

	// ErrUnhandledEntityType is returned for entity types without a repository
	ErrUnhandledEntityType = errors.New("unhandled entity type")

	// ErrInvalidEntity is returned for values that are not pointers to entities
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrSchema matches every schema mapping error
	ErrSchema = schema.ErrMapping

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// MySQL server error numbers
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlBadNull          = 1048
	mysqlRowIsReferenced2 = 1217
	mysqlNoReferencedRow2 = 1216
)

// DriverError wraps a failed statement with the native error code and text
type DriverError struct {
	Query   string
	Code    uint16
	Message string
	Err     error

	kind error
}

// Error implements the error interface
func (e *DriverError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("driver error %d: %s (query: %s)", e.Code, e.Message, e.Query)
	}
	return fmt.Sprintf("driver error: %s (query: %s)", e.Message, e.Query)
}

// Unwrap exposes the native error and the constraint class, if any
func (e *DriverError) Unwrap() []error {
	if e.kind != nil {
		return []error{e.Err, e.kind}
	}
	return []error{e.Err}
}

// ConvertDBError wraps a failed statement in a DriverError
func ConvertDBError(query string, err error) error {
	if err == nil {
		return nil
	}

	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return err
	}

	de := &DriverError{Query: query, Message: err.Error(), Err: err}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		de.Code = myErr.Number
		de.Message = myErr.Message
		switch myErr.Number {
		case mysqlDuplicateEntry:
			de.kind = ErrUniqueViolation
		case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlRowIsReferenced2, mysqlNoReferencedRow2:
			de.kind = ErrForeignKeyViolation
		case mysqlBadNull:
			de.kind = ErrNotNullViolation
		}
	}

	return de
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsOptimisticLock returns true if the error is ErrOptimisticLock
func IsOptimisticLock(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// IsDriverError returns true if a statement failed in the driver
func IsDriverError(err error) bool {
	var driverErr *DriverError
	return errors.As(err, &driverErr)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}
