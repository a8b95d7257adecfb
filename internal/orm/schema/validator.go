package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMapping is matched by every error raised while deriving metadata.
var ErrMapping = errors.New("schema mapping error")

// MappingError is a schema mapping error with context
type MappingError struct {
	Entity  string
	Field   string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	var b strings.Builder

	b.WriteString(ErrMapping.Error())
	b.WriteString(": ")
	if e.Entity != "" {
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}

	return b.String()
}

// Is makes errors.Is(err, ErrMapping) hold
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// validateTable checks a freshly built entity table
func validateTable(t *Table) error {
	pk := t.PrimaryKey()
	if pk == nil {
		return &MappingError{
			Entity:  t.name,
			Message: "entity must have a primary key",
			Hint:    `tag one field with orm:"id"`,
		}
	}

	if pk.IsAutoIncrement() && !pk.IsNumeric() {
		return &MappingError{
			Entity:  t.name,
			Field:   pk.Name,
			Message: fmt.Sprintf("auto increment primary key must be numeric, got %s", pk.SQLType),
			Hint:    `add the noauto tag option for keys assigned by the application`,
		}
	}

	for _, f := range t.fields {
		if f.SQLType == "" {
			return &MappingError{
				Entity:  t.name,
				Field:   f.Name,
				Message: "column has no SQL type",
			}
		}
	}

	return nil
}
