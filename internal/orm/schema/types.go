// Package schema derives table metadata from tagged entity structs and renders the
// MySQL statements the repositories execute. Metadata is built once per entity type
// and memoized in a Registry.
package schema

import (
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Flag is a column attribute bit.
type Flag uint8

const (
	FlagPrimary Flag = 1 << iota
	FlagAutoIncrement
	FlagUnique
	FlagNotNull
)

// String returns the flag names joined by "|"
func (f Flag) String() string {
	var names []string
	if f&FlagPrimary != 0 {
		names = append(names, "primary")
	}
	if f&FlagAutoIncrement != 0 {
		names = append(names, "auto_increment")
	}
	if f&FlagUnique != 0 {
		names = append(names, "unique")
	}
	if f&FlagNotNull != 0 {
		names = append(names, "not_null")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// RelationKind tags a relationship constraint
type RelationKind int

const (
	OneToOne RelationKind = iota
	OneToMany
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "one_to_one"
	case OneToMany:
		return "one_to_many"
	default:
		return "unknown"
	}
}

const (
	// VersionFieldName is the implicit optimistic lock column of entity-bound tables.
	VersionFieldName = "_version"
	// DefaultVersion is the version assigned to a freshly created row.
	DefaultVersion = 1
	// DefaultEngine is the storage engine named in CREATE TABLE.
	DefaultEngine = "InnoDB"
)

// Field describes one column.
type Field struct {
	Name     string
	Property string
	SQLType  string
	Flags    Flag
	// Default is the literal used when the bound value is null. Nil means none.
	Default any

	// References is the primary key a foreign key column points to.
	References *Field
	// Constraint is the relationship a foreign key column belongs to.
	Constraint *Relationship

	table *Table
	index []int
	typ   reflect.Type
}

// Table returns the table the field belongs to
func (f *Field) Table() *Table {
	return f.table
}

// Has reports whether every bit of flag is set
func (f *Field) Has(flag Flag) bool {
	return f.Flags&flag == flag
}

// IsPrimaryKey reports whether the field is the table's primary key
func (f *Field) IsPrimaryKey() bool {
	return f.Has(FlagPrimary)
}

// IsAutoIncrement reports whether the database assigns the column value
func (f *Field) IsAutoIncrement() bool {
	return f.Has(FlagAutoIncrement)
}

// IsForeignKey reports whether the column references another table's primary key
func (f *Field) IsForeignKey() bool {
	return f.References != nil
}

// IsVersion reports whether the field is the implicit version column
func (f *Field) IsVersion() bool {
	return f.Name == VersionFieldName && f.index == nil
}

// Bound reports whether the field maps onto a struct field
func (f *Field) Bound() bool {
	return f.index != nil
}

// Index returns the struct field index path of the bound property
func (f *Field) Index() []int {
	return f.index
}

// GoType returns the declared Go type of the bound property
func (f *Field) GoType() reflect.Type {
	return f.typ
}

// IsNumeric reports whether literals of this column are written unquoted
func (f *Field) IsNumeric() bool {
	return IsNumericType(f.SQLType)
}

// IsBool reports whether the column holds a boolean
func (f *Field) IsBool() bool {
	return IsBoolType(f.SQLType)
}

// IsString reports whether the column holds character data
func (f *Field) IsString() bool {
	return IsStringType(f.SQLType)
}

// copyAsKey clones a primary key into a join table column. Key flags do not carry over.
func (f *Field) copyAsKey(name string) *Field {
	return &Field{
		Name:     name,
		Property: uuid.NewString(),
		SQLType:  f.SQLType,
		Flags:    f.Flags &^ (FlagPrimary | FlagAutoIncrement),
		typ:      f.typ,
	}
}

// Relationship is a foreign key link between two tables. It is shared by the
// table holding the foreign key and the table holding the referenced primary key.
type Relationship struct {
	Kind RelationKind
	// ForeignKey is the referencing column. For join table relationships it is the
	// join table column referencing the owner.
	ForeignKey *Field
	// PrimaryKey is the owner's primary key.
	PrimaryKey *Field
	// Property is the owner's struct field holding the related entity or entities.
	Property string
	// Target is the entity table the owner relates to.
	Target *Table
	// Join is the synthetic join table, if any, and JoinTarget its column
	// referencing the target's primary key.
	Join       *Table
	JoinTarget *Field

	index []int
}

// Owner returns the table declaring the relationship property
func (r *Relationship) Owner() *Table {
	return r.PrimaryKey.table
}

// Index returns the struct field index path of the relationship property on the owner
func (r *Relationship) Index() []int {
	return r.index
}

// ViaJoinTable reports whether the relationship is stored in a synthetic join table
func (r *Relationship) ViaJoinTable() bool {
	return r.Join != nil
}

var numericTypes = map[string]bool{
	"INT":       true,
	"INTEGER":   true,
	"TINYINT":   true,
	"SMALLINT":  true,
	"MEDIUMINT": true,
	"BIGINT":    true,
	"BIT":       true,
	"FLOAT":     true,
	"DOUBLE":    true,
	"DECIMAL":   true,
}

// baseType strips a precision suffix: "DECIMAL(10,2)" -> "DECIMAL"
func baseType(sqlType string) string {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[:i]
	}
	return t
}

// IsNumericType reports whether values of sqlType are written unquoted
func IsNumericType(sqlType string) bool {
	return numericTypes[baseType(sqlType)]
}

// IsBoolType reports whether sqlType is a boolean column type
func IsBoolType(sqlType string) bool {
	switch baseType(sqlType) {
	case "BOOL", "BOOLEAN":
		return true
	}
	return false
}

// IsStringType reports whether sqlType holds character data
func IsStringType(sqlType string) bool {
	switch baseType(sqlType) {
	case "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT", "CHAR", "VARCHAR":
		return true
	}
	return false
}

// toSnakeCase converts a Go identifier to a column name.
// Acronym runs stay together: "ID" -> "id", "HTTPServer" -> "http_server".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if i > 0 && upper {
			prev := runes[i-1]
			prevLower := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := prev >= 'A' && prev <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}
