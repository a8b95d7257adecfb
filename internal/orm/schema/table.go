package schema

import (
	"fmt"
	"reflect"
	"sort"
)

// Versioned is implemented by entities carrying the implicit version counter.
// A zero version marks a transient entity.
type Versioned interface {
	Version() int
}

// Relation is implemented by relationship slot types. The builder maps a field
// implementing it to a one-to-one or one-to-many relationship.
type Relation interface {
	RelatedType() reflect.Type
	IsCollection() bool
}

// Table describes one table and renders its statements.
type Table struct {
	name       string
	engine     string
	entityType reflect.Type

	fields      []*Field
	byName      map[string]*Field
	byProperty  map[string]*Field
	primaryKey  *Field
	version     *Field
	constraints []*Relationship

	sorted []*Field
}

// NewTable creates table metadata. Tables bound to an entity type carry the
// implicit version column; join tables pass a nil entity type.
func NewTable(name string, entityType reflect.Type) *Table {
	t := &Table{
		name:       name,
		engine:     DefaultEngine,
		entityType: entityType,
		byName:     make(map[string]*Field),
		byProperty: make(map[string]*Field),
	}

	if entityType != nil {
		t.version = &Field{
			Name:    VersionFieldName,
			SQLType: "INT",
			Flags:   FlagNotNull,
			Default: DefaultVersion,
		}
		// cannot collide on an empty table
		_ = t.Register(t.version)
	}

	return t
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// Engine returns the storage engine
func (t *Table) Engine() string {
	return t.engine
}

// EntityType returns the bound struct type, nil for join tables
func (t *Table) EntityType() reflect.Type {
	return t.entityType
}

// IsBound reports whether the table is bound to an entity type
func (t *Table) IsBound() bool {
	return t.entityType != nil
}

// PrimaryKey returns the primary key field
func (t *Table) PrimaryKey() *Field {
	return t.primaryKey
}

// VersionField returns the implicit version column, nil for join tables
func (t *Table) VersionField() *Field {
	return t.version
}

// Register appends a column and indexes it by name and property.
func (t *Table) Register(f *Field) error {
	if _, exists := t.byName[f.Name]; exists {
		return &MappingError{
			Entity:  t.name,
			Field:   f.Name,
			Message: "column is declared twice",
			Hint:    "rename one of the properties with the field: tag option",
		}
	}
	if f.IsPrimaryKey() && t.primaryKey != nil {
		return &MappingError{
			Entity:  t.name,
			Field:   f.Name,
			Message: fmt.Sprintf("second primary key, %s is already the primary key", t.primaryKey.Name),
		}
	}

	f.table = t
	t.fields = append(t.fields, f)
	t.byName[f.Name] = f
	if f.Property == "" {
		f.Property = f.Name
	}
	// Foreign key columns carry the owner's property name; they are reached by
	// column name so they never shadow this table's own properties.
	if !f.IsForeignKey() {
		t.byProperty[f.Property] = f
	}
	if f.IsPrimaryKey() {
		t.primaryKey = f
	}
	t.sort()

	return nil
}

// unregister removes a column added by Register
func (t *Table) unregister(f *Field) {
	for i, existing := range t.fields {
		if existing == f {
			t.fields = append(t.fields[:i], t.fields[i+1:]...)
			break
		}
	}
	delete(t.byName, f.Name)
	if t.byProperty[f.Property] == f {
		delete(t.byProperty, f.Property)
	}
	if t.primaryKey == f {
		t.primaryKey = nil
	}
	t.sort()
}

func (t *Table) addConstraint(r *Relationship) {
	for _, existing := range t.constraints {
		if existing == r {
			return
		}
	}
	t.constraints = append(t.constraints, r)
}

func (t *Table) removeConstraint(r *Relationship) {
	for i, existing := range t.constraints {
		if existing == r {
			t.constraints = append(t.constraints[:i], t.constraints[i+1:]...)
			return
		}
	}
}

// FieldByName looks up a column
func (t *Table) FieldByName(name string) (*Field, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// FieldByProperty looks up a column by the struct field it is bound to
func (t *Table) FieldByProperty(property string) (*Field, bool) {
	f, ok := t.byProperty[property]
	return f, ok
}

// Fields returns the columns in serialization order: primary key, plain
// columns by name, version, foreign keys.
func (t *Table) Fields() []*Field {
	return t.sorted
}

// sort recomputes the serialization order. It runs on every column change,
// which only happens while the registry lock is held.
func (t *Table) sort() {
	sorted := make([]*Field, len(t.fields))
	copy(sorted, t.fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := fieldPriority(sorted[i]), fieldPriority(sorted[j])
		if pi != pj {
			return pi < pj
		}
		if pi == 1 {
			return sorted[i].Name < sorted[j].Name
		}
		return false
	})
	t.sorted = sorted
}

func fieldPriority(f *Field) int {
	switch {
	case f.IsPrimaryKey():
		return 0
	case f.IsVersion():
		return 2
	case f.IsForeignKey():
		return 3
	default:
		return 1
	}
}

// LocalFields returns the columns that are not foreign keys
func (t *Table) LocalFields() []*Field {
	var local []*Field
	for _, f := range t.Fields() {
		if !f.IsForeignKey() {
			local = append(local, f)
		}
	}
	return local
}

// Constraints returns every relationship touching the table
func (t *Table) Constraints() []*Relationship {
	return t.constraints
}

// Relations returns the relationships declared by this table's entity, in
// declaration order.
func (t *Table) Relations() []*Relationship {
	var owned []*Relationship
	for _, r := range t.constraints {
		if r.Owner() == t {
			owned = append(owned, r)
		}
	}
	return owned
}

// Relation looks up a declared relationship by property name
func (t *Table) Relation(property string) (*Relationship, bool) {
	for _, r := range t.Relations() {
		if r.Property == property {
			return r, true
		}
	}
	return nil, false
}

// IncomingForeignKeys returns the columns on other tables that reference this
// table's primary key on behalf of one of its relationship properties.
func (t *Table) IncomingForeignKeys() []*Field {
	var fks []*Field
	for _, r := range t.Relations() {
		fks = append(fks, r.ForeignKey)
	}
	return fks
}

// EntityFields returns the fields used to populate a loaded entity: local
// columns plus incoming foreign keys.
func (t *Table) EntityFields() []*Field {
	return append(t.LocalFields(), t.IncomingForeignKeys()...)
}

// Value returns the bound property value of f, or nil when it maps to SQL NULL:
// a nil pointer, a zero time, or a zero primary key.
func (t *Table) Value(entity reflect.Value, f *Field) any {
	if !f.Bound() {
		return nil
	}

	v := reflect.Indirect(entity).FieldByIndex(f.index)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if (f.IsPrimaryKey() || v.Type() == timeType) && v.IsZero() {
		return nil
	}

	return v.Interface()
}

// ID returns the primary key value of entity
func (t *Table) ID(entity reflect.Value) any {
	return t.Value(entity, t.primaryKey)
}

// SetID assigns a primary key value read from the database
func (t *Table) SetID(entity reflect.Value, id any) error {
	return t.Assign(entity, t.primaryKey, id)
}

// Assign coerces a database value into the property bound to f
func (t *Table) Assign(entity reflect.Value, f *Field, value any) error {
	if !f.Bound() {
		return fmt.Errorf("column %s.%s is not bound to a property", t.name, f.Name)
	}
	dst := reflect.Indirect(entity).FieldByIndex(f.index)
	if err := assign(dst, value); err != nil {
		return fmt.Errorf("column %s.%s: %w", t.name, f.Name, err)
	}
	return nil
}

func versionOf(entity reflect.Value) int {
	if entity.Kind() != reflect.Pointer && entity.CanAddr() {
		entity = entity.Addr()
	}
	if v, ok := entity.Interface().(Versioned); ok {
		return v.Version()
	}
	return 0
}
