package schema

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var relationType = reflect.TypeOf((*Relation)(nil)).Elem()

// builder derives table metadata from entity struct types. Every change it
// makes to the registry is recorded so a failed build leaves no trace.
type builder struct {
	registry *Registry
	undo     []func()
}

func (b *builder) rollback() {
	for i := len(b.undo) - 1; i >= 0; i-- {
		b.undo[i]()
	}
	b.undo = nil
}

// build returns the metadata of typ, deriving it and everything it relates to
// on first use
func (b *builder) build(typ reflect.Type) (*Table, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, &MappingError{Entity: typ.String(), Message: "entity must be a struct"}
	}
	if table, ok := b.registry.byType[typ]; ok {
		return table, nil
	}

	name, err := b.tableName(typ)
	if err != nil {
		return nil, err
	}

	table := NewTable(name, typ)
	if err := b.addTable(table); err != nil {
		return nil, err
	}

	// Scalars first: relationships need the primary key.
	var relations []reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() || (sf.Anonymous && sf.Type == b.registry.base) {
			continue
		}

		opts, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, &MappingError{Entity: name, Field: sf.Name, Message: err.Error()}
		}
		if opts.skip {
			continue
		}
		if sf.Type.Implements(relationType) {
			relations = append(relations, sf)
			continue
		}

		field, err := scalarField(name, sf, opts)
		if err != nil {
			return nil, err
		}
		if err := table.Register(field); err != nil {
			return nil, err
		}
	}

	if err := validateTable(table); err != nil {
		return nil, err
	}

	for _, sf := range relations {
		if err := b.relationship(table, sf); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// tableName reads the table name from the embedded model's tag, defaulting to
// the type name
func (b *builder) tableName(typ reflect.Type) (string, error) {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.Anonymous || sf.Type != b.registry.base {
			continue
		}
		opts, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return "", &MappingError{Entity: typ.Name(), Message: err.Error()}
		}
		if opts.table != "" {
			return opts.table, nil
		}
		return typ.Name(), nil
	}

	return "", &MappingError{
		Entity:  typ.String(),
		Message: fmt.Sprintf("entity does not embed %s", b.registry.base),
	}
}

func scalarField(table string, sf reflect.StructField, opts tagOptions) (*Field, error) {
	sqlType := opts.sqlType
	if sqlType == "" {
		inferred, ok := sqlTypeFor(sf.Type)
		if !ok {
			return nil, &MappingError{
				Entity:  table,
				Field:   sf.Name,
				Message: fmt.Sprintf("cannot map %s to a column type", sf.Type),
				Hint:    `declare the column type with the type: tag option, or skip the field with orm:"-"`,
			}
		}
		sqlType = inferred
	}

	field := &Field{
		Name:     opts.column,
		Property: sf.Name,
		SQLType:  sqlType,
		index:    sf.Index,
		typ:      sf.Type,
	}
	if field.Name == "" {
		field.Name = toSnakeCase(sf.Name)
	}
	if opts.id {
		field.Flags |= FlagPrimary
		if !opts.noAuto {
			field.Flags |= FlagAutoIncrement
		}
	}
	if opts.unique {
		field.Flags |= FlagUnique
	}
	if opts.notNull {
		field.Flags |= FlagNotNull
	}
	if opts.def != nil {
		field.Default = *opts.def
	}

	return field, nil
}

// relationship registers the one-to-one or one-to-many relationship declared
// by the owner's property sf
func (b *builder) relationship(owner *Table, sf reflect.StructField) error {
	opts, _ := parseTag(sf.Tag.Get(TagName))
	slot := reflect.Zero(sf.Type).Interface().(Relation)

	target, err := b.build(slot.RelatedType())
	if err != nil {
		return fmt.Errorf("%s.%s: %w", owner.name, sf.Name, err)
	}

	column := opts.column
	if column == "" {
		column = toSnakeCase(sf.Name)
	}

	rel := &Relationship{
		Kind:       OneToOne,
		PrimaryKey: owner.primaryKey,
		Property:   sf.Name,
		Target:     target,
		index:      sf.Index,
	}
	if slot.IsCollection() {
		rel.Kind = OneToMany
		if opts.joinTable {
			return b.joinTable(owner, rel, opts.joinName)
		}
	} else if opts.joinTable {
		return &MappingError{Entity: owner.name, Field: sf.Name, Message: "jointable applies to collections only"}
	}

	fk := &Field{
		Name:       fmt.Sprintf("parent_%s_fk", column),
		Property:   sf.Name,
		SQLType:    owner.primaryKey.SQLType,
		References: owner.primaryKey,
		Constraint: rel,
		typ:        owner.primaryKey.typ,
	}
	if rel.Kind == OneToOne {
		fk.Flags = FlagUnique
	}
	rel.ForeignKey = fk

	if err := b.register(target, fk); err != nil {
		return err
	}
	b.link(rel, owner, target)
	b.reference(target.name, owner.name)

	return nil
}

// joinTable stores a one-to-many relationship in a synthetic table holding a
// copy of each side's primary key
func (b *builder) joinTable(owner *Table, rel *Relationship, name string) error {
	target := rel.Target
	if name == "" {
		name = owner.name + "_" + target.name
	}

	join := NewTable(name, nil)
	if err := b.addTable(join); err != nil {
		return err
	}

	id := &Field{
		Name:     "id",
		Property: uuid.NewString(),
		SQLType:  "INT",
		Flags:    FlagPrimary | FlagAutoIncrement | FlagNotNull,
	}

	ownerCol := owner.primaryKey.copyAsKey(owner.name + "_" + owner.primaryKey.Name)
	ownerCol.References = owner.primaryKey
	ownerCol.Constraint = rel

	targetName := target.name + "_" + target.primaryKey.Name
	if targetName == ownerCol.Name {
		targetName = "child_" + targetName
	}
	targetCol := target.primaryKey.copyAsKey(targetName)
	targetCol.References = target.primaryKey
	targetCol.Constraint = rel

	for _, f := range []*Field{id, ownerCol, targetCol} {
		if err := join.Register(f); err != nil {
			return err
		}
	}

	rel.ForeignKey = ownerCol
	rel.Join = join
	rel.JoinTarget = targetCol

	b.link(rel, owner, target, join)
	b.reference(join.name, owner.name)
	b.reference(join.name, target.name)

	return nil
}

func (b *builder) addTable(table *Table) error {
	r := b.registry
	if existing, ok := r.byName[table.name]; ok {
		return &MappingError{
			Entity:  table.name,
			Message: fmt.Sprintf("table name already used by %s", describeTable(existing)),
			Hint:    `set another name with orm:"table:<name>" on the embedded model`,
		}
	}

	r.byName[table.name] = table
	r.order = append(r.order, table)
	if table.entityType != nil {
		r.byType[table.entityType] = table
	}

	b.undo = append(b.undo, func() {
		delete(r.byName, table.name)
		if table.entityType != nil {
			delete(r.byType, table.entityType)
		}
		for i, t := range r.order {
			if t == table {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	})

	return nil
}

func (b *builder) register(table *Table, f *Field) error {
	if err := table.Register(f); err != nil {
		return err
	}
	b.undo = append(b.undo, func() { table.unregister(f) })
	return nil
}

func (b *builder) link(rel *Relationship, tables ...*Table) {
	for _, t := range tables {
		t.addConstraint(rel)
	}
	b.undo = append(b.undo, func() {
		for _, t := range tables {
			t.removeConstraint(rel)
		}
	})
}

func (b *builder) reference(from, to string) {
	r := b.registry
	if r.references[from] == nil {
		r.references[from] = make(map[string]bool)
	}
	if r.references[from][to] {
		return
	}
	r.references[from][to] = true
	b.undo = append(b.undo, func() { delete(r.references[from], to) })
}

func describeTable(t *Table) string {
	if t.entityType != nil {
		return t.entityType.String()
	}
	return "a join table"
}
