package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// CreateTableSQL renders the idempotent CREATE TABLE statement
func (t *Table) CreateTableSQL() string {
	fields := t.Fields()
	defs := make([]string, 0, len(fields))
	var constraints []string

	for _, f := range fields {
		defs = append(defs, columnDefinition(f))
	}
	for _, f := range fields {
		constraints = append(constraints, columnConstraints(f)...)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE=%s",
		t.name, strings.Join(append(defs, constraints...), ","), t.engine)
}

func columnDefinition(f *Field) string {
	var b strings.Builder
	b.WriteString(QuoteIdentifier(f.Name))
	b.WriteString(" ")
	b.WriteString(f.SQLType)
	if f.Has(FlagNotNull) {
		b.WriteString(" NOT NULL")
	}
	if f.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(DefaultLiteral(f))
	}
	if f.IsAutoIncrement() {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

func columnConstraints(f *Field) []string {
	var constraints []string
	if f.IsPrimaryKey() {
		constraints = append(constraints, fmt.Sprintf("PRIMARY KEY (%s)", QuoteIdentifier(f.Name)))
	}
	if f.Has(FlagUnique) {
		constraints = append(constraints, fmt.Sprintf("UNIQUE (%s)", QuoteIdentifier(f.Name)))
	}
	if f.IsForeignKey() {
		constraints = append(constraints, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			QuoteIdentifier(f.Name), f.References.table.name, QuoteIdentifier(f.References.Name)))
	}
	return constraints
}

// DropTableSQL renders the idempotent DROP TABLE statement
func (t *Table) DropTableSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", t.name)
}

// InsertSQL renders the INSERT for entity. When parentFK is set that column
// receives parentID; other foreign key columns are NULL.
func (t *Table) InsertSQL(entity reflect.Value, parentID any, parentFK *Field) string {
	fields := t.Fields()
	cols := make([]string, 0, len(fields))
	vals := make([]string, 0, len(fields))

	for _, f := range fields {
		var v any
		switch {
		case parentFK != nil && f == parentFK:
			v = parentID
		case f.IsVersion():
			if version := versionOf(entity); version > 0 {
				v = version
			}
		case f.IsForeignKey():
			v = nil
		default:
			v = t.Value(entity, f)
		}
		cols = append(cols, QuoteIdentifier(f.Name))
		vals = append(vals, FieldLiteral(f, v))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ","), strings.Join(vals, ","))
}

// UpdateSQL renders the optimistic-lock UPDATE for entity. The statement
// writes version+1 and only matches the row still at the entity's version.
func (t *Table) UpdateSQL(entity reflect.Value) string {
	version := versionOf(entity)
	var sets []string

	for _, f := range t.Fields() {
		if f.IsPrimaryKey() || f.IsForeignKey() {
			continue
		}
		var literal string
		if f.IsVersion() {
			literal = Literal(version + 1)
		} else {
			literal = FieldLiteral(f, t.Value(entity, f))
		}
		sets = append(sets, QuoteIdentifier(f.Name)+"="+literal)
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s AND %s = %d LIMIT 1",
		t.name, strings.Join(sets, ","), t.primaryKey.Name, Literal(t.ID(entity)), VersionFieldName, version)
}

// DeleteSQL renders the DELETE for entity, guarded by its version
func (t *Table) DeleteSQL(entity reflect.Value) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s = %d",
		t.name, t.primaryKey.Name, Literal(t.ID(entity)), VersionFieldName, versionOf(entity))
}

// DeleteByIDSQL renders an unguarded DELETE by primary key
func (t *Table) DeleteByIDSQL(id any) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", t.name, t.primaryKey.Name, Literal(id))
}

// FindSQL renders the primary key lookup
func (t *Table) FindSQL(id any) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1",
		columnList("", t.LocalFields()), t.name, t.primaryKey.Name, Literal(id))
}

// AllSQL renders the full table scan
func (t *Table) AllSQL() string {
	return fmt.Sprintf("SELECT * FROM %s", t.name)
}

// FindByForeignKeySQL renders the lookup of rows whose fk column holds id
func (t *Table) FindByForeignKeySQL(id any, fk *Field) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		columnList("", t.LocalFields()), t.name, QuoteIdentifier(fk.Name), Literal(id))
}

// JoinTableSelectSQL renders the lookup of join rows whose joinField holds id.
// Every column but joinField is selected.
func (t *Table) JoinTableSelectSQL(joinField *Field, id any) string {
	var fields []*Field
	for _, f := range t.Fields() {
		if f != joinField {
			fields = append(fields, f)
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		columnList("", fields), t.name, QuoteIdentifier(joinField.Name), Literal(id))
}

// JoinInsertSQL renders the join row linking ownerID to targetID
func (r *Relationship) JoinInsertSQL(ownerID, targetID any) string {
	fields := r.Join.Fields()
	cols := make([]string, 0, len(fields))
	vals := make([]string, 0, len(fields))

	for _, f := range fields {
		var v any
		switch f {
		case r.ForeignKey:
			v = ownerID
		case r.JoinTarget:
			v = targetID
		}
		cols = append(cols, QuoteIdentifier(f.Name))
		vals = append(vals, FieldLiteral(f, v))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.Join.name, strings.Join(cols, ","), strings.Join(vals, ","))
}

// ReparentSQL renders the statement moving an already persisted target row
// under ownerID
func (r *Relationship) ReparentSQL(ownerID, targetID any) string {
	return fmt.Sprintf("UPDATE %s SET %s=%s WHERE %s = %s",
		r.Target.name, QuoteIdentifier(r.ForeignKey.Name), Literal(ownerID), r.Target.primaryKey.Name, Literal(targetID))
}

// LoadSQL renders the query fetching the related rows of the owner with
// primary key ownerID
func (r *Relationship) LoadSQL(ownerID any) string {
	if !r.ViaJoinTable() {
		return r.Target.FindByForeignKeySQL(ownerID, r.ForeignKey)
	}

	target := r.Target
	return fmt.Sprintf("SELECT %s FROM %s INNER JOIN %s ON %s.%s = %s.%s WHERE %s.%s = %s",
		columnList(target.name, target.LocalFields()),
		target.name,
		r.Join.name,
		r.Join.name, QuoteIdentifier(r.JoinTarget.Name),
		target.name, QuoteIdentifier(target.primaryKey.Name),
		r.Join.name, QuoteIdentifier(r.ForeignKey.Name),
		Literal(ownerID))
}

func columnList(qualifier string, fields []*Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		if qualifier != "" {
			cols[i] = qualifier + "." + QuoteIdentifier(f.Name)
		} else {
			cols[i] = QuoteIdentifier(f.Name)
		}
	}
	return strings.Join(cols, ",")
}
