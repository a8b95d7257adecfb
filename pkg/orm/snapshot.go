package orm

import (
	"reflect"

	"github.com/netbrain/simphple-orm/internal/orm/schema"
	"github.com/netbrain/simphple-orm/internal/orm/tracking"
)

// project returns the comparable projection of entity: plain column values
// plus identities of the related entities. Unresolved slots project as nil
// (one-to-one) or an empty list (one-to-many).
func (r *Repository) project(v reflect.Value) tracking.Snapshot {
	s := make(tracking.Snapshot)
	for _, f := range r.table.LocalFields() {
		if f.IsVersion() {
			continue
		}
		s.Set(f.Property, r.table.Value(v, f))
	}
	for _, rel := range r.table.Relations() {
		s[rel.Property] = r.projectSlot(slotOf(v, rel))
	}
	return s
}

func (r *Repository) projectSlot(s slot) any {
	return r.projectEntities(s.IsCollection(), s.entities())
}

func (r *Repository) projectEntities(collection bool, entities []any) any {
	if !collection {
		if len(entities) == 0 {
			return nil
		}
		return r.identity(entities[0])
	}

	ids := []tracking.Identity{}
	for _, e := range entities {
		ids = append(ids, r.identity(e))
	}
	return ids
}

func (r *Repository) identity(entity any) tracking.Identity {
	e, ok := entity.(Entity)
	if !ok || e.ormModel().IsTransient() {
		return tracking.Transient(entity)
	}

	table, ok := r.factory.catalog.registry.Lookup(reflect.TypeOf(entity))
	if !ok {
		return tracking.Transient(entity)
	}

	id := table.ID(reflect.ValueOf(entity))
	if id == nil {
		return tracking.Transient(entity)
	}
	return tracking.Persisted(table.Name(), id)
}

// cache stores the projection of entity as its new baseline
func (r *Repository) cache(v reflect.Value, m *Model) {
	m.snapshot = r.project(v)
}

// cachedIdentities reads the identities held for a relationship property
func cachedIdentities(value any) []tracking.Identity {
	switch v := value.(type) {
	case tracking.Identity:
		return []tracking.Identity{v}
	case []tracking.Identity:
		return v
	default:
		return nil
	}
}

func slotOf(v reflect.Value, rel *schema.Relationship) slot {
	return reflect.Indirect(v).FieldByIndex(rel.Index()).Addr().Interface().(slot)
}
