// Package orm maps tagged Go structs onto MySQL tables. Repositories generate
// the SQL for create, read, update and delete across related entities, load
// relationships lazily and guard writes with an optimistic version lock.
//
// An entity embeds Model and tags its fields:
//
//	type Parent struct {
//		orm.Model `orm:"table:parent"`
//		ID        int `orm:"id"`
//		Child     orm.Ref[Child]
//		Children  orm.Many[Child]
//	}
package orm

import (
	"github.com/netbrain/simphple-orm/internal/orm/tracking"
)

// Model carries the implicit state of a persistable entity: the version
// counter and the snapshot taken when the entity last matched its row.
type Model struct {
	version  int
	snapshot tracking.Snapshot
}

// Version returns the row version, 0 while the entity is transient
func (m *Model) Version() int {
	return m.version
}

// IsTransient reports whether the entity was never persisted
func (m *Model) IsTransient() bool {
	return m.version == 0
}

// Cached reports whether a snapshot is held for dirty checking
func (m *Model) Cached() bool {
	return m.snapshot != nil
}

func (m *Model) ormModel() *Model {
	return m
}

// Entity is implemented by pointers to structs embedding Model
type Entity interface {
	Version() int
	ormModel() *Model
}
