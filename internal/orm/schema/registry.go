package schema

import (
	"reflect"
	"sort"
	"sync"
)

// Registry builds and memoizes table metadata per entity type. Metadata is
// append-only: once built a table is never evicted.
type Registry struct {
	mu   sync.RWMutex
	base reflect.Type

	byType     map[reflect.Type]*Table
	byName     map[string]*Table
	order      []*Table
	references map[string]map[string]bool // table -> tables it references
}

// NewRegistry creates a registry for entities embedding base
func NewRegistry(base reflect.Type) *Registry {
	return &Registry{
		base:       base,
		byType:     make(map[reflect.Type]*Table),
		byName:     make(map[string]*Table),
		references: make(map[string]map[string]bool),
	}
}

// Build returns the metadata of an entity type (struct or pointer to struct),
// deriving it and the metadata of every related type on first use.
func (r *Registry) Build(typ reflect.Type) (*Table, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mu.RLock()
	table, ok := r.byType[typ]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := &builder{registry: r}
	table, err := b.build(typ)
	if err != nil {
		b.rollback()
		return nil, err
	}

	return table, nil
}

// Lookup returns the metadata of an already built entity type
func (r *Registry) Lookup(typ reflect.Type) (*Table, bool) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.byType[typ]
	return table, ok
}

// Table returns a table by name, join tables included
func (r *Registry) Table(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.byName[name]
	return table, ok
}

// References returns the names of the tables the named table holds foreign keys to
func (r *Registry) References(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.references[name])
}

// Dependents returns the names of the tables holding foreign keys to the named table
func (r *Registry) Dependents(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dependents := make(map[string]bool)
	for from, targets := range r.references {
		if targets[name] {
			dependents[from] = true
		}
	}
	return sortedKeys(dependents)
}

// CreationOrder returns every table with referenced tables ahead of the tables
// referencing them.
func (r *Registry) CreationOrder() ([]*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph := NewGraph(r.order, r.references)
	names, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, len(names))
	for i, name := range names {
		tables[i] = r.byName[name]
	}
	return tables, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
