package orm

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Many holds the entities of a one-to-many relationship. On a loaded entity
// every accessor fetches the children first, once. Reads are safe for
// concurrent use; changes are not.
type Many[T any] struct {
	items []*T
	lazy  *lazy
}

// NewMany returns a resolved Many holding items
func NewMany[T any](items ...*T) Many[T] {
	return Many[T]{items: items}
}

// list returns the current entities, fetching them first if needed. The
// result must not be modified.
func (m *Many[T]) list() ([]*T, error) {
	if m.lazy == nil {
		return m.items, nil
	}
	entities, err := m.lazy.resolve()
	if err != nil {
		return nil, err
	}
	items := make([]*T, len(entities))
	for i, e := range entities {
		items[i] = e.(*T)
	}
	return items, nil
}

// own detaches m from its fetch result before a change
func (m *Many[T]) own() error {
	if m.lazy == nil {
		return nil
	}
	items, err := m.list()
	if err != nil {
		return err
	}
	m.items, m.lazy = items, nil
	return nil
}

// Load resolves the collection
func (m *Many[T]) Load() error {
	_, err := m.list()
	return err
}

// Loaded reports whether the entities are known without a fetch
func (m *Many[T]) Loaded() bool {
	return !m.pending()
}

// Items returns a copy of the entities
func (m *Many[T]) Items() ([]*T, error) {
	items, err := m.list()
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// Len returns the number of entities
func (m *Many[T]) Len() (int, error) {
	items, err := m.list()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// At returns the entity at index i
func (m *Many[T]) At(i int) (*T, error) {
	items, err := m.list()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(items) {
		return nil, fmt.Errorf("index %d out of range [0:%d]", i, len(items))
	}
	return items[i], nil
}

// Set replaces the entity at index i
func (m *Many[T]) Set(i int, v *T) error {
	if err := m.own(); err != nil {
		return err
	}
	if i < 0 || i >= len(m.items) {
		return fmt.Errorf("index %d out of range [0:%d]", i, len(m.items))
	}
	m.items[i] = v
	return nil
}

// Append adds entities at the end
func (m *Many[T]) Append(v ...*T) error {
	if err := m.own(); err != nil {
		return err
	}
	m.items = append(m.items, v...)
	return nil
}

// Replace swaps the whole collection for items
func (m *Many[T]) Replace(items ...*T) error {
	if err := m.own(); err != nil {
		return err
	}
	m.items = slices.Clone(items)
	return nil
}

// Remove removes the entity at index i
func (m *Many[T]) Remove(i int) error {
	if err := m.own(); err != nil {
		return err
	}
	if i < 0 || i >= len(m.items) {
		return fmt.Errorf("index %d out of range [0:%d]", i, len(m.items))
	}
	m.items = slices.Delete(m.items, i, i+1)
	return nil
}

// RemoveItem removes v and reports whether it was present
func (m *Many[T]) RemoveItem(v *T) (bool, error) {
	if err := m.own(); err != nil {
		return false, err
	}
	i := slices.Index(m.items, v)
	if i < 0 {
		return false, nil
	}
	m.items = slices.Delete(m.items, i, i+1)
	return true, nil
}

// Index returns the position of v, or -1
func (m *Many[T]) Index(v *T) (int, error) {
	items, err := m.list()
	if err != nil {
		return -1, err
	}
	return slices.Index(items, v), nil
}

// Contains reports whether v is in the collection
func (m *Many[T]) Contains(v *T) (bool, error) {
	i, err := m.Index(v)
	return i >= 0, err
}

// SortFunc sorts the entities with cmp, keeping the order of equal elements
func (m *Many[T]) SortFunc(cmp func(a, b *T) int) error {
	if err := m.own(); err != nil {
		return err
	}
	slices.SortStableFunc(m.items, cmp)
	return nil
}

// All iterates over the entities. A failed fetch ends the iteration without
// yielding; call Load to get the error.
func (m *Many[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		items, err := m.list()
		if err != nil {
			return
		}
		for i, item := range items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// RelatedType returns the type of the related entities
func (Many[T]) RelatedType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsCollection is true for Many
func (Many[T]) IsCollection() bool {
	return true
}

func (m *Many[T]) pending() bool {
	return m.lazy != nil && !m.lazy.succeeded()
}

func (m *Many[T]) entities() []any {
	if m.lazy == nil {
		out := make([]any, len(m.items))
		for i, item := range m.items {
			out[i] = item
		}
		return out
	}
	if !m.lazy.succeeded() {
		return nil
	}
	entities, _ := m.lazy.outcome()
	return slices.Clone(entities)
}

func (m *Many[T]) attach(l *lazy) {
	m.lazy = l
	m.items = nil
}

func (m *Many[T]) unsettled() bool {
	return false
}

func (m *Many[T]) settle() {}
