package orm

import (
	"reflect"
)

// Ref holds a one-to-one related entity. A Ref on a loaded entity fetches its
// target on first access. Reads are safe for concurrent use; Set is not.
type Ref[T any] struct {
	value *T
	lazy  *lazy
	stale bool
}

// NewRef returns a resolved Ref holding v
func NewRef[T any](v *T) Ref[T] {
	return Ref[T]{value: v}
}

// Get returns the related entity, fetching it first if needed. A nil result
// means there is none.
func (r *Ref[T]) Get() (*T, error) {
	if r.lazy == nil {
		return r.value, nil
	}
	entities, err := r.lazy.resolve()
	if err != nil {
		return nil, err
	}
	return firstOf[T](entities), nil
}

// Peek returns the related entity without fetching
func (r *Ref[T]) Peek() *T {
	if r.lazy == nil {
		return r.value
	}
	if !r.lazy.succeeded() {
		return nil
	}
	entities, _ := r.lazy.outcome()
	return firstOf[T](entities)
}

// Set replaces the related entity. A pending fetch is dropped.
func (r *Ref[T]) Set(v *T) {
	if r.lazy != nil && !r.lazy.succeeded() {
		r.stale = true
	}
	r.lazy = nil
	r.value = v
}

// Load resolves the Ref
func (r *Ref[T]) Load() error {
	_, err := r.Get()
	return err
}

// Loaded reports whether the target is known without a fetch
func (r *Ref[T]) Loaded() bool {
	return !r.pending()
}

// RelatedType returns the type of the related entity
func (Ref[T]) RelatedType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsCollection is false for Ref
func (Ref[T]) IsCollection() bool {
	return false
}

func (r *Ref[T]) pending() bool {
	return r.lazy != nil && !r.lazy.succeeded()
}

func (r *Ref[T]) entities() []any {
	if v := r.Peek(); v != nil {
		return []any{v}
	}
	return nil
}

func (r *Ref[T]) attach(l *lazy) {
	r.lazy = l
	r.value = nil
	r.stale = false
}

// unsettled reports a Set that replaced a target which was never fetched
func (r *Ref[T]) unsettled() bool {
	return r.stale
}

func (r *Ref[T]) settle() {
	r.stale = false
}

func firstOf[T any](entities []any) *T {
	if len(entities) == 0 {
		return nil
	}
	return entities[0].(*T)
}
