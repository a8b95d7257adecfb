package orm

import (
	"context"
	"reflect"
)

// Dao is the typed face of a Repository
type Dao[T any] struct {
	repo *Repository
}

// NewDao registers T with the factory and returns its typed repository.
// *T must embed Model.
func NewDao[T any](f *Factory) (*Dao[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if err := f.Register(reflect.New(typ).Interface()); err != nil {
		return nil, err
	}
	repo, err := f.repositoryFor(typ)
	if err != nil {
		return nil, err
	}
	return &Dao[T]{repo: repo}, nil
}

// Repository returns the untyped repository
func (d *Dao[T]) Repository() *Repository {
	return d.repo
}

// CreateTable creates the table of T if it does not exist
func (d *Dao[T]) CreateTable(ctx context.Context) error {
	return d.repo.CreateTable(ctx)
}

// DropTable drops the table of T if it exists
func (d *Dao[T]) DropTable(ctx context.Context) error {
	return d.repo.DropTable(ctx)
}

// Create inserts e and its loaded related entities, returning the primary key
func (d *Dao[T]) Create(ctx context.Context, e *T) (any, error) {
	return d.repo.Create(ctx, e)
}

// Find returns the entity with primary key id
func (d *Dao[T]) Find(ctx context.Context, id any) (*T, error) {
	e, err := d.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.(*T), nil
}

// FindBySQL runs a SELECT over the table of T and returns one entity per row
func (d *Dao[T]) FindBySQL(ctx context.Context, query string, args ...any) ([]*T, error) {
	entities, err := d.repo.FindBySQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return typed[T](entities), nil
}

// All returns every entity of the table
func (d *Dao[T]) All(ctx context.Context) ([]*T, error) {
	entities, err := d.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return typed[T](entities), nil
}

// Refresh reloads e from its row, discarding unsaved changes
func (d *Dao[T]) Refresh(ctx context.Context, e *T) error {
	return d.repo.Refresh(ctx, e)
}

// Update writes the changes made to e and its loaded relationships
func (d *Dao[T]) Update(ctx context.Context, e *T) error {
	return d.repo.Update(ctx, e)
}

// Delete removes the row of e if it is still at e's version
func (d *Dao[T]) Delete(ctx context.Context, e *T) error {
	return d.repo.Delete(ctx, e)
}

// DeleteByID removes the row with primary key id regardless of its version
func (d *Dao[T]) DeleteByID(ctx context.Context, id any) error {
	return d.repo.DeleteByID(ctx, id)
}

// IsTransient reports whether e was never persisted
func (d *Dao[T]) IsTransient(e *T) (bool, error) {
	return d.repo.IsTransient(e)
}

// IsDirty reports whether e differs from the row it was loaded from
func (d *Dao[T]) IsDirty(e *T) (bool, error) {
	return d.repo.IsDirty(e)
}

// Initialize resolves the given slots
func (d *Dao[T]) Initialize(slots ...Lazy) error {
	return Initialize(slots...)
}

// InitializeDeep resolves every relationship reachable from e
func (d *Dao[T]) InitializeDeep(e *T) error {
	return d.repo.InitializeDeep(e)
}

func typed[T any](entities []any) []*T {
	out := make([]*T, len(entities))
	for i, e := range entities {
		out[i] = e.(*T)
	}
	return out
}
