package orm

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/orm/schema"
	"github.com/netbrain/simphple-orm/internal/orm/tracking"
)

// Repository runs the persistence operations of one entity type. Entities
// are passed as pointers to the registered struct type.
type Repository struct {
	factory *Factory
	table   *schema.Table
	typ     reflect.Type
	logger  *zap.Logger
}

// Table returns the metadata of the entity type
func (r *Repository) Table() *schema.Table {
	return r.table
}

// entityValue checks entity and returns it with its embedded model
func (r *Repository) entityValue(entity any) (reflect.Value, *Model, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Type() != r.typ {
		return reflect.Value{}, nil, fmt.Errorf("%w: expected *%s, got %T", ErrInvalidEntity, r.typ, entity)
	}
	e, ok := entity.(Entity)
	if !ok {
		return reflect.Value{}, nil, fmt.Errorf("%w: %T does not embed orm.Model", ErrInvalidEntity, entity)
	}
	return v, e.ormModel(), nil
}

// CreateTable creates the entity's table if it does not exist
func (r *Repository) CreateTable(ctx context.Context) error {
	_, err := r.factory.exec(ctx, r.table.CreateTableSQL())
	return err
}

// DropTable drops the entity's table if it exists
func (r *Repository) DropTable(ctx context.Context) error {
	_, err := r.factory.exec(ctx, r.table.DropTableSQL())
	return err
}

// Create inserts entity and every loaded related entity, and returns the
// primary key. Transient related entities are inserted with the foreign key
// set; persisted ones are moved under entity.
func (r *Repository) Create(ctx context.Context, entity any) (any, error) {
	v, m, err := r.entityValue(entity)
	if err != nil {
		return nil, err
	}
	return r.persist(ctx, v, m, nil, nil)
}

func (r *Repository) persist(ctx context.Context, v reflect.Value, m *Model, parentID any, parentFK *schema.Field) (any, error) {
	query := r.table.InsertSQL(v, parentID, parentFK)
	res, err := r.factory.exec(ctx, query)
	if err != nil {
		return nil, err
	}

	if r.table.PrimaryKey().IsAutoIncrement() {
		lastID, err := res.LastInsertId()
		if err != nil {
			return nil, ConvertDBError(query, err)
		}
		if err := r.table.SetID(v, lastID); err != nil {
			return nil, err
		}
	}
	m.version = schema.DefaultVersion

	id := r.table.ID(v)
	r.logger.Debug("created entity", zap.Any("id", id))

	for _, rel := range r.table.Relations() {
		s := slotOf(v, rel)
		for _, target := range s.entities() {
			if err := r.attachTarget(ctx, rel, id, target); err != nil {
				return nil, err
			}
		}
		s.settle()
	}

	r.cache(v, m)
	return id, nil
}

// Find returns the entity with primary key id, or ErrNotFound
func (r *Repository) Find(ctx context.Context, id any) (any, error) {
	records, err := r.factory.query(ctx, r.table.FindSQL(id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, r.table.Name(), id)
	}

	v := reflect.New(r.typ)
	if err := r.cast(ctx, v, records[0]); err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// FindBySQL runs a caller supplied SELECT over the entity's table and returns
// one entity per row. Pass values through args, never by concatenation.
func (r *Repository) FindBySQL(ctx context.Context, query string, args ...any) ([]any, error) {
	records, err := r.factory.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.castAll(ctx, records)
}

// All returns every entity of the table
func (r *Repository) All(ctx context.Context) ([]any, error) {
	records, err := r.factory.query(ctx, r.table.AllSQL())
	if err != nil {
		return nil, err
	}
	return r.castAll(ctx, records)
}

func (r *Repository) castAll(ctx context.Context, records []map[string]any) ([]any, error) {
	entities := make([]any, 0, len(records))
	for _, record := range records {
		v := reflect.New(r.typ)
		if err := r.cast(ctx, v, record); err != nil {
			return nil, err
		}
		entities = append(entities, v.Interface())
	}
	return entities, nil
}

// cast writes a row into entity, attaches lazy slots for its relationships
// and takes the snapshot
func (r *Repository) cast(ctx context.Context, v reflect.Value, record map[string]any) error {
	m := v.Interface().(Entity).ormModel()

	for _, f := range r.table.EntityFields() {
		if f.IsForeignKey() {
			// Related rows are reached through the key stored on their side.
			r.attachLazy(ctx, v, m, f.Constraint)
			continue
		}

		raw, ok := record[f.Name]
		if !ok {
			continue
		}
		if f.IsVersion() {
			if err := schema.AssignValue(reflect.ValueOf(&m.version).Elem(), raw); err != nil {
				return fmt.Errorf("column %s.%s: %w", r.table.Name(), f.Name, err)
			}
			continue
		}
		if err := r.table.Assign(v, f, raw); err != nil {
			return err
		}
	}

	r.cache(v, m)
	return nil
}

func (r *Repository) attachLazy(ctx context.Context, v reflect.Value, m *Model, rel *schema.Relationship) {
	s := slotOf(v, rel)
	ownerID := r.table.ID(v)

	s.attach(newLazy(ctx, func(ctx context.Context) ([]any, error) {
		targets, err := r.loadRelated(ctx, rel, ownerID)
		if err != nil {
			return nil, err
		}
		if m.snapshot != nil {
			m.snapshot[rel.Property] = r.projectEntities(rel.Kind == schema.OneToMany, targets)
		}
		r.logger.Debug("resolved relationship",
			zap.String("property", rel.Property),
			zap.Int("count", len(targets)))
		return targets, nil
	}))
}

// loadRelated fetches the targets of rel owned by ownerID
func (r *Repository) loadRelated(ctx context.Context, rel *schema.Relationship, ownerID any) ([]any, error) {
	repo, err := r.factory.repositoryFor(rel.Target.EntityType())
	if err != nil {
		return nil, err
	}

	records, err := r.factory.query(ctx, rel.LoadSQL(ownerID))
	if err != nil {
		return nil, err
	}
	return repo.castAll(ctx, records)
}

// Refresh reloads entity from its row, discarding unsaved changes and
// replacing its relationships with fresh lazy slots
func (r *Repository) Refresh(ctx context.Context, entity any) error {
	v, m, err := r.entityValue(entity)
	if err != nil {
		return err
	}
	if m.IsTransient() {
		return fmt.Errorf("%w: cannot refresh %s", ErrTransientEntity, r.table.Name())
	}

	id := r.table.ID(v)
	records, err := r.factory.query(ctx, r.table.FindSQL(id))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s %v was deleted", ErrNotFound, r.table.Name(), id)
	}

	return r.cast(ctx, v, records[0])
}

// Update writes the changes made to a persisted entity. Loaded relationships
// are reconciled first; the row itself is only written when its projection
// differs from the snapshot. A row that moved on to another version, or
// vanished, fails with ErrOptimisticLock.
func (r *Repository) Update(ctx context.Context, entity any) error {
	v, m, err := r.entityValue(entity)
	if err != nil {
		return err
	}
	if m.IsTransient() {
		return fmt.Errorf("%w: cannot update %s before it is created", ErrTransientEntity, r.table.Name())
	}

	dirty, changed := r.dirty(v, m)
	id := r.table.ID(v)

	for _, rel := range r.table.Relations() {
		if err := r.syncRelation(ctx, v, m, rel, id); err != nil {
			return err
		}
	}

	if dirty {
		n, err := r.factory.execAffecting(ctx, r.table.UpdateSQL(v))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %v at version %d", ErrOptimisticLock, r.table.Name(), id, m.version)
		}
		m.version++
		r.logger.Debug("updated entity",
			zap.Any("id", id),
			zap.Strings("changed", changed),
			zap.Int("version", m.version))
	} else {
		r.logger.Debug("entity unchanged", zap.Any("id", id))
	}

	r.cache(v, m)
	return nil
}

// Delete removes the row of entity if it is still at the entity's version
func (r *Repository) Delete(ctx context.Context, entity any) error {
	v, m, err := r.entityValue(entity)
	if err != nil {
		return err
	}
	if m.IsTransient() {
		return fmt.Errorf("%w: cannot delete %s before it is created", ErrTransientEntity, r.table.Name())
	}

	n, err := r.factory.execAffecting(ctx, r.table.DeleteSQL(v))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v at version %d", ErrOptimisticLock, r.table.Name(), r.table.ID(v), m.version)
	}
	return nil
}

// DeleteByID removes the row with primary key id regardless of its version
func (r *Repository) DeleteByID(ctx context.Context, id any) error {
	n, err := r.factory.execAffecting(ctx, r.table.DeleteByIDSQL(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", ErrOptimisticLock, r.table.Name(), id)
	}
	return nil
}

// IsTransient reports whether entity was never persisted
func (r *Repository) IsTransient(entity any) (bool, error) {
	_, m, err := r.entityValue(entity)
	if err != nil {
		return false, err
	}
	return m.IsTransient(), nil
}

// IsDirty reports whether entity differs from its snapshot. An entity without
// a snapshot is always dirty.
func (r *Repository) IsDirty(entity any) (bool, error) {
	v, m, err := r.entityValue(entity)
	if err != nil {
		return false, err
	}
	dirty, _ := r.dirty(v, m)
	return dirty, nil
}

func (r *Repository) dirty(v reflect.Value, m *Model) (bool, []string) {
	if m.snapshot == nil {
		return true, nil
	}

	ct := tracking.NewChangeTracker(m.snapshot, r.project(v))
	if !ct.HasChanges() {
		return false, nil
	}

	changes := ct.Changes()
	changed := make([]string, len(changes))
	for i, c := range changes {
		changed[i] = c.Field
		r.logger.Debug("property changed",
			zap.String("property", c.Field),
			zap.Any("old", c.OldValue),
			zap.Any("new", c.NewValue))
	}
	return true, changed
}

// Initialize resolves the given slots
func (r *Repository) Initialize(slots ...Lazy) error {
	return Initialize(slots...)
}

// InitializeDeep resolves every relationship reachable from entity. Each
// entity is visited once, so cyclic graphs terminate.
func (r *Repository) InitializeDeep(entity any) error {
	if _, _, err := r.entityValue(entity); err != nil {
		return err
	}
	return r.initializeDeep(entity, make(map[any]bool))
}

func (r *Repository) initializeDeep(entity any, visited map[any]bool) error {
	if visited[entity] {
		return nil
	}
	visited[entity] = true

	v := reflect.ValueOf(entity)
	for _, rel := range r.table.Relations() {
		s := slotOf(v, rel)
		if err := s.Load(); err != nil {
			return err
		}

		for _, target := range s.entities() {
			repo, err := r.factory.repositoryFor(reflect.TypeOf(target))
			if err != nil {
				return err
			}
			if err := repo.initializeDeep(target, visited); err != nil {
				return err
			}
		}
	}
	return nil
}
