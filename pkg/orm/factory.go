package orm

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/orm/schema"
)

var (
	modelType  = reflect.TypeOf(Model{})
	entityType = reflect.TypeOf((*Entity)(nil)).Elem()
)

// catalog is the state shared by a factory and the factories derived from it
type catalog struct {
	registry *schema.Registry

	mu         sync.RWMutex
	registered map[reflect.Type]bool
}

// Factory hands out one repository per registered entity type, all running
// their statements on the same executor.
type Factory struct {
	db      Executor
	logger  *zap.Logger
	catalog *catalog

	mu    sync.Mutex
	repos map[reflect.Type]*Repository
}

// Option configures a Factory
type Option func(*Factory)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a factory running statements on db
func NewFactory(db Executor, opts ...Option) *Factory {
	f := &Factory{
		db:     db,
		logger: zap.NewNop(),
		catalog: &catalog{
			registry:   schema.NewRegistry(modelType),
			registered: make(map[reflect.Type]bool),
		},
		repos: make(map[reflect.Type]*Repository),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// derive returns a factory sharing f's registrations but running on db
func (f *Factory) derive(db Executor) *Factory {
	return &Factory{
		db:      db,
		logger:  f.logger,
		catalog: f.catalog,
		repos:   make(map[reflect.Type]*Repository),
	}
}

// Register derives the table metadata of each entity, given as a pointer or
// a value, and makes a repository available for it. Related types are mapped
// too but get no repository until registered themselves.
func (f *Factory) Register(entities ...any) error {
	for _, e := range entities {
		typ := reflect.TypeOf(e)
		if typ == nil {
			return fmt.Errorf("%w: nil", ErrInvalidEntity)
		}
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		if typ.Kind() != reflect.Struct || !reflect.PointerTo(typ).Implements(entityType) {
			return fmt.Errorf("%w: %s does not embed orm.Model", ErrInvalidEntity, typ)
		}

		table, err := f.catalog.registry.Build(typ)
		if err != nil {
			return err
		}

		f.catalog.mu.Lock()
		f.catalog.registered[typ] = true
		f.catalog.mu.Unlock()

		f.logger.Debug("registered entity",
			zap.String("type", typ.String()),
			zap.String("table", table.Name()))
	}
	return nil
}

// Repository returns the repository of a registered entity type, given as a
// pointer, a value or a reflect.Type.
func (f *Factory) Repository(entity any) (*Repository, error) {
	typ, ok := entity.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(entity)
	}
	if typ == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidEntity)
	}
	return f.repositoryFor(typ)
}

func (f *Factory) repositoryFor(typ reflect.Type) (*Repository, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	f.catalog.mu.RLock()
	registered := f.catalog.registered[typ]
	f.catalog.mu.RUnlock()
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEntityType, typ)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if repo, ok := f.repos[typ]; ok {
		return repo, nil
	}

	table, ok := f.catalog.registry.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEntityType, typ)
	}

	repo := &Repository{
		factory: f,
		table:   table,
		typ:     typ,
		logger:  f.logger.With(zap.String("table", table.Name())),
	}
	f.repos[typ] = repo
	return repo, nil
}

// Tables returns every mapped table, join tables included, with referenced
// tables first
func (f *Factory) Tables() ([]*schema.Table, error) {
	return f.catalog.registry.CreationOrder()
}

// Table returns a mapped table by name, join tables included
func (f *Factory) Table(name string) (*schema.Table, bool) {
	return f.catalog.registry.Table(name)
}

// References returns the names of the tables the named table holds foreign
// keys to
func (f *Factory) References(table string) []string {
	return f.catalog.registry.References(table)
}

// Dependents returns the names of the tables holding foreign keys to the
// named table
func (f *Factory) Dependents(table string) []string {
	return f.catalog.registry.Dependents(table)
}

// Schema returns the CREATE TABLE statements of every mapped table in
// creation order
func (f *Factory) Schema() ([]string, error) {
	tables, err := f.Tables()
	if err != nil {
		return nil, err
	}

	statements := make([]string, len(tables))
	for i, t := range tables {
		statements[i] = t.CreateTableSQL()
	}
	return statements, nil
}

// CreateTables creates every mapped table that does not exist yet, parents
// before the tables referencing them
func (f *Factory) CreateTables(ctx context.Context) error {
	tables, err := f.Tables()
	if err != nil {
		return err
	}

	for _, t := range tables {
		if _, err := f.exec(ctx, t.CreateTableSQL()); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name(), err)
		}
		f.logger.Info("created table", zap.String("table", t.Name()))
	}
	return nil
}

// DropTables drops every mapped table in reverse creation order
func (f *Factory) DropTables(ctx context.Context) error {
	tables, err := f.Tables()
	if err != nil {
		return err
	}

	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if _, err := f.exec(ctx, t.DropTableSQL()); err != nil {
			return fmt.Errorf("drop table %s: %w", t.Name(), err)
		}
		f.logger.Info("dropped table", zap.String("table", t.Name()))
	}
	return nil
}
