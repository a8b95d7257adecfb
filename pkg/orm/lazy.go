package orm

import (
	"context"
	"errors"
	"sync"
)

type lazyState int

const (
	unresolved lazyState = iota
	resolving
	resolved
)

// String returns the string representation of the state
func (s lazyState) String() string {
	switch s {
	case unresolved:
		return "unresolved"
	case resolving:
		return "resolving"
	case resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

var errFetchAborted = errors.New("relationship fetch aborted")

// lazy resolves a relationship slot at most once and keeps the outcome,
// entities or error. Callers arriving while the fetch runs wait for it; load
// itself must not resolve the lazy it belongs to.
//
// Slots read the outcome from the lazy rather than having it written into
// them, so value copies of an entity share one resolution.
type lazy struct {
	mu    sync.Mutex
	state lazyState
	done  chan struct{}
	ctx   context.Context
	load  func(ctx context.Context) ([]any, error)
	value []any
	err   error
}

func newLazy(ctx context.Context, load func(ctx context.Context) ([]any, error)) *lazy {
	return &lazy{ctx: ctx, load: load, done: make(chan struct{})}
}

func (l *lazy) resolve() ([]any, error) {
	l.mu.Lock()
	switch l.state {
	case resolved:
		defer l.mu.Unlock()
		return l.value, l.err
	case resolving:
		l.mu.Unlock()
		<-l.done
		return l.outcome()
	}
	l.state = resolving
	load := l.load
	l.mu.Unlock()

	// A panicking load leaves errFetchAborted behind.
	var entities []any
	err := errFetchAborted
	defer func() { l.finish(entities, err) }()

	entities, err = load(l.ctx)
	return entities, err
}

// finish publishes the outcome and releases the waiters
func (l *lazy) finish(entities []any, err error) {
	l.mu.Lock()
	l.state = resolved
	l.value = entities
	l.err = err
	l.load = nil
	l.mu.Unlock()
	close(l.done)
}

// outcome returns the kept result
func (l *lazy) outcome() ([]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.err
}

// succeeded reports whether the fetch finished without error
func (l *lazy) succeeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == resolved && l.err == nil
}

func (l *lazy) current() lazyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Lazy is implemented by relationship slots
type Lazy interface {
	Load() error
	Loaded() bool
}

// Initialize resolves every given slot. Loaded slots are left alone.
func Initialize(slots ...Lazy) error {
	for _, s := range slots {
		if err := s.Load(); err != nil {
			return err
		}
	}
	return nil
}

// slot is the engine's view of Ref and Many
type slot interface {
	Lazy
	IsCollection() bool
	pending() bool
	entities() []any
	attach(l *lazy)
	unsettled() bool
	settle()
}
