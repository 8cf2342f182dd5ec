package paging

import (
	"context"
	"sync"
)

// Source is the common surface of the three data-source addressing
// strategies: position-keyed, item-keyed, and page-token-keyed. A Source is
// bound to one snapshot of the underlying data; when that snapshot can no
// longer be trusted the source is invalidated and a fresh one is constructed
// through a SourceFactory.
//
// Sources are created with NewPositionalSource, NewItemKeyedSource, or
// NewPageKeyedSource; the load strategies themselves are not implementable
// outside this package.
type Source[T any] interface {
	// Invalidate permanently marks the source invalid. It is idempotent and
	// safe to call from any goroutine. Registered listeners are notified
	// asynchronously, exactly once per registration.
	Invalidate()

	// IsInvalid reports whether Invalidate has been called.
	IsInvalid() bool

	// OnInvalidated registers fn to be called once when the source is
	// invalidated. If the source is already invalid, fn is scheduled
	// promptly. The returned function removes the registration.
	OnInvalidated(fn func()) (remove func())

	isContiguous() bool
	supportsPageDropping() bool
}

// SourceFactory constructs a fresh Source each time the previous one has
// been invalidated. The orchestration that reacts to invalidation by
// building a replacement list lives outside this package; the factory is the
// interface it hands loads through.
type SourceFactory[T any] interface {
	Create() Source[T]
}

// contiguousSource is the internal load contract of sources that extend a
// single unbroken range at either end: item-keyed, page-token-keyed, and
// position-keyed sources running without placeholders.
type contiguousSource[T any] interface {
	Source[T]

	dispatchLoadInitial(ctx context.Context, key any, initialLoadSize, pageSize int,
		enablePlaceholders bool, notify Executor, rcv resultReceiver[T])
	dispatchLoadAfter(ctx context.Context, currentEndIndex int, currentEndItem T,
		pageSize int, notify Executor, rcv resultReceiver[T])
	dispatchLoadBefore(ctx context.Context, currentBeginIndex int, currentBeginItem T,
		pageSize int, notify Executor, rcv resultReceiver[T])

	// key derives the load-resumption key for an item at an absolute
	// position: the position itself for positional sources, Key(item) for
	// item-keyed sources, nil for page-token-keyed sources.
	key(position int, item T) any
}

// tiledSource is the internal load contract of position-keyed sources with
// placeholders enabled: arbitrary tiles may be requested by absolute
// position.
type tiledSource[T any] interface {
	Source[T]

	dispatchLoadInitial(ctx context.Context, position, initialLoadSize, pageSize int,
		notify Executor, rcv resultReceiver[T])
	dispatchLoadRange(ctx context.Context, startPosition, count int,
		notify Executor, rcv resultReceiver[T])
}

// sourceBase carries the invalidation state shared by all source kinds. Each
// source owns its listener set; there is no global registry.
type sourceBase struct {
	mu        sync.Mutex
	invalid   bool
	listeners map[int]func()
	nextID    int

	// exec delivers invalidation notifications; defaults to one goroutine
	// per notification.
	exec Executor
}

func newSourceBase() sourceBase {
	return sourceBase{exec: goExecutor{}}
}

// Invalidate implements Source.
func (b *sourceBase) Invalidate() {
	b.mu.Lock()
	if b.invalid {
		b.mu.Unlock()
		return
	}
	b.invalid = true
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.listeners = nil
	b.mu.Unlock()

	for _, fn := range fns {
		b.exec.Execute(fn)
	}
}

// IsInvalid implements Source.
func (b *sourceBase) IsInvalid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invalid
}

// OnInvalidated implements Source. Listeners registered after invalidation
// has begun are scheduled immediately, preserving the exactly-once contract.
func (b *sourceBase) OnInvalidated(fn func()) (remove func()) {
	b.mu.Lock()
	if b.invalid {
		b.mu.Unlock()
		b.exec.Execute(fn)
		return func() {}
	}
	if b.listeners == nil {
		b.listeners = make(map[int]func())
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}
