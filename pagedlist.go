package paging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ChangeCallback observes structural changes to a PagedList. Positions are
// absolute indices into the list, placeholders included. Callbacks are
// invoked on the list's notify executor, after the mutation is visible
// through Get and Size.
type ChangeCallback interface {
	OnInserted(position, count int)
	OnRemoved(position, count int)
	OnChanged(position, count int)
}

// ChangeCallbackFuncs adapts plain functions to ChangeCallback. Nil fields
// ignore their event.
type ChangeCallbackFuncs struct {
	Inserted func(position, count int)
	Removed  func(position, count int)
	Changed  func(position, count int)
}

func (c ChangeCallbackFuncs) OnInserted(position, count int) {
	if c.Inserted != nil {
		c.Inserted(position, count)
	}
}

func (c ChangeCallbackFuncs) OnRemoved(position, count int) {
	if c.Removed != nil {
		c.Removed(position, count)
	}
}

func (c ChangeCallbackFuncs) OnChanged(position, count int) {
	if c.Changed != nil {
		c.Changed(position, count)
	}
}

// BoundaryCallback signals that loading has reached the edge of the backing
// data. Nil fields ignore their event. Each edge fires at most once per
// list.
type BoundaryCallback[T any] struct {
	// OnZeroItemsLoaded fires when the initial load produced no items.
	OnZeroItemsLoaded func()

	// OnItemAtFrontLoaded fires with the first item once loading before it
	// is known to be exhausted.
	OnItemAtFrontLoaded func(item T)

	// OnItemAtEndLoaded fires with the last item once loading after it is
	// known to be exhausted.
	OnItemAtEndLoaded func(item T)
}

// ListStats is a point-in-time counter snapshot for one list.
type ListStats struct {
	Size            int
	LoadedCount     int
	LoadsDispatched int
	ItemsTrimmed    int
	TilesRequested  int
}

// PagedList is a lazily populated, position-addressable view over a Source.
// All reads are non-blocking: Get returns ok=false for positions not yet
// loaded, and LoadAround hints where the reader is so the engine can fetch
// around that position.
//
// Implementations are provided by NewPagedList and Snapshot; the interface
// cannot be satisfied outside this package.
type PagedList[T any] interface {
	// Get returns the item at index i. ok is false for placeholder
	// positions and unloaded tiles. Get panics with ErrIndexOutOfBounds
	// when i is outside [0, Size()).
	Get(i int) (item T, ok bool)

	// Size is the full logical extent, loaded or not.
	Size() int

	// LoadedCount is the number of items currently resident.
	LoadedCount() int

	// LoadAround records index as the reader's position and triggers any
	// loads needed to satisfy the configured prefetch distance around it.
	// It panics with ErrIndexOutOfBounds when index is outside
	// [0, Size()).
	LoadAround(index int)

	// LastKey returns a source-specific key describing the reader's last
	// position, suitable as the initial key of a replacement list.
	LastKey() any

	// Detach permanently stops this list from loading. Reads keep working
	// against resident content.
	Detach()
	IsDetached() bool

	// IsImmutable reports whether the list can never change again, either
	// because it is a snapshot or because it is detached.
	IsImmutable() bool

	// AddCallback registers cb for future changes and returns a function
	// that unregisters it.
	AddCallback(cb ChangeCallback) (remove func())

	// Snapshot returns an immutable copy of the current contents.
	Snapshot() PagedList[T]

	Stats() ListStats

	isContiguous() bool
	listConfig() Config
	lastLoadIndex() int
	onAttached(fn func())
	dispatchUpdatesSince(snap PagedList[T], cb ChangeCallback) error
	snapshotStorage() *pagedStorage[T]
}

// Option configures a list under construction.
type Option[T any] func(*listOptions[T])

type listOptions[T any] struct {
	notifyExec Executor
	fetchExec  Executor
	logger     *slog.Logger
	metrics    Metrics
	boundary   *BoundaryCallback[T]
	initialKey any
	ctx        context.Context
}

// WithNotifyExecutor routes change and boundary callbacks through exec.
// exec must run tasks one at a time, in submission order.
func WithNotifyExecutor[T any](exec Executor) Option[T] {
	return func(o *listOptions[T]) { o.notifyExec = exec }
}

// WithFetchExecutor routes source loads through exec.
func WithFetchExecutor[T any](exec Executor) Option[T] {
	return func(o *listOptions[T]) { o.fetchExec = exec }
}

// WithLogger attaches a structured logger to the list.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *listOptions[T]) { o.logger = logger }
}

// WithMetrics attaches a metrics sink to the list.
func WithMetrics[T any](m Metrics) Option[T] {
	return func(o *listOptions[T]) { o.metrics = m }
}

// WithBoundaryCallback registers edge-of-data notifications.
func WithBoundaryCallback[T any](cb *BoundaryCallback[T]) Option[T] {
	return func(o *listOptions[T]) { o.boundary = cb }
}

// WithInitialKey sets the position the initial load centers on: an item key
// for item-keyed sources, an int position for positional ones. Page-keyed
// sources ignore it.
func WithInitialKey[T any](key any) Option[T] {
	return func(o *listOptions[T]) { o.initialKey = key }
}

// WithContext sets the context passed to every load the list dispatches.
func WithContext[T any](ctx context.Context) Option[T] {
	return func(o *listOptions[T]) { o.ctx = ctx }
}

// NewPagedList builds a list over src. Placeholder-enabled positional
// sources load in arbitrary-order tiles; every other combination loads
// contiguously outward from the initial position. The initial load is
// dispatched asynchronously on the fetch executor; the returned list is
// empty until it lands.
func NewPagedList[T any](src Source[T], cfg Config, opts ...Option[T]) (PagedList[T], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := listOptions[T]{
		notifyExec: NewSerialExecutor(),
		fetchExec:  NewGoroutineExecutor(),
		logger:     slog.New(slog.DiscardHandler),
		metrics:    noopMetrics{},
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if ps, ok := src.(*PositionalSource[T]); ok {
		if cfg.EnablePlaceholders {
			return newTiledPagedList(ps, cfg, o), nil
		}
		return newContiguousPagedList[T](positionalContiguous[T]{ps}, cfg, o), nil
	}
	cs, ok := src.(contiguousSource[T])
	if !ok {
		return nil, fmt.Errorf("%w: source %T supports neither tiled nor contiguous loading", ErrInvalidConfig, src)
	}
	return newContiguousPagedList[T](cs, cfg, o), nil
}

type changeEvent struct {
	kind     int // 0 inserted, 1 removed, 2 changed
	position int
	count    int
}

type pagedListBase[T any] struct {
	mu      sync.Mutex
	cfg     Config
	storage *pagedStorage[T]

	notifyExec Executor
	fetchExec  Executor
	log        *slog.Logger
	metrics    Metrics
	ctx        context.Context

	callbacks  map[int]ChangeCallback
	nextCBID   int
	pending    []changeEvent
	boundary   *BoundaryCallback[T]
	sentFront  bool
	sentEnd    bool
	sentEmpty  bool

	// lastLoad is the reader's most recent LoadAround index, or the center
	// of the initial load before any access. -1 until initialized.
	lastLoad int

	detached    atomic.Bool
	initialized bool
	attachFns   []func()

	requiredRemainder int

	loadsDispatched int
	itemsTrimmed    int
	tilesRequested  int
}

func newPagedListBase[T any](cfg Config, o listOptions[T]) pagedListBase[T] {
	return pagedListBase[T]{
		cfg:               cfg,
		storage:           &pagedStorage[T]{},
		notifyExec:        o.notifyExec,
		fetchExec:         o.fetchExec,
		log:               o.logger,
		metrics:           o.metrics,
		ctx:               o.ctx,
		callbacks:         make(map[int]ChangeCallback),
		boundary:          o.boundary,
		lastLoad:          -1,
		requiredRemainder: cfg.PageSize + 2*cfg.PrefetchDistance,
	}
}

func (b *pagedListBase[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storage.size()
}

func (b *pagedListBase[T]) LoadedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storage.loadedCount
}

func (b *pagedListBase[T]) Get(i int) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= b.storage.size() {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, i, b.storage.size()))
	}
	return b.storage.get(i)
}

func (b *pagedListBase[T]) Detach() {
	b.detached.Store(true)
	b.mu.Lock()
	fns := b.takeAttachFnsLocked()
	b.mu.Unlock()
	for _, fn := range fns {
		b.notifyExec.Execute(fn)
	}
}

func (b *pagedListBase[T]) IsDetached() bool { return b.detached.Load() }

func (b *pagedListBase[T]) IsImmutable() bool { return b.detached.Load() }

func (b *pagedListBase[T]) listConfig() Config { return b.cfg }

func (b *pagedListBase[T]) lastLoadIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLoad
}

func (b *pagedListBase[T]) AddCallback(cb ChangeCallback) (remove func()) {
	b.mu.Lock()
	id := b.nextCBID
	b.nextCBID++
	b.callbacks[id] = cb
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.callbacks, id)
		b.mu.Unlock()
	}
}

func (b *pagedListBase[T]) Stats() ListStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ListStats{
		Size:            b.storage.size(),
		LoadedCount:     b.storage.loadedCount,
		LoadsDispatched: b.loadsDispatched,
		ItemsTrimmed:    b.itemsTrimmed,
		TilesRequested:  b.tilesRequested,
	}
}

// onAttached runs fn on the notify executor once the initial load has
// landed, or promptly if it already has or the list is detached.
func (b *pagedListBase[T]) onAttached(fn func()) {
	b.mu.Lock()
	if b.initialized || b.detached.Load() {
		b.mu.Unlock()
		b.notifyExec.Execute(fn)
		return
	}
	b.attachFns = append(b.attachFns, fn)
	b.mu.Unlock()
}

func (b *pagedListBase[T]) takeAttachFnsLocked() []func() {
	fns := b.attachFns
	b.attachFns = nil
	return fns
}

// markInitializedLocked flips the attach latch; returned functions must be
// executed after the lock is released.
func (b *pagedListBase[T]) markInitializedLocked() []func() {
	b.initialized = true
	return b.takeAttachFnsLocked()
}

func (b *pagedListBase[T]) queueEventLocked(kind, position, count int) {
	if count <= 0 {
		return
	}
	b.pending = append(b.pending, changeEvent{kind: kind, position: position, count: count})
}

// flushEvents delivers queued change events to the registered callbacks.
// Must be called without mu held.
func (b *pagedListBase[T]) flushEvents() {
	b.mu.Lock()
	events := b.pending
	b.pending = nil
	cbs := make([]ChangeCallback, 0, len(b.callbacks))
	for _, cb := range b.callbacks {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()

	for _, ev := range events {
		for _, cb := range cbs {
			switch ev.kind {
			case 0:
				cb.OnInserted(ev.position, ev.count)
			case 1:
				cb.OnRemoved(ev.position, ev.count)
			case 2:
				cb.OnChanged(ev.position, ev.count)
			}
		}
	}
}

// dispatchBoundary posts a boundary notification on the notify executor at
// most once per edge.
func (b *pagedListBase[T]) dispatchBoundary(front, end, empty bool) {
	if b.boundary == nil {
		return
	}
	b.mu.Lock()
	var frontItem, endItem T
	fireEmpty := empty && !b.sentEmpty && b.boundary.OnZeroItemsLoaded != nil
	fireFront := front && !b.sentFront && b.boundary.OnItemAtFrontLoaded != nil && b.storage.loadedCount > 0
	fireEnd := end && !b.sentEnd && b.boundary.OnItemAtEndLoaded != nil && b.storage.loadedCount > 0
	if fireEmpty {
		b.sentEmpty = true
	}
	if fireFront {
		b.sentFront = true
		frontItem = b.storage.firstLoadedItem()
	}
	if fireEnd {
		b.sentEnd = true
		endItem = b.storage.lastLoadedItem()
	}
	b.mu.Unlock()

	if fireEmpty {
		b.notifyExec.Execute(b.boundary.OnZeroItemsLoaded)
	}
	if fireFront {
		b.notifyExec.Execute(func() { b.boundary.OnItemAtFrontLoaded(frontItem) })
	}
	if fireEnd {
		b.notifyExec.Execute(func() { b.boundary.OnItemAtEndLoaded(endItem) })
	}
}

// snapshotList is an immutable PagedList over a frozen page table.
type snapshotList[T any] struct {
	storage    *pagedStorage[T]
	cfg        Config
	lastLoad   int
	contiguous bool
	lastKey    any
	stats      ListStats
}

func newSnapshotList[T any](storage *pagedStorage[T], cfg Config, lastLoad int, contiguous bool, lastKey any, stats ListStats) *snapshotList[T] {
	return &snapshotList[T]{
		storage:    storage,
		cfg:        cfg,
		lastLoad:   lastLoad,
		contiguous: contiguous,
		lastKey:    lastKey,
		stats:      stats,
	}
}

func (s *snapshotList[T]) Get(i int) (T, bool) {
	if i < 0 || i >= s.storage.size() {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, i, s.storage.size()))
	}
	return s.storage.get(i)
}

func (s *snapshotList[T]) Size() int { return s.storage.size() }

func (s *snapshotList[T]) LoadedCount() int { return s.storage.loadedCount }

func (s *snapshotList[T]) LoadAround(index int) {
	if index < 0 || index >= s.storage.size() {
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, index, s.storage.size()))
	}
}

func (s *snapshotList[T]) LastKey() any { return s.lastKey }

func (s *snapshotList[T]) Detach() {}

func (s *snapshotList[T]) IsDetached() bool { return true }

func (s *snapshotList[T]) IsImmutable() bool { return true }

func (s *snapshotList[T]) AddCallback(ChangeCallback) (remove func()) {
	return func() {}
}

func (s *snapshotList[T]) Snapshot() PagedList[T] { return s }

func (s *snapshotList[T]) Stats() ListStats { return s.stats }

func (s *snapshotList[T]) isContiguous() bool { return s.contiguous }

func (s *snapshotList[T]) listConfig() Config { return s.cfg }

func (s *snapshotList[T]) lastLoadIndex() int { return s.lastLoad }

func (s *snapshotList[T]) onAttached(fn func()) { fn() }

func (s *snapshotList[T]) dispatchUpdatesSince(PagedList[T], ChangeCallback) error {
	return fmt.Errorf("%w: snapshots never change", ErrInvalidSnapshot)
}

func (s *snapshotList[T]) snapshotStorage() *pagedStorage[T] { return s.storage }
