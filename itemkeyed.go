package paging

import (
	"context"
	"fmt"
)

// ItemKeyedInitialParams describes the first load requested from an
// item-keyed loader.
type ItemKeyedInitialParams[K comparable] struct {
	// RequestedInitialKey is the key to load around, or nil to load from the
	// start of the data set.
	RequestedInitialKey *K

	// RequestedLoadSize is the target number of items.
	RequestedLoadSize int

	// PlaceholdersEnabled reports whether counted results are useful; when
	// false OnResult's position and total are ignored.
	PlaceholdersEnabled bool
}

// ItemKeyedParams describes a before/after load relative to a boundary key.
type ItemKeyedParams[K comparable] struct {
	// Key is derived from the item at the loaded boundary.
	Key K

	// RequestedLoadSize is the target number of items.
	RequestedLoadSize int
}

// ItemKeyedLoader loads items relative to keys derived from the items
// themselves. It is always contiguous: there is no way to resume loading
// mid-sequence, so lists backed by it never drop pages.
type ItemKeyedLoader[K comparable, T any] interface {
	LoadInitial(ctx context.Context, params ItemKeyedInitialParams[K], cb *ItemKeyedInitialCallback[T])

	// LoadBefore loads items immediately preceding the key, in ascending
	// order ending just before it.
	LoadBefore(ctx context.Context, params ItemKeyedParams[K], cb *ItemKeyedCallback[T])

	// LoadAfter loads items immediately following the key, in ascending
	// order.
	LoadAfter(ctx context.Context, params ItemKeyedParams[K], cb *ItemKeyedCallback[T])

	// Key derives the load key for an item. It must be stable for the life
	// of the source.
	Key(item T) K
}

// ItemKeyedInitialCallback resolves the initial load of an item-keyed
// source.
type ItemKeyedInitialCallback[T any] struct {
	state callbackState[T]
}

// OnResult resolves the load with a total count: items begin at position out
// of totalCount overall, which lets the list surround them with
// placeholders.
func (c *ItemKeyedInitialCallback[T]) OnResult(items []T, position, totalCount int) {
	if position < 0 || position+len(items) > totalCount {
		panic(fmt.Sprintf("paging: item-keyed initial result out of range: position %d, %d items, total %d",
			position, len(items), totalCount))
	}
	c.state.deliver(pageResult[T]{
		kind:          loadInit,
		page:          items,
		leadingNulls:  position,
		trailingNulls: totalCount - position - len(items),
	})
}

// OnResultUncounted resolves the load without position information.
func (c *ItemKeyedInitialCallback[T]) OnResultUncounted(items []T) {
	c.state.deliver(pageResult[T]{kind: loadInit, page: items})
}

// OnInvalidResult resolves the load as invalid.
func (c *ItemKeyedInitialCallback[T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// ItemKeyedCallback resolves a before/after load of an item-keyed source.
type ItemKeyedCallback[T any] struct {
	state callbackState[T]
}

// OnResult resolves the load. An empty slice signals that no more data
// exists in the loaded direction.
func (c *ItemKeyedCallback[T]) OnResult(items []T) {
	c.state.deliver(pageResult[T]{kind: c.state.kind, page: items})
}

// OnInvalidResult resolves the load as invalid.
func (c *ItemKeyedCallback[T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// ItemKeyedSource is an item-keyed data source wrapping an ItemKeyedLoader.
type ItemKeyedSource[K comparable, T any] struct {
	sourceBase
	loader ItemKeyedLoader[K, T]
}

// NewItemKeyedSource wraps loader in an item-keyed source.
func NewItemKeyedSource[K comparable, T any](loader ItemKeyedLoader[K, T]) *ItemKeyedSource[K, T] {
	return &ItemKeyedSource[K, T]{sourceBase: newSourceBase(), loader: loader}
}

func (s *ItemKeyedSource[K, T]) isContiguous() bool         { return true }
func (s *ItemKeyedSource[K, T]) supportsPageDropping() bool { return false }

func (s *ItemKeyedSource[K, T]) dispatchLoadInitial(ctx context.Context, key any, initialLoadSize, pageSize int,
	enablePlaceholders bool, notify Executor, rcv resultReceiver[T]) {
	var initialKey *K
	if key != nil {
		k := key.(K)
		initialKey = &k
	}
	cb := &ItemKeyedInitialCallback[T]{
		state: callbackState[T]{src: s, kind: loadInit, notify: notify, rcv: rcv},
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadInitial(ctx, ItemKeyedInitialParams[K]{
		RequestedInitialKey: initialKey,
		RequestedLoadSize:   initialLoadSize,
		PlaceholdersEnabled: enablePlaceholders,
	}, cb)
}

func (s *ItemKeyedSource[K, T]) dispatchLoadAfter(ctx context.Context, currentEndIndex int, currentEndItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	cb := &ItemKeyedCallback[T]{
		state: callbackState[T]{src: s, kind: loadAppend, notify: notify, rcv: rcv},
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadAfter(ctx, ItemKeyedParams[K]{
		Key:               s.loader.Key(currentEndItem),
		RequestedLoadSize: pageSize,
	}, cb)
}

func (s *ItemKeyedSource[K, T]) dispatchLoadBefore(ctx context.Context, currentBeginIndex int, currentBeginItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	cb := &ItemKeyedCallback[T]{
		state: callbackState[T]{src: s, kind: loadPrepend, notify: notify, rcv: rcv},
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadBefore(ctx, ItemKeyedParams[K]{
		Key:               s.loader.Key(currentBeginItem),
		RequestedLoadSize: pageSize,
	}, cb)
}

func (s *ItemKeyedSource[K, T]) key(position int, item T) any {
	return s.loader.Key(item)
}
