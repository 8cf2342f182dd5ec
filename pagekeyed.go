package paging

import (
	"context"
	"fmt"
	"sync"
)

// PageKeyedInitialParams describes the first load requested from a
// page-keyed loader.
type PageKeyedInitialParams struct {
	// RequestedLoadSize is the target number of items.
	RequestedLoadSize int

	// PlaceholdersEnabled reports whether counted results are useful.
	PlaceholdersEnabled bool
}

// PageKeyedParams describes a before/after load using an opaque page token
// previously returned by the loader itself.
type PageKeyedParams[K comparable] struct {
	Key               K
	RequestedLoadSize int
}

// PageKeyedLoader loads pages using opaque previous/next tokens that the
// loader itself hands back with each result. It is always contiguous and
// never supports page dropping: once a page is evicted its token is gone.
type PageKeyedLoader[K comparable, T any] interface {
	LoadInitial(ctx context.Context, params PageKeyedInitialParams, cb *PageKeyedInitialCallback[K, T])

	// LoadBefore loads the page preceding the token, in ascending order.
	LoadBefore(ctx context.Context, params PageKeyedParams[K], cb *PageKeyedCallback[K, T])

	// LoadAfter loads the page following the token, in ascending order.
	LoadAfter(ctx context.Context, params PageKeyedParams[K], cb *PageKeyedCallback[K, T])
}

// PageKeyedInitialCallback resolves the initial load of a page-keyed
// source.
type PageKeyedInitialCallback[K comparable, T any] struct {
	state callbackState[T]
	src   *PageKeyedSource[K, T]
}

// OnResult resolves the load with a total count and the adjacent page
// tokens. A nil token means no more data exists in that direction.
func (c *PageKeyedInitialCallback[K, T]) OnResult(items []T, position, totalCount int, previousPageKey, nextPageKey *K) {
	if position < 0 || position+len(items) > totalCount {
		panic(fmt.Sprintf("paging: page-keyed initial result out of range: position %d, %d items, total %d",
			position, len(items), totalCount))
	}
	c.src.setKeys(previousPageKey, nextPageKey)
	c.state.deliver(pageResult[T]{
		kind:          loadInit,
		page:          items,
		leadingNulls:  position,
		trailingNulls: totalCount - position - len(items),
	})
}

// OnResultUncounted resolves the load without position information.
func (c *PageKeyedInitialCallback[K, T]) OnResultUncounted(items []T, previousPageKey, nextPageKey *K) {
	c.src.setKeys(previousPageKey, nextPageKey)
	c.state.deliver(pageResult[T]{kind: loadInit, page: items})
}

// OnInvalidResult resolves the load as invalid.
func (c *PageKeyedInitialCallback[K, T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// PageKeyedCallback resolves a before/after load of a page-keyed source.
type PageKeyedCallback[K comparable, T any] struct {
	state   callbackState[T]
	src     *PageKeyedSource[K, T]
	forward bool
}

// OnResult resolves the load with the items and the token for the page one
// further in the loaded direction; nil marks the end of data that way.
func (c *PageKeyedCallback[K, T]) OnResult(items []T, adjacentPageKey *K) {
	if c.forward {
		c.src.setNextKey(adjacentPageKey)
	} else {
		c.src.setPreviousKey(adjacentPageKey)
	}
	c.state.deliver(pageResult[T]{kind: c.state.kind, page: items})
}

// OnInvalidResult resolves the load as invalid.
func (c *PageKeyedCallback[K, T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// PageKeyedSource is a page-token-keyed data source wrapping a
// PageKeyedLoader. The adjacent tokens live in the source, not in the list:
// they address the provider's own pagination state, not any item.
type PageKeyedSource[K comparable, T any] struct {
	sourceBase
	loader PageKeyedLoader[K, T]

	keyMu       sync.Mutex
	previousKey *K
	nextKey     *K
}

// NewPageKeyedSource wraps loader in a page-keyed source.
func NewPageKeyedSource[K comparable, T any](loader PageKeyedLoader[K, T]) *PageKeyedSource[K, T] {
	return &PageKeyedSource[K, T]{sourceBase: newSourceBase(), loader: loader}
}

func (s *PageKeyedSource[K, T]) isContiguous() bool         { return true }
func (s *PageKeyedSource[K, T]) supportsPageDropping() bool { return false }

func (s *PageKeyedSource[K, T]) setKeys(previous, next *K) {
	s.keyMu.Lock()
	s.previousKey = previous
	s.nextKey = next
	s.keyMu.Unlock()
}

func (s *PageKeyedSource[K, T]) setPreviousKey(previous *K) {
	s.keyMu.Lock()
	s.previousKey = previous
	s.keyMu.Unlock()
}

func (s *PageKeyedSource[K, T]) setNextKey(next *K) {
	s.keyMu.Lock()
	s.nextKey = next
	s.keyMu.Unlock()
}

func (s *PageKeyedSource[K, T]) getPreviousKey() *K {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return s.previousKey
}

func (s *PageKeyedSource[K, T]) getNextKey() *K {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return s.nextKey
}

func (s *PageKeyedSource[K, T]) dispatchLoadInitial(ctx context.Context, key any, initialLoadSize, pageSize int,
	enablePlaceholders bool, notify Executor, rcv resultReceiver[T]) {
	cb := &PageKeyedInitialCallback[K, T]{
		state: callbackState[T]{src: s, kind: loadInit, notify: notify, rcv: rcv},
		src:   s,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadInitial(ctx, PageKeyedInitialParams{
		RequestedLoadSize:   initialLoadSize,
		PlaceholdersEnabled: enablePlaceholders,
	}, cb)
}

func (s *PageKeyedSource[K, T]) dispatchLoadAfter(ctx context.Context, currentEndIndex int, currentEndItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	cb := &PageKeyedCallback[K, T]{
		state:   callbackState[T]{src: s, kind: loadAppend, notify: notify, rcv: rcv},
		src:     s,
		forward: true,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	key := s.getNextKey()
	if key == nil {
		cb.OnResult(nil, nil)
		return
	}
	s.loader.LoadAfter(ctx, PageKeyedParams[K]{Key: *key, RequestedLoadSize: pageSize}, cb)
}

func (s *PageKeyedSource[K, T]) dispatchLoadBefore(ctx context.Context, currentBeginIndex int, currentBeginItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	cb := &PageKeyedCallback[K, T]{
		state: callbackState[T]{src: s, kind: loadPrepend, notify: notify, rcv: rcv},
		src:   s,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	key := s.getPreviousKey()
	if key == nil {
		cb.OnResult(nil, nil)
		return
	}
	s.loader.LoadBefore(ctx, PageKeyedParams[K]{Key: *key, RequestedLoadSize: pageSize}, cb)
}

// key has no item-derived answer for page-keyed sources; loading always
// resumes from the stored tokens.
func (s *PageKeyedSource[K, T]) key(position int, item T) any {
	return nil
}
