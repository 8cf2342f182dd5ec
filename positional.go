package paging

import (
	"context"
	"fmt"
)

// PositionalInitialParams describes the first load requested from a
// positional loader.
type PositionalInitialParams struct {
	// RequestedStartPosition is the absolute position the load should start
	// at, already page-aligned by the engine. Loaders that know their total
	// count should clamp it with ComputeInitialLoadPosition.
	RequestedStartPosition int

	// RequestedLoadSize is the target number of items.
	RequestedLoadSize int

	// PageSize is the configured page size; counted results should start at
	// a multiple of it.
	PageSize int

	// PlaceholdersEnabled reports whether the engine needs a total count.
	// When true the loader must resolve with OnResult; when false either
	// resolution is accepted.
	PlaceholdersEnabled bool
}

// PositionalRangeParams describes a subsequent range load.
type PositionalRangeParams struct {
	StartPosition int
	LoadSize      int
}

// PositionalLoader loads items by absolute integer position. Implementations
// may resolve their callback synchronously or store it and resolve later;
// each callback must be resolved exactly once.
type PositionalLoader[T any] interface {
	LoadInitial(ctx context.Context, params PositionalInitialParams, cb *PositionalInitialCallback[T])
	LoadRange(ctx context.Context, params PositionalRangeParams, cb *PositionalRangeCallback[T])
}

// ComputeInitialLoadPosition page-aligns and bounds-clips the requested
// initial window against a known total count, so the first load both covers
// the requested position and leaves tiles uniformly aligned.
func ComputeInitialLoadPosition(params PositionalInitialParams, totalCount int) int {
	position := params.RequestedStartPosition
	initialLoadSize := params.RequestedLoadSize
	pageSize := params.PageSize

	pageStart := position / pageSize * pageSize

	// Maximum start position that still fills the requested window, rounded
	// up to a page boundary.
	maximumLoadPage := ((totalCount - initialLoadSize + pageSize - 1) / pageSize) * pageSize
	pageStart = min(maximumLoadPage, pageStart)
	pageStart = max(0, pageStart)
	return pageStart
}

// ComputeInitialLoadSize clips the requested initial load size to what exists
// past the computed start position.
func ComputeInitialLoadSize(params PositionalInitialParams, initialLoadPosition, totalCount int) int {
	return min(totalCount-initialLoadPosition, params.RequestedLoadSize)
}

// PositionalInitialCallback resolves the initial load of a positional
// source.
type PositionalInitialCallback[T any] struct {
	state               callbackState[T]
	placeholdersEnabled bool
}

// OnResult resolves the load with a total count: items begin at position out
// of totalCount overall. Required when placeholders are enabled.
func (c *PositionalInitialCallback[T]) OnResult(items []T, position, totalCount int) {
	if position < 0 || position+len(items) > totalCount {
		panic(fmt.Sprintf("paging: positional initial result out of range: position %d, %d items, total %d",
			position, len(items), totalCount))
	}
	if c.placeholdersEnabled {
		c.state.deliver(pageResult[T]{
			kind:          loadInit,
			page:          items,
			leadingNulls:  position,
			trailingNulls: totalCount - position - len(items),
		})
		return
	}
	c.state.deliver(pageResult[T]{kind: loadInit, page: items, positionOffset: position})
}

// OnResultUncounted resolves the load without a total count. Only valid when
// placeholders are disabled.
func (c *PositionalInitialCallback[T]) OnResultUncounted(items []T, position int) {
	if c.placeholdersEnabled {
		panic("paging: total count required when placeholders are enabled")
	}
	c.state.deliver(pageResult[T]{kind: loadInit, page: items, positionOffset: position})
}

// OnInvalidResult resolves the load as invalid, detaching the list that
// requested it. Providers use this for unrecoverable failures; recoverable
// ones should instead retry and resolve later.
func (c *PositionalInitialCallback[T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// PositionalRangeCallback resolves a range load of a positional source.
type PositionalRangeCallback[T any] struct {
	state callbackState[T]
	start int
}

// OnResult resolves the load with the items at the requested range. Fewer
// items than requested are accepted only at the end of the data set.
func (c *PositionalRangeCallback[T]) OnResult(items []T) {
	c.state.deliver(pageResult[T]{kind: c.state.kind, page: items, positionOffset: c.start})
}

// OnInvalidResult resolves the load as invalid.
func (c *PositionalRangeCallback[T]) OnInvalidResult() {
	c.state.deliverInvalid()
}

// PositionalSource is a position-keyed data source wrapping a
// PositionalLoader. With placeholders enabled it backs a tiled list; without
// them it backs a contiguous list keyed by absolute position.
type PositionalSource[T any] struct {
	sourceBase
	loader PositionalLoader[T]
}

// NewPositionalSource wraps loader in a position-keyed source.
func NewPositionalSource[T any](loader PositionalLoader[T]) *PositionalSource[T] {
	return &PositionalSource[T]{sourceBase: newSourceBase(), loader: loader}
}

func (s *PositionalSource[T]) isContiguous() bool         { return false }
func (s *PositionalSource[T]) supportsPageDropping() bool { return true }

// dispatchLoadInitial implements tiledSource.
func (s *PositionalSource[T]) dispatchLoadInitial(ctx context.Context, position, initialLoadSize, pageSize int,
	notify Executor, rcv resultReceiver[T]) {
	cb := &PositionalInitialCallback[T]{
		state:               callbackState[T]{src: s, kind: loadInit, notify: notify, rcv: rcv},
		placeholdersEnabled: true,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadInitial(ctx, PositionalInitialParams{
		RequestedStartPosition: position,
		RequestedLoadSize:      initialLoadSize,
		PageSize:               pageSize,
		PlaceholdersEnabled:    true,
	}, cb)
}

// dispatchLoadRange implements tiledSource.
func (s *PositionalSource[T]) dispatchLoadRange(ctx context.Context, startPosition, count int,
	notify Executor, rcv resultReceiver[T]) {
	cb := &PositionalRangeCallback[T]{
		state: callbackState[T]{src: s, kind: loadTile, notify: notify, rcv: rcv},
		start: startPosition,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadRange(ctx, PositionalRangeParams{StartPosition: startPosition, LoadSize: count}, cb)
}

// positionalContiguous adapts a PositionalSource to the contiguous load
// contract for lists running without placeholders. The key is the absolute
// position of the anchor item.
type positionalContiguous[T any] struct {
	*PositionalSource[T]
}

func (s positionalContiguous[T]) isContiguous() bool { return true }

func (s positionalContiguous[T]) dispatchLoadInitial(ctx context.Context, key any, initialLoadSize, pageSize int,
	enablePlaceholders bool, notify Executor, rcv resultReceiver[T]) {
	position := 0
	if key != nil {
		position = max(0, key.(int))
	}
	cb := &PositionalInitialCallback[T]{
		state:               callbackState[T]{src: s.PositionalSource, kind: loadInit, notify: notify, rcv: rcv},
		placeholdersEnabled: false,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadInitial(ctx, PositionalInitialParams{
		RequestedStartPosition: position,
		RequestedLoadSize:      initialLoadSize,
		PageSize:               pageSize,
		PlaceholdersEnabled:    false,
	}, cb)
}

func (s positionalContiguous[T]) dispatchLoadAfter(ctx context.Context, currentEndIndex int, currentEndItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	start := currentEndIndex + 1
	cb := &PositionalRangeCallback[T]{
		state: callbackState[T]{src: s.PositionalSource, kind: loadAppend, notify: notify, rcv: rcv},
		start: start,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	s.loader.LoadRange(ctx, PositionalRangeParams{StartPosition: start, LoadSize: pageSize}, cb)
}

func (s positionalContiguous[T]) dispatchLoadBefore(ctx context.Context, currentBeginIndex int, currentBeginItem T,
	pageSize int, notify Executor, rcv resultReceiver[T]) {
	// Load the page ending just before the current first item, clipped at
	// position zero.
	endIndex := currentBeginIndex - 1
	size := min(pageSize, endIndex+1)
	start := endIndex - size + 1

	cb := &PositionalRangeCallback[T]{
		state: callbackState[T]{src: s.PositionalSource, kind: loadPrepend, notify: notify, rcv: rcv},
		start: start,
	}
	if s.IsInvalid() {
		cb.OnInvalidResult()
		return
	}
	if size <= 0 {
		cb.OnResult(nil)
		return
	}
	s.loader.LoadRange(ctx, PositionalRangeParams{StartPosition: start, LoadSize: size}, cb)
}

func (s positionalContiguous[T]) key(position int, item T) any {
	return position
}
