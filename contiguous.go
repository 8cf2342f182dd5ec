package paging

import (
	"fmt"
	"log/slog"
)

// fetchState tracks one load direction of a contiguous list.
type fetchState int

const (
	fetchReady fetchState = iota
	fetchFetching
	fetchDone
)

// contiguousPagedList grows a single unbroken loaded range outward, one page
// per direction at a time, driven by LoadAround demand. All state mutation
// happens on the notify executor under mu; fetches run on the fetch
// executor.
type contiguousPagedList[T any] struct {
	pagedListBase[T]
	source     contiguousSource[T]
	initialKey any

	prependState fetchState
	appendState  fetchState

	// prependDemand and appendDemand count items still wanted beyond each
	// edge; a direction fetches while its demand is positive.
	prependDemand int
	appendDemand  int

	// lastItem anchors LastKey between accesses.
	lastItem    T
	hasLastItem bool

	// replacePagesWithNulls: the initial load was counted, so trims swap
	// pages to placeholders instead of shrinking the list.
	replacePagesWithNulls bool

	shouldTrim bool
}

func newContiguousPagedList[T any](src contiguousSource[T], cfg Config, o listOptions[T]) *contiguousPagedList[T] {
	l := &contiguousPagedList[T]{
		pagedListBase: newPagedListBase(cfg, o),
		source:        src,
		initialKey:    o.initialKey,
	}
	l.shouldTrim = src.supportsPageDropping() && cfg.MaxSize != MaxSizeUnbounded

	src.OnInvalidated(l.Detach)

	l.mu.Lock()
	l.loadsDispatched++
	l.mu.Unlock()
	l.metrics.RecordLoad(loadInit.String())
	l.fetchExec.Execute(func() {
		src.dispatchLoadInitial(l.ctx, o.initialKey, cfg.InitialLoadSizeHint, cfg.PageSize,
			cfg.EnablePlaceholders, l.notifyExec, l)
	})
	return l
}

func (l *contiguousPagedList[T]) isContiguous() bool { return true }

func (l *contiguousPagedList[T]) LoadAround(index int) {
	l.mu.Lock()
	size := l.storage.size()
	if index < 0 || index >= size {
		l.mu.Unlock()
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, index, size))
	}
	l.lastLoad = index
	if item, ok := l.storage.get(index); ok {
		l.lastItem = item
		l.hasLastItem = true
	}

	prependItems := l.cfg.PrefetchDistance - (index - l.storage.leadingNullCount)
	appendItems := index + l.cfg.PrefetchDistance - (l.storage.leadingNullCount + l.storage.storageCount)

	l.prependDemand = max(l.prependDemand, prependItems)
	if l.prependDemand > 0 {
		l.schedulePrependLocked()
	}
	l.appendDemand = max(l.appendDemand, appendItems)
	if l.appendDemand > 0 {
		l.scheduleAppendLocked()
	}
	l.mu.Unlock()
}

func (l *contiguousPagedList[T]) LastKey() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastKeyLocked()
}

func (l *contiguousPagedList[T]) lastKeyLocked() any {
	if l.storage.loadedCount == 0 {
		return l.initialKey
	}
	item := l.lastItem
	position := l.lastLoad
	if !l.hasLastItem {
		// No loaded item was ever observed at an access position; anchor on
		// the nearest loaded edge instead.
		first := l.storage.leadingNullCount
		last := l.storage.leadingNullCount + l.storage.storageCount - 1
		switch {
		case position < first:
			position = first
			item = l.storage.firstLoadedItem()
		case position > last:
			position = last
			item = l.storage.lastLoadedItem()
		default:
			item, _ = l.storage.get(position)
		}
	}
	return l.source.key(position+l.storage.positionOffset, item)
}

func (l *contiguousPagedList[T]) Snapshot() PagedList[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newSnapshotList(l.storage.snapshot(), l.cfg, l.lastLoad, true, l.lastKeyLocked(), ListStats{
		Size:            l.storage.size(),
		LoadedCount:     l.storage.loadedCount,
		LoadsDispatched: l.loadsDispatched,
		ItemsTrimmed:    l.itemsTrimmed,
		TilesRequested:  l.tilesRequested,
	})
}

func (l *contiguousPagedList[T]) snapshotStorage() *pagedStorage[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.snapshot()
}

// schedulePrependLocked dispatches one page-before fetch if the direction is
// idle and there is a loaded item to anchor on.
func (l *contiguousPagedList[T]) schedulePrependLocked() {
	if l.prependState != fetchReady || l.detached.Load() || l.storage.loadedCount == 0 {
		return
	}
	l.prependState = fetchFetching
	position := l.storage.leadingNullCount + l.storage.positionOffset
	item := l.storage.firstLoadedItem()
	l.loadsDispatched++
	l.metrics.RecordLoad(loadPrepend.String())
	l.log.Debug("dispatching prepend", slog.Int("position", position))
	l.fetchExec.Execute(func() {
		if l.detached.Load() {
			return
		}
		l.source.dispatchLoadBefore(l.ctx, position, item, l.cfg.PageSize, l.notifyExec, l)
	})
}

// scheduleAppendLocked is the mirror of schedulePrependLocked.
func (l *contiguousPagedList[T]) scheduleAppendLocked() {
	if l.appendState != fetchReady || l.detached.Load() || l.storage.loadedCount == 0 {
		return
	}
	l.appendState = fetchFetching
	position := l.storage.leadingNullCount + l.storage.storageCount - 1 + l.storage.positionOffset
	item := l.storage.lastLoadedItem()
	l.loadsDispatched++
	l.metrics.RecordLoad(loadAppend.String())
	l.log.Debug("dispatching append", slog.Int("position", position))
	l.fetchExec.Execute(func() {
		if l.detached.Load() {
			return
		}
		l.source.dispatchLoadAfter(l.ctx, position, item, l.cfg.PageSize, l.notifyExec, l)
	})
}

// onPageResult applies a load result. It runs on the notify executor.
func (l *contiguousPagedList[T]) onPageResult(res pageResult[T]) {
	if res.invalid {
		l.log.Debug("dropping load result from invalidated source", slog.String("kind", res.kind.String()))
		l.Detach()
		return
	}
	if l.detached.Load() {
		return
	}

	l.mu.Lock()
	switch res.kind {
	case loadInit:
		l.storage.init(res.leadingNulls, res.page, res.trailingNulls, res.positionOffset, l)
		l.replacePagesWithNulls = res.leadingNulls > 0 || res.trailingNulls > 0
		if l.lastLoad < 0 {
			l.lastLoad = res.leadingNulls + len(res.page)/2
		}
	case loadPrepend, loadAppend:
		trimFromFront := l.lastLoad > l.storage.middleOfLoadedRange()
		skipNewPage := l.shouldTrim &&
			l.storage.shouldPreTrimNewPage(l.cfg.MaxSize, l.requiredRemainder, len(res.page))

		if res.kind == loadAppend {
			if skipNewPage && !trimFromFront {
				l.appendDemand = 0
				l.appendState = fetchReady
			} else {
				l.storage.appendPage(res.page, l)
			}
		} else {
			if skipNewPage && trimFromFront {
				l.prependDemand = 0
				l.prependState = fetchReady
			} else {
				l.storage.prependPage(res.page, l)
			}
		}

		if l.shouldTrim {
			if trimFromFront {
				if l.prependState != fetchFetching &&
					l.storage.trimFromFront(l.replacePagesWithNulls, l.cfg.MaxSize, l.requiredRemainder, l) {
					l.prependState = fetchReady
				}
			} else {
				if l.appendState != fetchFetching &&
					l.storage.trimFromEnd(l.replacePagesWithNulls, l.cfg.MaxSize, l.requiredRemainder, l) {
					l.appendState = fetchReady
				}
			}
		}
	}

	empty := l.storage.size() == 0
	frontDone := !empty && res.kind == loadPrepend && len(res.page) == 0
	endDone := !empty && res.kind == loadAppend && len(res.page) == 0
	if res.kind == loadInit && len(res.page) == 0 {
		l.prependState = fetchDone
		l.appendState = fetchDone
	}
	var attach []func()
	if res.kind == loadInit {
		attach = l.markInitializedLocked()
	}
	l.metrics.RecordListSize(l.storage.size())
	l.mu.Unlock()

	l.flushEvents()
	l.dispatchBoundary(frontDone, endDone, empty && res.kind == loadInit)
	for _, fn := range attach {
		fn()
	}
}

// Storage mutation callbacks. All run with mu held, on the notify executor.

func (l *contiguousPagedList[T]) onInitialized(count int) {
	l.queueEventLocked(0, 0, count)
}

func (l *contiguousPagedList[T]) onPagePrepended(leadingNulls, changedCount, addedCount int) {
	l.prependDemand -= changedCount + addedCount
	l.prependState = fetchReady
	if l.prependDemand > 0 {
		l.schedulePrependLocked()
	}
	l.queueEventLocked(2, leadingNulls, changedCount)
	l.queueEventLocked(0, 0, addedCount)
	l.lastLoad += addedCount
}

func (l *contiguousPagedList[T]) onPageAppended(endPosition, changedCount, addedCount int) {
	l.appendDemand -= changedCount + addedCount
	l.appendState = fetchReady
	if l.appendDemand > 0 {
		l.scheduleAppendLocked()
	}
	l.queueEventLocked(2, endPosition, changedCount)
	l.queueEventLocked(0, endPosition+changedCount, addedCount)
}

func (l *contiguousPagedList[T]) onEmptyPrepend() {
	l.prependState = fetchDone
}

func (l *contiguousPagedList[T]) onEmptyAppend() {
	l.appendState = fetchDone
}

func (l *contiguousPagedList[T]) onPagesRemoved(startOfDrops, count int) {
	l.itemsTrimmed += count
	l.metrics.RecordItemsTrimmed(count)
	if startOfDrops == 0 {
		l.lastLoad = max(0, l.lastLoad-count)
	}
	l.queueEventLocked(1, startOfDrops, count)
}

func (l *contiguousPagedList[T]) onPagesSwappedToPlaceholder(startOfDrops, count int) {
	l.itemsTrimmed += count
	l.metrics.RecordItemsTrimmed(count)
	l.queueEventLocked(2, startOfDrops, count)
}

func (l *contiguousPagedList[T]) onPagePlaceholderInserted(int) {
	panic("paging: unexpected placeholder insert in contiguous list")
}

func (l *contiguousPagedList[T]) onPageInserted(int, int) {
	panic("paging: unexpected tile insert in contiguous list")
}

// dispatchUpdatesSince replays onto cb every change between snap and the
// current state. Contiguous lists only ever grow at the edges or trim, so
// the prepend/append counters fully describe the delta; a negative delta
// means pages were dropped since the snapshot and the snapshot can no
// longer be caught up.
func (l *contiguousPagedList[T]) dispatchUpdatesSince(snap PagedList[T], cb ChangeCallback) error {
	old := snap.snapshotStorage()
	l.mu.Lock()
	cur := l.storage
	prepended := cur.numberPrepended - old.numberPrepended
	appended := cur.numberAppended - old.numberAppended
	oldSize := old.size()
	l.mu.Unlock()

	if prepended < 0 || appended < 0 {
		return fmt.Errorf("%w: pages dropped since snapshot (prepend delta %d, append delta %d)",
			ErrInvalidSnapshot, prepended, appended)
	}
	if prepended > 0 {
		cb.OnInserted(0, prepended)
	}
	if appended > 0 {
		cb.OnInserted(oldSize+prepended, appended)
	}
	return nil
}
