package paging

import (
	"fmt"
	"log/slog"
)

// tiledPagedList serves position-keyed data with placeholders: the full
// extent is known up front and any tile can be requested by absolute
// position, in any order. Tile requests are deduplicated through the page
// table, which tracks absent, requested, and loaded tiles.
type tiledPagedList[T any] struct {
	pagedListBase[T]
	source *PositionalSource[T]
}

func newTiledPagedList[T any](src *PositionalSource[T], cfg Config, o listOptions[T]) *tiledPagedList[T] {
	l := &tiledPagedList[T]{
		pagedListBase: newPagedListBase(cfg, o),
		source:        src,
	}

	src.OnInvalidated(l.Detach)

	position := 0
	if p, ok := o.initialKey.(int); ok {
		position = max(0, p)
	}
	pageSize := cfg.PageSize
	loadPages := max(1, (cfg.InitialLoadSizeHint+pageSize-1)/pageSize)
	firstLoadSize := loadPages * pageSize
	roundedPageStart := max(0, (position-firstLoadSize/2)/pageSize*pageSize)

	l.mu.Lock()
	l.loadsDispatched++
	l.mu.Unlock()
	l.metrics.RecordLoad(loadInit.String())
	l.fetchExec.Execute(func() {
		src.dispatchLoadInitial(l.ctx, roundedPageStart, firstLoadSize, pageSize, l.notifyExec, l)
	})
	return l
}

func (l *tiledPagedList[T]) isContiguous() bool { return false }

func (l *tiledPagedList[T]) LoadAround(index int) {
	l.mu.Lock()
	size := l.storage.size()
	if index < 0 || index >= size {
		l.mu.Unlock()
		panic(fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, index, size))
	}
	l.lastLoad = index
	l.storage.allocatePlaceholders(index, l.cfg.PrefetchDistance, l.cfg.PageSize, l)
	l.mu.Unlock()
	l.flushEvents()
}

// LastKey is the reader's last accessed position; a replacement list built
// with it as WithInitialKey resumes centered there.
func (l *tiledPagedList[T]) LastKey() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return max(0, l.lastLoad)
}

func (l *tiledPagedList[T]) Snapshot() PagedList[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newSnapshotList(l.storage.snapshot(), l.cfg, l.lastLoad, false, max(0, l.lastLoad), ListStats{
		Size:            l.storage.size(),
		LoadedCount:     l.storage.loadedCount,
		LoadsDispatched: l.loadsDispatched,
		ItemsTrimmed:    l.itemsTrimmed,
		TilesRequested:  l.tilesRequested,
	})
}

func (l *tiledPagedList[T]) snapshotStorage() *pagedStorage[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.snapshot()
}

// onPageResult applies a load result. It runs on the notify executor.
func (l *tiledPagedList[T]) onPageResult(res pageResult[T]) {
	if res.invalid {
		l.log.Debug("dropping load result from invalidated source", slog.String("kind", res.kind.String()))
		l.Detach()
		return
	}
	if l.detached.Load() {
		return
	}

	l.mu.Lock()
	var attach []func()
	switch res.kind {
	case loadInit:
		if res.leadingNulls%l.cfg.PageSize != 0 {
			l.mu.Unlock()
			panic(fmt.Errorf("%w: initial load at position %d is not aligned to page size %d",
				ErrInvalidTiling, res.leadingNulls, l.cfg.PageSize))
		}
		l.storage.initAndSplit(res.leadingNulls, res.page, res.trailingNulls, 0, l.cfg.PageSize, l)
		if l.lastLoad < 0 {
			l.lastLoad = res.leadingNulls + len(res.page)/2
		}
		attach = l.markInitializedLocked()
	case loadTile:
		err := l.storage.tryInsertPageAndTrim(res.positionOffset, res.page,
			l.lastLoad, l.cfg.MaxSize, l.requiredRemainder, l)
		if err != nil {
			l.mu.Unlock()
			panic(err)
		}
	}
	empty := res.kind == loadInit && l.storage.size() == 0
	l.metrics.RecordListSize(l.storage.size())
	l.mu.Unlock()

	l.flushEvents()
	l.dispatchBoundary(false, false, empty)
	for _, fn := range attach {
		fn()
	}
}

// Storage mutation callbacks. All run with mu held, on the notify executor.

func (l *tiledPagedList[T]) onInitialized(count int) {
	l.queueEventLocked(0, 0, count)
}

// onPagePlaceholderInserted fires once per newly requested tile and
// dispatches its range load.
func (l *tiledPagedList[T]) onPagePlaceholderInserted(pageIndex int) {
	l.tilesRequested++
	l.metrics.RecordTilesRequested(1)
	start := pageIndex * l.cfg.PageSize
	count := min(l.cfg.PageSize, l.storage.size()-start)
	l.loadsDispatched++
	l.metrics.RecordLoad(loadTile.String())
	l.log.Debug("dispatching tile load", slog.Int("start", start), slog.Int("count", count))
	l.fetchExec.Execute(func() {
		if l.detached.Load() {
			return
		}
		l.source.dispatchLoadRange(l.ctx, start, count, l.notifyExec, l)
	})
}

func (l *tiledPagedList[T]) onPageInserted(start, count int) {
	l.queueEventLocked(2, start, count)
}

func (l *tiledPagedList[T]) onPagesSwappedToPlaceholder(startOfDrops, count int) {
	l.itemsTrimmed += count
	l.metrics.RecordItemsTrimmed(count)
	l.queueEventLocked(2, startOfDrops, count)
}

func (l *tiledPagedList[T]) onPagesRemoved(startOfDrops, count int) {
	l.itemsTrimmed += count
	l.metrics.RecordItemsTrimmed(count)
	l.queueEventLocked(1, startOfDrops, count)
}

func (l *tiledPagedList[T]) onPagePrepended(int, int, int) {
	panic("paging: unexpected prepend in tiled list")
}

func (l *tiledPagedList[T]) onPageAppended(int, int, int) {
	panic("paging: unexpected append in tiled list")
}

func (l *tiledPagedList[T]) onEmptyPrepend() {
	panic("paging: unexpected empty prepend in tiled list")
}

func (l *tiledPagedList[T]) onEmptyAppend() {
	panic("paging: unexpected empty append in tiled list")
}

// dispatchUpdatesSince replays onto cb every tile that changed state between
// snap and now: newly loaded tiles and tiles trimmed back to placeholders
// both surface as changed ranges. The two states must share extent and tile
// size.
func (l *tiledPagedList[T]) dispatchUpdatesSince(snap PagedList[T], cb ChangeCallback) error {
	old := snap.snapshotStorage()
	cur := l.snapshotStorage()

	if old.size() != cur.size() || old.pageSize != cur.pageSize {
		return fmt.Errorf("%w: extent changed since snapshot (%d/%d items, tile size %d/%d)",
			ErrInvalidSnapshot, old.size(), cur.size(), old.pageSize, cur.pageSize)
	}
	if cur.pageSize <= 0 {
		return nil
	}

	tiles := (cur.size() + cur.pageSize - 1) / cur.pageSize
	for t := 0; t < tiles; t++ {
		if old.tileLoaded(t) == cur.tileLoaded(t) {
			continue
		}
		start := t * cur.pageSize
		cb.OnChanged(start, min(cur.pageSize, cur.size()-start))
	}
	return nil
}
