package paging

import "fmt"

// page is one slot of the page table. A nil *page is an absent tile: a
// position range known to exist but never requested. A non-nil page with nil
// items is a requested placeholder whose load is in flight (or was dropped
// before insert). Loaded pages are immutable once stored, which lets
// snapshots share them.
type page[T any] struct {
	items []T
}

func (p *page[T]) loaded() bool {
	return p != nil && p.items != nil
}

// storageCallback receives structural mutation signals from pagedStorage.
// All methods run synchronously within the storage operation, on the notify
// executor, while the owning list's lock is held.
type storageCallback interface {
	onInitialized(count int)
	onPagePrepended(leadingNulls, changedCount, addedCount int)
	onPageAppended(endPosition, changedCount, addedCount int)
	onPagePlaceholderInserted(pageIndex int)
	onPageInserted(start, count int)
	onPagesRemoved(startOfDrops, count int)
	onPagesSwappedToPlaceholder(startOfDrops, count int)
	onEmptyPrepend()
	onEmptyAppend()
}

// pagedStorage is the windowed page table at the center of the engine:
// ordered pages (loaded, placeholder, or absent) bracketed by leading and
// trailing unloaded-item counts.
//
// Invariants, for every reachable state:
//
//	size() == leadingNullCount + storageCount + trailingNullCount
//	0 <= loadedCount <= storageCount
//
// A storage instance is owned by exactly one list and mutated only on that
// list's notify executor.
type pagedStorage[T any] struct {
	leadingNullCount  int
	pages             []*page[T]
	trailingNullCount int

	// positionOffset is the absolute position of the first slot of the page
	// table when placeholders are not in use; hard removals shift it.
	positionOffset int

	// storageCount counts the items represented by the page table, loaded
	// or not; loadedCount counts only loaded items.
	storageCount int
	loadedCount  int

	// pageSize is the uniform tile size: positive while tiling holds, -1
	// once pages of inconsistent size have broken uniform indexing, 0
	// before initialization.
	pageSize int

	numberPrepended int
	numberAppended  int
}

func (s *pagedStorage[T]) size() int {
	return s.leadingNullCount + s.storageCount + s.trailingNullCount
}

// get returns the loaded item at absolute index i, or ok=false if i falls in
// a null region or an unloaded tile. The index must be within [0, size()).
func (s *pagedStorage[T]) get(i int) (item T, ok bool) {
	localIndex := i - s.leadingNullCount
	if localIndex < 0 || localIndex >= s.storageCount {
		return item, false
	}

	var localPageIndex, indexInPage int
	if s.pageSize > 0 {
		localPageIndex = localIndex / s.pageSize
		indexInPage = localIndex % s.pageSize
	} else {
		// Tiling broken: walk the pages.
		for localPageIndex < len(s.pages) {
			count := s.slotCount(localPageIndex)
			if count > localIndex {
				break
			}
			localIndex -= count
			localPageIndex++
		}
		indexInPage = localIndex
	}

	if localPageIndex >= len(s.pages) {
		return item, false
	}
	pg := s.pages[localPageIndex]
	if !pg.loaded() || indexInPage >= len(pg.items) {
		return item, false
	}
	return pg.items[indexInPage], true
}

// slotCount returns the number of positions the slot at localPageIndex
// represents: the item count for loaded pages, a full tile for unloaded
// ones. The trailing-most slot of a non-tile-multiple extent covers only
// what remains of the storage range, not a full tile.
func (s *pagedStorage[T]) slotCount(localPageIndex int) int {
	pg := s.pages[localPageIndex]
	if pg.loaded() {
		return len(pg.items)
	}
	if s.pageSize > 0 && localPageIndex == len(s.pages)-1 {
		return s.storageCount - localPageIndex*s.pageSize
	}
	return s.pageSize
}

// init resets the storage to a single page. The page's length becomes the
// assumed tile size, revised later if a differently sized page breaks it.
func (s *pagedStorage[T]) init(leadingNulls int, pg []T, trailingNulls, positionOffset int, cb storageCallback) {
	s.leadingNullCount = leadingNulls
	s.pages = []*page[T]{{items: pg}}
	s.trailingNullCount = trailingNulls
	s.positionOffset = positionOffset
	s.storageCount = len(pg)
	s.loadedCount = len(pg)
	s.pageSize = len(pg)
	s.numberPrepended = 0
	s.numberAppended = 0
	cb.onInitialized(s.size())
}

// initAndSplit resets the storage for tiled loading: the initial run is
// split into pageSize tiles so all subsequent tile inserts line up.
func (s *pagedStorage[T]) initAndSplit(leadingNulls int, items []T, trailingNulls, positionOffset, pageSize int, cb storageCallback) {
	s.leadingNullCount = leadingNulls
	s.pages = nil
	for start := 0; start < len(items); start += pageSize {
		end := min(start+pageSize, len(items))
		s.pages = append(s.pages, &page[T]{items: items[start:end]})
	}
	s.trailingNullCount = trailingNulls
	s.positionOffset = positionOffset
	s.storageCount = len(items)
	s.loadedCount = len(items)
	s.pageSize = pageSize
	s.numberPrepended = 0
	s.numberAppended = 0
	cb.onInitialized(s.size())
}

// adjustPageSize records a page of inconsistent size: the sole page being
// replaced by a larger one adopts the new size, anything else disables
// tiling.
func (s *pagedStorage[T]) adjustPageSize(count int) {
	if s.pageSize > 0 && count != s.pageSize {
		if len(s.pages) == 1 && count > s.pageSize {
			s.pageSize = count
		} else {
			s.pageSize = -1
		}
	}
}

// appendPage adds a page at the end, converting trailing nulls into loaded
// cells before extending the storage. An empty page raises the empty-append
// signal, which the list interprets as end of data in that direction.
func (s *pagedStorage[T]) appendPage(pg []T, cb storageCallback) {
	count := len(pg)
	if count == 0 {
		cb.onEmptyAppend()
		return
	}
	s.adjustPageSize(count)

	s.pages = append(s.pages, &page[T]{items: pg})
	s.loadedCount += count

	changedCount := min(s.trailingNullCount, count)
	addedCount := count - changedCount
	s.trailingNullCount -= changedCount
	s.numberAppended += count
	s.storageCount += count

	cb.onPageAppended(s.leadingNullCount+s.storageCount-count, changedCount, addedCount)
}

// prependPage adds a page at the front, converting leading nulls into loaded
// cells before growing the collection.
func (s *pagedStorage[T]) prependPage(pg []T, cb storageCallback) {
	count := len(pg)
	if count == 0 {
		cb.onEmptyPrepend()
		return
	}
	s.adjustPageSize(count)

	s.pages = append([]*page[T]{{items: pg}}, s.pages...)
	s.loadedCount += count

	changedCount := min(s.leadingNullCount, count)
	addedCount := count - changedCount
	s.leadingNullCount -= changedCount
	s.positionOffset -= addedCount
	s.numberPrepended += count
	s.storageCount += count

	cb.onPagePrepended(s.leadingNullCount, changedCount, addedCount)
}

// allocatePageRange materializes page-table slots covering the given tile
// index range, pulling leading/trailing null regions into absent slots.
func (s *pagedStorage[T]) allocatePageRange(minimumPage, maximumPage int) {
	leadingNullPages := s.leadingNullCount / s.pageSize
	if minimumPage < leadingNullPages {
		grow := leadingNullPages - minimumPage
		s.pages = append(make([]*page[T], grow, grow+len(s.pages)), s.pages...)
		allocated := grow * s.pageSize
		s.storageCount += allocated
		s.leadingNullCount -= allocated
		leadingNullPages = minimumPage
	}
	if maximumPage >= leadingNullPages+len(s.pages) {
		grow := maximumPage + 1 - (leadingNullPages + len(s.pages))
		allocated := min(s.trailingNullCount, grow*s.pageSize)
		for range grow {
			s.pages = append(s.pages, nil)
		}
		s.storageCount += allocated
		s.trailingNullCount -= allocated
	}
}

// allocatePlaceholders ensures every tile intersecting the prefetch window
// around aroundIndex exists in the page table, raising one
// placeholder-inserted signal per newly requested tile.
func (s *pagedStorage[T]) allocatePlaceholders(aroundIndex, prefetchDistance, pageSize int, cb storageCallback) {
	if pageSize != s.pageSize {
		if pageSize < s.pageSize {
			panic(fmt.Errorf("%w: page size cannot shrink from %d to %d", ErrInvalidTiling, s.pageSize, pageSize))
		}
		if len(s.pages) != 1 || s.trailingNullCount != 0 {
			panic(fmt.Errorf("%w: page size can only change with a single partial page loaded", ErrInvalidTiling))
		}
		s.pageSize = pageSize
	}

	maxPageCount := (s.size() + s.pageSize - 1) / s.pageSize
	minimumPage := max(0, (aroundIndex-prefetchDistance)/s.pageSize)
	maximumPage := min(maxPageCount-1, (aroundIndex+prefetchDistance)/s.pageSize)
	if minimumPage > maximumPage {
		return
	}

	s.allocatePageRange(minimumPage, maximumPage)

	leadingNullPages := s.leadingNullCount / s.pageSize
	for pageIndex := max(minimumPage, leadingNullPages); pageIndex <= maximumPage; pageIndex++ {
		localPageIndex := pageIndex - leadingNullPages
		if localPageIndex >= len(s.pages) {
			break
		}
		if s.pages[localPageIndex] == nil {
			s.pages[localPageIndex] = &page[T]{}
			cb.onPagePlaceholderInserted(pageIndex)
		}
	}
}

// insertPage places a loaded page at an arbitrary tile position. The page
// length must equal the tile size unless it is the sole loaded page (the
// tile size adopts it) or the trailing-most tile (a shorter final tile is
// tolerated).
func (s *pagedStorage[T]) insertPage(position int, pg []T, cb storageCallback) error {
	newPageSize := len(pg)
	if newPageSize != s.pageSize {
		size := s.size()
		addingLastPage := position == size-size%s.pageSize && newPageSize < s.pageSize
		onlyEndPagePresent := s.trailingNullCount == 0 && len(s.pages) == 1 && newPageSize > s.pageSize
		if !onlyEndPagePresent && !addingLastPage {
			return fmt.Errorf("%w: inserting %d items at %d with tile size %d",
				ErrInvalidTiling, newPageSize, position, s.pageSize)
		}
		if onlyEndPagePresent {
			s.pageSize = newPageSize
		}
	}

	pageIndex := position / s.pageSize
	s.allocatePageRange(pageIndex, pageIndex)

	localPageIndex := pageIndex - s.leadingNullCount/s.pageSize
	if existing := s.pages[localPageIndex]; existing.loaded() {
		return fmt.Errorf("%w: tile %d", ErrPageAlreadyLoaded, pageIndex)
	}
	s.pages[localPageIndex] = &page[T]{items: pg}
	s.loadedCount += newPageSize
	cb.onPageInserted(position, newPageSize)
	return nil
}

// middleOfLoadedRange is the midpoint used to pick a trim direction: the
// side of it the reader last accessed is kept, the other side trimmed. When
// the last access sits exactly at the midpoint the end is trimmed.
func (s *pagedStorage[T]) middleOfLoadedRange() int {
	return s.leadingNullCount + s.storageCount/2
}

// needsTrim reports whether the boundary page at localPageIndex should be
// dropped. Absent pages are reclaimed for free; in-flight placeholders are
// never dropped; a loaded page is dropped only while the loaded count
// exceeds maxSize, at least 3 pages remain, and the drop leaves at least
// requiredRemaining loaded items. The 3-page floor keeps a single boundary
// drop from removing content adjacent to an unknown viewport.
func (s *pagedStorage[T]) needsTrim(maxSize, requiredRemaining, localPageIndex int) bool {
	pg := s.pages[localPageIndex]
	if pg == nil {
		return true
	}
	if pg.items == nil {
		return false
	}
	return s.loadedCount > maxSize && len(s.pages) > 2 &&
		s.loadedCount-len(pg.items) >= requiredRemaining
}

func (s *pagedStorage[T]) needsTrimFromFront(maxSize, requiredRemaining int) bool {
	return len(s.pages) > 0 && s.needsTrim(maxSize, requiredRemaining, 0)
}

func (s *pagedStorage[T]) needsTrimFromEnd(maxSize, requiredRemaining int) bool {
	return len(s.pages) > 0 && s.needsTrim(maxSize, requiredRemaining, len(s.pages)-1)
}

// shouldPreTrimNewPage reports whether inserting countToBeAdded more loaded
// items would immediately push the storage over its bound, in which case the
// new page is discarded up front rather than inserted and trimmed back out.
func (s *pagedStorage[T]) shouldPreTrimNewPage(maxSize, requiredRemaining, countToBeAdded int) bool {
	return s.loadedCount+countToBeAdded > maxSize &&
		len(s.pages) > 1 &&
		s.loadedCount >= requiredRemaining
}

// trimFromFront drops boundary pages from the front while trimming is
// needed. With insertNulls the dropped region becomes leading placeholders,
// preserving absolute indices; otherwise it is a hard removal that shifts
// the position offset. The swap signal covers only the span that held
// loaded pages: absent slots reclaimed alongside them were already reported
// unloaded, so converting them to nulls is not an observable change.
func (s *pagedStorage[T]) trimFromFront(insertNulls bool, maxSize, requiredRemaining int, cb storageCallback) bool {
	totalRemoved := 0
	changedStart, changedEnd := -1, -1
	for s.needsTrimFromFront(maxSize, requiredRemaining) {
		pg := s.pages[0]
		removed := s.slotCount(0)
		s.pages = s.pages[1:]
		s.storageCount -= removed
		if pg.loaded() {
			s.loadedCount -= len(pg.items)
			if changedStart < 0 {
				changedStart = totalRemoved
			}
			changedEnd = totalRemoved + removed
		}
		totalRemoved += removed
	}
	if totalRemoved == 0 {
		return false
	}
	if insertNulls {
		startOfDrops := s.leadingNullCount
		s.leadingNullCount += totalRemoved
		if changedStart >= 0 {
			cb.onPagesSwappedToPlaceholder(startOfDrops+changedStart, changedEnd-changedStart)
		}
	} else {
		s.positionOffset += totalRemoved
		s.numberPrepended -= totalRemoved
		cb.onPagesRemoved(s.leadingNullCount, totalRemoved)
	}
	return true
}

// trimFromEnd is the mirror of trimFromFront. Slots are dropped outermost
// first, so the changed span offsets are measured from the old end of the
// storage range and flipped when the signal is raised.
func (s *pagedStorage[T]) trimFromEnd(insertNulls bool, maxSize, requiredRemaining int, cb storageCallback) bool {
	totalRemoved := 0
	changedStart, changedEnd := -1, -1
	for s.needsTrimFromEnd(maxSize, requiredRemaining) {
		last := len(s.pages) - 1
		pg := s.pages[last]
		removed := s.slotCount(last)
		s.pages = s.pages[:last]
		s.storageCount -= removed
		if pg.loaded() {
			s.loadedCount -= len(pg.items)
			if changedStart < 0 {
				changedStart = totalRemoved
			}
			changedEnd = totalRemoved + removed
		}
		totalRemoved += removed
	}
	if totalRemoved == 0 {
		return false
	}
	startOfDrops := s.leadingNullCount + s.storageCount
	if insertNulls {
		s.trailingNullCount += totalRemoved
		if changedStart >= 0 {
			cb.onPagesSwappedToPlaceholder(startOfDrops+totalRemoved-changedEnd, changedEnd-changedStart)
		}
	} else {
		s.numberAppended -= totalRemoved
		cb.onPagesRemoved(startOfDrops, totalRemoved)
	}
	return true
}

// pageWouldBeBoundary reports whether a tile at the given absolute position
// is the page a following trim would drop first.
func (s *pagedStorage[T]) pageWouldBeBoundary(position int, trimFromFront bool) bool {
	if s.pageSize < 1 || len(s.pages) < 2 {
		return true
	}
	if trimFromFront {
		return position == s.leadingNullCount
	}
	return position == s.leadingNullCount+(len(s.pages)-1)*s.pageSize
}

// tryInsertPageAndTrim inserts a loaded tile unless doing so would
// immediately overflow maxSize with the tile sitting at the eviction
// boundary; in that case the tile is discarded back to an absent slot
// instead of flashing in and out. Either way the boundary opposite the
// reader is trimmed afterwards if needed.
func (s *pagedStorage[T]) tryInsertPageAndTrim(position int, pg []T, lastLoad, maxSize, requiredRemaining int, cb storageCallback) error {
	trim := maxSize != MaxSizeUnbounded
	trimFromFront := lastLoad > s.middleOfLoadedRange()

	pageInserted := !trim ||
		!s.shouldPreTrimNewPage(maxSize, requiredRemaining, len(pg)) ||
		!s.pageWouldBeBoundary(position, trimFromFront)
	if pageInserted {
		if err := s.insertPage(position, pg, cb); err != nil {
			return err
		}
	} else if s.pageSize > 0 {
		localPageIndex := position/s.pageSize - s.leadingNullCount/s.pageSize
		if localPageIndex >= 0 && localPageIndex < len(s.pages) {
			s.pages[localPageIndex] = nil
		}
	}

	if trim {
		if trimFromFront {
			s.trimFromFront(true, maxSize, requiredRemaining, cb)
		} else {
			s.trimFromEnd(true, maxSize, requiredRemaining, cb)
		}
	}
	return nil
}

// tileLoaded reports whether the tile at the given absolute tile index holds
// loaded items. Valid only while uniform tiling holds.
func (s *pagedStorage[T]) tileLoaded(pageIndex int) bool {
	if s.pageSize <= 0 {
		return false
	}
	local := pageIndex - s.leadingNullCount/s.pageSize
	return local >= 0 && local < len(s.pages) && s.pages[local].loaded()
}

// firstLoadedItem returns the first loaded item. Valid only in contiguous
// mode with a non-zero loaded count.
func (s *pagedStorage[T]) firstLoadedItem() T {
	return s.pages[0].items[0]
}

// lastLoadedItem returns the last loaded item under the same conditions.
func (s *pagedStorage[T]) lastLoadedItem() T {
	items := s.pages[len(s.pages)-1].items
	return items[len(items)-1]
}

// snapshot returns an independent frozen copy of the page table. Backing
// pages are shared (they are immutable once loaded); structural metadata is
// duplicated so later mutation of the live storage is never observable
// through the copy.
func (s *pagedStorage[T]) snapshot() *pagedStorage[T] {
	dup := *s
	dup.pages = make([]*page[T], len(s.pages))
	copy(dup.pages, s.pages)
	return &dup
}
