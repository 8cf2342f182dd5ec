package paging

import (
	"errors"
	"testing"
	"time"
)

func TestContiguousInitialLoad(t *testing.T) {
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, _ := newTestList[int](t, src, Config{PageSize: 10, PrefetchDistance: 10})

	if list.Size() != 30 {
		t.Errorf("Size = %d, want 30 (initial load hint of 3 pages)", list.Size())
	}
	if list.LoadedCount() != 30 {
		t.Errorf("LoadedCount = %d, want 30", list.LoadedCount())
	}
	if v, ok := list.Get(0); !ok || v != 0 {
		t.Errorf("Get(0) = %d,%v, want 0,true", v, ok)
	}
}

func TestContiguousAppendOnDemand(t *testing.T) {
	// 10 items resident, prefetch 5: accessing index 9 leaves a 4-item
	// shortfall past the end, which one page-sized append covers.
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 5, PrefetchDistance: 5, InitialLoadSizeHint: 10})

	if list.Size() != 10 {
		t.Fatalf("Size = %d, want 10", list.Size())
	}

	list.LoadAround(9)
	exec.Drain()

	if list.Size() != 15 {
		t.Errorf("Size = %d, want 15 after one append", list.Size())
	}
	if loader.rangeCount() != 1 {
		t.Errorf("range loads = %d, want exactly 1", loader.rangeCount())
	}
	if v, ok := list.Get(12); !ok || v != 12 {
		t.Errorf("Get(12) = %d,%v, want 12,true", v, ok)
	}
}

func TestContiguousNoLoadInsidePrefetchWindow(t *testing.T) {
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 5, InitialLoadSizeHint: 30})

	list.LoadAround(15)
	exec.Drain()

	if loader.rangeCount() != 0 {
		t.Errorf("range loads = %d, want 0 for an access mid-window", loader.rangeCount())
	}
}

func TestContiguousPrependStopsAtZero(t *testing.T) {
	var front int
	frontFired := false
	boundary := &BoundaryCallback[int]{
		OnItemAtFrontLoaded: func(item int) { front = item; frontFired = true },
	}

	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10},
		WithBoundaryCallback[int](boundary))

	list.LoadAround(0)
	exec.Drain()

	if !frontFired {
		t.Fatal("front boundary never fired")
	}
	if front != 0 {
		t.Errorf("front boundary item = %d, want 0", front)
	}
	if v, ok := list.Get(0); !ok || v != 0 {
		t.Errorf("Get(0) = %d,%v, want 0,true", v, ok)
	}
}

func TestContiguousEndOfDataStopsFetching(t *testing.T) {
	var end int
	endFired := false
	boundary := &BoundaryCallback[int]{
		OnItemAtEndLoaded: func(item int) { end = item; endFired = true },
	}

	loader := &intLoader{total: 30}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 30},
		WithBoundaryCallback[int](boundary))

	// All 30 items load initially; pushing past the end yields one empty
	// append that latches the direction done.
	list.LoadAround(29)
	exec.Drain()
	before := loader.rangeCount()

	list.LoadAround(29)
	exec.Drain()

	if loader.rangeCount() != before {
		t.Errorf("range loads = %d, want %d (done direction must not refetch)",
			loader.rangeCount(), before)
	}
	if !endFired {
		t.Fatal("end boundary never fired")
	}
	if end != 29 {
		t.Errorf("end boundary item = %d, want 29", end)
	}
}

func TestContiguousSingleFlightPerDirection(t *testing.T) {
	loader := &deferredLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	list.LoadAround(9)
	exec.Drain()
	list.LoadAround(9)
	exec.Drain()

	if n := loader.pendingCount(); n != 1 {
		t.Fatalf("in-flight appends = %d, want 1", n)
	}

	loader.resolveAll()
	exec.Drain()
	if list.Size() != 20 {
		t.Errorf("Size = %d, want 20 after resolve", list.Size())
	}
}

func TestContiguousZeroItems(t *testing.T) {
	emptyFired := false
	boundary := &BoundaryCallback[int]{
		OnZeroItemsLoaded: func() { emptyFired = true },
	}

	loader := &intLoader{total: 0}
	src := NewPositionalSource[int](loader)
	list, _ := newTestList[int](t, src, Config{PageSize: 10},
		WithBoundaryCallback[int](boundary))

	if list.Size() != 0 {
		t.Errorf("Size = %d, want 0", list.Size())
	}
	if !emptyFired {
		t.Error("zero-items boundary never fired")
	}
}

func TestContiguousTrimBoundsMemory(t *testing.T) {
	rec := &recordingCallback{}
	loader := &intLoader{total: 500}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10, MaxSize: 30})
	defer list.AddCallback(rec)()

	// Walk forward well past the bound.
	for {
		last := list.Size() - 1
		list.LoadAround(last)
		exec.Drain()
		if list.Size()-1 == last {
			break
		}
		if list.LoadedCount() > 40 {
			t.Fatalf("loadedCount = %d, never trimmed", list.LoadedCount())
		}
		if list.Size() > 200 {
			break
		}
	}

	if list.LoadedCount() > 30 {
		t.Errorf("loadedCount = %d, want <= 30 at rest", list.LoadedCount())
	}
	if list.Stats().ItemsTrimmed == 0 {
		t.Error("no items were ever trimmed")
	}

	removed := false
	for _, ev := range rec.all() {
		if ev.op == "remove" {
			removed = true
		}
	}
	if !removed {
		t.Error("uncounted trim should emit removals")
	}
}

func TestContiguousItemKeyed(t *testing.T) {
	loader := &keyedLoader{items: rangeInts(0, 100)}
	src := NewItemKeyedSource[int, int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 20},
		WithInitialKey[int](50))

	if list.Size() != 20 {
		t.Fatalf("Size = %d, want 20", list.Size())
	}
	first, _ := list.Get(0)

	list.LoadAround(0)
	exec.Drain()

	if list.Size() != 30 {
		t.Errorf("Size = %d, want 30 after one prepend", list.Size())
	}
	got, _ := list.Get(10)
	if got != first {
		t.Errorf("item %d moved to index 10, found %d", first, got)
	}
	if v, _ := list.Get(0); v != first-10 {
		t.Errorf("Get(0) = %d, want %d (page prepended before old first)", v, first-10)
	}

	// LastKey anchors on the item observed at the most recent access; the
	// prepend shifted both the index and the item together.
	if k := list.LastKey(); k != first {
		t.Errorf("LastKey = %v, want %d", k, first)
	}
}

func TestContiguousPageKeyed(t *testing.T) {
	loader := &tokenLoader{pages: [][]int{
		rangeInts(0, 10),
		rangeInts(10, 10),
		rangeInts(20, 5),
	}}
	src := NewPageKeyedSource[int, int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	if list.Size() != 10 {
		t.Fatalf("Size = %d, want 10", list.Size())
	}

	list.LoadAround(9)
	exec.Drain()
	list.LoadAround(list.Size() - 1)
	exec.Drain()

	if list.Size() != 25 {
		t.Errorf("Size = %d, want 25 after walking all pages", list.Size())
	}
	if v, ok := list.Get(24); !ok || v != 24 {
		t.Errorf("Get(24) = %d,%v, want 24,true", v, ok)
	}

	// Page-keyed resumption state lives in the source, not in any item.
	if k := list.LastKey(); k != nil {
		t.Errorf("LastKey = %v, want nil", k)
	}
}

func TestContiguousInvalidatedResultDetaches(t *testing.T) {
	loader := &deferredLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	list.LoadAround(9)
	exec.Drain()

	// The source dies while the append is in flight; its result must be
	// dropped and the list detached rather than fed stale data.
	src.Invalidate()
	loader.resolveAll()
	exec.Drain()

	waitUntil(t, time.Second, list.IsDetached)
	if list.Size() != 10 {
		t.Errorf("Size = %d, want 10 (stale append applied)", list.Size())
	}
}

func TestContiguousDetachStopsLoads(t *testing.T) {
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	list.Detach()
	before := loader.rangeCount()
	list.LoadAround(9)
	exec.Drain()

	if loader.rangeCount() != before {
		t.Errorf("range loads = %d, want %d after detach", loader.rangeCount(), before)
	}
	if !list.IsImmutable() {
		t.Error("detached list should be immutable")
	}
}

func TestLoadAroundOutOfBoundsPanics(t *testing.T) {
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, _ := newTestList[int](t, src, Config{PageSize: 10})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("LoadAround past the end did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrIndexOutOfBounds) {
			t.Fatalf("panic = %v, want ErrIndexOutOfBounds", r)
		}
	}()
	list.LoadAround(list.Size())
}

func TestSnapshotIsFrozen(t *testing.T) {
	loader := &intLoader{total: 100}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	snap := list.Snapshot()
	list.LoadAround(9)
	exec.Drain()

	if snap.Size() != 10 {
		t.Errorf("snapshot Size = %d, want 10", snap.Size())
	}
	if list.Size() != 20 {
		t.Errorf("live Size = %d, want 20", list.Size())
	}
	if !snap.IsImmutable() {
		t.Error("snapshot should be immutable")
	}
	// LoadAround on a snapshot is a bounds-checked no-op.
	snap.LoadAround(5)
	if snap.Size() != 10 {
		t.Errorf("snapshot grew to %d", snap.Size())
	}
}
