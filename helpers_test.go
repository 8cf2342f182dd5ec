package paging

import (
	"context"
	"sync"
	"testing"
	"time"
)

// manualExecutor queues tasks until Drain is called, making async engine
// behavior single-stepped and deterministic in tests.
type manualExecutor struct {
	mu    sync.Mutex
	queue []func()
}

func (e *manualExecutor) Execute(task func()) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	e.mu.Unlock()
}

// Drain runs queued tasks, including ones they enqueue, until idle. Returns
// the number of tasks run.
func (e *manualExecutor) Drain() int {
	n := 0
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return n
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		task()
		n++
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func rangeInts(start, count int) []int {
	items := make([]int, 0, count)
	for i := start; i < start+count; i++ {
		items = append(items, i)
	}
	return items
}

// intLoader serves the integers [0, total) by position, resolving
// synchronously. It records every range request it sees.
type intLoader struct {
	total int

	mu       sync.Mutex
	initials int
	ranges   []PositionalRangeParams
}

func (l *intLoader) slice(start, count int) []int {
	start = max(0, min(start, l.total))
	end := min(start+count, l.total)
	return rangeInts(start, end-start)
}

func (l *intLoader) LoadInitial(ctx context.Context, params PositionalInitialParams, cb *PositionalInitialCallback[int]) {
	l.mu.Lock()
	l.initials++
	l.mu.Unlock()

	position := ComputeInitialLoadPosition(params, l.total)
	size := ComputeInitialLoadSize(params, position, l.total)
	if params.PlaceholdersEnabled {
		cb.OnResult(l.slice(position, size), position, l.total)
	} else {
		cb.OnResultUncounted(l.slice(position, size), position)
	}
}

func (l *intLoader) LoadRange(ctx context.Context, params PositionalRangeParams, cb *PositionalRangeCallback[int]) {
	l.mu.Lock()
	l.ranges = append(l.ranges, params)
	l.mu.Unlock()
	cb.OnResult(l.slice(params.StartPosition, params.LoadSize))
}

func (l *intLoader) rangeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ranges)
}

// deferredLoader parks every range callback until the test resolves it.
type deferredLoader struct {
	total int

	mu      sync.Mutex
	pending []func()
}

func (l *deferredLoader) slice(start, count int) []int {
	start = max(0, min(start, l.total))
	end := min(start+count, l.total)
	return rangeInts(start, end-start)
}

func (l *deferredLoader) LoadInitial(ctx context.Context, params PositionalInitialParams, cb *PositionalInitialCallback[int]) {
	position := ComputeInitialLoadPosition(params, l.total)
	size := ComputeInitialLoadSize(params, position, l.total)
	if params.PlaceholdersEnabled {
		cb.OnResult(l.slice(position, size), position, l.total)
	} else {
		cb.OnResultUncounted(l.slice(position, size), position)
	}
}

func (l *deferredLoader) LoadRange(ctx context.Context, params PositionalRangeParams, cb *PositionalRangeCallback[int]) {
	l.mu.Lock()
	l.pending = append(l.pending, func() {
		cb.OnResult(l.slice(params.StartPosition, params.LoadSize))
	})
	l.mu.Unlock()
}

func (l *deferredLoader) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *deferredLoader) resolveAll() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, resolve := range pending {
		resolve()
	}
}

// keyedLoader serves a sorted int slice through the item-keyed contract.
type keyedLoader struct {
	items []int

	mu      sync.Mutex
	befores int
	afters  int
}

func (l *keyedLoader) Key(item int) int { return item }

func (l *keyedLoader) LoadInitial(ctx context.Context, params ItemKeyedInitialParams[int], cb *ItemKeyedInitialCallback[int]) {
	start := 0
	if params.RequestedInitialKey != nil {
		for start < len(l.items) && l.items[start] < *params.RequestedInitialKey {
			start++
		}
		start = max(0, start-params.RequestedLoadSize/2)
	}
	end := min(start+params.RequestedLoadSize, len(l.items))
	page := append([]int(nil), l.items[start:end]...)
	if params.PlaceholdersEnabled {
		cb.OnResult(page, start, len(l.items))
	} else {
		cb.OnResultUncounted(page)
	}
}

func (l *keyedLoader) LoadAfter(ctx context.Context, params ItemKeyedParams[int], cb *ItemKeyedCallback[int]) {
	l.mu.Lock()
	l.afters++
	l.mu.Unlock()
	var page []int
	for _, v := range l.items {
		if v > params.Key {
			page = append(page, v)
			if len(page) == params.RequestedLoadSize {
				break
			}
		}
	}
	cb.OnResult(page)
}

func (l *keyedLoader) LoadBefore(ctx context.Context, params ItemKeyedParams[int], cb *ItemKeyedCallback[int]) {
	l.mu.Lock()
	l.befores++
	l.mu.Unlock()
	var before []int
	for _, v := range l.items {
		if v < params.Key {
			before = append(before, v)
		}
	}
	start := max(0, len(before)-params.RequestedLoadSize)
	cb.OnResult(append([]int(nil), before[start:]...))
}

// tokenLoader serves fixed pages through the page-token contract, keyed by
// page number.
type tokenLoader struct {
	pages [][]int
}

func (l *tokenLoader) page(n int) (items []int, prev, next *int) {
	items = l.pages[n]
	if n > 0 {
		p := n - 1
		prev = &p
	}
	if n+1 < len(l.pages) {
		nx := n + 1
		next = &nx
	}
	return items, prev, next
}

func (l *tokenLoader) LoadInitial(ctx context.Context, params PageKeyedInitialParams, cb *PageKeyedInitialCallback[int, int]) {
	items, prev, next := l.page(0)
	cb.OnResultUncounted(items, prev, next)
}

func (l *tokenLoader) LoadAfter(ctx context.Context, params PageKeyedParams[int], cb *PageKeyedCallback[int, int]) {
	items, _, next := l.page(params.Key)
	cb.OnResult(items, next)
}

func (l *tokenLoader) LoadBefore(ctx context.Context, params PageKeyedParams[int], cb *PageKeyedCallback[int, int]) {
	items, prev, _ := l.page(params.Key)
	cb.OnResult(items, prev)
}

// recordingCallback captures change events in order.
type recordedEvent struct {
	op       string
	position int
	count    int
}

type recordingCallback struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingCallback) OnInserted(position, count int) { r.record("insert", position, count) }
func (r *recordingCallback) OnRemoved(position, count int)  { r.record("remove", position, count) }
func (r *recordingCallback) OnChanged(position, count int)  { r.record("change", position, count) }

func (r *recordingCallback) record(op string, position, count int) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{op, position, count})
	r.mu.Unlock()
}

func (r *recordingCallback) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

// newTestList builds a list with a shared manual executor for both notify
// and fetch, drained so the initial load has landed.
func newTestList[T any](t *testing.T, src Source[T], cfg Config, opts ...Option[T]) (PagedList[T], *manualExecutor) {
	t.Helper()
	exec := &manualExecutor{}
	opts = append(opts, WithNotifyExecutor[T](exec), WithFetchExecutor[T](exec))
	list, err := NewPagedList[T](src, cfg, opts...)
	if err != nil {
		t.Fatalf("NewPagedList failed: %v", err)
	}
	exec.Drain()
	return list, exec
}
