package paging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestInvalidateNotifiesExactlyOnce(t *testing.T) {
	src := NewPositionalSource[int](&intLoader{total: 10})

	var calls atomic.Int32
	src.OnInvalidated(func() { calls.Add(1) })

	src.Invalidate()
	src.Invalidate()
	src.Invalidate()

	waitUntil(t, time.Second, func() bool { return calls.Load() == 1 })
	time.Sleep(10 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("listener ran %d times, want 1", got)
	}
	if !src.IsInvalid() {
		t.Error("IsInvalid = false after Invalidate")
	}
}

func TestOnInvalidatedAfterTheFactFiresPromptly(t *testing.T) {
	src := NewItemKeyedSource[int, int](&keyedLoader{items: rangeInts(0, 10)})
	src.Invalidate()

	var calls atomic.Int32
	src.OnInvalidated(func() { calls.Add(1) })

	waitUntil(t, time.Second, func() bool { return calls.Load() == 1 })
}

func TestOnInvalidatedRemove(t *testing.T) {
	src := NewPageKeyedSource[int, int](&tokenLoader{pages: [][]int{rangeInts(0, 5)}})

	var calls atomic.Int32
	remove := src.OnInvalidated(func() { calls.Add(1) })
	remove()
	src.Invalidate()

	time.Sleep(10 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("removed listener ran %d times, want 0", got)
	}
}

// doubleResolvingLoader resolves its range callback twice; the second
// resolution must panic.
type doubleResolvingLoader struct {
	intLoader
	panicked chan any
}

func (l *doubleResolvingLoader) LoadRange(ctx context.Context, params PositionalRangeParams, cb *PositionalRangeCallback[int]) {
	cb.OnResult(l.slice(params.StartPosition, params.LoadSize))
	defer func() { l.panicked <- recover() }()
	cb.OnResult(nil)
}

func TestDoubleResolvePanics(t *testing.T) {
	loader := &doubleResolvingLoader{
		intLoader: intLoader{total: 100},
		panicked:  make(chan any, 1),
	}
	src := NewPositionalSource[int](loader)
	list, exec := newTestList[int](t, src,
		Config{PageSize: 10, PrefetchDistance: 10, InitialLoadSizeHint: 10})

	list.LoadAround(9)
	exec.Drain()

	select {
	case r := <-loader.panicked:
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDoubleCallback) {
			t.Errorf("panic = %v, want ErrDoubleCallback", r)
		}
	default:
		t.Fatal("second resolution did not panic")
	}
}

func TestUncountedResultPanicsWithPlaceholders(t *testing.T) {
	cb := &PositionalInitialCallback[int]{placeholdersEnabled: true}
	defer func() {
		if recover() == nil {
			t.Fatal("OnResultUncounted with placeholders enabled did not panic")
		}
	}()
	cb.OnResultUncounted(rangeInts(0, 5), 0)
}

func TestComputeInitialLoadPosition(t *testing.T) {
	params := PositionalInitialParams{
		RequestedStartPosition: 53,
		RequestedLoadSize:      20,
		PageSize:               10,
	}
	if got := ComputeInitialLoadPosition(params, 100); got != 50 {
		t.Errorf("position = %d, want 50 (page aligned)", got)
	}

	// Near the end the window shifts back to stay filled.
	params.RequestedStartPosition = 95
	if got := ComputeInitialLoadPosition(params, 100); got != 80 {
		t.Errorf("position = %d, want 80", got)
	}

	// Tiny data sets clamp to zero.
	params.RequestedStartPosition = 5
	if got := ComputeInitialLoadPosition(params, 8); got != 0 {
		t.Errorf("position = %d, want 0", got)
	}
}

func TestComputeInitialLoadSize(t *testing.T) {
	params := PositionalInitialParams{RequestedLoadSize: 20, PageSize: 10}
	if got := ComputeInitialLoadSize(params, 90, 100); got != 10 {
		t.Errorf("size = %d, want 10 (clipped at end)", got)
	}
	if got := ComputeInitialLoadSize(params, 0, 100); got != 20 {
		t.Errorf("size = %d, want 20", got)
	}
}

func TestSerialExecutorDefersNestedSubmission(t *testing.T) {
	exec := NewSerialExecutor()
	var order []int
	done := make(chan struct{})

	exec.Execute(func() {
		exec.Execute(func() {
			order = append(order, 2)
			close(done)
		})
		// The nested task must not have run yet.
		order = append(order, 1)
	})

	<-done
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
}
