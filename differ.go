package paging

import (
	"errors"
	"log/slog"
	"sync"
)

// Differ presents a stable stream of change events across list generations.
// When a source is invalidated and a replacement list is built, submitting
// the new list produces one coherent transition: a structural diff against
// the outgoing content, a replay of anything the new list loaded while the
// diff was pending, and a relatch of the reader's position so loading
// resumes where they left off.
//
// The differ and every list submitted to it must share one notify executor;
// that executor serializes list mutation against generation swaps.
type Differ[T any] struct {
	mu          sync.Mutex
	notify      Executor
	cb          ChangeCallback
	log         *slog.Logger
	onCommitted func(list PagedList[T])

	current    PagedList[T]
	removeCB   func()
	generation int
}

// DifferOption configures a Differ.
type DifferOption[T any] func(*Differ[T])

// WithCommitCallback runs fn on the notify executor each time a submitted
// list becomes current.
func WithCommitCallback[T any](fn func(list PagedList[T])) DifferOption[T] {
	return func(d *Differ[T]) { d.onCommitted = fn }
}

// WithDifferLogger attaches a structured logger to the differ.
func WithDifferLogger[T any](logger *slog.Logger) DifferOption[T] {
	return func(d *Differ[T]) { d.log = logger }
}

// NewDiffer builds a differ that reports change events to cb on notify.
func NewDiffer[T any](notify Executor, cb ChangeCallback, opts ...DifferOption[T]) *Differ[T] {
	d := &Differ[T]{
		notify: notify,
		cb:     cb,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Current returns the list most recently committed, or nil before the first
// submission completes.
func (d *Differ[T]) Current() PagedList[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SubmitList stages list as the next generation. The swap happens
// asynchronously on the notify executor once the list's initial load has
// landed; a submission superseded by a newer one is abandoned without
// emitting events. Submitting nil clears the current list. Submitting the
// current list again is a no-op.
//
// The staged list must match the current one's loading mode; mixing a tiled
// list with a contiguous one fails with ErrIncompatibleLists.
func (d *Differ[T]) SubmitList(list PagedList[T]) error {
	d.mu.Lock()
	if list != nil && d.current == list {
		d.mu.Unlock()
		return nil
	}
	if list != nil && d.current != nil && list.isContiguous() != d.current.isContiguous() {
		d.mu.Unlock()
		return ErrIncompatibleLists
	}
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	if list == nil {
		d.notify.Execute(func() { d.clear(gen) })
		return nil
	}

	list.onAttached(func() { d.latch(gen, list) })
	return nil
}

// clear detaches and removes the current list. Runs on the notify executor.
func (d *Differ[T]) clear(gen int) {
	d.mu.Lock()
	if d.generation != gen {
		d.mu.Unlock()
		return
	}
	old := d.current
	remove := d.removeCB
	d.current = nil
	d.removeCB = nil
	d.mu.Unlock()

	if old == nil {
		return
	}
	remove()
	old.Detach()
	if size := old.Size(); size > 0 {
		d.cb.OnRemoved(0, size)
	}
	if d.onCommitted != nil {
		d.onCommitted(nil)
	}
}

// latch makes list current: structural diff against the outgoing list,
// replay of concurrent loads, then position relatch. Runs on the notify
// executor, so no list mutation interleaves with it.
func (d *Differ[T]) latch(gen int, list PagedList[T]) {
	d.mu.Lock()
	if d.generation != gen {
		d.mu.Unlock()
		return
	}
	old := d.current
	removeOld := d.removeCB
	d.mu.Unlock()

	if list.IsDetached() {
		// The staged list died before attaching; keep the current one.
		d.log.Debug("staged list detached before latch")
		return
	}

	newSnap := list.Snapshot()
	newSize := newSnap.Size()

	relatchIndex := -1
	if old != nil {
		removeOld()
		old.Detach()
		oldSize := old.Size()
		if idx := old.lastLoadIndex(); idx >= 0 {
			relatchIndex = idx
		}

		// Structural diff: content with no identity information, so the
		// overlap is reported changed and the size delta inserted or
		// removed.
		overlap := min(oldSize, newSize)
		if overlap > 0 {
			d.cb.OnChanged(0, overlap)
		}
		switch {
		case newSize > oldSize:
			d.cb.OnInserted(oldSize, newSize-oldSize)
		case oldSize > newSize:
			d.cb.OnRemoved(newSize, oldSize-newSize)
		}
	} else if newSize > 0 {
		d.cb.OnInserted(0, newSize)
	}

	remove := list.AddCallback(d.cb)
	d.mu.Lock()
	d.current = list
	d.removeCB = remove
	d.mu.Unlock()

	// Replay whatever the new list loaded between the snapshot above and
	// the callback registration.
	if err := list.dispatchUpdatesSince(newSnap, d.cb); err != nil {
		if !errors.Is(err, ErrInvalidSnapshot) {
			d.log.Warn("replaying updates failed", slog.Any("error", err))
		}
		// Content moved underneath the snapshot; refresh the whole range.
		if size := list.Size(); size > 0 {
			d.cb.OnChanged(0, size)
		}
	}

	if relatchIndex >= 0 && !list.IsDetached() {
		if size := list.Size(); size > 0 {
			list.LoadAround(min(relatchIndex, size-1))
		}
	}

	if d.onCommitted != nil {
		d.onCommitted(list)
	}
}
