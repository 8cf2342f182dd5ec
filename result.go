package paging

import "sync"

// loadKind identifies which kind of load produced a page result.
type loadKind int

const (
	loadInit loadKind = iota
	loadPrepend
	loadAppend
	loadTile
)

// String returns a short name for the load kind, used in logs and metrics.
func (k loadKind) String() string {
	switch k {
	case loadInit:
		return "init"
	case loadPrepend:
		return "prepend"
	case loadAppend:
		return "append"
	case loadTile:
		return "tile"
	default:
		return "unknown"
	}
}

// pageResult is the envelope passed from a data source back into a list
// controller: the loaded items plus the placeholder accounting needed to
// position them.
type pageResult[T any] struct {
	kind loadKind
	page []T

	// leadingNulls and trailingNulls count the unloaded items surrounding
	// the page, known only for counted initial loads.
	leadingNulls  int
	trailingNulls int

	// positionOffset is the absolute position of the first item when the
	// surrounding counts are unknown, and the tile start for tile loads.
	positionOffset int

	// invalid marks a result from a source that was invalidated before or
	// while the load ran; the receiving list detaches instead of applying it.
	invalid bool
}

// resultReceiver consumes page results on the notify executor.
type resultReceiver[T any] interface {
	onPageResult(res pageResult[T])
}

// callbackState is the shared core of every load callback: it enforces the
// resolve-exactly-once contract, short-circuits resolution on an invalidated
// source, and posts the result to the receiving list's notify executor.
type callbackState[T any] struct {
	mu       sync.Mutex
	resolved bool

	src    interface{ IsInvalid() bool }
	kind   loadKind
	notify Executor
	rcv    resultReceiver[T]
}

// deliver resolves the callback with res. A second resolution panics with
// ErrDoubleCallback.
func (s *callbackState[T]) deliver(res pageResult[T]) {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		panic(ErrDoubleCallback)
	}
	s.resolved = true
	s.mu.Unlock()

	if s.src != nil && s.src.IsInvalid() {
		res = pageResult[T]{kind: res.kind, invalid: true}
	}
	rcv := s.rcv
	s.notify.Execute(func() {
		rcv.onPageResult(res)
	})
}

// deliverInvalid resolves the callback with an invalid result, detaching the
// receiving list. Providers use this for unrecoverable load failures.
func (s *callbackState[T]) deliverInvalid() {
	s.deliver(pageResult[T]{kind: s.kind, invalid: true})
}
