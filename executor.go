package paging

import "sync"

// Executor runs tasks submitted to it. The engine uses two executors per
// list: a notify executor that serializes all structural mutation and change
// notification, and a fetch executor that runs data-source loads.
//
// Submitting a task must never run it synchronously within Execute when a
// task is already running on the same executor; this is what guarantees that
// a callback is never invoked reentrantly from within the call that produced
// its triggering condition.
type Executor interface {
	Execute(task func())
}

// serialExecutor runs tasks one at a time, in submission order, on whichever
// goroutine first finds the queue idle. A task submitted while another is
// running is queued and picked up by the current drainer, so submission from
// within a task always defers.
type serialExecutor struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// NewSerialExecutor returns an executor that runs tasks sequentially and
// never reentrantly. It is the default notify executor.
func NewSerialExecutor() Executor {
	return &serialExecutor{}
}

func (e *serialExecutor) Execute(task func()) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		t := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		t()
		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

// goExecutor runs each task on its own goroutine. It is the default fetch
// executor.
type goExecutor struct{}

// NewGoroutineExecutor returns an executor that runs every task on a new
// goroutine.
func NewGoroutineExecutor() Executor {
	return goExecutor{}
}

func (goExecutor) Execute(task func()) {
	go task()
}
