package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/frasker/paging"
)

// record is the synthetic item served by the demo loader.
type record struct {
	ID    uuid.UUID
	Seq   int
	Title string
}

// syntheticLoader serves a fixed number of generated records with simulated
// latency, counting the requests it sees.
type syntheticLoader struct {
	total   int
	latency time.Duration
	loads   atomic.Int64
}

func newSyntheticLoader(total int, latency time.Duration) *syntheticLoader {
	return &syntheticLoader{total: total, latency: latency}
}

func (l *syntheticLoader) make(n int) record {
	return record{
		ID:    uuid.New(),
		Seq:   n,
		Title: fmt.Sprintf("record %06d", n),
	}
}

func (l *syntheticLoader) slice(start, count int) []record {
	start = max(0, min(start, l.total))
	end := min(start+count, l.total)
	items := make([]record, 0, end-start)
	for n := start; n < end; n++ {
		items = append(items, l.make(n))
	}
	return items
}

func (l *syntheticLoader) LoadInitial(ctx context.Context, params paging.PositionalInitialParams, cb *paging.PositionalInitialCallback[record]) {
	l.loads.Add(1)
	time.Sleep(l.latency)
	position := paging.ComputeInitialLoadPosition(params, l.total)
	size := paging.ComputeInitialLoadSize(params, position, l.total)
	cb.OnResult(l.slice(position, size), position, l.total)
}

func (l *syntheticLoader) LoadRange(ctx context.Context, params paging.PositionalRangeParams, cb *paging.PositionalRangeCallback[record]) {
	l.loads.Add(1)
	time.Sleep(l.latency)
	cb.OnResult(l.slice(params.StartPosition, params.LoadSize))
}
