// Package sqlsource loads paged data from a SQL table through GORM.
//
// A Loader is a position-keyed loader over one model type with a stable sort
// order, so it works both as a tiled source (placeholders enabled, counted)
// and as a contiguous one. Offsets are only stable while the underlying
// table is; callers should invalidate the source on writes and build a
// replacement list, typically through a Factory.
package sqlsource

import (
	"context"

	"gorm.io/gorm"

	"github.com/frasker/paging"
)

// Scope narrows the query a Loader runs, in the usual GORM scope style.
type Scope func(*gorm.DB) *gorm.DB

// Loader implements paging.PositionalLoader against a GORM-mapped table.
type Loader[T any] struct {
	db      *gorm.DB
	orderBy string
	scopes  []Scope
}

// NewLoader builds a loader over db ordered by the given clause. orderBy
// must produce a total, stable order (include a unique column) or pages will
// overlap. Scopes are applied to every query, counts included.
func NewLoader[T any](db *gorm.DB, orderBy string, scopes ...Scope) *Loader[T] {
	return &Loader[T]{db: db, orderBy: orderBy, scopes: scopes}
}

func (l *Loader[T]) query(ctx context.Context) *gorm.DB {
	q := l.db.WithContext(ctx).Model(new(T))
	for _, s := range l.scopes {
		q = s(q)
	}
	return q
}

// LoadInitial implements paging.PositionalLoader: one COUNT plus one
// page-aligned SELECT. Query errors resolve the load as invalid.
func (l *Loader[T]) LoadInitial(ctx context.Context, params paging.PositionalInitialParams, cb *paging.PositionalInitialCallback[T]) {
	var total int64
	if err := l.query(ctx).Count(&total).Error; err != nil {
		cb.OnInvalidResult()
		return
	}

	position := paging.ComputeInitialLoadPosition(params, int(total))
	size := paging.ComputeInitialLoadSize(params, position, int(total))

	items := make([]T, 0, max(size, 0))
	if size > 0 {
		err := l.query(ctx).Order(l.orderBy).Offset(position).Limit(size).Find(&items).Error
		if err != nil {
			cb.OnInvalidResult()
			return
		}
	}
	cb.OnResult(items, position, int(total))
}

// LoadRange implements paging.PositionalLoader.
func (l *Loader[T]) LoadRange(ctx context.Context, params paging.PositionalRangeParams, cb *paging.PositionalRangeCallback[T]) {
	items := make([]T, 0, params.LoadSize)
	err := l.query(ctx).Order(l.orderBy).Offset(params.StartPosition).Limit(params.LoadSize).Find(&items).Error
	if err != nil {
		cb.OnInvalidResult()
		return
	}
	cb.OnResult(items)
}

// Factory builds a fresh positional source per list generation.
type Factory[T any] struct {
	db      *gorm.DB
	orderBy string
	scopes  []Scope
}

// NewFactory builds a paging.SourceFactory over db; see NewLoader for the
// orderBy contract.
func NewFactory[T any](db *gorm.DB, orderBy string, scopes ...Scope) *Factory[T] {
	return &Factory[T]{db: db, orderBy: orderBy, scopes: scopes}
}

// Create implements paging.SourceFactory.
func (f *Factory[T]) Create() paging.Source[T] {
	return paging.NewPositionalSource[T](NewLoader[T](f.db, f.orderBy, f.scopes...))
}
