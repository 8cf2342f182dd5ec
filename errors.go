// Package paging provides an incremental, position-addressable list-loading
// engine: a virtually unbounded, lazily-populated ordered collection backed by
// an external data source, fetching additional ranges only as a consumer
// accesses positions near the loaded boundary.
package paging

import "errors"

// Configuration errors
var (
	// ErrInvalidConfig indicates that a Config failed validation.
	ErrInvalidConfig = errors.New("invalid paging config")
)

// Position errors
var (
	// ErrIndexOutOfBounds indicates that an index is outside [0, Size()).
	// This is a caller bug; it is raised as a panic value.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// Tiling errors
var (
	// ErrInvalidTiling indicates that a loaded page is inconsistent with the
	// uniform tile layout expected by the page table.
	ErrInvalidTiling = errors.New("page size inconsistent with tile layout")

	// ErrPageAlreadyLoaded indicates that a tile insert targeted a tile that
	// already holds loaded data.
	ErrPageAlreadyLoaded = errors.New("page already loaded")
)

// Load protocol errors
var (
	// ErrDoubleCallback indicates that a data source resolved a single load
	// request more than once. This is a provider bug; it is raised as a
	// panic value.
	ErrDoubleCallback = errors.New("load callback resolved twice")
)

// Differ errors
var (
	// ErrIncompatibleLists indicates that the differ was given a contiguous
	// list to replace a tiled one, or the reverse.
	ErrIncompatibleLists = errors.New("incompatible list kinds")

	// ErrInvalidSnapshot indicates that a diff was requested against a
	// snapshot that does not correspond to the list's history.
	ErrInvalidSnapshot = errors.New("snapshot does not match list history")
)
