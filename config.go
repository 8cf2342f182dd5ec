package paging

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// MaxSizeUnbounded disables memory-bounded trimming.
const MaxSizeUnbounded = math.MaxInt

var validate = validator.New()

// Config describes the load shape of a paged list: how much data is fetched
// per request, how far ahead of the consumer's position loading runs, and the
// ceiling after which distant pages are dropped.
//
// A Config is immutable once handed to NewPagedList; it is validated there and
// rejected with ErrInvalidConfig if inconsistent.
type Config struct {
	// PageSize is the number of items loaded per request. Must be positive.
	PageSize int `validate:"required,min=1"`

	// PrefetchDistance is how many items ahead of the last accessed position
	// are loaded, in each direction.
	PrefetchDistance int `validate:"min=0"`

	// EnablePlaceholders reports unloaded positions as placeholders instead
	// of hiding them. Requires a data source that can count its items for
	// tiled loading to be available.
	EnablePlaceholders bool

	// InitialLoadSizeHint is the target size of the first load. Must be at
	// least PageSize. Zero selects the default of 3*PageSize.
	InitialLoadSizeHint int `validate:"min=0"`

	// MaxSize bounds the number of loaded items kept in memory, or
	// MaxSizeUnbounded to disable trimming. When bounded it must be at least
	// PageSize + 2*PrefetchDistance so a trim can never touch the prefetch
	// window around the last accessed position. Zero selects unbounded.
	MaxSize int `validate:"min=0"`
}

// DefaultConfig returns a Config for the given page size with defaults
// applied: prefetch one page, initial load of three pages, no size bound.
func DefaultConfig(pageSize int) Config {
	return Config{
		PageSize:            pageSize,
		PrefetchDistance:    pageSize,
		InitialLoadSizeHint: 3 * pageSize,
		MaxSize:             MaxSizeUnbounded,
	}
}

// withDefaults fills zero-valued optional fields.
func (c Config) withDefaults() Config {
	if c.InitialLoadSizeHint == 0 {
		c.InitialLoadSizeHint = 3 * c.PageSize
	}
	if c.MaxSize == 0 {
		c.MaxSize = MaxSizeUnbounded
	}
	return c
}

// Validate checks the Config for internal consistency. All errors wrap
// ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.InitialLoadSizeHint < c.PageSize {
		return fmt.Errorf("%w: initial load size hint %d below page size %d",
			ErrInvalidConfig, c.InitialLoadSizeHint, c.PageSize)
	}
	if c.MaxSize != MaxSizeUnbounded && c.MaxSize < c.PageSize+2*c.PrefetchDistance {
		return fmt.Errorf("%w: max size %d below page size + 2*prefetch distance (%d)",
			ErrInvalidConfig, c.MaxSize, c.PageSize+2*c.PrefetchDistance)
	}
	return nil
}
