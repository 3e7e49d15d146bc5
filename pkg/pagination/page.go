package pagination

import (
	"context"
	"errors"
	"fmt"
)

// Configuration errors, raised before any concurrent work starts.
var (
	// ErrConfiguration is the parent of every loader configuration error.
	ErrConfiguration = errors.New("pagination configuration error")

	// ErrMissingTotal is returned when the first page does not report a total.
	ErrMissingTotal = fmt.Errorf("%w: first page does not report a total record count", ErrConfiguration)

	// ErrMissingPageSize is returned when no positive page size can be resolved.
	ErrMissingPageSize = fmt.Errorf("%w: unable to determine page size from first page", ErrConfiguration)
)

// FetchFunc fetches one page of a collection. Pages are 1-based.
// All fixed request parameters (license, filters, sort, page size) are bound
// by the caller. It must be safe to call concurrently.
type FetchFunc[P any] func(ctx context.Context, page int) (P, error)

// Page is a single page response.
type Page interface {
	// TotalCount returns the total number of records across all pages.
	TotalCount() (int, bool)
}

// PageSizer is implemented by pages that report the server page size.
type PageSizer interface {
	PageSizeValue() (int, bool)
}

// Lengther is the fallback used when a page does not report its page size.
type Lengther interface {
	Len() int
}

// HasItems is implemented by pages carrying a list of records.
type HasItems[T any] interface {
	Items() []T
}

// Collection is a page that can be both counted and flattened.
type Collection[T any] interface {
	Page
	HasItems[T]
}

// ResolvePageSize determines the page size of p.
// An explicit positive PageSizeValue wins, then a positive Len.
func ResolvePageSize(p any) (int, error) {
	if ps, ok := p.(PageSizer); ok {
		if n, ok := ps.PageSizeValue(); ok && n > 0 {
			return n, nil
		}
	}
	if l, ok := p.(Lengther); ok {
		if n := l.Len(); n > 0 {
			return n, nil
		}
	}
	return 0, ErrMissingPageSize
}

// PageCount returns ceil(total / page size) for the first page of a collection.
func PageCount(first Page) (int, error) {
	total, ok := first.TotalCount()
	if !ok {
		return 0, ErrMissingTotal
	}
	if total < 0 {
		return 0, fmt.Errorf("%w: negative total %d", ErrConfiguration, total)
	}

	pageSize, err := ResolvePageSize(first)
	if err != nil {
		return 0, err
	}

	return (total + pageSize - 1) / pageSize, nil
}

// PageError reports the page whose fetch failed.
type PageError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}
