package pagination

import "context"

// Flatten concatenates the items of every page in page order.
func Flatten[T any, P HasItems[T]](pages []P) []T {
	n := 0
	for _, p := range pages {
		n += len(p.Items())
	}

	out := make([]T, 0, n)
	for _, p := range pages {
		out = append(out, p.Items()...)
	}
	return out
}

// LoadAll loads every page of a collection and returns the flattened records.
func LoadAll[T any, P Collection[T]](ctx context.Context, fetch FetchFunc[P], config Config) ([]T, error) {
	pages, err := NewBatchFetcher(fetch, config).Load(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten[T](pages), nil
}
