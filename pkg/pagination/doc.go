// Package pagination provides parallel loading of paginated T3 API collections.
//
// T3 collection endpoints report the total number of records and the page size
// in every page response. This package fetches the first page to discover how
// many pages exist, fetches the remaining pages concurrently under a shared
// rate limit, and reassembles the results in page order.
//
// Example usage:
//
//	fetch := apiClient.CollectionFetcher("/v2/packages/active", query)
//	fetcher := pagination.NewBatchFetcher(fetch, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx)
//	records := pagination.Flatten[client.Record](pages)
//
// The batch fetcher:
//   - Fetches page 1 synchronously, without rate limiting
//   - Computes the page count as ceil(total / page size) from page 1 only
//   - Dispatches pages 2..N through a worker pool (FetchAllPages) or one
//     goroutine per page, optionally in fixed-size batches (FetchAllPagesBatched)
//   - Writes each page into its own slot so the result is in page order
//     regardless of completion order
//   - Fails the whole load if any page fails; partial results are never returned
package pagination
