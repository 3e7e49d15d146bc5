package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FetchAllPagesBatched fetches all pages with one goroutine per page.
//
// With BatchSize > 0 pages 2..N are split into consecutive batches and each
// batch completes before the next one starts, so at most BatchSize fetches
// are in flight. The result holds page i+1 at index i.
func (bf *BatchFetcher[P]) FetchAllPagesBatched(ctx context.Context) ([]P, error) {
	start := time.Now()
	strategy := string(StrategyBatched)

	first, totalPages, err := bf.seed(ctx)
	if err != nil {
		t3CollectionLoadDuration.WithLabelValues(strategy, "error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	t3PagesFetchedTotal.WithLabelValues(strategy).Inc()

	if totalPages <= 1 {
		bf.progress(1, 1)
		log.Info().
			Str("collection", bf.config.Label).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Collection load complete (single page)")
		t3CollectionLoadDuration.WithLabelValues(strategy, "success").Observe(time.Since(start).Seconds())
		return []P{first}, nil
	}

	chunks := batches(2, totalPages, bf.config.BatchSize)

	log.Info().
		Str("collection", bf.config.Label).
		Int("total_pages", totalPages).
		Int("batch_size", bf.config.BatchSize).
		Int("batches", len(chunks)).
		Float64("rate_limit", bf.config.RateLimit).
		Msg("Starting batched page fetch")

	pages := make([]P, totalPages)
	pages[0] = first
	bf.progress(1, totalPages)

	limiter := bf.limiter()
	fetchedPages := 1

	for i, chunk := range chunks {
		results := make(chan PageResult[P], len(chunk))

		var wg sync.WaitGroup
		for _, pageNum := range chunk {
			pageNum := pageNum
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, _ := bf.fetchPage(ctx, limiter, pageNum, nil)
				results <- result
			}()
		}

		go func() {
			wg.Wait()
			close(results)
		}()

		var batchErr error
		for result := range results {
			if result.Error != nil {
				t3PageFetchErrorsTotal.WithLabelValues(strategy).Inc()
				if batchErr == nil {
					batchErr = result.Error
				}
				continue
			}

			pages[result.PageNumber-1] = result.Data
			fetchedPages++
			t3PagesFetchedTotal.WithLabelValues(strategy).Inc()
			bf.progress(fetchedPages, totalPages)
		}

		if batchErr != nil {
			log.Warn().
				Err(batchErr).
				Str("collection", bf.config.Label).
				Int("batch", i+1).
				Int("fetched_pages", fetchedPages).
				Int("total_pages", totalPages).
				Msg("Collection load failed")
			t3CollectionLoadDuration.WithLabelValues(strategy, "error").Observe(time.Since(start).Seconds())
			return nil, batchErr
		}

		if len(chunks) > 1 {
			log.Debug().
				Str("collection", bf.config.Label).
				Int("batch", i+1).
				Int("batches", len(chunks)).
				Msg("Batch complete")
		}
	}

	log.Info().
		Str("collection", bf.config.Label).
		Int("pages", fetchedPages).
		Dur("duration", time.Since(start)).
		Msg("Collection load complete")
	t3CollectionLoadDuration.WithLabelValues(strategy, "success").Observe(time.Since(start).Seconds())

	return pages, nil
}

// batches partitions the page range [first, last] into consecutive chunks of
// at most size pages. A non-positive size yields a single chunk.
func batches(first, last, size int) [][]int {
	if last < first {
		return nil
	}

	n := last - first + 1
	if size <= 0 || size > n {
		size = n
	}

	out := make([][]int, 0, (n+size-1)/size)
	for lo := first; lo <= last; lo += size {
		hi := lo + size - 1
		if hi > last {
			hi = last
		}
		chunk := make([]int, 0, hi-lo+1)
		for p := lo; p <= hi; p++ {
			chunk = append(chunk, p)
		}
		out = append(out, chunk)
	}
	return out
}
