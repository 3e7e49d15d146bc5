package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/classvsoftware/t3api-utils/pkg/ratelimit"
)

// Prometheus metrics for collection loading.
var (
	t3PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_pages_fetched_total",
		Help: "Total number of collection pages fetched by strategy",
	}, []string{"strategy"})

	t3PageFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_page_fetch_errors_total",
		Help: "Total number of failed collection page fetches by strategy",
	}, []string{"strategy"})

	t3CollectionLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "t3_collection_load_duration_seconds",
		Help:    "Duration of full collection loads",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"strategy", "outcome"})
)

// Strategy selects how pages 2..N are scheduled.
type Strategy string

const (
	// StrategyPool drains a page queue with a fixed pool of workers.
	StrategyPool Strategy = "pool"

	// StrategyBatched starts one goroutine per page, optionally in batches.
	StrategyBatched Strategy = "batched"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the worker pool size for StrategyPool.
	MaxConcurrency int

	// RateLimit is the maximum number of page requests per second (0 = unlimited).
	// Ignored when Limiter is set.
	RateLimit float64

	// Limiter is an optional limiter shared with other loads.
	Limiter *ratelimit.Limiter

	// BatchSize bounds in-flight pages for StrategyBatched (0 = all at once).
	BatchSize int

	// Strategy used by Load (default: StrategyPool).
	Strategy Strategy

	// Label identifies the collection in logs, usually the endpoint path.
	Label string

	// OnProgress is called with the number of pages loaded so far.
	// Calls are serialized.
	OnProgress func(done, total int)
}

// DefaultConfig returns the default loader configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Strategy:       StrategyPool,
	}
}

// PageResult represents the result of fetching a single page
type PageResult[P any] struct {
	PageNumber int
	Data       P
	Error      error
}

// BatchFetcher handles parallel fetching of all pages of one collection
type BatchFetcher[P Page] struct {
	fetch  FetchFunc[P]
	config Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[P Page](fetch FetchFunc[P], config Config) *BatchFetcher[P] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.BatchSize < 0 {
		config.BatchSize = 0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyPool
	}

	return &BatchFetcher[P]{
		fetch:  fetch,
		config: config,
	}
}

// Load fetches all pages using the configured strategy.
func (bf *BatchFetcher[P]) Load(ctx context.Context) ([]P, error) {
	switch bf.config.Strategy {
	case StrategyBatched:
		return bf.FetchAllPagesBatched(ctx)
	case StrategyPool:
		return bf.FetchAllPages(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrConfiguration, bf.config.Strategy)
	}
}

// limiter returns the shared limiter or one private to this load.
func (bf *BatchFetcher[P]) limiter() *ratelimit.Limiter {
	if bf.config.Limiter != nil {
		return bf.config.Limiter
	}
	return ratelimit.New(bf.config.RateLimit)
}

// seed fetches page 1 and derives the page count from it.
func (bf *BatchFetcher[P]) seed(ctx context.Context) (P, int, error) {
	first, err := bf.fetch(ctx, 1)
	if err != nil {
		var zero P
		return zero, 0, &PageError{Page: 1, Err: err}
	}

	totalPages, err := PageCount(first)
	if err != nil {
		var zero P
		return zero, 0, err
	}

	return first, totalPages, nil
}

func (bf *BatchFetcher[P]) progress(done, total int) {
	if bf.config.OnProgress != nil {
		bf.config.OnProgress(done, total)
	}
}

// FetchAllPages fetches all pages in parallel using a worker pool.
// The result holds page i+1 at index i. Any failed page fails the load.
func (bf *BatchFetcher[P]) FetchAllPages(ctx context.Context) ([]P, error) {
	start := time.Now()
	strategy := string(StrategyPool)

	first, totalPages, err := bf.seed(ctx)
	if err != nil {
		t3CollectionLoadDuration.WithLabelValues(strategy, "error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	t3PagesFetchedTotal.WithLabelValues(strategy).Inc()

	// Single page optimization
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

	log.Info().
		Str("collection", bf.config.Label).
		Int("total_pages", totalPages).
		Int("workers", bf.config.MaxConcurrency).
		Float64("rate_limit", bf.config.RateLimit).
		Msg("Starting parallel page fetch")

	pages := make([]P, totalPages)
	pages[0] = first
	bf.progress(1, totalPages)

	limiter := bf.limiter()

	// Fill page queue (skip page 1, already fetched)
	pageQueue := make(chan int, totalPages-1)
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult[P], totalPages-1)

	// Closed by the first worker that sees a failure, before the collector
	// reads it, so no other worker starts a new page.
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, limiter, pageQueue, pageResults, stop, halt, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(pageResults)
	}()

	// Collect results
	fetchedPages := 1
	var firstErr error
	for result := range pageResults {
		if result.Error != nil {
			t3PageFetchErrorsTotal.WithLabelValues(strategy).Inc()
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}

		pages[result.PageNumber-1] = result.Data
		fetchedPages++
		t3PagesFetchedTotal.WithLabelValues(strategy).Inc()
		bf.progress(fetchedPages, totalPages)

		// Progress logging every 50 pages
		if fetchedPages%50 == 0 {
			log.Info().
				Int("fetched", fetchedPages).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetchedPages)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Str("collection", bf.config.Label).
			Int("fetched_pages", fetchedPages).
			Int("total_pages", totalPages).
			Msg("Collection load failed")
		t3CollectionLoadDuration.WithLabelValues(strategy, "error").Observe(time.Since(start).Seconds())
		return nil, firstErr
	}

	log.Info().
		Str("collection", bf.config.Label).
		Int("pages", fetchedPages).
		Dur("duration", time.Since(start)).
		Msg("Collection load complete")
	t3CollectionLoadDuration.WithLabelValues(strategy, "success").Observe(time.Since(start).Seconds())

	return pages, nil
}

// worker processes pages from the queue until it is drained or the load fails
func (bf *BatchFetcher[P]) worker(ctx context.Context, limiter *ratelimit.Limiter, pageQueue <-chan int, results chan<- PageResult[P], stop <-chan struct{}, halt func(), wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if stopped(stop) {
			break
		}

		result, ok := bf.fetchPage(ctx, limiter, pageNum, stop)
		if !ok {
			break
		}
		if result.Error != nil {
			halt()
		}
		results <- result
		pagesProcessed++
	}

	if stopped(stop) {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker stopping (load failed)")
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// fetchPage waits for the limiter and fetches a single page. It returns
// false without fetching when stop closes while waiting; a nil stop never
// closes.
func (bf *BatchFetcher[P]) fetchPage(ctx context.Context, limiter *ratelimit.Limiter, pageNum int, stop <-chan struct{}) (PageResult[P], bool) {
	if err := limiter.Wait(ctx); err != nil {
		return PageResult[P]{PageNumber: pageNum, Error: &PageError{Page: pageNum, Err: err}}, true
	}
	if stopped(stop) {
		return PageResult[P]{}, false
	}

	data, err := bf.fetch(ctx, pageNum)
	if err != nil {
		log.Warn().
			Err(err).
			Str("collection", bf.config.Label).
			Int("page", pageNum).
			Msg("Page fetch failed")
		return PageResult[P]{PageNumber: pageNum, Error: &PageError{Page: pageNum, Err: err}}, true
	}

	log.Debug().
		Str("collection", bf.config.Label).
		Int("page", pageNum).
		Msg("Loaded page")

	return PageResult[P]{PageNumber: pageNum, Data: data}, true
}
