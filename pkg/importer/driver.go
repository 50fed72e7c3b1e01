package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pubops/admanager-site-export/pkg/planner"
)

// maxConcurrent caps in-flight fetches per session. Fixed design constant.
const maxConcurrent = 30

// Prometheus metrics for import sessions.
var (
	importPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_import_pages_fetched_total",
		Help: "Total pages fetched across import sessions",
	})

	importRecordsRetrievedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_import_records_retrieved_total",
		Help: "Total records retrieved across import sessions",
	})

	importFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gam_import_failures_total",
		Help: "Total import sessions aborted by a fetch or sink failure",
	})
)

// FetchFunc fetches one page and returns its mapped display rows.
type FetchFunc func(ctx context.Context, page planner.Page) ([][]string, error)

// Config holds driver configuration.
type Config struct {
	// FetchTimeout bounds a single page fetch.
	FetchTimeout time.Duration
}

// DefaultConfig returns safe driver defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 15 * time.Second,
	}
}

// Driver consumes a planned page sequence with bounded concurrency.
type Driver struct {
	config Config
	logger zerolog.Logger
}

// NewDriver creates a batch fetch driver.
func NewDriver(config Config) *Driver {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Driver{
		config: config,
		logger: log.With().Str("component", "import-driver").Logger(),
	}
}

// pageResult carries one page's outcome from a worker to the collector.
type pageResult struct {
	page planner.Page
	rows [][]string
	err  error
}

// Run fetches every page with at most maxConcurrent in-flight fetches and
// writes each page's rows at the page's own offset, so late-arriving pages
// land at the correct destination rows regardless of completion order.
//
// Pages are dispatched FIFO in the planner's offset order. The first fetch
// or sink failure aborts the whole session: no further pages are scheduled,
// already-dispatched fetches complete silently and their results are
// discarded, and the failure is returned for the coordinator's cancel
// transition. No page is ever fetched twice.
func (d *Driver) Run(ctx context.Context, sess *Session, pages []planner.Page, fetch FetchFunc, sink Sink) error {
	if len(pages) == 0 {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan planner.Page, len(pages))
	for _, page := range pages {
		queue <- page
	}
	close(queue)

	results := make(chan pageResult, len(pages))

	workers := maxConcurrent
	if len(pages) < workers {
		workers = len(pages)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go d.worker(ctx, sess, queue, results, fetch, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		if firstErr != nil {
			// Late success after the abort; discard silently
			continue
		}

		if err := sink.WriteRows(ctx, sess.Destination, result.rows, result.page.Offset); err != nil {
			firstErr = fmt.Errorf("sink write at offset %d: %w", result.page.Offset, err)
			cancel()
			continue
		}

		importPagesFetchedTotal.Inc()
		importRecordsRetrievedTotal.Add(float64(len(result.rows)))

		retrieved := sess.AddRetrieved(len(result.rows))
		if retrieved >= sess.TotalResults {
			d.logger.Info().
				Str("session_id", sess.ID).
				Int("retrieved", retrieved).
				Int("pages", len(pages)).
				Dur("duration", time.Since(start)).
				Msg("All pages loaded")
		}
	}

	if firstErr != nil {
		importFailuresTotal.Inc()
		d.logger.Warn().
			Err(firstErr).
			Str("session_id", sess.ID).
			Int("retrieved", sess.Retrieved()).
			Int("total", sess.TotalResults).
			Msg("Import aborted")
		return firstErr
	}
	return nil
}

// worker fetches pages from the queue until the queue drains, the context is
// cancelled, or a fetch fails.
func (d *Driver) worker(ctx context.Context, sess *Session, queue <-chan planner.Page, results chan<- pageResult, fetch FetchFunc, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for page := range queue {
		select {
		case <-ctx.Done():
			d.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		sess.IncInFlight()
		fetchCtx, cancel := context.WithTimeout(ctx, d.config.FetchTimeout)
		rows, err := fetch(fetchCtx, page)
		cancel()
		sess.DecInFlight()

		if err != nil {
			// Results channel is buffered for every page; this never blocks
			results <- pageResult{page: page, err: fmt.Errorf("page offset %d: %w", page.Offset, err)}
			return
		}

		results <- pageResult{page: page, rows: rows}
	}
}
