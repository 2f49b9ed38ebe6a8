package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize         = 50
	DefaultRateLimit         = 500 * time.Millisecond
	DefaultDurationTolerance = 5 // seconds

	// SyncWorkName is the unique name sync batches are scheduled under.
	SyncWorkName = "catalog_sync"

	// itemTimeout bounds one search and mapping write, which outlive batch cancellation.
	itemTimeout = 30 * time.Second
)

// SongStore is the sync worker's view of imported tracks.
type SongStore interface {
	PullUnresolvedBatch(ctx context.Context, limit int) ([]models.SyncBatchItem, error)
	CountUnresolved(ctx context.Context) (int, error)
	WriteMapping(ctx context.Context, externalID, internalID string) error
}

// SyncResult summarizes one batch.
type SyncResult struct {
	Resolved  int
	Failed    int
	Total     int
	Remaining int
	Result    Result
}

// SyncWorker matches imported tracks to internal catalog ids, one batch per run.
//
// Remaining work is chained by enqueueing another run; infrastructure failures ask the
// scheduler for a retry. Item-level failures are counted and left for a later batch.
type SyncWorker struct {
	store     SongStore
	catalog   services.CatalogService
	batchSize int
	interval  time.Duration
	tolerance int
	enqueue   func() bool
	logger    *log.Logger
}

// SyncOption configures a [SyncWorker].
type SyncOption func(*SyncWorker)

// WithBatchSize caps how many tracks one run pulls.
func WithBatchSize(n int) SyncOption {
	return func(w *SyncWorker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithRateLimit sets the minimum gap between catalog searches. Zero disables it.
func WithRateLimit(d time.Duration) SyncOption {
	return func(w *SyncWorker) { w.interval = d }
}

// WithDurationTolerance sets how many seconds a candidate may differ from the imported duration.
func WithDurationTolerance(sec int) SyncOption {
	return func(w *SyncWorker) { w.tolerance = sec }
}

// WithReenqueue sets the hook called when unresolved tracks remain after a batch.
func WithReenqueue(fn func() bool) SyncOption {
	return func(w *SyncWorker) { w.enqueue = fn }
}

// WithSyncLogger sets the worker's logger.
func WithSyncLogger(l *log.Logger) SyncOption {
	return func(w *SyncWorker) { w.logger = l }
}

// NewSyncWorker creates a worker with a 50-track batch, 500ms search spacing and ±5s tolerance.
func NewSyncWorker(store SongStore, catalog services.CatalogService, opts ...SyncOption) *SyncWorker {
	w := &SyncWorker{
		store:     store,
		catalog:   catalog,
		batchSize: DefaultBatchSize,
		interval:  DefaultRateLimit,
		tolerance: DefaultDurationTolerance,
		logger:    shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes one batch of unresolved tracks.
//
// Cancellation is checked between items; the item in progress completes first, within
// itemTimeout. Searches start at least the rate limit interval apart.
func (w *SyncWorker) Run(ctx context.Context, progress chan<- ProgressUpdate) (SyncResult, error) {
	batch, err := w.store.PullUnresolvedBatch(ctx, w.batchSize)
	if err != nil {
		metrics.SyncBatchesTotal.WithLabelValues(ResultRetry.String()).Inc()
		return SyncResult{Result: ResultRetry}, fmt.Errorf("%w: failed to pull unresolved batch: %v", shared.ErrServiceUnavailable, err)
	}
	if len(batch) == 0 {
		w.logger.Info("nothing to sync")
		metrics.SyncRemaining.Set(0)
		metrics.SyncBatchesTotal.WithLabelValues(ResultSuccess.String()).Inc()
		return SyncResult{Result: ResultSuccess}, nil
	}

	res := SyncResult{Total: len(batch)}
	sendProgress(progress, pullBatchUpdate(len(batch)))

	limiter := rate.NewLimiter(rate.Every(w.interval), 1)
	for _, item := range batch {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), itemTimeout)
		err := w.syncItem(itemCtx, item)
		cancel()
		if err != nil {
			res.Failed++
			metrics.SyncItemsTotal.WithLabelValues("failed").Inc()
			w.logger.Warn("track not synced", "external_id", item.ExternalID, "title", item.Title, "error", err)
		} else {
			res.Resolved++
			metrics.SyncItemsTotal.WithLabelValues("resolved").Inc()
		}

		sendProgress(progress, matchUpdate(SyncProgress{
			Resolved: res.Resolved,
			Failed:   res.Failed,
			Total:    res.Total,
			Current:  item.Title,
		}))
	}

	if err := ctx.Err(); err != nil {
		res.Result = ResultFailure
		metrics.SyncBatchesTotal.WithLabelValues(ResultFailure.String()).Inc()
		return res, err
	}

	remaining, err := w.store.CountUnresolved(ctx)
	if err != nil {
		res.Result = ResultRetry
		metrics.SyncBatchesTotal.WithLabelValues(ResultRetry.String()).Inc()
		return res, fmt.Errorf("%w: failed to count unresolved tracks: %v", shared.ErrServiceUnavailable, err)
	}
	res.Remaining = remaining
	metrics.SyncRemaining.Set(float64(remaining))

	if remaining > 0 && w.enqueue != nil {
		w.enqueue()
		sendProgress(progress, reenqueueUpdate(remaining))
	}

	w.logger.Info("sync batch finished", "resolved", res.Resolved, "failed", res.Failed, "remaining", remaining)
	res.Result = ResultSuccess
	metrics.SyncBatchesTotal.WithLabelValues(ResultSuccess.String()).Inc()
	return res, nil
}

// Job adapts Run to the scheduler, logging the batch outcome.
func (w *SyncWorker) Job(progress chan<- ProgressUpdate) Job {
	return func(ctx context.Context) Result {
		res, err := w.Run(ctx, progress)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("sync batch failed", "result", res.Result, "error", err)
		}
		return res.Result
	}
}

func (w *SyncWorker) syncItem(ctx context.Context, item models.SyncBatchItem) error {
	match, err := w.Match(ctx, item)
	if err != nil {
		return err
	}
	if err := w.store.WriteMapping(ctx, item.ExternalID, match.ID); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	w.logger.Debug("track synced", "external_id", item.ExternalID, "internal_id", match.ID)
	return nil
}

// Match searches the catalog for item and picks a candidate.
//
// The first candidate within the duration tolerance wins; otherwise the first candidate.
func (w *SyncWorker) Match(ctx context.Context, item models.SyncBatchItem) (*models.CatalogItem, error) {
	candidates, err := w.catalog.Search(ctx, fmt.Sprintf("%s %s", item.Title, item.Artist))
	if err != nil {
		return nil, fmt.Errorf("%w: catalog search failed: %v", shared.ErrAPIRequest, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s - %s", shared.ErrNoMatch, item.Artist, item.Title)
	}

	if item.DurationSec > 0 {
		for i := range candidates {
			if absInt(candidates[i].DurationSec-item.DurationSec) <= w.tolerance {
				return &candidates[i], nil
			}
		}
	}
	return &candidates[0], nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
