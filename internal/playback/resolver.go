package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/retry"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRequestTimeout = 20 * time.Second
	DefaultPreloadTimeout = 5 * time.Second
)

// Submitter runs fire-and-forget work off the caller's goroutine.
type Submitter interface {
	Go(fn func())
}

type goSubmitter struct{}

func (goSubmitter) Go(fn func()) { go fn() }

// Resolver turns track references into playable stream URLs.
//
// Concurrent Resolve calls for one track share a single backend call.
type Resolver struct {
	cache          *Cache
	backend        services.StreamBackend
	pool           Submitter
	group          singleflight.Group
	policy         retry.Policy
	requestTimeout time.Duration
	preloadTimeout time.Duration
	logger         *log.Logger
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithPolicy replaces the 1s/2s/3s retry schedule used by Resolve.
func WithPolicy(p retry.Policy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

// WithRequestTimeout bounds each backend attempt made by Resolve.
func WithRequestTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.requestTimeout = d
		}
	}
}

// WithPreloadTimeout bounds the single call made by Prefetch.
func WithPreloadTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.preloadTimeout = d
		}
	}
}

// WithSubmitter runs prefetches on s instead of bare goroutines.
func WithSubmitter(s Submitter) ResolverOption {
	return func(r *Resolver) { r.pool = s }
}

// WithLogger sets the resolver's logger.
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver backed by cache and backend.
func NewResolver(cache *Cache, backend services.StreamBackend, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:          cache,
		backend:        backend,
		pool:           goSubmitter{},
		policy:         retry.Fixed(1*time.Second, 2*time.Second, 3*time.Second),
		requestTimeout: DefaultRequestTimeout,
		preloadTimeout: DefaultPreloadTimeout,
		logger:         shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.Logger == nil {
		r.policy.Logger = r.logger
	}
	return r
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns a playable stream for track.
//
// A fresh cached stream is returned with source CACHE and no I/O. Otherwise the backend is
// asked under the retry policy; exhaustion wraps [shared.ErrStreamUnavailable].
// Tracks with no internal id fail with [shared.ErrUnresolvedTrack].
func (r *Resolver) Resolve(ctx context.Context, track models.TrackRef) (models.ResolvedStream, error) {
	if err := track.Validate(); err != nil {
		return models.ResolvedStream{}, fmt.Errorf("%w: %v", shared.ErrMissingArgument, err)
	}
	if !track.IsResolved() {
		return models.ResolvedStream{}, fmt.Errorf("%w: %s", shared.ErrUnresolvedTrack, track.ExternalID)
	}

	if s, ok := r.cache.Stream(track.ID); ok {
		metrics.StreamCacheLookups.WithLabelValues("hit").Inc()
		s.Source = models.SourceCache
		return s, nil
	}
	metrics.StreamCacheLookups.WithLabelValues("miss").Inc()

	// the shared call outlives any single caller's cancellation
	ch := r.group.DoChan(track.ID, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), track)
	})

	select {
	case <-ctx.Done():
		return models.ResolvedStream{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.ResolvedStream{}, res.Err
		}
		return res.Val.(models.ResolvedStream), nil
	}
}

func (r *Resolver) fetch(ctx context.Context, track models.TrackRef) (models.ResolvedStream, error) {
	if r.cache.tryBegin(track.ID) {
		defer r.cache.finish(track.ID)
	}
	start := time.Now()

	resp, err := retry.Do(ctx, r.policy, "resolve "+track.ID, func(ctx context.Context) (*services.StreamResponse, error) {
		metrics.StreamResolveAttempts.Inc()
		attemptCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()
		return r.backend.FetchStream(attemptCtx, track)
	})
	metrics.StreamResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StreamResolveTotal.WithLabelValues("failed").Inc()
		r.logger.Error("stream resolution failed", "track", track.ID, "error", err)
		return models.ResolvedStream{}, fmt.Errorf("%w: %s: %v", shared.ErrStreamUnavailable, track.ID, err)
	}

	s := models.ResolvedStream{
		TrackID:    track.ID,
		URL:        resp.URL,
		Source:     models.SourceLive,
		ResolvedAt: r.cache.now(),
	}
	r.cache.Store(s)
	metrics.StreamResolveTotal.WithLabelValues("ok").Inc()
	r.logger.Debug("stream resolved", "track", track.ID, "backend_source", resp.Source, "backend_cached", resp.Cached, "time_taken", float64(resp.TimeTaken))
	return s, nil
}

// Prefetch asks the backend to warm track and returns immediately.
//
// Nothing is issued when the track is fresh, already in flight or unresolved.
// The call is made once with the preload timeout; failures are only logged.
// Reports whether a request was submitted.
func (r *Resolver) Prefetch(track models.TrackRef) bool {
	if !track.IsResolved() || r.cache.IsFresh(track.ID) || !r.cache.tryBegin(track.ID) {
		metrics.PrefetchTotal.WithLabelValues("skipped").Inc()
		return false
	}
	metrics.PrefetchTotal.WithLabelValues("issued").Inc()

	r.pool.Go(func() {
		defer r.cache.finish(track.ID)

		ctx, cancel := context.WithTimeout(context.Background(), r.preloadTimeout)
		defer cancel()

		if _, err := r.backend.Preload(ctx, track); err != nil {
			metrics.PrefetchTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("prefetch failed", "track", track.ID, "error", err)
			return
		}
		r.cache.MarkPreloaded(track.ID)
		metrics.PrefetchTotal.WithLabelValues("ok").Inc()
		r.logger.Debug("prefetched", "track", track.ID)
	})
	return true
}
