package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/retry"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
)

type fakeBackend struct {
	fetch    func(ctx context.Context, track models.TrackRef) (*services.StreamResponse, error)
	preload  func(ctx context.Context, track models.TrackRef) (*services.PreloadResponse, error)
	fetches  atomic.Int32
	preloads atomic.Int32
}

func (f *fakeBackend) FetchStream(ctx context.Context, track models.TrackRef) (*services.StreamResponse, error) {
	f.fetches.Add(1)
	if f.fetch == nil {
		return &services.StreamResponse{Success: true, URL: "https://cdn/" + track.ID}, nil
	}
	return f.fetch(ctx, track)
}

func (f *fakeBackend) Preload(ctx context.Context, track models.TrackRef) (*services.PreloadResponse, error) {
	f.preloads.Add(1)
	if f.preload == nil {
		return &services.PreloadResponse{Success: true}, nil
	}
	return f.preload(ctx, track)
}

// inline runs submitted work on the caller's goroutine.
type inline struct{}

func (inline) Go(fn func()) { fn() }

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newTestResolver(backend services.StreamBackend, sleeper *sleepRecorder) *Resolver {
	policy := retry.Fixed(1*time.Second, 2*time.Second, 3*time.Second)
	policy.Sleep = sleeper.Sleep
	return NewResolver(NewCache(0), backend, WithPolicy(policy), WithSubmitter(inline{}))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	track := models.TrackRef{ID: "t1", Title: "Song", Artist: "Artist"}

	t.Run("live then cache", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})

		live, err := r.Resolve(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if live.Source != models.SourceLive || live.URL != "https://cdn/t1" {
			t.Errorf("unexpected stream %+v", live)
		}

		hits := testutil.ToFloat64(metrics.StreamCacheLookups.WithLabelValues("hit"))
		cached, err := r.Resolve(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cached.Source != models.SourceCache || cached.URL != live.URL {
			t.Errorf("expected cached copy, got %+v", cached)
		}
		if backend.fetches.Load() != 1 {
			t.Errorf("cache hit must not call the backend, got %d calls", backend.fetches.Load())
		}
		if got := testutil.ToFloat64(metrics.StreamCacheLookups.WithLabelValues("hit")); got != hits+1 {
			t.Errorf("expected hit counter to grow by one, got %v -> %v", hits, got)
		}
	})

	t.Run("concurrent callers share one backend call", func(t *testing.T) {
		release := make(chan struct{})
		backend := &fakeBackend{}
		backend.fetch = func(ctx context.Context, track models.TrackRef) (*services.StreamResponse, error) {
			<-release
			return &services.StreamResponse{Success: true, URL: "https://cdn/shared"}, nil
		}
		r := newTestResolver(backend, &sleepRecorder{})

		const callers = 8
		var wg sync.WaitGroup
		results := make([]models.ResolvedStream, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = r.Resolve(ctx, track)
			}()
		}

		for !r.Cache().IsInFlight("t1") {
			time.Sleep(time.Millisecond)
		}
		close(release)
		wg.Wait()

		if n := backend.fetches.Load(); n != 1 {
			t.Errorf("expected exactly one backend call, got %d", n)
		}
		for i := range callers {
			if errs[i] != nil || results[i].URL != "https://cdn/shared" {
				t.Errorf("caller %d got %+v, %v", i, results[i], errs[i])
			}
		}
		if r.Cache().IsInFlight("t1") || r.Cache().Stats().InFlight != 0 {
			t.Error("in-flight set should be empty after resolution")
		}
	})

	t.Run("exhaustion after fixed schedule", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.fetch = func(context.Context, models.TrackRef) (*services.StreamResponse, error) {
			return nil, shared.ErrServiceUnavailable
		}
		sleeper := &sleepRecorder{}
		r := newTestResolver(backend, sleeper)

		_, err := r.Resolve(ctx, track)
		if !errors.Is(err, shared.ErrStreamUnavailable) {
			t.Fatalf("expected ErrStreamUnavailable, got %v", err)
		}
		if n := backend.fetches.Load(); n != 4 {
			t.Errorf("expected 4 attempts, got %d", n)
		}
		want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
		if len(sleeper.delays) != len(want) {
			t.Fatalf("expected delays %v, got %v", want, sleeper.delays)
		}
		for i := range want {
			if sleeper.delays[i] != want[i] {
				t.Errorf("delay %d = %v, want %v", i, sleeper.delays[i], want[i])
			}
		}
		if r.Cache().IsInFlight("t1") {
			t.Error("in-flight mark should be cleared after failure")
		}
		if _, ok := r.Cache().Stream("t1"); ok {
			t.Error("failure must not populate the cache")
		}
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.fetch = func(context.Context, models.TrackRef) (*services.StreamResponse, error) {
			if backend.fetches.Load() < 3 {
				return nil, shared.ErrServiceUnavailable
			}
			return &services.StreamResponse{Success: true, URL: "https://cdn/late"}, nil
		}
		r := newTestResolver(backend, &sleepRecorder{})

		s, err := r.Resolve(ctx, track)
		if err != nil || s.URL != "https://cdn/late" {
			t.Errorf("got %+v, %v", s, err)
		}
	})

	t.Run("prefetch in flight does not block or share with resolve", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})
		r.Cache().tryBegin("t1")

		got, err := r.Resolve(ctx, track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.URL != "https://cdn/t1" || backend.fetches.Load() != 1 {
			t.Errorf("expected one fetch for the URL, got %+v after %d fetches", got, backend.fetches.Load())
		}
		if !r.Cache().IsInFlight("t1") {
			t.Error("resolve must leave the prefetch's in-flight mark alone")
		}
		if r.Prefetch(track) || backend.preloads.Load() != 0 {
			t.Error("resolved track should not be prefetched again")
		}
	})

	t.Run("unresolved track does no I/O", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})

		_, err := r.Resolve(ctx, models.TrackRef{ExternalID: "spotify:track:1", Title: "Song"})
		if !errors.Is(err, shared.ErrUnresolvedTrack) {
			t.Errorf("expected ErrUnresolvedTrack, got %v", err)
		}
		if backend.fetches.Load() != 0 {
			t.Error("backend should not be called")
		}
	})

	t.Run("empty track", func(t *testing.T) {
		r := newTestResolver(&fakeBackend{}, &sleepRecorder{})
		if _, err := r.Resolve(ctx, models.TrackRef{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		backend := &fakeBackend{}
		backend.fetch = func(context.Context, models.TrackRef) (*services.StreamResponse, error) {
			<-release
			return &services.StreamResponse{Success: true, URL: "u"}, nil
		}
		r := newTestResolver(backend, &sleepRecorder{})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := r.Resolve(cctx, track); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPrefetch(t *testing.T) {
	track := models.TrackRef{ID: "t1", Title: "Song", Artist: "Artist"}

	t.Run("marks preloaded on success", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})

		if !r.Prefetch(track) {
			t.Fatal("expected prefetch to be issued")
		}
		if !r.Cache().IsFresh("t1") {
			t.Error("expected track to be fresh after preload")
		}
		if _, ok := r.Cache().Stream("t1"); ok {
			t.Error("preload must not fabricate a stream URL")
		}
		if r.Cache().IsInFlight("t1") {
			t.Error("in-flight mark should be cleared")
		}
	})

	t.Run("skips fresh tracks", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})
		r.Cache().MarkPreloaded("t1")

		if r.Prefetch(track) || backend.preloads.Load() != 0 {
			t.Error("fresh track should not be prefetched")
		}
	})

	t.Run("skips in-flight tracks", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})
		r.Cache().tryBegin("t1")

		if r.Prefetch(track) || backend.preloads.Load() != 0 {
			t.Error("in-flight track should not be prefetched")
		}
	})

	t.Run("skips unresolved tracks", func(t *testing.T) {
		backend := &fakeBackend{}
		r := newTestResolver(backend, &sleepRecorder{})
		if r.Prefetch(models.TrackRef{ExternalID: "x"}) || backend.preloads.Load() != 0 {
			t.Error("unresolved track should not be prefetched")
		}
	})

	t.Run("failure is not retried", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.preload = func(ctx context.Context, _ models.TrackRef) (*services.PreloadResponse, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected preload to carry a deadline")
			}
			return nil, shared.ErrServiceUnavailable
		}
		sleeper := &sleepRecorder{}
		r := newTestResolver(backend, sleeper)

		r.Prefetch(track)
		if backend.preloads.Load() != 1 || len(sleeper.delays) != 0 {
			t.Errorf("expected one call and no backoff, got %d calls", backend.preloads.Load())
		}
		if r.Cache().IsFresh("t1") || r.Cache().IsInFlight("t1") {
			t.Error("failed preload should leave no trace")
		}
	})

	t.Run("runs on the submitter", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		backend := &fakeBackend{}
		backend.preload = func(context.Context, models.TrackRef) (*services.PreloadResponse, error) {
			close(started)
			<-release
			return &services.PreloadResponse{Success: true}, nil
		}
		r := NewResolver(NewCache(0), backend)

		if !r.Prefetch(track) {
			t.Fatal("expected prefetch to be issued")
		}
		<-started
		if !r.Cache().IsInFlight("t1") {
			t.Error("expected track in flight while preload runs")
		}
		if r.Prefetch(track) {
			t.Error("second prefetch should be a no-op while in flight")
		}
		close(release)
	})
}
