// package pipeline wires the stream, lyrics and sync components into one explicitly constructed object
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vikify/resolver/internal/lyrics"
	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/playback"
	"github.com/vikify/resolver/internal/repositories"
	"github.com/vikify/resolver/internal/retry"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
	"github.com/vikify/resolver/internal/tasks"
)

const flushTimeout = 2 * time.Second

// SongStore is everything the pipeline needs from the imported song table.
type SongStore interface {
	tasks.SongStore
	tasks.SongImporter
}

// Deps carries collaborators. Nil fields are built from the config.
type Deps struct {
	DB             *sql.DB
	HTTPClient     *http.Client
	Backend        services.StreamBackend
	Catalog        services.CatalogService
	PlaylistSource services.PlaylistSource
	Songs          SongStore
	LyricsStore    lyrics.Store
	Providers      []lyrics.Provider
	Local          lyrics.LocalSource
	Reporter       shared.Reporter
	Logger         *log.Logger
	// Registerer receives the pipeline's collectors when set.
	Registerer prometheus.Registerer
	// IsOnline gates every network attempt made under a retry policy.
	IsOnline func() bool
}

// Pipeline owns every long-lived component. Construct with [New] and release with [Close].
type Pipeline struct {
	Config    *shared.Config
	Cache     *playback.Cache
	Resolver  *playback.Resolver
	Queue     *playback.QueuePrefetcher
	Lyrics    *lyrics.Engine
	Pool      *tasks.Pool
	Scheduler *tasks.Scheduler
	Sync      *tasks.SyncWorker
	Importer  *tasks.Importer

	once     *tasks.SyncWorker
	songs    SongStore
	reporter shared.Reporter
	logger   *log.Logger
	closers  []func() error
}

// New builds a pipeline from cfg, filling missing collaborators from it.
//
// A database is required unless both Songs and LyricsStore are supplied.
func New(cfg *shared.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	p := &Pipeline{Config: cfg, logger: logger, reporter: deps.Reporter}
	if p.reporter == nil {
		p.reporter = shared.NopReporter{}
	}

	if deps.Registerer != nil {
		if err := registerMetrics(deps.Registerer); err != nil {
			return nil, err
		}
	}

	songs := deps.Songs
	if songs == nil {
		if deps.DB == nil {
			return nil, fmt.Errorf("%w: database or song store required", shared.ErrMissingArgument)
		}
		songs = repositories.NewSongRepository(deps.DB)
	}
	p.songs = songs

	store, err := p.lyricsStore(cfg, deps)
	if err != nil {
		return nil, err
	}

	youtube := services.NewYouTubeService(cfg.Credentials.YouTube.ProxyURL, client)
	if cfg.Credentials.YouTube.AuthFile != "" {
		if err := youtube.Authenticate(map[string]string{"auth_file": cfg.Credentials.YouTube.AuthFile}); err != nil {
			return nil, err
		}
	}

	backend := deps.Backend
	if backend == nil {
		backend = services.NewStreamService(cfg.Backend.StreamURL, client)
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = youtube
	}

	p.Pool = tasks.NewPool(cfg.Pipeline.Workers)
	p.Scheduler = tasks.NewScheduler(tasks.WithSchedulerLogger(shared.WithLogger(logger, "component", "scheduler")))

	streamPolicy := retry.Fixed(1*time.Second, 2*time.Second, 3*time.Second)
	streamPolicy.IsOnline = deps.IsOnline
	p.Cache = playback.NewCache(cfg.Pipeline.CacheTTL.Duration)
	p.Resolver = playback.NewResolver(p.Cache, backend,
		playback.WithPolicy(streamPolicy),
		playback.WithSubmitter(p.Pool),
		playback.WithRequestTimeout(cfg.Backend.RequestTimeout.Duration),
		playback.WithPreloadTimeout(cfg.Backend.PreloadTimeout.Duration),
		playback.WithLogger(shared.WithLogger(logger, "component", "resolver")),
	)
	p.Queue = playback.NewQueuePrefetcher(p.Resolver, cfg.Pipeline.PrefetchCount)

	lyricsLogger := shared.WithLogger(logger, "component", "lyrics")
	providers := deps.Providers
	if providers == nil {
		policy := retry.Default()
		policy.IsOnline = deps.IsOnline
		policy.Logger = lyricsLogger
		providers = lyrics.DefaultProviders(cfg.Lyrics, lyrics.Clients{
			YouTube: youtube,
			LrcLib:  services.NewLrcLibService("", client),
			KuGou:   services.NewKuGouService("", "", client),
		}, policy)
	}
	local := deps.Local
	if local == nil {
		local = lyrics.NewLocalStore()
	}
	p.Lyrics = lyrics.NewEngine(providers, store,
		lyrics.WithPreferLocal(cfg.Lyrics.PreferLocal),
		lyrics.WithLocalSource(local),
		lyrics.WithReporter(p.reporter),
		lyrics.WithLogger(lyricsLogger),
	)

	syncOpts := []tasks.SyncOption{
		tasks.WithBatchSize(cfg.Sync.BatchSize),
		tasks.WithRateLimit(cfg.Sync.RateLimit.Duration),
		tasks.WithDurationTolerance(cfg.Sync.DurationTolerance),
		tasks.WithSyncLogger(shared.WithLogger(logger, "component", "sync")),
	}
	p.Sync = tasks.NewSyncWorker(songs, catalog, append(syncOpts, tasks.WithReenqueue(p.EnqueueSync))...)
	p.once = tasks.NewSyncWorker(songs, catalog, syncOpts...)

	if deps.PlaylistSource != nil {
		p.Importer = tasks.NewImporter(deps.PlaylistSource, songs, shared.WithLogger(logger, "component", "import"))
	}
	return p, nil
}

const redisPingTimeout = 5 * time.Second

func (p *Pipeline) lyricsStore(cfg *shared.Config, deps Deps) (lyrics.Store, error) {
	if deps.LyricsStore != nil {
		return deps.LyricsStore, nil
	}
	switch cfg.Lyrics.Store {
	case "redis":
		client := repositories.NewRedisClient(cfg.Redis)
		store := repositories.NewRedisLyricsStore(client)

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: redis lyrics store at %s: %v", shared.ErrServiceUnavailable, cfg.Redis.Addr, err)
		}
		p.closers = append(p.closers, client.Close)
		return store, nil
	case "", "sqlite":
		if deps.DB == nil {
			return nil, fmt.Errorf("%w: database required for sqlite lyrics store", shared.ErrMissingArgument)
		}
		return repositories.NewLyricsRepository(deps.DB), nil
	default:
		return nil, fmt.Errorf("%w: unknown lyrics store %q", shared.ErrInvalidConfig, cfg.Lyrics.Store)
	}
}

func registerMetrics(reg prometheus.Registerer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: failed to register metrics: %v", shared.ErrInvalidConfig, r)
		}
	}()
	metrics.Register(reg)
	return nil
}

// EnqueueSync schedules a sync batch, keeping work that is already queued.
func (p *Pipeline) EnqueueSync() bool {
	return p.Scheduler.Enqueue(tasks.SyncWorkName, p.Sync.Job(nil), tasks.Keep)
}

// CancelSync stops the running batch and drops queued ones.
func (p *Pipeline) CancelSync() bool {
	return p.Scheduler.Cancel(tasks.SyncWorkName)
}

// SyncOnce runs one batch on the caller's goroutine. No follow-up batch is scheduled.
func (p *Pipeline) SyncOnce(ctx context.Context, progress chan<- tasks.ProgressUpdate) (tasks.SyncResult, error) {
	return p.once.Run(ctx, progress)
}

// ImportPlaylist stores an external playlist as unresolved songs and schedules a sync.
func (p *Pipeline) ImportPlaylist(ctx context.Context, playlistID string, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error) {
	if p.Importer == nil {
		return nil, fmt.Errorf("%w: no playlist source configured", shared.ErrServiceUnavailable)
	}

	res, err := p.Importer.Import(ctx, playlistID, progress)
	if err != nil {
		return nil, err
	}
	if res.Added > 0 {
		p.EnqueueSync()
	}
	return res, nil
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Cache      playback.CacheStats `json:"cache"`
	SyncState  string              `json:"sync_state"`
	Unresolved int                 `json:"unresolved"`
	Pending    int                 `json:"pooled"`
}

// Status reports cache occupancy, the sync work state and the unresolved backlog.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	st := Status{
		Cache:     p.Cache.Stats(),
		SyncState: p.Scheduler.State(tasks.SyncWorkName).String(),
		Pending:   p.Pool.Pending(),
	}

	n, err := p.songs.CountUnresolved(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to count unresolved songs: %w", err)
	}
	st.Unresolved = n
	return st, nil
}

// FetchLyrics resolves lyrics on the pool and hands the result to callback.
func (p *Pipeline) FetchLyrics(ctx context.Context, track models.TrackRef, callback func(lyrics.Result)) {
	p.Pool.Go(func() {
		callback(p.Lyrics.Get(ctx, track))
	})
}

// Wait blocks until scheduled batches and pooled work are done.
func (p *Pipeline) Wait() {
	p.Scheduler.Wait()
	p.Pool.Wait()
}

// Close cancels sync work, waits for in-flight work and releases owned clients.
func (p *Pipeline) Close() error {
	p.CancelSync()
	p.Wait()
	p.reporter.Flush(flushTimeout)

	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
