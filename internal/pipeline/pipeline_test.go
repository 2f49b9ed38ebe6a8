package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vikify/resolver/internal/lyrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/repositories"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type backendCalls struct {
	stream, preload, search atomic.Int32
}

// newBackend serves the stream backend and the catalog proxy from one server.
func newBackend(t *testing.T) (*httptest.Server, *backendCalls) {
	t.Helper()
	calls := &backendCalls{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls.stream.Add(1)
		w.Write([]byte(`{"success":true,"url":"https://cdn/` + r.PathValue("id") + `","source":"test"}`))
	})
	mux.HandleFunc("POST /stream/preload", func(w http.ResponseWriter, r *http.Request) {
		calls.preload.Add(1)
		w.Write([]byte(`{"success":true,"cached":false}`))
	})
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		calls.search.Add(1)
		q := r.URL.Query().Get("q")
		id := "vid-" + strings.ReplaceAll(q, " ", "_")
		w.Write([]byte(`[{"videoId":"` + id + `","title":"` + q + `","artists":[{"name":"A"}],"duration_seconds":200}]`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, calls
}

func testConfig(url string) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Backend.StreamURL = url
	cfg.Credentials.YouTube.ProxyURL = url
	cfg.Sync.RateLimit.Duration = 0
	cfg.Lyrics.YouTube = false
	cfg.Lyrics.Subtitles = false
	cfg.Lyrics.LrcLib = false
	return cfg
}

type fakeSource struct {
	export *services.PlaylistExport
}

func (f *fakeSource) Name() string { return "Spotify" }

func (f *fakeSource) ExportPlaylist(context.Context, string) (*services.PlaylistExport, error) {
	return f.export, nil
}

type staticProvider struct {
	text string
}

func (s staticProvider) Name() string    { return "static" }
func (s staticProvider) IsEnabled() bool { return true }

func (s staticProvider) GetLyrics(context.Context, string, string, string, int) (string, error) {
	if s.text == "" {
		return "", shared.ErrLyricsUnavailable
	}
	return s.text, nil
}

func (s staticProvider) GetAllLyrics(_ context.Context, _, _, _ string, _ int, cb func(string)) error {
	if s.text != "" {
		cb(s.text)
	}
	return nil
}

func TestNew(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		if _, err := New(shared.DefaultConfig(), Deps{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("rejects unknown lyrics store", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Lyrics.Store = "mongo"
		if _, err := New(cfg, Deps{DB: setupTestDB(t)}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("unreachable redis lyrics store", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Lyrics.Store = "redis"
		cfg.Redis.Addr = "127.0.0.1:1"
		if _, err := New(cfg, Deps{DB: setupTestDB(t)}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("builds every component", func(t *testing.T) {
		p, err := New(nil, Deps{DB: setupTestDB(t)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if p.Cache == nil || p.Resolver == nil || p.Queue == nil || p.Lyrics == nil ||
			p.Pool == nil || p.Scheduler == nil || p.Sync == nil {
			t.Errorf("missing component in %+v", p)
		}
		if p.Importer != nil {
			t.Error("importer needs a playlist source")
		}
		if _, err := p.ImportPlaylist(context.Background(), "pl", nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("registers metrics once per registry", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		db := setupTestDB(t)
		p, err := New(nil, Deps{DB: db, Registerer: reg})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if _, err := New(nil, Deps{DB: db, Registerer: reg}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected duplicate registration to fail, got %v", err)
		}
	})
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("import then sync resolves songs", func(t *testing.T) {
		server, calls := newBackend(t)
		db := setupTestDB(t)
		source := &fakeSource{export: &services.PlaylistExport{
			Playlist: services.Playlist{ID: "pl1", Name: "Mix"},
			Tracks: []models.ExternalTrack{
				{ExternalID: "sp1", Title: "One", Artist: "A", DurationSec: 200},
				{ExternalID: "sp2", Title: "Two", Artist: "A", DurationSec: 200},
				{ExternalID: "sp3", Title: "Three", Artist: "A", DurationSec: 200},
			},
		}}

		cfg := testConfig(server.URL)
		cfg.Sync.BatchSize = 2
		p, err := New(cfg, Deps{DB: db, PlaylistSource: source})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		res, err := p.ImportPlaylist(ctx, "pl1", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Added != 3 {
			t.Errorf("expected 3 imported, got %d", res.Added)
		}
		p.Wait()

		songs := repositories.NewSongRepository(db)
		remaining, err := songs.CountUnresolved(ctx)
		if err != nil || remaining != 0 {
			t.Fatalf("expected every song resolved, got %d (%v)", remaining, err)
		}
		id, ok, err := songs.InternalID(ctx, "sp2")
		if err != nil || !ok || id != "vid-Two_A" {
			t.Errorf("unexpected mapping %q, %v, %v", id, ok, err)
		}
		if n := calls.search.Load(); n != 3 {
			t.Errorf("expected 3 searches, got %d", n)
		}
	})

	t.Run("resolve and preload queue", func(t *testing.T) {
		server, calls := newBackend(t)
		p, err := New(testConfig(server.URL), Deps{DB: setupTestDB(t)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		s, err := p.Resolver.Resolve(ctx, models.TrackRef{ID: "t0", Title: "Zero"})
		if err != nil || s.URL != "https://cdn/t0" || s.Source != models.SourceLive {
			t.Fatalf("unexpected stream %+v, %v", s, err)
		}

		queue := []models.TrackRef{{ID: "t0"}, {ID: "t1"}, {ID: "t2"}, {ID: "t3"}, {ID: "t4"}}
		issued := p.Queue.PreloadQueue(queue, 0, 0)
		p.Wait()

		if len(issued) != 3 {
			t.Errorf("expected 3 prefetches, got %v", issued)
		}
		for _, id := range []string{"t1", "t2", "t3"} {
			if !p.Cache.IsFresh(id) {
				t.Errorf("expected %s to be fresh", id)
			}
		}
		if n := calls.preload.Load(); n != 3 {
			t.Errorf("expected 3 preload calls, got %d", n)
		}
		if n := calls.stream.Load(); n != 1 {
			t.Errorf("expected 1 stream call, got %d", n)
		}
	})

	t.Run("lyrics are fetched on the pool and persisted", func(t *testing.T) {
		db := setupTestDB(t)
		p, err := New(testConfig("http://127.0.0.1:0"), Deps{
			DB:        db,
			Providers: []lyrics.Provider{staticProvider{text: "[00:01.00]hello"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		results := make(chan lyrics.Result, 1)
		p.FetchLyrics(ctx, models.TrackRef{ID: "t1", Title: "Song", Artist: "A"}, func(r lyrics.Result) { results <- r })
		got := <-results

		if got.Source != lyrics.SourceRemote || got.Provider != "static" {
			t.Errorf("unexpected result %+v", got)
		}
		stored, err := repositories.NewLyricsRepository(db).Get(ctx, "t1")
		if err != nil || stored == nil || stored.LyricsText != "[00:01.00]hello" {
			t.Errorf("expected lyrics persisted, got %+v, %v", stored, err)
		}
	})

	t.Run("negative lookups are persisted", func(t *testing.T) {
		db := setupTestDB(t)
		p, err := New(testConfig("http://127.0.0.1:0"), Deps{DB: db, Providers: []lyrics.Provider{staticProvider{}}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if got := p.Lyrics.Get(ctx, models.TrackRef{ID: "t9"}); got.Found() {
			t.Errorf("expected no lyrics, got %+v", got)
		}
		stored, _ := repositories.NewLyricsRepository(db).Get(ctx, "t9")
		if stored == nil || !stored.NotFound() {
			t.Errorf("expected NOT_FOUND sentinel, got %+v", stored)
		}
	})

	t.Run("SyncOnce runs a single batch", func(t *testing.T) {
		server, calls := newBackend(t)
		db := setupTestDB(t)
		songs := repositories.NewSongRepository(db)
		if _, err := songs.ImportExternal(ctx, []models.ExternalTrack{
			{ExternalID: "sp1", Source: "spotify", Title: "One", Artist: "A", DurationSec: 200},
			{ExternalID: "sp2", Source: "spotify", Title: "Two", Artist: "A", DurationSec: 200},
			{ExternalID: "sp3", Source: "spotify", Title: "Three", Artist: "A", DurationSec: 200},
		}); err != nil {
			t.Fatalf("import failed: %v", err)
		}

		cfg := testConfig(server.URL)
		cfg.Sync.BatchSize = 2
		p, err := New(cfg, Deps{DB: db})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		res, err := p.SyncOnce(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p.Wait()

		if res.Resolved != 2 || res.Remaining != 1 {
			t.Errorf("expected 2 resolved and 1 remaining, got %+v", res)
		}
		if n := calls.search.Load(); n != 2 {
			t.Errorf("expected no follow-up batch, got %d searches", n)
		}

		st, err := p.Status(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.Unresolved != 1 || st.SyncState != "idle" {
			t.Errorf("unexpected status %+v", st)
		}
	})
}
