// package lyrics resolves time-synced lyrics from local files, the lyric store and remote providers
package lyrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vikify/resolver/internal/lrc"
	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

// CacheSize bounds both the by-id and the by-query result caches.
const CacheSize = 3

// Store persists the outcome of remote lookups, including [models.LyricsNotFound].
//
// Get returns (nil, nil) for a track that was never looked up.
type Store interface {
	Get(ctx context.Context, trackID string) (*models.PersistedLyrics, error)
	Upsert(ctx context.Context, trackID, text string) error
}

// Source names where a [Result] came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceStore  Source = "store"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceNone   Source = "none"
)

// Result is the answer to a lookup. Source is [SourceNone] when no lyrics exist.
type Result struct {
	TrackID  string
	Text     string
	Lyrics   lrc.Lyrics
	Provider string
	Source   Source
}

// Found reports whether the result carries lyrics.
func (r Result) Found() bool {
	return r.Source != SourceNone
}

// Engine resolves lyrics for one track at a time.
//
// Safe for concurrent use; the caches and the store provide their own synchronization.
type Engine struct {
	providers   []Provider
	store       Store
	local       LocalSource
	preferLocal bool
	byID        *lru.Cache[string, Result]
	byQuery     *lru.Cache[string, []models.LyricsResult]
	reporter    shared.Reporter
	logger      *log.Logger
}

// Option configures an [Engine].
type Option func(*Engine)

// WithPreferLocal chooses whether local files win over the store and remote providers. Defaults to true.
func WithPreferLocal(prefer bool) Option {
	return func(e *Engine) { e.preferLocal = prefer }
}

// WithLocalSource sets the local lyric file lookup.
func WithLocalSource(src LocalSource) Option {
	return func(e *Engine) { e.local = src }
}

// WithReporter sends provider failures to r.
func WithReporter(r shared.Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over providers, tried in the given order.
func NewEngine(providers []Provider, store Store, opts ...Option) *Engine {
	byID, _ := lru.New[string, Result](CacheSize)
	byQuery, _ := lru.New[string, []models.LyricsResult](CacheSize)

	e := &Engine{
		providers:   providers,
		store:       store,
		preferLocal: true,
		byID:        byID,
		byQuery:     byQuery,
		reporter:    shared.NopReporter{},
		logger:      shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get resolves lyrics for track. It always returns a value; failures degrade to "no lyrics".
//
// Order: result cache, then (when local is not preferred) the store, then local file,
// store and remote providers in the order chosen by the local preference.
// Remote outcomes are persisted. [models.LyricsNotFound] is stored only when every provider
// answered that it has no lyrics; offline or transport failures leave the store untouched.
func (e *Engine) Get(ctx context.Context, track models.TrackRef) Result {
	key := trackKey(track)

	if r, ok := e.byID.Get(key); ok {
		r.Source = SourceCache
		return e.done(r)
	}

	persisted := e.persisted(ctx, key)
	if persisted != nil && !e.preferLocal {
		return e.done(e.fromStore(key, persisted))
	}

	var remoteErr error
	if e.preferLocal {
		if r, ok := e.fromLocal(key, track.Path); ok {
			return e.done(r)
		}
		if persisted != nil {
			return e.done(e.fromStore(key, persisted))
		}
		r, err := e.fromRemote(ctx, key, track)
		if err == nil {
			return e.done(r)
		}
		remoteErr = err
	} else {
		r, err := e.fromRemote(ctx, key, track)
		if err == nil {
			return e.done(r)
		}
		remoteErr = err
		if r, ok := e.fromLocal(key, track.Path); ok {
			return e.done(r)
		}
	}

	if errors.Is(remoteErr, shared.ErrLyricsUnavailable) {
		e.upsert(ctx, key, models.LyricsNotFound)
	} else {
		e.logger.Debug("lyrics lookup incomplete, miss not persisted", "track", key, "error", remoteErr)
	}
	return e.done(Result{TrackID: key, Source: SourceNone})
}

// GetRemoteLyrics asks each enabled provider in order and returns the first success.
//
// Failing providers are logged, reported and skipped. The error wraps
// [shared.ErrLyricsUnavailable] only when no provider failed for another reason;
// otherwise it wraps the first such failure.
func (e *Engine) GetRemoteLyrics(ctx context.Context, track models.TrackRef) (text, provider string, err error) {
	var transient error
	for _, p := range e.providers {
		if !p.IsEnabled() {
			e.logger.Debug("provider disabled", "provider", p.Name())
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		text, err := p.GetLyrics(ctx, track.ID, track.Title, track.Artist, track.DurationSec)
		if err == nil && text != "" {
			metrics.LyricsProviderTotal.WithLabelValues(p.Name(), "ok").Inc()
			e.logger.Debug("lyrics found", "provider", p.Name(), "track", track.ID, "chars", len(text))
			return text, p.Name(), nil
		}
		if err != nil && !errors.Is(err, shared.ErrLyricsUnavailable) && transient == nil {
			transient = fmt.Errorf("%s: %w", p.Name(), err)
		}
		e.providerFailed(ctx, p, track, err)
	}
	if transient != nil {
		return "", "", transient
	}
	return "", "", shared.ErrLyricsUnavailable
}

// GetAllLyrics fans out to every enabled provider and streams each candidate to callback.
//
// The full list is cached under the artist/title query key, and a cached list is replayed
// without contacting any provider.
func (e *Engine) GetAllLyrics(ctx context.Context, track models.TrackRef, callback func(models.LyricsResult)) []models.LyricsResult {
	key := shared.LyricsQueryKey(track.Title, track.Artist)
	if cached, ok := e.byQuery.Get(key); ok {
		for _, r := range cached {
			callback(r)
		}
		return cached
	}

	var (
		all    []models.LyricsResult
		failed bool
	)
	for _, p := range e.providers {
		if !p.IsEnabled() {
			continue
		}
		name := p.Name()
		err := p.GetAllLyrics(ctx, track.ID, track.Title, track.Artist, track.DurationSec, func(text string) {
			r := models.LyricsResult{ProviderName: name, LyricsText: text}
			all = append(all, r)
			callback(r)
		})
		if err != nil {
			failed = true
			e.providerFailed(ctx, p, track, err)
		}
	}

	// a list shortened by transport failures is not worth replaying
	if len(all) > 0 || !failed {
		e.byQuery.Add(key, all)
	}
	return all
}

func (e *Engine) fromLocal(key, path string) (Result, bool) {
	if e.local == nil || path == "" {
		return Result{}, false
	}
	parsed, err := e.local.Lookup(path)
	if err != nil {
		e.logger.Warn("local lyrics lookup failed", "path", path, "error", err)
		return Result{}, false
	}
	if parsed == nil {
		return Result{}, false
	}

	r := Result{TrackID: key, Text: lrc.Format(*parsed), Lyrics: *parsed, Source: SourceLocal}
	e.byID.Add(key, r)
	return r, true
}

func (e *Engine) fromStore(key string, p *models.PersistedLyrics) Result {
	if p.NotFound() {
		return Result{TrackID: key, Source: SourceNone}
	}
	r := Result{TrackID: key, Text: p.LyricsText, Lyrics: lrc.Parse(p.LyricsText), Source: SourceStore}
	e.byID.Add(key, r)
	return r
}

func (e *Engine) fromRemote(ctx context.Context, key string, track models.TrackRef) (Result, error) {
	text, provider, err := e.GetRemoteLyrics(ctx, track)
	if err != nil {
		return Result{}, err
	}

	e.upsert(ctx, key, text)
	r := Result{TrackID: key, Text: text, Lyrics: lrc.Parse(text), Provider: provider, Source: SourceRemote}
	e.byID.Add(key, r)
	return r, nil
}

func (e *Engine) persisted(ctx context.Context, key string) *models.PersistedLyrics {
	if e.store == nil {
		return nil
	}
	p, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("lyrics store read failed", "track", key, "error", err)
		return nil
	}
	return p
}

func (e *Engine) upsert(ctx context.Context, key, text string) {
	if e.store == nil {
		return
	}
	if err := e.store.Upsert(ctx, key, text); err != nil {
		e.logger.Warn("lyrics store write failed", "track", key, "error", err)
	}
}

func (e *Engine) providerFailed(ctx context.Context, p Provider, track models.TrackRef, err error) {
	if err == nil {
		err = shared.ErrLyricsUnavailable
	}
	if errors.Is(err, shared.ErrLyricsUnavailable) {
		metrics.LyricsProviderTotal.WithLabelValues(p.Name(), "not_found").Inc()
		e.logger.Debug("provider has no lyrics", "provider", p.Name(), "track", track.ID)
		return
	}
	if ctx.Err() != nil {
		e.logger.Debug("provider interrupted", "provider", p.Name(), "track", track.ID, "error", err)
		return
	}

	metrics.LyricsProviderTotal.WithLabelValues(p.Name(), "error").Inc()
	e.logger.Warn("provider failed", "provider", p.Name(), "track", track.ID, "error", err)
	e.reporter.Report(err, map[string]string{"provider": p.Name(), "track": track.ID})
}

func (e *Engine) done(r Result) Result {
	metrics.LyricsLookups.WithLabelValues(string(r.Source)).Inc()
	return r
}

// trackKey is the catalog id, or the artist/title key for tracks known only by metadata.
func trackKey(track models.TrackRef) string {
	if track.ID != "" {
		return track.ID
	}
	if track.ExternalID != "" {
		return track.ExternalID
	}
	return shared.LyricsQueryKey(track.Title, track.Artist)
}
