// package models defines the data model shared by the stream and lyrics resolution pipeline
package models

import (
	"time"
)

// LyricsNotFound is the persisted negative-cache marker for a track whose lookup exhausted every source.
const LyricsNotFound = "NOT_FOUND"

// TrackRef is a logical song reference.
//
// ID is the internal catalog identifier. ExternalID is set for tracks imported from another
// catalog; such a track stays unresolved, and unplayable, until ID is filled in by the sync worker.
type TrackRef struct {
	ID          string
	Title       string
	Artist      string
	DurationSec int
	ExternalID  string
	Path        string // Local file path, empty for catalog tracks
}

// IsResolved reports whether the track has an internal catalog id to play.
func (t TrackRef) IsResolved() bool {
	return t.ID != ""
}

// Validate returns an error when the track cannot be handed to a stream resolver.
func (t TrackRef) Validate() error {
	if t.ID == "" && t.ExternalID == "" {
		return ErrEmptyTrack
	}
	return nil
}

// StreamSource describes where a [ResolvedStream] came from.
type StreamSource int

const (
	SourceLive StreamSource = iota
	SourceCache
	SourcePreload
)

func (s StreamSource) String() string {
	switch s {
	case SourceCache:
		return "CACHE"
	case SourcePreload:
		return "PRELOAD"
	default:
		return "LIVE"
	}
}

// ResolvedStream is a playable URL for a track. Replaced wholesale on re-resolution.
type ResolvedStream struct {
	TrackID    string
	URL        string
	Source     StreamSource
	ResolvedAt time.Time
}

// PreloadCacheEntry records when the backend last confirmed a track as resolvable.
type PreloadCacheEntry struct {
	TrackID    string
	ResolvedAt time.Time
}

// Fresh reports whether the entry is still valid at now for the given ttl.
func (e PreloadCacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.ResolvedAt) < ttl
}

// LyricsResult is a single provider's answer.
type LyricsResult struct {
	ProviderName string
	LyricsText   string
}

// PersistedLyrics is the stored outcome of a remote lookup.
type PersistedLyrics struct {
	TrackID    string
	LyricsText string
	UpdatedAt  time.Time
}

// NotFound reports whether the row is the negative-cache marker.
func (p PersistedLyrics) NotFound() bool {
	return p.LyricsText == LyricsNotFound
}

// SyncBatchItem is an imported track waiting to be matched to the internal catalog.
type SyncBatchItem struct {
	ExternalID  string
	Title       string
	Artist      string
	DurationSec int
}

// CatalogItem is a catalog search candidate.
type CatalogItem struct {
	ID          string
	Title       string
	Artists     []string
	DurationSec int
}

// Artist returns the first listed artist or an empty string.
func (c CatalogItem) Artist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// ExternalTrack is a track exported from another catalog (e.g. a Spotify playlist).
type ExternalTrack struct {
	ExternalID  string
	Source      string
	Title       string
	Artist      string
	DurationSec int
}

// Song is a persisted imported track with its optional internal mapping.
type Song struct {
	ID          string
	ExternalID  string
	Source      string
	Title       string
	Artist      string
	DurationSec int
	InternalID  string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// TrackRef converts the song into a playback reference.
func (s Song) TrackRef() TrackRef {
	return TrackRef{
		ID:          s.InternalID,
		Title:       s.Title,
		Artist:      s.Artist,
		DurationSec: s.DurationSec,
		ExternalID:  s.ExternalID,
	}
}
