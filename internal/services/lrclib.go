// LrcLib (lrclib.net) lyrics client
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vikify/resolver/internal/shared"
)

const (
	defaultLrcLibBaseURL = "https://lrclib.net"
	// lrcLibDurationTolerance is how far, in seconds, a candidate may drift from the requested duration.
	lrcLibDurationTolerance = 2
)

// LrcLibTrack is an LrcLib record.
type LrcLibTrack struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LrcLibService queries the LrcLib public API.
type LrcLibService struct {
	api *APIService
}

// NewLrcLibService creates an LrcLib client. An empty baseURL uses https://lrclib.net.
func NewLrcLibService(baseURL string, client *http.Client) *LrcLibService {
	if baseURL == "" {
		baseURL = defaultLrcLibBaseURL
	}
	return &LrcLibService{api: NewAPIService(baseURL, client)}
}

// Name returns the service name.
func (l *LrcLibService) Name() string {
	return "LrcLib"
}

// Search calls GET /api/search with track and artist names and keeps records with synced lyrics.
func (l *LrcLibService) Search(ctx context.Context, title, artist string) ([]LrcLibTrack, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}

	var results []LrcLibTrack
	if err := l.api.GetJSON(ctx, "/api/search", params, &results); err != nil {
		return nil, err
	}

	synced := results[:0]
	for _, r := range results {
		if r.SyncedLyrics != "" {
			synced = append(synced, r)
		}
	}
	return synced, nil
}

// Get calls GET /api/get for an exact signature match. A 404 wraps [shared.ErrLyricsUnavailable].
func (l *LrcLibService) Get(ctx context.Context, title, artist string, durationSec int) (*LrcLibTrack, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	if durationSec > 0 {
		params.Set("duration", strconv.Itoa(durationSec))
	}

	resp, err := l.api.Get(ctx, "/api/get", params)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: lrclib has no record for %s - %s", shared.ErrLyricsUnavailable, artist, title)
	}
	if !resp.OK() {
		return nil, statusError(resp)
	}

	var out LrcLibTrack
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lyrics returns synced lyrics for the track.
//
// With a known artist and duration the exact signature lookup is tried first. Otherwise, or
// when it has no synced lyrics, the search result closest in duration wins, and the first
// synced result when durationSec is unknown.
func (l *LrcLibService) Lyrics(ctx context.Context, title, artist string, durationSec int) (string, error) {
	if artist != "" && durationSec > 0 {
		exact, err := l.Get(ctx, title, artist, durationSec)
		switch {
		case err == nil && exact.SyncedLyrics != "":
			return exact.SyncedLyrics, nil
		case err != nil && !errors.Is(err, shared.ErrLyricsUnavailable):
			return "", err
		}
	}

	tracks, err := l.Search(ctx, title, artist)
	if err != nil {
		return "", err
	}

	if best := bestLrcLibMatch(tracks, durationSec); best != nil {
		return best.SyncedLyrics, nil
	}
	return "", fmt.Errorf("%w: lrclib has no synced lyrics for %s - %s", shared.ErrLyricsUnavailable, artist, title)
}

// AllLyrics invokes callback with every distinct synced candidate within duration tolerance.
func (l *LrcLibService) AllLyrics(ctx context.Context, title, artist string, durationSec int, callback func(string)) error {
	tracks, err := l.Search(ctx, title, artist)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, t := range tracks {
		if durationSec > 0 && absInt(int(t.Duration)-durationSec) > lrcLibDurationTolerance {
			continue
		}
		if seen[t.SyncedLyrics] {
			continue
		}
		seen[t.SyncedLyrics] = true
		callback(t.SyncedLyrics)
	}
	return nil
}

func bestLrcLibMatch(tracks []LrcLibTrack, durationSec int) *LrcLibTrack {
	if len(tracks) == 0 {
		return nil
	}
	if durationSec <= 0 {
		return &tracks[0]
	}

	var best *LrcLibTrack
	bestDiff := lrcLibDurationTolerance + 1
	for i := range tracks {
		diff := absInt(int(tracks[i].Duration) - durationSec)
		if diff < bestDiff {
			best, bestDiff = &tracks[i], diff
		}
	}
	return best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
