// YouTube Music catalog client
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a song search result from YouTube Music.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
}

// YouTubeLyrics is the proxy's lyrics payload for a video id.
type YouTubeLyrics struct {
	Lyrics        string `json:"lyrics"`
	HasTimestamps bool   `json:"hasTimestamps"`
	Source        string `json:"source,omitempty"`
}

// Subtitle is one timed caption cue, in seconds.
type Subtitle struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// YouTubeService is the catalog search and catalog-native lyrics client.
type YouTubeService struct {
	api      *APIService
	authFile string
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string, client *http.Client) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{api: NewAPIService(baseURL, client)}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("%w: missing auth_file", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	y.api.SetHeader("X-Auth-File", authFile)
	return nil
}

// Search returns song candidates for query, preserving the proxy's ranking.
//
// Calls GET /api/search?q={query}&filter=songs on the proxy.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]models.CatalogItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")

	var results []YouTubeTrack
	if err := y.api.GetJSON(ctx, "/api/search", params, &results); err != nil {
		return nil, err
	}

	items := make([]models.CatalogItem, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		item := models.CatalogItem{
			ID:          r.VideoID,
			Title:       r.Title,
			DurationSec: r.DurationSec,
		}
		for _, a := range r.Artists {
			item.Artists = append(item.Artists, a.Name)
		}
		items = append(items, item)
	}
	return items, nil
}

// SearchTrack searches for a track by title and artist, returning the top result.
func (y *YouTubeService) SearchTrack(ctx context.Context, title, artist string) (*models.CatalogItem, error) {
	items, err := y.Search(ctx, fmt.Sprintf("%s %s", title, artist))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no results found for '%s' by '%s'", shared.ErrTrackNotFound, title, artist)
	}
	return &items[0], nil
}

// Lyrics fetches catalog-native lyrics for a video id.
//
// Calls GET /api/lyrics/{videoId}. A 404 or empty body wraps [shared.ErrLyricsUnavailable].
func (y *YouTubeService) Lyrics(ctx context.Context, videoID string) (*YouTubeLyrics, error) {
	resp, err := y.api.Get(ctx, "/api/lyrics/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no lyrics for %s", shared.ErrLyricsUnavailable, videoID)
	}
	if !resp.OK() {
		return nil, statusError(resp)
	}

	var out YouTubeLyrics
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Lyrics == "" {
		return nil, fmt.Errorf("%w: empty lyrics for %s", shared.ErrLyricsUnavailable, videoID)
	}
	return &out, nil
}

// Subtitles fetches timed captions for a video id.
//
// Calls GET /api/subtitles/{videoId}.
func (y *YouTubeService) Subtitles(ctx context.Context, videoID string) ([]Subtitle, error) {
	resp, err := y.api.Get(ctx, "/api/subtitles/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no subtitles for %s", shared.ErrLyricsUnavailable, videoID)
	}
	if !resp.OK() {
		return nil, statusError(resp)
	}

	var cues []Subtitle
	if err := resp.Decode(&cues); err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: empty subtitles for %s", shared.ErrLyricsUnavailable, videoID)
	}
	return cues, nil
}
