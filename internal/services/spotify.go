// Spotify playlist export via the Web API
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifySource   = "spotify"
	spotifyPageSize = 100
)

// SpotifyService exports playlists using an app-only client-credentials token.
type SpotifyService struct {
	client *spotify.Client
}

// NewSpotifyService builds a client whose token is fetched and refreshed on demand.
func NewSpotifyService(ctx context.Context, creds shared.SpotifyConfig, opts ...spotify.ClientOption) (*SpotifyService, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	config := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if creds.TokenURL != "" {
		config.TokenURL = creds.TokenURL
	}

	return &SpotifyService{client: spotify.New(config.Client(ctx), opts...)}, nil
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// ExportPlaylist fetches a playlist's metadata and every track item, following pagination.
//
// Episodes and local files without an id are skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error) {
	id, err := ParsePlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	pl, err := s.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, fmt.Errorf("%w: get playlist %s: %v", shared.ErrAPIRequest, id, err)
	}

	export := &PlaylistExport{
		Playlist: Playlist{
			ID:          string(pl.ID),
			Name:        pl.Name,
			Description: pl.Description,
		},
	}

	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(spotifyPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: get playlist items %s: %v", shared.ErrAPIRequest, id, err)
	}

	for {
		for _, item := range page.Items {
			track := item.Track.Track
			if track == nil || track.ID == "" {
				continue
			}

			artists := make([]string, 0, len(track.Artists))
			for _, a := range track.Artists {
				artists = append(artists, a.Name)
			}

			export.Tracks = append(export.Tracks, models.ExternalTrack{
				ExternalID:  string(track.ID),
				Source:      spotifySource,
				Title:       track.Name,
				Artist:      strings.Join(artists, ", "),
				DurationSec: int(track.Duration) / 1000,
			})
		}

		err := s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: next page %s: %v", shared.ErrAPIRequest, id, err)
		}
	}

	export.Playlist.TrackCount = len(export.Tracks)
	return export, nil
}

// ParsePlaylistID accepts a bare id, a spotify:playlist: URI or an open.spotify.com URL.
func ParsePlaylistID(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "spotify:playlist:"):
		s = strings.TrimPrefix(s, "spotify:playlist:")
	case strings.HasPrefix(s, "https://open.spotify.com/"):
		parts := strings.Split(strings.TrimPrefix(s, "https://open.spotify.com/"), "/")
		if len(parts) < 2 || parts[0] != "playlist" {
			return "", fmt.Errorf("%w: not a playlist URL: %s", shared.ErrInvalidArgument, s)
		}
		s = strings.Split(parts[1], "?")[0]
	}

	if s == "" || strings.ContainsAny(s, "/:? ") {
		return "", fmt.Errorf("%w: invalid playlist id %q", shared.ErrInvalidArgument, s)
	}
	return s, nil
}

// isNotFound inspects the client's error, which carries the HTTP status.
func isNotFound(err error) bool {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 404
	}
	return strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "Not Found")
}
