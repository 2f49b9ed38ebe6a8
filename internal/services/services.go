// package services implements HTTP clients for the collaborators of the resolution pipeline
//
// Stream backend, YouTube Music (via proxy), Spotify, LrcLib, KuGou
package services

import (
	"context"

	"github.com/vikify/resolver/internal/models"
)

// Service is implemented by every named remote collaborator.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify", "YouTube Music")
	Name() string
}

// CatalogService searches the internal catalog for candidate tracks.
type CatalogService interface {
	Service

	// Search returns song candidates for a free-text query, best match first.
	Search(ctx context.Context, query string) ([]models.CatalogItem, error)
}

// PlaylistSource exports playlists from an external catalog.
type PlaylistSource interface {
	Service

	// ExportPlaylist fetches a playlist with all of its tracks.
	ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error)
}

// StreamBackend turns catalog ids into playable URLs.
type StreamBackend interface {
	// FetchStream asks the backend for a playable URL. success=false is returned as an error.
	FetchStream(ctx context.Context, track models.TrackRef) (*StreamResponse, error)

	// Preload asks the backend to warm its own cache for the track.
	Preload(ctx context.Context, track models.TrackRef) (*PreloadResponse, error)
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
}

// PlaylistExport represents a playlist with all its tracks
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []models.ExternalTrack
}
