package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
)

// SongImporter persists exported tracks as unresolved songs.
type SongImporter interface {
	ImportExternal(ctx context.Context, tracks []models.ExternalTrack) (int, error)
}

// ImportResult summarizes a playlist import.
type ImportResult struct {
	Playlist services.Playlist
	Total    int
	Added    int
}

// Importer copies an external playlist into the song store, unresolved.
type Importer struct {
	source services.PlaylistSource
	store  SongImporter
	logger *log.Logger
}

// NewImporter creates an importer reading from source.
func NewImporter(source services.PlaylistSource, store SongImporter, logger *log.Logger) *Importer {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Importer{source: source, store: store, logger: logger}
}

// Import exports playlistID and stores its tracks. Tracks already imported are skipped.
func (i *Importer) Import(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*ImportResult, error) {
	if i.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, exportingUpdate(playlistID))
	export, err := i.source.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to export playlist from %s: %w", i.source.Name(), err)
	}
	sendProgress(progress, exportedUpdate(export))

	added, err := i.store.ImportExternal(ctx, export.Tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported tracks: %w", err)
	}
	sendProgress(progress, persistedUpdate(added, len(export.Tracks)))

	i.logger.Info("playlist imported", "playlist", export.Playlist.Name, "tracks", len(export.Tracks), "added", added)
	return &ImportResult{Playlist: export.Playlist, Total: len(export.Tracks), Added: added}, nil
}
