package tasks

import (
	"fmt"

	"github.com/vikify/resolver/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// SyncProgress is the Data carried by [MatchTracks] updates.
type SyncProgress struct {
	Resolved int
	Failed   int
	Total    int
	Current  string
}

// Operation phase enumeration
type Phase int

const (
	PullBatch Phase = iota
	MatchTracks
	Reenqueue
	ExportPlaylist
	PersistTracks
)

func (p Phase) String() string {
	switch p {
	case PullBatch:
		return "pull_batch"
	case MatchTracks:
		return "match_tracks"
	case Reenqueue:
		return "reenqueue"
	case ExportPlaylist:
		return "export_playlist"
	case PersistTracks:
		return "persist_tracks"
	default:
		return ""
	}
}

// sendProgress never blocks: updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func pullBatchUpdate(size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PullBatch,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pulled %d unresolved tracks", size),
	}
}

func matchUpdate(p SyncProgress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    p.Resolved + p.Failed,
		Total:   p.Total,
		Message: fmt.Sprintf("[%d/%d] %s", p.Resolved+p.Failed, p.Total, p.Current),
		Data:    p,
	}
}

func reenqueueUpdate(remaining int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reenqueue,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d tracks still unresolved, scheduling another batch", remaining),
		Data:    remaining,
	}
}

func exportingUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Fetching playlist %s...", playlistID),
	}
}

func exportedUpdate(export *services.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Tracks)),
		Data:    export,
	}
}

func persistedUpdate(added, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PersistTracks,
		Step:    added,
		Total:   total,
		Message: fmt.Sprintf("Imported %d new of %d tracks", added, total),
	}
}
