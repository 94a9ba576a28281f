package tasks

import (
	"fmt"

	"github.com/desertthunder/tidx/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchSource
	CreatePlaylist
	SearchTracks
	AddTracks
	SyncPlaylists
	ExportPlaylist
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchSource:
		return "fetch_source"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AddTracks:
		return "add_tracks"
	case SyncPlaylists:
		return "sync_playlists"
	case ExportPlaylist:
		return "export_playlist"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchPlaylistsUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlists from %s...", name),
	}
}

func fetchingSourceUpdate(pl services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching tracks of %s...", pl.Name),
	}
}

func foundTracksUpdate(pl services.Playlist, tracks []services.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", pl.Name, len(tracks)),
		Data:    &services.PlaylistExport{Playlist: pl, Tracks: tracks},
	}
}

func createDestinationUpdate(name, dest string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %s on %s...", name, dest),
	}
}

func createdPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", name, id),
		Data:    id,
	}
}

func searchTracksUpdate(step, total int, tr services.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Title),
	}
}

func addTrackUpdate(step, total int, m services.Match) ProgressUpdate {
	status := "✓"
	if !m.Found() {
		status = "✗"
	}
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, status, m.Source),
		Data:    m,
	}
}

func syncPlaylistUpdate(step, total int, pl services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Syncing: %s...", step, total, pl.Name),
	}
}

func completeUpdate(r *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    r.Total,
		Total:   r.Total,
		Message: fmt.Sprintf("%s: %d/%d tracks matched (%.1f%%)", r.Source.Name, r.Matched, r.Total, r.MatchPercentage),
		Data:    r,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
