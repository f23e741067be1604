package tasks

import "fmt"

// ProgressUpdate represents a progress event during an export run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Err     error  // Underlying error for warning/failure updates
}

// Operation phase enumeration
type Phase int

const (
	PhaseProfile Phase = iota
	PhaseSavedTracks
	PhaseRecentlyPlayed
	PhaseFollowedArtists
	PhasePlaylists
	PhasePlaylistTracks
	PhaseTopArtists
	PhaseSavedAlbums
	PhaseExport
)

func (p Phase) String() string {
	switch p {
	case PhaseProfile:
		return "profile"
	case PhaseSavedTracks:
		return "saved_tracks"
	case PhaseRecentlyPlayed:
		return "recently_played"
	case PhaseFollowedArtists:
		return "followed_artists"
	case PhasePlaylists:
		return "playlists"
	case PhasePlaylistTracks:
		return "playlist_tracks"
	case PhaseTopArtists:
		return "top_artists"
	case PhaseSavedAlbums:
		return "saved_albums"
	case PhaseExport:
		return "export"
	default:
		return ""
	}
}

// label returns the human-readable name used in progress messages.
func (p Phase) label() string {
	switch p {
	case PhaseProfile:
		return "user profile"
	case PhaseSavedTracks:
		return "saved tracks"
	case PhaseRecentlyPlayed:
		return "recently played tracks"
	case PhaseFollowedArtists:
		return "followed artists"
	case PhasePlaylists:
		return "playlists"
	case PhasePlaylistTracks:
		return "playlist tracks"
	case PhaseTopArtists:
		return "top artists"
	case PhaseSavedAlbums:
		return "saved albums"
	default:
		return p.String()
	}
}

func fetchingUpdate(phase Phase) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Message: fmt.Sprintf("Fetching %s...", phase.label()),
	}
}

func fetchedUpdate(phase Phase, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Message: fmt.Sprintf("Retrieved %d %s.", rows, phase.label()),
	}
}

func fetchWarningUpdate(phase Phase, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Message: fmt.Sprintf("Error fetching %s: %v", phase.label(), err),
		Err:     err,
	}
}

func playlistTracksUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePlaylistTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("  [%d/%d] %s...", step, total, name),
	}
}

func exportingUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseExport,
		Total:   total,
		Message: fmt.Sprintf("Exporting %d collections...", total),
	}
}

func exportWrittenUpdate(collection, path string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseExport,
		Message: fmt.Sprintf("✓ %s (%d rows) saved to %s", collection, rows, path),
	}
}

func exportFailedUpdate(collection string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseExport,
		Message: fmt.Sprintf("✗ %s: %v", collection, err),
		Err:     err,
	}
}
