package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	libraryPageSize   = 50
	playlistPageSize  = 100
	recentlyPlayedCap = 50
)

// ExportOpts contains configuration for a full export run.
type ExportOpts struct {
	OutputDir string  // Directory to write CSV files into (default: ".")
	RateLimit float64 // Requests per second, 0 disables throttling
	Timestamp string  // Run timestamp override; normally derived from the clock
}

// FileResult records the outcome of writing one collection's file.
type FileResult struct {
	Collection string
	Path       string
	Rows       int
	Err        error
}

// ExportResult contains all data from a completed export run.
type ExportResult struct {
	Timestamp   string          // Shared timestamp of every filename in the run
	Collections []models.Export // Fetched datasets in export order
	Files       []FileResult    // Per-file write outcomes
	TotalRows   int             // Sum of rows across all datasets
	Failed      int             // Number of files that could not be written
}

// ExportEngine fetches every collection of the authenticated user's account
// and exports each to a CSV file.
//
// Execution is strictly sequential; the engine issues a fetch only after the
// previous one completed.
type ExportEngine struct {
	svc   services.Service
	clock func() time.Time
}

// NewExportEngine creates an ExportEngine for the given service.
func NewExportEngine(svc services.Service) *ExportEngine {
	return &ExportEngine{svc: svc, clock: time.Now}
}

// Run performs a full export: every collection is fetched in a fixed order,
// then all datasets are written as one timestamped set of CSV files.
//
// A failure of any fetch except recently-played aborts the run before
// anything is written. File writes are best-effort: a failed write is
// recorded in the result and the remaining collections are still written.
func (e *ExportEngine) Run(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if e.svc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	timestamp := opts.Timestamp
	if timestamp == "" {
		timestamp = e.clock().Format("20060102_150405")
	}

	result := &ExportResult{Timestamp: timestamp}

	collect := func(phase Phase, name string, fetch func() (*models.Dataset, error)) (*models.Dataset, error) {
		e.sendProgress(prog, fetchingUpdate(phase))
		ds, err := fetch()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
		}
		e.sendProgress(prog, fetchedUpdate(phase, ds.Len()))
		result.Collections = append(result.Collections, models.Export{Collection: name, Data: ds})
		result.TotalRows += ds.Len()
		return ds, nil
	}

	if _, err := collect(PhaseProfile, models.CollectionUserData, func() (*models.Dataset, error) {
		return e.fetchProfile(ctx, limiter)
	}); err != nil {
		return nil, err
	}

	if _, err := collect(PhaseSavedTracks, models.CollectionSavedTracks, func() (*models.Dataset, error) {
		return e.fetchSavedTracks(ctx, limiter)
	}); err != nil {
		return nil, err
	}

	// Recently played is the one tolerated fetch: on failure the run keeps
	// going with an empty dataset so the exported set stays complete.
	e.sendProgress(prog, fetchingUpdate(PhaseRecentlyPlayed))
	recent, err := e.FetchRecentlyPlayed(ctx, limiter)
	if err != nil {
		e.sendProgress(prog, fetchWarningUpdate(PhaseRecentlyPlayed, err))
	} else {
		e.sendProgress(prog, fetchedUpdate(PhaseRecentlyPlayed, recent.Len()))
	}
	result.Collections = append(result.Collections, models.Export{Collection: models.CollectionRecentlyPlayed, Data: recent})
	result.TotalRows += recent.Len()

	if _, err := collect(PhaseFollowedArtists, models.CollectionFollowed, func() (*models.Dataset, error) {
		return e.fetchFollowedArtists(ctx, limiter)
	}); err != nil {
		return nil, err
	}

	e.sendProgress(prog, fetchingUpdate(PhasePlaylists))
	playlists, playlistDS, err := e.FetchPlaylists(ctx, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", models.CollectionPlaylists, err)
	}
	e.sendProgress(prog, fetchedUpdate(PhasePlaylists, playlistDS.Len()))
	result.Collections = append(result.Collections, models.Export{Collection: models.CollectionPlaylists, Data: playlistDS})
	result.TotalRows += playlistDS.Len()

	e.sendProgress(prog, fetchingUpdate(PhasePlaylistTracks))
	playlistTracks, err := e.FetchPlaylistTracks(ctx, limiter, prog, playlists)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", models.CollectionPlaylistTracks, err)
	}
	e.sendProgress(prog, fetchedUpdate(PhasePlaylistTracks, playlistTracks.Len()))
	result.Collections = append(result.Collections, models.Export{Collection: models.CollectionPlaylistTracks, Data: playlistTracks})
	result.TotalRows += playlistTracks.Len()

	if _, err := collect(PhaseTopArtists, models.CollectionTopArtists, func() (*models.Dataset, error) {
		return e.fetchTopArtists(ctx, limiter)
	}); err != nil {
		return nil, err
	}

	if _, err := collect(PhaseSavedAlbums, models.CollectionSavedAlbums, func() (*models.Dataset, error) {
		return e.fetchSavedAlbums(ctx, limiter)
	}); err != nil {
		return nil, err
	}

	e.sendProgress(prog, exportingUpdate(len(result.Collections)))
	for _, res := range formatter.WriteAll(result.Collections, timestamp, opts.OutputDir) {
		fr := FileResult{Collection: res.Collection, Path: res.Path, Rows: res.Rows, Err: res.Err}
		result.Files = append(result.Files, fr)

		if fr.Err != nil {
			result.Failed++
			e.sendProgress(prog, exportFailedUpdate(fr.Collection, fr.Err))
		} else {
			e.sendProgress(prog, exportWrittenUpdate(fr.Collection, fr.Path, fr.Rows))
		}
	}

	return result, nil
}

// fetchProfile projects the profile call into a single-row dataset.
func (e *ExportEngine) fetchProfile(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	if err := waitLimiter(ctx, limiter); err != nil {
		return nil, err
	}

	user, err := e.svc.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	ds := models.NewDataset("User ID", "Display Name", "Email", "Country", "Followers")
	ds.Append(user.ID, user.DisplayName, user.Email, user.Country, strconv.Itoa(user.Followers.Total))
	return ds, nil
}

// fetchSavedTracks exhausts the saved tracks endpoint.
func (e *ExportEngine) fetchSavedTracks(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	items, err := Paginate(ctx, limiter, libraryPageSize, func(ctx context.Context, limit, offset int) ([]services.SpotifySavedTrack, error) {
		page, err := e.svc.SavedTracks(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
	if err != nil {
		return nil, err
	}

	ds := models.NewDataset("Track Name", "Artist", "Album", "Release Date", "Duration (ms)")
	for _, item := range items {
		tr := item.Track
		ds.Append(tr.Name, joinArtists(tr.Artists), tr.Album.Name, tr.Album.ReleaseDate, strconv.Itoa(tr.DurationMS))
	}
	return ds, nil
}

// FetchRecentlyPlayed retrieves the playback history with a single bounded
// call. On failure the returned dataset is empty (header only) and the error
// is reported to the caller, which tolerates it.
func (e *ExportEngine) FetchRecentlyPlayed(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	ds := models.NewDataset("Track Name", "Artist", "Album", "Played At")

	if err := waitLimiter(ctx, limiter); err != nil {
		return ds, err
	}

	page, err := e.svc.RecentlyPlayed(ctx, recentlyPlayedCap)
	if err != nil {
		return ds, err
	}

	for _, item := range page.Items {
		ds.Append(item.Track.Name, joinArtists(item.Track.Artists), item.Track.Album.Name, item.PlayedAt)
	}
	return ds, nil
}

// fetchFollowedArtists exhausts the cursor-paginated follow graph. The
// continuation cursor is the ID of the last artist on the current page.
func (e *ExportEngine) fetchFollowedArtists(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	items, err := PaginateCursor(ctx, limiter, libraryPageSize,
		func(ctx context.Context, limit int, after string) ([]services.SpotifyArtist, error) {
			page, err := e.svc.FollowedArtists(ctx, limit, after)
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
		func(a services.SpotifyArtist) string { return a.ID },
	)
	if err != nil {
		return nil, err
	}

	ds := models.NewDataset("Artist Name", "Artist ID", "Genres", "Followers", "Popularity")
	for _, artist := range items {
		ds.Append(artist.Name, artist.ID, strings.Join(artist.Genres, ", "),
			strconv.Itoa(artist.Followers.Total), strconv.Itoa(artist.Popularity))
	}
	return ds, nil
}

// FetchPlaylists exhausts the playlists endpoint, returning both the raw
// playlists (to drive the per-playlist track fetch) and their dataset.
func (e *ExportEngine) FetchPlaylists(ctx context.Context, limiter *rate.Limiter) ([]services.SpotifySimplePlaylist, *models.Dataset, error) {
	items, err := Paginate(ctx, limiter, libraryPageSize, func(ctx context.Context, limit, offset int) ([]services.SpotifySimplePlaylist, error) {
		page, err := e.svc.Playlists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
	if err != nil {
		return nil, nil, err
	}

	ds := models.NewDataset("Playlist ID", "Playlist Name", "Description", "Tracks Count", "Public")
	for _, pl := range items {
		ds.Append(pl.ID, pl.Name, pl.Description, strconv.Itoa(pl.Tracks.Total), strconv.FormatBool(pl.Public))
	}
	return items, ds, nil
}

// FetchPlaylistTracks fetches every track of every playlist, in playlist
// order, concatenated into a single dataset. A playlist with no tracks
// contributes no rows.
func (e *ExportEngine) FetchPlaylistTracks(ctx context.Context, limiter *rate.Limiter, prog chan<- ProgressUpdate, playlists []services.SpotifySimplePlaylist) (*models.Dataset, error) {
	ds := models.NewDataset("Playlist ID", "Playlist Name", "Track Name", "Artist", "Album",
		"Duration (ms)", "Added By ID", "Added At")

	for i, pl := range playlists {
		e.sendProgress(prog, playlistTracksUpdate(i+1, len(playlists), pl.Name))

		items, err := Paginate(ctx, limiter, playlistPageSize, func(ctx context.Context, limit, offset int) ([]services.SpotifyPlaylistItem, error) {
			page, err := e.svc.PlaylistItems(ctx, pl.ID, limit, offset)
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		})
		if err != nil {
			return nil, fmt.Errorf("playlist %s: %w", pl.ID, err)
		}

		for _, item := range items {
			addedBy := "Unknown"
			if item.AddedBy != nil && item.AddedBy.ID != "" {
				addedBy = item.AddedBy.ID
			}
			addedAt := item.AddedAt
			if addedAt == "" {
				addedAt = "Unknown"
			}

			tr := item.Track
			ds.Append(pl.ID, pl.Name, tr.Name, joinArtists(tr.Artists), tr.Album.Name,
				strconv.Itoa(tr.DurationMS), addedBy, addedAt)
		}
	}

	return ds, nil
}

// fetchTopArtists exhausts the top artists endpoint.
func (e *ExportEngine) fetchTopArtists(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	items, err := Paginate(ctx, limiter, libraryPageSize, func(ctx context.Context, limit, offset int) ([]services.SpotifyArtist, error) {
		page, err := e.svc.TopArtists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
	if err != nil {
		return nil, err
	}

	ds := models.NewDataset("Artist Name", "Genres", "Followers", "Popularity")
	for _, artist := range items {
		ds.Append(artist.Name, strings.Join(artist.Genres, ", "),
			strconv.Itoa(artist.Followers.Total), strconv.Itoa(artist.Popularity))
	}
	return ds, nil
}

// fetchSavedAlbums exhausts the saved albums endpoint.
func (e *ExportEngine) fetchSavedAlbums(ctx context.Context, limiter *rate.Limiter) (*models.Dataset, error) {
	items, err := Paginate(ctx, limiter, libraryPageSize, func(ctx context.Context, limit, offset int) ([]services.SpotifySavedAlbum, error) {
		page, err := e.svc.SavedAlbums(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
	if err != nil {
		return nil, err
	}

	ds := models.NewDataset("Album Name", "Artist", "Release Date", "Total Tracks")
	for _, item := range items {
		alb := item.Album
		ds.Append(alb.Name, joinArtists(alb.Artists), alb.ReleaseDate, strconv.Itoa(alb.TotalTracks))
	}
	return ds, nil
}

// joinArtists joins artist names with ", ", preserving source order.
func joinArtists(artists []services.SpotifyArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func (e *ExportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
