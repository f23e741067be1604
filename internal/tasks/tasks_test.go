package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/services"
	th "github.com/desertthunder/spx/internal/testing"
)

// fakeService implements [services.Service] over in-memory fixtures.
type fakeService struct {
	user          *services.SpotifyUser
	savedTracks   []services.SpotifySavedTrack
	recent        []services.SpotifyPlayHistory
	followed      []services.SpotifyArtist
	playlists     []services.SpotifySimplePlaylist
	playlistItems map[string][]services.SpotifyPlaylistItem
	topArtists    []services.SpotifyArtist
	savedAlbums   []services.SpotifySavedAlbum

	errs map[string]error // per-endpoint forced failures
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (f *fakeService) fail(endpoint string) error {
	if f.errs == nil {
		return nil
	}
	return f.errs[endpoint]
}

func (f *fakeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (f *fakeService) Name() string { return "fake" }

func (f *fakeService) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	if err := f.fail("user"); err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeService) SavedTracks(ctx context.Context, limit, offset int) (*services.SavedTracksPage, error) {
	if err := f.fail("saved_tracks"); err != nil {
		return nil, err
	}
	return &services.SavedTracksPage{Items: page(f.savedTracks, limit, offset), Total: len(f.savedTracks)}, nil
}

func (f *fakeService) RecentlyPlayed(ctx context.Context, limit int) (*services.RecentlyPlayedPage, error) {
	if err := f.fail("recent"); err != nil {
		return nil, err
	}
	return &services.RecentlyPlayedPage{Items: page(f.recent, limit, 0)}, nil
}

func (f *fakeService) FollowedArtists(ctx context.Context, limit int, after string) (*services.FollowedArtistsPage, error) {
	if err := f.fail("followed"); err != nil {
		return nil, err
	}
	start := 0
	if after != "" {
		for i, a := range f.followed {
			if a.ID == after {
				start = i + 1
				break
			}
		}
	}
	return &services.FollowedArtistsPage{Items: page(f.followed[start:], limit, 0), Total: len(f.followed)}, nil
}

func (f *fakeService) Playlists(ctx context.Context, limit, offset int) (*services.PlaylistsPage, error) {
	if err := f.fail("playlists"); err != nil {
		return nil, err
	}
	return &services.PlaylistsPage{Items: page(f.playlists, limit, offset), Total: len(f.playlists)}, nil
}

func (f *fakeService) PlaylistItems(ctx context.Context, playlistID string, limit, offset int) (*services.PlaylistItemsPage, error) {
	if err := f.fail("playlist_items"); err != nil {
		return nil, err
	}
	items := f.playlistItems[playlistID]
	return &services.PlaylistItemsPage{Items: page(items, limit, offset), Total: len(items)}, nil
}

func (f *fakeService) TopArtists(ctx context.Context, limit, offset int) (*services.TopArtistsPage, error) {
	if err := f.fail("top_artists"); err != nil {
		return nil, err
	}
	return &services.TopArtistsPage{Items: page(f.topArtists, limit, offset), Total: len(f.topArtists)}, nil
}

func (f *fakeService) SavedAlbums(ctx context.Context, limit, offset int) (*services.SavedAlbumsPage, error) {
	if err := f.fail("saved_albums"); err != nil {
		return nil, err
	}
	return &services.SavedAlbumsPage{Items: page(f.savedAlbums, limit, offset), Total: len(f.savedAlbums)}, nil
}

func track(name string, artists ...string) services.SpotifyTrack {
	tr := services.SpotifyTrack{
		Name:       name,
		Album:      services.SpotifyAlbum{Name: name + " LP", ReleaseDate: "2020-01-01"},
		DurationMS: 180000,
	}
	for _, a := range artists {
		tr.Artists = append(tr.Artists, services.SpotifyArtist{Name: a})
	}
	return tr
}

func newFakeService() *fakeService {
	return &fakeService{
		user: &services.SpotifyUser{ID: "user1", DisplayName: "Tester", Email: "t@example.com", Country: "US"},
		savedTracks: []services.SpotifySavedTrack{
			{Track: track("Solo", "Only Artist")},
			{Track: track("Duet", "First", "Second")},
		},
		recent:   []services.SpotifyPlayHistory{{Track: track("Replay", "Artist"), PlayedAt: "2024-05-01T10:00:00Z"}},
		followed: []services.SpotifyArtist{{ID: "f1", Name: "Followed", Genres: []string{"jazz", "soul"}}},
		playlists: []services.SpotifySimplePlaylist{
			{ID: "pl1", Name: "Road Trip", Tracks: services.TrackCount{Total: 3}, Public: true},
			{ID: "pl2", Name: "Empty", Tracks: services.TrackCount{Total: 0}},
		},
		playlistItems: map[string][]services.SpotifyPlaylistItem{
			"pl1": {
				{Track: track("One", "A"), AddedBy: &services.SpotifyAddedBy{ID: "friend"}, AddedAt: "2024-01-01T00:00:00Z"},
				{Track: track("Two", "B")},
				{Track: track("Three", "C"), AddedAt: "2024-01-03T00:00:00Z"},
			},
		},
		topArtists:  []services.SpotifyArtist{{Name: "Top", Genres: []string{"pop"}, Popularity: 90}},
		savedAlbums: []services.SpotifySavedAlbum{{Album: services.SpotifyAlbum{Name: "Kept", Artists: []services.SpotifyArtist{{Name: "Keeper"}}, ReleaseDate: "1999", TotalTracks: 12}}},
	}
}

func runEngine(t *testing.T, svc services.Service, opts ExportOpts) *ExportResult {
	t.Helper()
	result, err := NewExportEngine(svc).Run(context.Background(), nil, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result
}

func findCollection(t *testing.T, result *ExportResult, name string) *models.Dataset {
	t.Helper()
	for _, c := range result.Collections {
		if c.Collection == name {
			return c.Data
		}
	}
	t.Fatalf("collection %s missing from result", name)
	return nil
}

func TestExportEngineRun(t *testing.T) {
	t.Run("produces all eight collections in order", func(t *testing.T) {
		result := runEngine(t, newFakeService(), ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})

		if len(result.Collections) != len(models.CollectionOrder) {
			t.Fatalf("expected %d collections, got %d", len(models.CollectionOrder), len(result.Collections))
		}
		for i, want := range models.CollectionOrder {
			if result.Collections[i].Collection != want {
				t.Errorf("position %d: expected %s, got %s", i, want, result.Collections[i].Collection)
			}
		}

		for _, file := range result.Files {
			if file.Err != nil {
				t.Errorf("write failed for %s: %v", file.Collection, file.Err)
			}
			th.AssertFileExists(t, file.Path)
		}
	})

	t.Run("profile is a single row", func(t *testing.T) {
		result := runEngine(t, newFakeService(), ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})

		ds := findCollection(t, result, models.CollectionUserData)
		if ds.Len() != 1 {
			t.Fatalf("expected 1 row, got %d", ds.Len())
		}
		if ds.Rows[0][0] != "user1" {
			t.Errorf("expected user1, got %s", ds.Rows[0][0])
		}
	})

	t.Run("joins artist names preserving order", func(t *testing.T) {
		result := runEngine(t, newFakeService(), ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})

		ds := findCollection(t, result, models.CollectionSavedTracks)
		if ds.Len() != 2 {
			t.Fatalf("expected 2 rows, got %d", ds.Len())
		}
		if ds.Rows[0][1] != "Only Artist" {
			t.Errorf("single artist should have no separator, got %q", ds.Rows[0][1])
		}
		if ds.Rows[1][1] != "First, Second" {
			t.Errorf("expected 'First, Second', got %q", ds.Rows[1][1])
		}
		for _, row := range ds.Rows {
			if row[1] == "" {
				t.Error("artist field should never be empty")
			}
		}
	})

	t.Run("recently played failure is tolerated", func(t *testing.T) {
		dir := t.TempDir()
		svc := newFakeService()
		svc.errs = map[string]error{"recent": errors.New("transport down")}

		result := runEngine(t, svc, ExportOpts{OutputDir: dir, Timestamp: "20240101_120000"})

		ds := findCollection(t, result, models.CollectionRecentlyPlayed)
		if ds.Len() != 0 {
			t.Errorf("expected empty dataset, got %d rows", ds.Len())
		}

		// every other collection still exports, and the recently played
		// file contains only the header row
		path := filepath.Join(dir, formatter.Filename(models.CollectionRecentlyPlayed, "20240101_120000"))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("recently played file missing: %v", err)
		}
		if lines := strings.Split(strings.TrimRight(string(data[3:]), "\n"), "\n"); len(lines) != 1 {
			t.Errorf("expected header-only file, got %d lines", len(lines))
		}

		if len(result.Files) != 8 {
			t.Errorf("expected 8 files, got %d", len(result.Files))
		}
	})

	t.Run("other fetch failures abort before writing", func(t *testing.T) {
		dir := t.TempDir()
		svc := newFakeService()
		svc.errs = map[string]error{"playlists": errors.New("boom")}

		_, err := NewExportEngine(svc).Run(context.Background(), nil, ExportOpts{OutputDir: dir, Timestamp: "20240101_120000"})
		if err == nil {
			t.Fatal("expected run to fail")
		}

		for _, collection := range models.CollectionOrder {
			th.AssertFileMissing(t, filepath.Join(dir, formatter.Filename(collection, "20240101_120000")))
		}
	})

	t.Run("playlist tracks concatenate across playlists", func(t *testing.T) {
		result := runEngine(t, newFakeService(), ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})

		ds := findCollection(t, result, models.CollectionPlaylistTracks)
		if ds.Len() != 3 {
			t.Fatalf("expected 3 rows (empty playlist contributes none), got %d", ds.Len())
		}
		for _, row := range ds.Rows {
			if row[0] != "pl1" || row[1] != "Road Trip" {
				t.Errorf("row should carry originating playlist, got %v", row)
			}
		}
	})

	t.Run("missing added_by defaults to Unknown", func(t *testing.T) {
		result := runEngine(t, newFakeService(), ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})

		ds := findCollection(t, result, models.CollectionPlaylistTracks)
		if ds.Rows[0][6] != "friend" {
			t.Errorf("expected friend, got %q", ds.Rows[0][6])
		}
		if ds.Rows[1][6] != "Unknown" {
			t.Errorf("expected Unknown for missing added_by, got %q", ds.Rows[1][6])
		}
		if ds.Rows[1][7] != "Unknown" {
			t.Errorf("expected Unknown for missing added_at, got %q", ds.Rows[1][7])
		}
	})

	t.Run("rerun with identical timestamp overwrites", func(t *testing.T) {
		dir := t.TempDir()
		opts := ExportOpts{OutputDir: dir, Timestamp: "20240101_120000"}

		runEngine(t, newFakeService(), opts)
		runEngine(t, newFakeService(), opts)

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 8 {
			t.Errorf("expected 8 files after rerun, got %d", len(entries))
		}
	})

	t.Run("nil service is rejected", func(t *testing.T) {
		if _, err := NewExportEngine(nil).Run(context.Background(), nil, ExportOpts{}); err == nil {
			t.Error("expected error for nil service")
		}
	})

	t.Run("progress updates are emitted without blocking", func(t *testing.T) {
		prog := make(chan ProgressUpdate, 64)
		_, err := NewExportEngine(newFakeService()).Run(context.Background(), prog, ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		close(prog)

		count := 0
		for range prog {
			count++
		}
		if count == 0 {
			t.Error("expected progress updates")
		}
	})

	t.Run("cursor pagination walks the follow graph", func(t *testing.T) {
		svc := newFakeService()
		// 50 artists forces a second (empty) page through the cursor loop
		svc.followed = nil
		for i := 0; i < 50; i++ {
			svc.followed = append(svc.followed, services.SpotifyArtist{ID: artistID(i), Name: "Artist"})
		}

		result := runEngine(t, svc, ExportOpts{OutputDir: t.TempDir(), Timestamp: "20240101_120000"})
		ds := findCollection(t, result, models.CollectionFollowed)
		if ds.Len() != 50 {
			t.Errorf("expected 50 artists, got %d", ds.Len())
		}
	})
}

func artistID(i int) string {
	return "artist_" + strings.Repeat("x", i%3) + strconv.Itoa(i)
}
