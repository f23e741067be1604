package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spx/internal/models"
	th "github.com/desertthunder/spx/internal/testing"
)

func sampleDataset() *models.Dataset {
	ds := models.NewDataset("Track Name", "Artist", "Album")
	ds.Append("Song One", "Artist One, Artist Two", "Album One")
	ds.Append("うたの名前", "アーティスト", " Álbum")
	return ds
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(sampleDataset())
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}

	t.Run("starts with UTF-8 BOM", func(t *testing.T) {
		if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
			t.Errorf("expected BOM prefix, got % x", data[:3])
		}
	})

	t.Run("header row first", func(t *testing.T) {
		lines := strings.Split(string(data[3:]), "\n")
		if lines[0] != "Track Name,Artist,Album" {
			t.Errorf("unexpected header: %s", lines[0])
		}
	})

	t.Run("preserves non-ASCII text", func(t *testing.T) {
		if !strings.Contains(string(data), "うたの名前") || !strings.Contains(string(data), "Álbum") {
			t.Error("non-ASCII values should survive encoding")
		}
	})

	t.Run("quotes joined artist lists", func(t *testing.T) {
		if !strings.Contains(string(data), `"Artist One, Artist Two"`) {
			t.Errorf("comma-joined field should be quoted, got: %s", string(data))
		}
	})

	t.Run("empty dataset is header only", func(t *testing.T) {
		data, err := ExportToCSV(models.NewDataset("A", "B"))
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if strings.TrimRight(string(data[3:]), "\n") != "A,B" {
			t.Errorf("expected header only, got %q", string(data))
		}
	})
}

func TestFilename(t *testing.T) {
	got := Filename("saved_tracks", "20240101_120000")
	want := "spotify_saved_tracks_20240101_120000.csv"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestWriteAll(t *testing.T) {
	t.Run("writes one file per collection", func(t *testing.T) {
		dir := t.TempDir()
		exports := []models.Export{
			{Collection: models.CollectionSavedTracks, Data: sampleDataset()},
			{Collection: models.CollectionPlaylists, Data: models.NewDataset("Playlist ID")},
		}

		results := WriteAll(exports, "20240101_120000", dir)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		for _, res := range results {
			if res.Err != nil {
				t.Errorf("unexpected write error for %s: %v", res.Collection, res.Err)
			}
			th.AssertFileExists(t, res.Path)
		}

		if results[0].Rows != 2 {
			t.Errorf("expected 2 rows recorded, got %d", results[0].Rows)
		}
	})

	t.Run("overwrites files from an identical timestamp", func(t *testing.T) {
		dir := t.TempDir()

		first := models.NewDataset("A")
		first.Append("old")
		WriteAll([]models.Export{{Collection: "user_data", Data: first}}, "20240101_120000", dir)

		second := models.NewDataset("A")
		second.Append("new")
		results := WriteAll([]models.Export{{Collection: "user_data", Data: second}}, "20240101_120000", dir)
		if results[0].Err != nil {
			t.Fatalf("overwrite should succeed: %v", results[0].Err)
		}

		data, err := os.ReadFile(results[0].Path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if strings.Contains(string(data), "old") {
			t.Error("file should have been overwritten")
		}
		if !strings.Contains(string(data), "new") {
			t.Error("file should contain the new row")
		}
	})

	t.Run("continues past a failed write", func(t *testing.T) {
		dir := t.TempDir()
		// A collection name with a path separator lands in a directory that
		// doesn't exist, failing only that write.
		exports := []models.Export{
			{Collection: "missing/subdir", Data: models.NewDataset("A")},
			{Collection: models.CollectionTopArtists, Data: sampleDataset()},
		}

		results := WriteAll(exports, "20240101_120000", dir)
		if results[0].Err == nil {
			t.Error("expected first write to fail")
		}
		if results[1].Err != nil {
			t.Errorf("second write should still succeed: %v", results[1].Err)
		}
		th.AssertFileExists(t, filepath.Join(dir, Filename(models.CollectionTopArtists, "20240101_120000")))
	})
}
