package models

import "testing"

func TestDataset(t *testing.T) {
	t.Run("Append pads short rows", func(t *testing.T) {
		ds := NewDataset("A", "B", "C")
		ds.Append("1")

		if ds.Len() != 1 {
			t.Fatalf("expected 1 row, got %d", ds.Len())
		}
		row := ds.Rows[0]
		if len(row) != 3 {
			t.Fatalf("expected row width 3, got %d", len(row))
		}
		if row[0] != "1" || row[1] != "" || row[2] != "" {
			t.Errorf("unexpected row contents: %v", row)
		}
	})

	t.Run("Append truncates long rows", func(t *testing.T) {
		ds := NewDataset("A")
		ds.Append("1", "2", "3")

		if len(ds.Rows[0]) != 1 {
			t.Errorf("expected row width 1, got %d", len(ds.Rows[0]))
		}
	})

	t.Run("rows preserve order", func(t *testing.T) {
		ds := NewDataset("A")
		for _, v := range []string{"x", "y", "z"} {
			ds.Append(v)
		}

		got := []string{ds.Rows[0][0], ds.Rows[1][0], ds.Rows[2][0]}
		want := []string{"x", "y", "z"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("row %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("collection order is complete", func(t *testing.T) {
		if len(CollectionOrder) != 8 {
			t.Errorf("expected 8 collections, got %d", len(CollectionOrder))
		}
		if CollectionOrder[0] != CollectionUserData {
			t.Errorf("profile should come first, got %s", CollectionOrder[0])
		}
		if CollectionOrder[len(CollectionOrder)-1] != CollectionSavedAlbums {
			t.Errorf("saved albums should come last")
		}
	})
}
