package models

// Collection names, matching the exported filenames. Order here is the
// order collections are fetched and written.
const (
	CollectionUserData       = "user_data"
	CollectionSavedTracks    = "saved_tracks"
	CollectionRecentlyPlayed = "recently_played_tracks"
	CollectionFollowed       = "followed_artists"
	CollectionPlaylists      = "playlists"
	CollectionPlaylistTracks = "playlist_tracks"
	CollectionTopArtists     = "top_artists"
	CollectionSavedAlbums    = "saved_albums"
)

// CollectionOrder lists every collection in fetch/export order.
var CollectionOrder = []string{
	CollectionUserData,
	CollectionSavedTracks,
	CollectionRecentlyPlayed,
	CollectionFollowed,
	CollectionPlaylists,
	CollectionPlaylistTracks,
	CollectionTopArtists,
	CollectionSavedAlbums,
}

// Row is one record of a [Dataset], values aligned with the dataset columns.
type Row []string

// Dataset is the in-memory tabular form of one collection: a fixed column
// schema and an ordered list of rows sharing it.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset creates an empty Dataset with the given column schema.
func NewDataset(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// Append adds a row to the dataset.
//
// Short rows are padded with empty strings and long rows truncated, so every
// row always carries exactly one value per column.
func (d *Dataset) Append(values ...string) {
	row := make(Row, len(d.Columns))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	d.Rows = append(d.Rows, row)
}

// Len returns the number of data rows (excluding the header).
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Export pairs a collection name with its dataset, preserving run order.
type Export struct {
	Collection string
	Data       *Dataset
}
