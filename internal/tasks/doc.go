// Package tasks sequences a full account export.
//
// # Export Engine
//
// [ExportEngine.Run] fetches eight collections in a fixed order: profile,
// saved tracks, recently played, followed artists, playlists, the tracks of
// every playlist, top artists, saved albums. Every fetch waits for the
// previous one; there is no fan-out. After the last fetch the datasets are
// written as one timestamped set of CSV files via the formatter package.
//
// # Pagination
//
// [Paginate] drives offset-based endpoints and [PaginateCursor] the followed
// artists endpoint, where the continuation token is the ID of the last item
// of the current page. Both terminate when a page comes back shorter than
// the requested limit, so an item count that is an exact multiple of the
// page size costs one extra (empty) fetch.
//
// # Failure Policy
//
// Recently played is fetched best-effort: a failure is reported as a warning
// and the collection exports as a header-only file. Every other fetch
// failure aborts the run before any file is written. File writes themselves
// are best-effort per collection.
//
// # Progress
//
// Run reports through an optional channel of [ProgressUpdate]; sends never
// block, a slow reader just misses updates.
package tasks
