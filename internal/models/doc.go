// Package models defines the in-memory tabular representation of exported
// Spotify collections.
//
// A [Dataset] is one table: a declared column schema plus ordered [Row]
// values. Datasets live only for the duration of a run; they are produced by
// the fetchers in the tasks package and consumed by the formatter package.
//
// The collection name constants double as the middle segment of the exported
// filenames (spotify_<collection>_<timestamp>.csv).
package models
