// package formatter serializes datasets to delimited export files
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/spx/internal/models"
)

// filePrefix is the first segment of every exported filename.
const filePrefix = "spotify"

// utf8BOM is prepended to every file so spreadsheet applications detect
// UTF-8 and render non-ASCII artist and track names correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Filename returns the deterministic name of one collection's export file:
// spotify_<collection>_<timestamp>.csv
func Filename(collection, timestamp string) string {
	return fmt.Sprintf("%s_%s_%s.csv", filePrefix, collection, timestamp)
}

// ExportToCSV converts a Dataset to CSV bytes: UTF-8 BOM, header row of
// column names, then one comma-delimited record per row.
func ExportToCSV(ds *models.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	writer := csv.NewWriter(&buf)

	if err := writer.Write(ds.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range ds.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSV writes one dataset to the given path, overwriting silently if the
// file already exists.
func WriteCSV(ds *models.Dataset, path string) error {
	data, err := ExportToCSV(ds)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}

	return nil
}

// WriteResult records the outcome of writing one collection's file.
type WriteResult struct {
	Collection string
	Path       string
	Rows       int
	Err        error
}

// WriteAll writes one CSV file per export under dir, all sharing the run
// timestamp so the files form a matched set.
//
// Writing is best-effort and independent per collection: a failure is
// recorded in that collection's result and the remaining files are still
// written.
func WriteAll(exports []models.Export, timestamp, dir string) []WriteResult {
	if dir == "" {
		dir = "."
	}

	results := make([]WriteResult, 0, len(exports))
	for _, export := range exports {
		res := WriteResult{
			Collection: export.Collection,
			Path:       filepath.Join(dir, Filename(export.Collection, timestamp)),
			Rows:       export.Data.Len(),
		}
		res.Err = WriteCSV(export.Data, res.Path)
		results = append(results, res)
	}

	return results
}
