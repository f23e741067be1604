package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spx/internal/history"
	"github.com/urfave/cli/v3"
)

// History lists recorded export runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadConfig(configPath)

	path := config.Export.HistoryPath
	if path == "" {
		path = "spx_history.db"
	}

	if _, err := os.Stat(path); err != nil {
		r.writePlain("No export runs recorded yet.\n")
		return nil
	}

	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history ledger: %w", err)
	}
	defer store.Close()

	runs, err := store.Runs(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		r.writePlain("No export runs recorded yet.\n")
		return nil
	}

	r.writePlainHeader("Export History")
	for _, run := range runs {
		r.writePlain("%s  rows: %-6d", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.TotalRows)
		if run.Failed > 0 {
			r.writePlain("  ✗ %d failed", run.Failed)
		}
		r.writePlain("\n")

		files, err := store.Files(run.ID)
		if err != nil {
			r.logger.Warnf("failed to list run files %v", err)
			continue
		}
		for _, f := range files {
			if f.Error != "" {
				r.writePlain("  ✗ %s: %s\n", f.Collection, f.Error)
			} else {
				r.writePlain("  ✓ %s (%d rows)\n", f.Collection, f.Rows)
			}
		}
	}

	return nil
}
