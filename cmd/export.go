package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/spx/internal/history"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Export runs a full library export: authenticate with stored tokens, fetch
// every collection and write the timestamped CSV set.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadConfig(configPath)

	opts := tasks.ExportOpts{
		OutputDir: config.Export.OutputDir,
		RateLimit: config.Export.RateLimit,
	}
	if v := cmd.String("output"); v != "" {
		opts.OutputDir = v
	}
	if cmd.IsSet("rate-limit") {
		opts.RateLimit = cmd.Float("rate-limit")
	}

	svc, err := r.authenticatedService(ctx, configPath, config)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	result, runErr := r.runEngine(ctx, svc, opts)
	if runErr != nil {
		if reauthed, authErr := r.handleAuthError(ctx, runErr, cmd); reauthed {
			if authErr != nil {
				return authErr
			}
			if result, runErr = r.runEngine(ctx, r.spotify, opts); runErr != nil {
				return fmt.Errorf("export failed: %w", runErr)
			}
		} else {
			return fmt.Errorf("export failed: %w", runErr)
		}
	}

	if !cmd.Bool("no-history") {
		if err := r.recordRun(config, startedAt, result); err != nil {
			r.logger.Warnf("failed to record run history %v", err)
		}
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Collections: %d\n", len(result.Files))
	r.writePlain("Total rows:  %d\n", result.TotalRows)
	r.writePlain("Timestamp:   %s\n", result.Timestamp)

	if result.Failed > 0 {
		r.writePlainln("⚠ %d file(s) could not be written:", result.Failed)
		for _, f := range result.Files {
			if f.Err != nil {
				r.writePlain("  ✗ %s: %v\n", f.Collection, f.Err)
			}
		}
		return fmt.Errorf("%w: %d of %d files failed", shared.ErrExportFailed, result.Failed, len(result.Files))
	}

	return nil
}

// runEngine executes one export run, draining progress updates into plain
// console lines until the engine finishes.
func (r *Runner) runEngine(ctx context.Context, svc services.Service, opts tasks.ExportOpts) (*tasks.ExportResult, error) {
	engine := tasks.NewExportEngine(svc)

	prog := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.Run(ctx, prog, opts)
	close(prog)
	wg.Wait()

	return result, err
}

// authenticatedService returns the Runner's Spotify service authenticated
// with the tokens stored in the config, creating the service if main could
// not (credentials supplied only via flags or a non-default config path).
func (r *Runner) authenticatedService(ctx context.Context, configPath string, config *shared.Config) (services.Service, error) {
	svc := r.spotify
	if svc == nil {
		if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
			return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml or the environment", shared.ErrMissingCredentials)
		}

		created, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			return nil, fmt.Errorf("failed to create Spotify service: %w", err)
		}
		svc = created
		r.spotify = created
	}

	oauthSvc, ok := svc.(services.OAuthService)
	if !ok {
		// Fake services used in tests manage their own auth state.
		return svc, nil
	}

	token := config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no stored tokens, run `spx auth` first", shared.ErrNotAuthenticated)
	}

	// Persist refreshed tokens so the next run does not need a new consent.
	oauthSvc.SetTokenRefreshCallback(func(refreshed *oauth2.Token) {
		if err := config.Credentials.Spotify.Update(refreshed); err != nil {
			r.logger.Warnf("failed to store refreshed token %v", err)
			return
		}
		if err := shared.SaveConfig(configPath, config); err != nil {
			r.logger.Warnf("failed to save refreshed token %v", err)
		}
	})

	// The Runner's HTTP client becomes the base transport of the oauth2
	// client, for both token refreshes and API calls.
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	if err := oauthSvc.OAuthenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return svc, nil
}

// recordRun writes the run outcome to the history ledger.
func (r *Runner) recordRun(config *shared.Config, startedAt time.Time, result *tasks.ExportResult) error {
	path := config.Export.HistoryPath
	if path == "" {
		path = "spx_history.db"
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	files := make([]history.File, 0, len(result.Files))
	for _, f := range result.Files {
		record := history.File{
			Collection: f.Collection,
			Path:       f.Path,
			Rows:       f.Rows,
		}
		if f.Err != nil {
			record.Error = f.Err.Error()
		}
		files = append(files, record)
	}

	_, err = store.RecordRun(history.Run{
		Timestamp: result.Timestamp,
		StartedAt: startedAt,
		TotalRows: result.TotalRows,
		Failed:    result.Failed,
	}, files)

	return err
}
