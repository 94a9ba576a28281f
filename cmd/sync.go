package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidx/internal/formatter"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// printProgress starts a goroutine that prints progress updates until the returned channel is closed.
// done is closed once everything has been printed.
func (r *Runner) printProgress() (chan tasks.ProgressUpdate, <-chan struct{}) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.SyncPlaylists:
				r.writePlain("\n%s\n", update.Message)
			case tasks.FetchPlaylists, tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.CreatePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.AddTracks, tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			case tasks.Complete:
				r.writePlain("✓ %s\n", update.Message)
			}
		}
	}()

	return progress, done
}

// SyncRun recreates the selected Spotify playlists on TIDAL.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	names := cmd.StringSlice("playlist")
	all := cmd.Bool("all")
	switch {
	case all && len(names) > 0:
		return fmt.Errorf("%w: cannot specify both --playlist and --all", shared.ErrInvalidArgument)
	case !all && len(names) == 0:
		return fmt.Errorf("%w: --playlist or --all is required", shared.ErrMissingArgument)
	}

	reportPath := cmd.String("report")
	reportFormat, err := formatter.ParseFormat(cmd.String("report-format"))
	if err != nil {
		return err
	}

	opts := r.engineOpts()
	if workers := cmd.Int("workers"); workers > 0 {
		opts.Workers = workers
	}
	if cmd.Bool("keep-existing") {
		opts.KeepExisting = true
	}

	engine, err := r.engine(ctx, true, opts)
	if err != nil {
		return err
	}

	r.logger.Info("starting sync", "playlists", names, "all", all, "workers", opts.Workers)
	r.writePlain("Syncing Spotify → TIDAL...\n")

	progress, done := r.printProgress()
	result, syncErr := engine.SyncAll(ctx, progress, tasks.SyncAllOpts{
		Playlists:             names,
		IncludeRecommendation: cmd.Bool("recommendation"),
	})
	close(progress)
	<-done

	if result != nil {
		r.printSyncSummary(result)

		if reportPath != "" {
			if err := formatter.WriteReport(result.Reports(), reportFormat, reportPath); err != nil {
				r.logger.Error("failed to write report", "error", err)
			} else {
				r.writePlain("Report written to %s\n", reportPath)
			}
		}
	}

	return syncErr
}

func (r *Runner) printSyncSummary(result *tasks.SyncAllResult) {
	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")

	for _, res := range result.Results {
		r.writePlain("%s → %s\n", res.Source.Name, res.DestinationID)
		r.writePlain("  Success rate: %d/%d (%.1f%%)\n", res.Matched, res.Matched+res.Missing, res.MatchPercentage)
		if res.Err != "" {
			r.writePlain("  Stopped: %s\n", res.Err)
		}

		if missing := res.MissingTracks(); len(missing) > 0 {
			r.writePlain("  Not found on TIDAL (%d):\n", len(missing))
			for _, track := range missing {
				r.writePlain("    - %s\n", track)
			}
		}
	}

	matched, total := result.Totals()
	r.writePlain("\nTotal: %d/%d tracks across %d playlists\n", matched, total, len(result.Results))
}
