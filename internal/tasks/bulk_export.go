package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/tidx/internal/formatter"
	"github.com/desertthunder/tidx/internal/services"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: spotify_export_{epoch})
	NumWorkers int              // Concurrent file writers (default: 5)
	RateLimit  float64          // Source requests per second (default: 5)
}

// PlaylistExportJob is a fetched playlist waiting to be written.
type PlaylistExportJob struct {
	PlaylistID string
	Export     *services.PlaylistExport
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and is written as the manifest.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

// BulkExport backs up several source playlists concurrently with rate limiting and progress tracking.
//
// Track lists are fetched from the source at opts.RateLimit requests per second and written by a pool of workers.
// A failed playlist does not stop the others. A manifest summarizing the run is written to the output directory.
func (e *PlaylistEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	playlists []services.Playlist,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultSearchRate
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(playlists)
	result := &BulkExportResult{
		TotalPlaylists:  total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan PlaylistExportJob, total)
	results := make(chan PlaylistExportResult, total)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, p := range playlists {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			tracks, err := e.source.TracksFromPlaylist(ctx, p)
			if err != nil {
				results <- PlaylistExportResult{
					PlaylistID:   p.ID,
					PlaylistName: p.Name,
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			p.TrackCount = len(tracks)
			jobs <- PlaylistExportJob{
				PlaylistID: p.ID,
				Export:     &services.PlaylistExport{Playlist: p, Tracks: tracks},
			}
			e.sendProgress(prog, exportingPlaylistUpdate(i+1, total, p.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.ErrorMessage = res.Error.Error()
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, total, res.PlaylistName, res.Error))
		} else {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, total, res.PlaylistName, len(res.Files)))
		}
		result.Results = append(result.Results, res)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that writes playlists from the jobs channel.
func (e *PlaylistEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- e.exportSinglePlaylist(job, opts)
	}
}

// exportSinglePlaylist writes a single playlist in the requested format.
func (e *PlaylistEngine) exportSinglePlaylist(j PlaylistExportJob, opts BulkExportOpts) PlaylistExportResult {
	result := PlaylistExportResult{
		PlaylistID:   j.PlaylistID,
		PlaylistName: j.Export.Playlist.Name,
		Files:        []string{},
	}

	switch opts.Format {
	case formatter.FormatCSV:
		csvRes, err := formatter.WriteCSVExport(j.Export, filepath.Join(opts.OutputDir, j.PlaylistID))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}

	case formatter.FormatMarkdown:
		mdFile, err := formatter.WriteMarkdownExport(j.Export, filepath.Join(opts.OutputDir, j.PlaylistID))
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = []string{mdFile}

	case formatter.FormatText:
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_tracks.txt", j.PlaylistID))
		if _, err := formatter.WriteExport(j.Export, formatter.FormatText, path); err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s.json", j.PlaylistID))
		if _, err := formatter.WriteExport(j.Export, formatter.FormatJSON, path); err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	e.logger.Debug("exported playlist", "playlist", j.Export.Playlist.Name, "files", len(result.Files))
	return result
}

func (r *BulkExportResult) String() string {
	return fmt.Sprintf("%d/%d playlists exported to %s", r.SuccessfulExports, r.TotalPlaylists, r.OutputDirectory)
}
