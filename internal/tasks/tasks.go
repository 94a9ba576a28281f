// package tasks implements playlist synchronization from a source to a destination service.
//
// The core abstraction is SyncEngine, which resolves source playlists and mirrors them on the destination.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/formatter"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultSearchRate = 5.0
	maxWorkers        = 10
)

// SyncResult contains everything known about one playlist sync, complete or partial.
type SyncResult struct {
	RunID           string            `json:"run_id"`
	Source          services.Playlist `json:"source"`
	DestinationID   string            `json:"destination_id"`
	Matches         []services.Match  `json:"matches"`
	Matched         int               `json:"matched"`
	Missing         int               `json:"missing"`
	Total           int               `json:"total"`
	MatchPercentage float64           `json:"match_percentage"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
	Err             string            `json:"error,omitempty"`
}

// MissingTracks returns the source tracks that could not be found on the destination.
func (r *SyncResult) MissingTracks() []services.Track {
	var missing []services.Track
	for _, m := range r.Matches {
		if !m.Found() {
			missing = append(missing, m.Source)
		}
	}
	return missing
}

// Report converts r for rendering by the formatter package.
func (r *SyncResult) Report() formatter.PlaylistReport {
	return formatter.PlaylistReport{
		RunID:           r.RunID,
		Playlist:        r.Source.Name,
		SourceID:        r.Source.ID,
		DestinationID:   r.DestinationID,
		Matched:         r.Matched,
		Missing:         r.Missing,
		Total:           r.Total,
		MatchPercentage: r.MatchPercentage,
		Duration:        r.FinishedAt.Sub(r.StartedAt),
		Error:           r.Err,
		Matches:         r.Matches,
	}
}

func (r *SyncResult) record(m services.Match) {
	r.Matches = append(r.Matches, m)
	if m.Found() {
		r.Matched++
	} else {
		r.Missing++
	}
}

func (r *SyncResult) finish(err error) {
	r.FinishedAt = time.Now()
	processed := r.Matched + r.Missing
	if processed > 0 {
		r.MatchPercentage = float64(r.Matched) / float64(processed) * 100
	}
	if err != nil {
		r.Err = err.Error()
	}
}

// SyncAllOpts selects the playlists synced by [PlaylistEngine.SyncAll].
type SyncAllOpts struct {
	Playlists             []string // IDs or names; empty means every own playlist
	IncludeRecommendation bool
}

// SyncAllResult collects the results of a multi-playlist sync in order.
type SyncAllResult struct {
	Results []*SyncResult `json:"results"`
}

// Reports converts every result for rendering.
func (r *SyncAllResult) Reports() []formatter.PlaylistReport {
	reports := make([]formatter.PlaylistReport, 0, len(r.Results))
	for _, res := range r.Results {
		reports = append(reports, res.Report())
	}
	return reports
}

// Totals sums matched and processed tracks across results.
func (r *SyncAllResult) Totals() (matched, total int) {
	for _, res := range r.Results {
		matched += res.Matched
		total += res.Matched + res.Missing
	}
	return matched, total
}

// SyncEngine defines operations for mirroring playlists between services.
type SyncEngine interface {
	// SyncPlaylist recreates playlist on the destination: create (optionally replacing), fetch tracks, then search and add each track in order.
	SyncPlaylist(ctx context.Context, progress chan<- ProgressUpdate, playlist services.Playlist) (*SyncResult, error)

	// SyncAll runs SyncPlaylist for every selected playlist and stops at the first hard error.
	SyncAll(ctx context.Context, progress chan<- ProgressUpdate, opts SyncAllOpts) (*SyncAllResult, error)

	// ResolvePlaylist finds a source playlist by ID or name.
	ResolvePlaylist(ctx context.Context, idOrName string) (*services.Playlist, error)

	// Export fetches a source playlist together with its tracks.
	Export(ctx context.Context, progress chan<- ProgressUpdate, playlist services.Playlist) (*services.PlaylistExport, error)
}

// EngineOpts configures a [PlaylistEngine].
type EngineOpts struct {
	KeepExisting bool    // create alongside same-named playlists instead of replacing them
	Workers      int     // concurrent searches; 1 or less searches sequentially
	SearchRate   float64 // searches per second when Workers > 1
	Logger       *log.Logger
}

// PlaylistEngine implements SyncEngine for a source and destination pair.
type PlaylistEngine struct {
	source services.Source
	dest   services.Destination
	opts   EngineOpts
	logger *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine. dest may be nil for read-only use.
func NewPlaylistEngine(source services.Source, dest services.Destination, opts EngineOpts) *PlaylistEngine {
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.SearchRate <= 0 {
		opts.SearchRate = defaultSearchRate
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		source: source,
		dest:   dest,
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "engine"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *PlaylistEngine) ready(needDest bool) error {
	if e.source == nil {
		return fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if needDest && e.dest == nil {
		return fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// ResolvePlaylist looks up a source playlist by ID, then by exact name.
// The recommendation playlist is considered when one is configured.
func (e *PlaylistEngine) ResolvePlaylist(ctx context.Context, idOrName string) (*services.Playlist, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	if idOrName == "" {
		return nil, fmt.Errorf("%w: playlist ID or name is required", shared.ErrMissingArgument)
	}

	playlists, err := e.source.OwnPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists: %w", err)
	}

	for _, p := range playlists {
		if p.ID == idOrName {
			return &p, nil
		}
	}
	for _, p := range playlists {
		if p.Name == idOrName {
			return &p, nil
		}
	}

	rec, err := e.source.RecommendationPlaylist(ctx)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
	case err != nil:
		return nil, fmt.Errorf("failed to get recommendation playlist: %w", err)
	case rec.ID == idOrName || rec.Name == idOrName:
		return rec, nil
	}

	return nil, fmt.Errorf("%w: no playlist found with ID or name '%s'", shared.ErrPlaylistNotFound, idOrName)
}

// Export fetches every track of playlist.
func (e *PlaylistEngine) Export(ctx context.Context, progress chan<- ProgressUpdate, playlist services.Playlist) (*services.PlaylistExport, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchingSourceUpdate(playlist))
	tracks, err := e.source.TracksFromPlaylist(ctx, playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of %s: %w", playlist.Name, err)
	}
	e.sendProgress(progress, foundTracksUpdate(playlist, tracks))

	playlist.TrackCount = len(tracks)
	return &services.PlaylistExport{Playlist: playlist, Tracks: tracks}, nil
}

// SyncPlaylist mirrors playlist on the destination.
//
// The destination playlist is created before the source tracks are fetched.
// Tracks that cannot be found are recorded and skipped. Nothing is rolled back:
// on a hard error the partial result is returned along with the error.
func (e *PlaylistEngine) SyncPlaylist(ctx context.Context, progress chan<- ProgressUpdate, playlist services.Playlist) (*SyncResult, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}

	result := &SyncResult{
		RunID:     shared.GenerateID(),
		Source:    playlist,
		StartedAt: time.Now(),
	}
	logger := e.logger.With("playlist", playlist.Name, "run", result.RunID)
	logger.Info("syncing playlist", "from", e.source.Name(), "to", e.dest.Name())

	fail := func(err error) (*SyncResult, error) {
		result.finish(err)
		logger.Error("sync failed", "error", err, "matched", result.Matched, "missing", result.Missing)
		return result, err
	}

	e.sendProgress(progress, createDestinationUpdate(playlist.Name, e.dest.Name()))
	destID, err := e.dest.CreatePlaylist(ctx, playlist.Name, !e.opts.KeepExisting)
	if err != nil {
		return fail(fmt.Errorf("failed to create destination playlist: %w", err))
	}
	result.DestinationID = destID
	e.sendProgress(progress, createdPlaylistUpdate(playlist.Name, destID))

	export, err := e.Export(ctx, progress, playlist)
	if err != nil {
		return fail(err)
	}
	result.Total = len(export.Tracks)

	if e.opts.Workers > 1 {
		err = e.addParallel(ctx, progress, destID, export.Tracks, result)
	} else {
		err = e.addSequential(ctx, progress, destID, export.Tracks, result)
	}
	if err != nil {
		return fail(err)
	}

	result.finish(nil)
	logger.Info("sync complete", "matched", result.Matched, "missing", result.Missing)
	e.sendProgress(progress, completeUpdate(result))
	return result, nil
}

func (e *PlaylistEngine) addSequential(ctx context.Context, progress chan<- ProgressUpdate, destID string, tracks []services.Track, result *SyncResult) error {
	total := len(tracks)
	for i, track := range tracks {
		e.sendProgress(progress, searchTracksUpdate(i+1, total, track))

		match, err := e.dest.AddTrackToPlaylist(ctx, destID, track.Title, track.Artist)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", track, err)
		}
		match.Source = track
		result.record(match)
		e.sendProgress(progress, addTrackUpdate(i+1, total, match))
	}
	return nil
}

type searchJob struct {
	index int
	track services.Track
}

type searchResult struct {
	index int
	match services.Match
	err   error
}

// addParallel searches with a paced worker pool, then appends in source order.
// Tracks before the first failed search are still added.
func (e *PlaylistEngine) addParallel(ctx context.Context, progress chan<- ProgressUpdate, destID string, tracks []services.Track, result *SyncResult) error {
	matches, searched, cause := e.searchAll(ctx, progress, tracks)

	total := len(tracks)
	for i, track := range tracks {
		if !searched[i] {
			if cause == nil {
				cause = ctx.Err()
			}
			return fmt.Errorf("failed to search %s: %w", track, cause)
		}

		if err := e.dest.AddMatch(ctx, destID, matches[i]); err != nil {
			return fmt.Errorf("failed to add %s: %w", track, err)
		}
		result.record(matches[i])
		e.sendProgress(progress, addTrackUpdate(i+1, total, matches[i]))
	}
	return nil
}

// searchAll resolves tracks concurrently. searched[i] is false when track i failed or was never attempted;
// cause is the first search error observed.
func (e *PlaylistEngine) searchAll(ctx context.Context, progress chan<- ProgressUpdate, tracks []services.Track) (matches []services.Match, searched []bool, cause error) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(e.opts.SearchRate), 1)
	jobs := make(chan searchJob)
	results := make(chan searchResult, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go e.searchWorker(searchCtx, &wg, limiter, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, track := range tracks {
			select {
			case jobs <- searchJob{index: i, track: track}:
			case <-searchCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	matches = make([]services.Match, len(tracks))
	searched = make([]bool, len(tracks))
	completed := 0

	for res := range results {
		completed++
		if res.err != nil {
			if cause == nil {
				cause = res.err
				cancel()
			}
			continue
		}
		matches[res.index] = res.match
		searched[res.index] = true
		e.sendProgress(progress, searchTracksUpdate(completed, len(tracks), res.match.Source))
	}
	return matches, searched, cause
}

// searchWorker is a worker goroutine that resolves tracks from the jobs channel.
func (e *PlaylistEngine) searchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan searchJob,
	results chan<- searchResult,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- searchResult{index: job.index, err: err}
			continue
		}

		match, err := e.dest.SearchTrack(ctx, job.track.Title, job.track.Artist)
		match.Source = job.track
		results <- searchResult{index: job.index, match: match, err: err}
	}
}

// SyncAll syncs the selected playlists one after another.
func (e *PlaylistEngine) SyncAll(ctx context.Context, progress chan<- ProgressUpdate, opts SyncAllOpts) (*SyncAllResult, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}

	playlists, err := e.selectPlaylists(ctx, progress, opts)
	if err != nil {
		return nil, err
	}

	result := &SyncAllResult{Results: make([]*SyncResult, 0, len(playlists))}
	for i, p := range playlists {
		e.sendProgress(progress, syncPlaylistUpdate(i+1, len(playlists), p))

		res, err := e.SyncPlaylist(ctx, progress, p)
		if res != nil {
			result.Results = append(result.Results, res)
		}
		if err != nil {
			return result, fmt.Errorf("sync of %s failed: %w", p.Name, err)
		}
	}
	return result, nil
}

func (e *PlaylistEngine) selectPlaylists(ctx context.Context, progress chan<- ProgressUpdate, opts SyncAllOpts) ([]services.Playlist, error) {
	var playlists []services.Playlist

	if len(opts.Playlists) == 0 {
		e.sendProgress(progress, fetchPlaylistsUpdate(e.source.Name()))
		own, err := e.source.OwnPlaylists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get playlists: %w", err)
		}
		playlists = own
	} else {
		for _, idOrName := range opts.Playlists {
			p, err := e.ResolvePlaylist(ctx, idOrName)
			if err != nil {
				return nil, err
			}
			playlists = append(playlists, *p)
		}
	}

	if opts.IncludeRecommendation {
		rec, err := e.source.RecommendationPlaylist(ctx)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *rec)
	}
	return playlists, nil
}
