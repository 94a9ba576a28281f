// Package tasks mirrors playlists from a [services.Source] onto a [services.Destination] with real-time progress reporting.
//
// # Sync Procedure
//
// [PlaylistEngine.SyncPlaylist] runs the same steps for every playlist:
//
//  1. Create the destination playlist, deleting every playlist with the same name first unless
//     [EngineOpts.KeepExisting] is set
//  2. Fetch the complete source track list (all pages)
//  3. For each track in source order, search by title, accept the first candidate whose primary artist
//     matches case-insensitively, and append it
//
// A track that cannot be found is recorded as missing and skipped. Any other error stops the sync.
// Nothing is rolled back, so the destination keeps what was added so far and the partial [SyncResult]
// is returned together with the error.
//
// # Parallel Search
//
// With [EngineOpts.Workers] greater than one, searches run on a worker pool paced by a token bucket
// (golang.org/x/time/rate) at [EngineOpts.SearchRate] requests per second. Appends still happen one at a time in
// source order, so the destination order always equals the source order.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking; a nil channel disables reporting.
//
// # Bulk Export
//
// [PlaylistEngine.BulkExport] backs up source playlists to disk with a rate-limited fetcher feeding a pool of
// writers, and writes a manifest of the run.
package tasks
