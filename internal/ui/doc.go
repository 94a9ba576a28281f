// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for syncing one playlist:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [TrackListView] : Preview tracks before syncing
//  3. [ConfirmView] : Confirm the sync (replacing same-named TIDAL playlists)
//  4. [SyncView] : Monitor real-time progress updates
//  5. [ResultView] : Display match counts and tracks missing on TIDAL
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during a sync.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
