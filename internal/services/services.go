// package services defines the source and destination clients for playlist migration
//
// Spotify (source, read-only) and TIDAL (destination)
package services

import (
	"context"
	"fmt"
)

// Source is a read-only view of the service playlists are migrated from.
type Source interface {
	// OwnPlaylists retrieves every playlist owned by the authenticated user, draining pagination.
	OwnPlaylists(ctx context.Context) ([]Playlist, error)

	// RecommendationPlaylist retrieves the pre-configured curated playlist.
	RecommendationPlaylist(ctx context.Context) (*Playlist, error)

	// TracksFromPlaylist retrieves every track of playlist in order.
	TracksFromPlaylist(ctx context.Context, playlist Playlist) ([]Track, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Destination is the service playlists are recreated on.
type Destination interface {
	// OwnPlaylists retrieves the playlists owned by the authenticated user.
	OwnPlaylists(ctx context.Context) ([]Playlist, error)

	// CreatePlaylist creates a playlist named name and returns its ID.
	// With deleteExisting set, every playlist already named name is deleted first.
	CreatePlaylist(ctx context.Context, name string, deleteExisting bool) (string, error)

	// DeleteExistingPlaylist deletes every playlist named name.
	DeleteExistingPlaylist(ctx context.Context, name string) error

	// SearchTrack searches by title and returns the first candidate by artist.
	SearchTrack(ctx context.Context, title, artist string) (Match, error)

	// AddTrackToPlaylist resolves a track by search and appends it when found.
	AddTrackToPlaylist(ctx context.Context, playlistID, title, artist string) (Match, error)

	// AddMatch appends an already resolved match; unresolved matches are logged and skipped.
	AddMatch(ctx context.Context, playlistID string, match Match) error

	// Name returns the name of the service (e.g., "TIDAL")
	Name() string
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// PlaylistExport represents a playlist with all its tracks
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// Track represents a music track from any service
type Track struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration,omitempty"` // Duration in seconds
	ISRC     string `json:"isrc,omitempty"`
}

// String returns "Artist - Title".
func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Match associates a source track with a destination track ID resolved by search.
//
// An empty TrackID means the track was not found; that outcome is final for the track.
type Match struct {
	Source  Track  `json:"source"`
	TrackID string `json:"track_id,omitempty"`
}

// Found reports whether the search resolved a destination track.
func (m Match) Found() bool {
	return m.TrackID != ""
}

// page is the paginated response envelope shared by list endpoints.
//
// Next holds the URL of the following page, or nil on the last page.
type page[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}
