// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
)

// FakeSource is an in-memory [services.Source].
type FakeSource struct {
	Playlists      []services.Playlist
	Recommendation *services.Playlist
	Tracks         map[string][]services.Track // keyed by playlist ID

	PlaylistsErr error
	TracksErr    error

	mu          sync.Mutex
	TracksCalls int
}

// NewFakeSource creates a [FakeSource] with the given playlists and no tracks.
func NewFakeSource(playlists ...services.Playlist) *FakeSource {
	return &FakeSource{Playlists: playlists, Tracks: make(map[string][]services.Track)}
}

func (f *FakeSource) Name() string { return "fake-source" }

func (f *FakeSource) OwnPlaylists(ctx context.Context) ([]services.Playlist, error) {
	if f.PlaylistsErr != nil {
		return nil, f.PlaylistsErr
	}
	return slices.Clone(f.Playlists), nil
}

func (f *FakeSource) RecommendationPlaylist(ctx context.Context) (*services.Playlist, error) {
	if f.Recommendation == nil {
		return nil, fmt.Errorf("%w: no recommendation playlist ID set", shared.ErrMissingConfig)
	}
	p := *f.Recommendation
	return &p, nil
}

func (f *FakeSource) TracksFromPlaylist(ctx context.Context, playlist services.Playlist) ([]services.Track, error) {
	f.mu.Lock()
	f.TracksCalls++
	f.mu.Unlock()

	if f.TracksErr != nil {
		return nil, f.TracksErr
	}
	return slices.Clone(f.Tracks[playlist.ID]), nil
}

// FakeDestination is an in-memory [services.Destination] with a searchable catalog.
//
// Search matches the title exactly and the artist case-insensitively, like the real client.
type FakeDestination struct {
	Catalog map[string]services.Track // track ID -> track

	SearchErr   map[string]error // keyed by title
	AddErr      error
	CreateErr   error
	FailAddAt   int // fail the n-th append (1-based) with AddErr; 0 fails every append
	SearchCalls int
	AddCalls    int

	mu        sync.Mutex
	order     []string
	playlists []services.Playlist
	items     map[string][]string
	created   int
}

// NewFakeDestination creates a [FakeDestination] holding catalog.
func NewFakeDestination(catalog ...services.Track) *FakeDestination {
	f := &FakeDestination{
		Catalog:   make(map[string]services.Track),
		SearchErr: make(map[string]error),
		items:     make(map[string][]string),
	}
	for _, t := range catalog {
		f.Catalog[t.ID] = t
		f.order = append(f.order, t.ID)
	}
	return f
}

func (f *FakeDestination) Name() string { return "fake-destination" }

// AddPlaylist seeds an existing playlist.
func (f *FakeDestination) AddPlaylist(id, name string, trackIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists = append(f.playlists, services.Playlist{ID: id, Name: name, TrackCount: len(trackIDs)})
	f.items[id] = trackIDs
}

// Items returns the track IDs of a playlist in order.
func (f *FakeDestination) Items(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items[playlistID])
}

// PlaylistsNamed returns the IDs of every playlist called name.
func (f *FakeDestination) PlaylistsNamed(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, p := range f.playlists {
		if p.Name == name {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (f *FakeDestination) OwnPlaylists(ctx context.Context) ([]services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.playlists), nil
}

func (f *FakeDestination) CreatePlaylist(ctx context.Context, name string, deleteExisting bool) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if deleteExisting {
		if err := f.DeleteExistingPlaylist(ctx, name); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	id := fmt.Sprintf("dest-%d", f.created)
	f.playlists = append(f.playlists, services.Playlist{ID: id, Name: name})
	f.items[id] = nil
	return id, nil
}

func (f *FakeDestination) DeleteExistingPlaylist(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists = slices.DeleteFunc(f.playlists, func(p services.Playlist) bool {
		if p.Name == name {
			delete(f.items, p.ID)
			return true
		}
		return false
	})
	return nil
}

func (f *FakeDestination) SearchTrack(ctx context.Context, title, artist string) (services.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchCalls++

	match := services.Match{Source: services.Track{Title: title, Artist: artist}}
	if err := ctx.Err(); err != nil {
		return match, err
	}
	if err := f.SearchErr[title]; err != nil {
		return match, err
	}

	for _, id := range f.order {
		t := f.Catalog[id]
		if t.Title == title && strings.EqualFold(t.Artist, artist) {
			match.TrackID = id
			break
		}
	}
	return match, nil
}

func (f *FakeDestination) AddTrackToPlaylist(ctx context.Context, playlistID, title, artist string) (services.Match, error) {
	match, err := f.SearchTrack(ctx, title, artist)
	if err != nil {
		return match, err
	}
	return match, f.AddMatch(ctx, playlistID, match)
}

func (f *FakeDestination) AddMatch(ctx context.Context, playlistID string, match services.Match) error {
	if !match.Found() {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls++

	if f.AddErr != nil && (f.FailAddAt == 0 || f.FailAddAt == f.AddCalls) {
		return f.AddErr
	}
	if _, ok := f.items[playlistID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	f.items[playlistID] = append(f.items[playlistID], match.TrackID)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
