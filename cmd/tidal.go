package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// TidalPlaylists lists the playlists owned by the TIDAL user.
func (r *Runner) TidalPlaylists(ctx context.Context, cmd *cli.Command) error {
	dest, err := r.tidal(ctx)
	if err != nil {
		return err
	}

	playlists, err := dest.OwnPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n\n", p.TrackCount)
	}
	return nil
}

// TidalSearch looks up a single track the way a sync would.
func (r *Runner) TidalSearch(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	artist := cmd.String("artist")
	if title == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrMissingArgument)
	}

	dest, err := r.tidal(ctx)
	if err != nil {
		return err
	}

	match, err := dest.SearchTrack(ctx, title, artist)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(match, true)
	}

	if !match.Found() {
		return fmt.Errorf("%w: %s - %s", shared.ErrTrackNotFound, artist, title)
	}

	r.writePlain("✓ Found: %s - %s\n", artist, title)
	r.writePlain("  Track ID: %s\n", match.TrackID)
	return nil
}

// TidalCreate creates an empty playlist.
func (r *Runner) TidalCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	dest, err := r.tidal(ctx)
	if err != nil {
		return err
	}

	id, err := dest.CreatePlaylist(ctx, name, cmd.Bool("replace"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Playlist created: %s\n", name)
	r.writePlain("  ID: %s\n", id)
	return nil
}

// TidalDelete deletes every playlist with the given name.
func (r *Runner) TidalDelete(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	dest, err := r.tidal(ctx)
	if err != nil {
		return err
	}

	if err := dest.DeleteExistingPlaylist(ctx, name); err != nil {
		return err
	}

	r.writePlain("✓ Deleted playlists named %s\n", name)
	return nil
}
