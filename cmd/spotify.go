package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidx/internal/formatter"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Always runs the browser flow, even when a saved token is still valid, and saves the new tokens to the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if err := creds.Validate(); err != nil {
		return err
	}

	config, err := services.NewSpotifyConfig(creds.ClientID, creds.ClientSecret, creds.RedirectURI)
	if err != nil {
		return err
	}

	token, err := r.authorizer().browserAuth(ctx, config)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: tidx spotify playlists\n")

	return nil
}

// sourcePlaylists lists own playlists, plus the recommendation playlist when requested.
func (r *Runner) sourcePlaylists(ctx context.Context, withRecommendation bool) ([]services.Playlist, error) {
	source, err := r.spotify(ctx)
	if err != nil {
		return nil, err
	}

	playlists, err := source.OwnPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists: %w", err)
	}

	if withRecommendation {
		rec, err := source.RecommendationPlaylist(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recommendation playlist: %w", err)
		}
		playlists = append(playlists, *rec)
	}
	return playlists, nil
}

// SpotifyPlaylists lists Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	playlists, err := r.sourcePlaylists(ctx, cmd.Bool("recommendation"))
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("   Visibility: %s\n", shared.VisibilityString(p.Public))
		r.writePlain("\n")
	}

	return nil
}

// SpotifyTracks prints every track of a playlist.
func (r *Runner) SpotifyTracks(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx, false, r.engineOpts())
	if err != nil {
		return err
	}

	playlist, err := engine.ResolvePlaylist(ctx, cmd.String("playlist"))
	if err != nil {
		return err
	}

	export, err := engine.Export(ctx, nil, *playlist)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, cmd.Bool("pretty"))
	}

	r.writePlain("Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		r.writePlain("Description: %s\n", export.Playlist.Description)
	}
	r.writePlain("Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		r.writePlain("%d. %s - %s (%s)\n", i+1, track.Artist, track.Title, shared.FormatDuration(track.Duration))
		if track.Album != "" {
			r.writePlain("   Album: %s\n", track.Album)
		}
		if track.ISRC != "" {
			r.writePlain("   ISRC: %s\n", track.ISRC)
		}
	}

	return nil
}

// SpotifyExport writes one playlist, or with --all every playlist, to files in the chosen format.
func (r *Runner) SpotifyExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	idOrName := cmd.String("playlist")
	all := cmd.Bool("all")
	switch {
	case all && idOrName != "":
		return fmt.Errorf("%w: cannot specify both --playlist and --all", shared.ErrInvalidArgument)
	case !all && idOrName == "":
		return fmt.Errorf("%w: --playlist or --all is required", shared.ErrMissingArgument)
	}

	engine, err := r.engine(ctx, false, r.engineOpts())
	if err != nil {
		return err
	}

	if all {
		return r.bulkExport(ctx, cmd, engine, format)
	}

	playlist, err := engine.ResolvePlaylist(ctx, idOrName)
	if err != nil {
		return err
	}

	r.logger.Infof("exporting spotify playlist %v", playlist.ID)

	export, err := engine.Export(ctx, nil, *playlist)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	var files []string
	switch format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		files = []string{res.TracksFile, res.MetadataFile}
	case formatter.FormatMarkdown:
		file, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		files = []string{file}
	default:
		file, err := formatter.WriteExport(export, format, output)
		if err != nil {
			return err
		}
		files = []string{file}
	}

	r.logger.Infof("playlist exported to %v with %v tracks", files, len(export.Tracks))

	r.writePlain("✓ Playlist exported\n")
	r.writePlain("  Playlist: %s\n", export.Playlist.Name)
	r.writePlain("  Tracks: %d\n", len(export.Tracks))
	for _, f := range files {
		r.writePlain("  File: %s\n", f)
	}
	return nil
}

func (r *Runner) bulkExport(ctx context.Context, cmd *cli.Command, engine *tasks.PlaylistEngine, format formatter.Format) error {
	playlists, err := r.sourcePlaylists(ctx, cmd.Bool("recommendation"))
	if err != nil {
		return err
	}
	if len(playlists) == 0 {
		r.writePlain("No playlists to export\n")
		return nil
	}

	r.writePlain("Exporting %d playlists as %s...\n\n", len(playlists), format)

	progress, done := r.printProgress()
	result, err := engine.BulkExport(ctx, progress, playlists, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Export Complete")
		r.writePlain("%s\n", result)
		if result.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", result.ManifestPath)
		}
		for _, res := range result.Results {
			if res.ErrorMessage != "" {
				r.writePlain("  ✗ %s: %s\n", res.PlaylistName, res.ErrorMessage)
			}
		}
	}
	if err != nil {
		return err
	}
	if result.FailedExports > 0 {
		return fmt.Errorf("%w: %d of %d playlists failed to export", shared.ErrAPIRequest, result.FailedExports, result.TotalPlaylists)
	}
	return nil
}
