// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2 and save the tokens",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List your Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to print (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "recommendation",
						Usage: "Include the configured recommendation playlist",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "tracks",
				Usage: "List the tracks of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist ID or name",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.SpotifyTracks,
			},
			{
				Name:  "export",
				Usage: "Export one playlist, or all of them, to files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist ID or name",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every playlist concurrently",
					},
					&cli.BoolFlag{
						Name:  "recommendation",
						Usage: "Include the recommendation playlist with --all",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (single playlist) or directory (--all)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent file writers with --all",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Spotify requests per second with --all",
						Value: 5,
					},
				},
				Action: r.SpotifyExport,
			},
		},
	}
}

// tidalCommand handles TIDAL operations
func tidalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tidal",
		Usage: "TIDAL playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List your TIDAL playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.TidalPlaylists,
			},
			{
				Name:  "search",
				Usage: "Search TIDAL for a track by title and artist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "title",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "artist",
						Aliases:  []string{"a"},
						Usage:    "Artist name that must match",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TidalSearch,
			},
			{
				Name:  "create",
				Usage: "Create a playlist on TIDAL",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Delete playlists with the same name first",
					},
				},
				Action: r.TidalCreate,
			},
			{
				Name:  "delete",
				Usage: "Delete every TIDAL playlist with the given name",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Action: r.TidalDelete,
			},
		},
	}
}

// syncCommand handles Spotify → TIDAL sync operations
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync playlists from Spotify to TIDAL",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Recreate Spotify playlists on TIDAL",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist ID or name (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Sync every playlist you own",
					},
					&cli.BoolFlag{
						Name:  "recommendation",
						Usage: "Also sync the configured recommendation playlist",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent track searches (overrides sync.workers)",
					},
					&cli.BoolFlag{
						Name:  "keep-existing",
						Usage: "Do not delete TIDAL playlists with the same name",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a sync report to this path",
					},
					&cli.StringFlag{
						Name:  "report-format",
						Usage: "Report format: json, csv, markdown, txt",
						Value: "json",
					},
				},
				Action: r.SyncRun,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist sync.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist sync",
		Action:  r.TUI,
	}
}
