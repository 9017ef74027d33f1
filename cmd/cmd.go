package main

import "github.com/urfave/cli/v3"

func userFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Local user ID that owns the playlists",
		Required: required,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// setupCommand handles config, schema and demo data setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "seed",
				Usage: "Create a demo user and import a demo catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Demo account e-mail",
						Value: "demo@playdeck.local",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Demo account password",
						Value: "playdeck",
					},
				},
				Action: r.SetupSeed,
			},
		},
	}
}

// serveCommand runs the REST API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the REST API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// playlistCommand handles local playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Manage local playlists",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a playlist from a JSON import request file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags:  append([]cli.Flag{userFlag(false)}, jsonFlags()...),
				Action: r.PlaylistImport,
			},
			{
				Name:   "list",
				Usage:  "List a user's playlists",
				Flags:  append([]cli.Flag{userFlag(true)}, jsonFlags()...),
				Action: r.PlaylistList,
			},
			{
				Name:  "export",
				Usage: "Export a playlist to csv, md, txt, m3u or json",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (default: {id}{ext}, or a directory for md)",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// spotifyCommand handles Spotify authorization and imports.
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "spotify",
		Usage: "Spotify operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authorize with Spotify through the browser",
				Flags:  []cli.Flag{userFlag(false)},
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: append([]cli.Flag{
					userFlag(false),
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum number of playlists to show",
					},
				}, jsonFlags()...),
				Action: r.SpotifyPlaylists,
			},
			{
				Name:      "import",
				Usage:     "Import Spotify playlists (by ID or name) into the local library",
				ArgsUsage: "[playlist...]",
				Flags: []cli.Flag{
					userFlag(true),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Import every playlist of the account",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent imports for bulk runs",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Playlist fetches per second for bulk runs",
						Value: 5,
					},
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Write a JSON manifest of a bulk run to this path",
					},
				},
				Action: r.SpotifyImport,
			},
			{
				Name:  "diff",
				Usage: "Compare a Spotify playlist with a local playlist",
				Flags: []cli.Flag{
					userFlag(false),
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Spotify playlist ID or name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "local",
						Usage:    "Local playlist ID",
						Required: true,
					},
				},
				Action: r.SpotifyDiff,
			},
		},
	}
}

// libraryCommand handles local audio files.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Local music library operations",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Scan a directory of audio files into a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "dir"},
				},
				Flags: []cli.Flag{
					userFlag(true),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Playlist name (default: directory name)",
					},
				},
				Action: r.LibraryScan,
			},
		},
	}
}

// playerCommand launches the terminal player.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "play"},
		Usage:   "Launch the interactive terminal player",
		Flags:   []cli.Flag{userFlag(true)},
		Action:  r.Player,
	}
}
