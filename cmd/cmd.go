// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are read by [Runner.Before] for every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("MUSICAI_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep the session in memory instead of the database",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug logging",
		},
	}
}

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, csv, markdown or text",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to this file instead of stdout",
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the session database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the bundled template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles the backend session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the MusicAI account session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u", "email"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("MUSICAI_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:  "signup",
				Usage: "Create a new account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("MUSICAI_PASSWORD"),
						Required: true,
					},
					&cli.StringFlag{
						Name:  "full-name",
						Usage: "Display name",
					},
				},
				Action: r.AuthSignup,
			},
			{
				Name:  "recover",
				Usage: "Send a password recovery email",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Action: r.AuthRecover,
			},
			{
				Name:  "reset",
				Usage: "Set a new password with a recovery token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Token from the recovery email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "New password",
						Sources:  cli.EnvVars("MUSICAI_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthReset,
			},
		},
	}
}

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "full-name", Usage: "Display name"},
		&cli.StringFlag{Name: "email", Usage: "Account email"},
		&cli.StringFlag{Name: "password", Usage: "New password", Sources: cli.EnvVars("MUSICAI_NEW_PASSWORD")},
	}
}

// meCommand handles the logged in user's profile
func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "me",
		Usage: "Show or update your profile",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show your profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.MeShow,
			},
			{
				Name:   "update",
				Usage:  "Update your profile",
				Flags:  profileFlags(),
				Action: r.MeUpdate,
			},
		},
	}
}

// usersCommand handles superuser account management
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage accounts (superusers only)",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List all accounts",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.UsersList,
			},
			{
				Name:  "create",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Initial password", Sources: cli.EnvVars("MUSICAI_NEW_PASSWORD")},
					&cli.StringFlag{Name: "full-name", Usage: "Display name"},
					&cli.BoolFlag{Name: "superuser", Usage: "Grant superuser access"},
					&cli.BoolFlag{Name: "inactive", Usage: "Create the account disabled"},
				},
				Action: r.UsersCreate,
			},
			{
				Name:  "update",
				Usage: "Update an account by id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append(profileFlags(),
					&cli.BoolFlag{Name: "superuser", Usage: "Superuser access"},
					&cli.BoolFlag{Name: "active", Usage: "Account enabled"},
				),
				Action: r.UsersUpdate,
			},
		},
	}
}

// spotifyCommand handles the Spotify session
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Manage the Spotify connection",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Connect Spotify using OAuth2",
				Action: r.SpotifyLogin,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the Spotify access token",
				Action: r.SpotifyRefresh,
			},
			{
				Name:  "status",
				Usage: "Show the Spotify connection",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.SpotifyStatus,
			},
			{
				Name:   "logout",
				Usage:  "Disconnect Spotify",
				Action: r.SpotifyLogout,
			},
		},
	}
}

// risingFlags are the rising-tracks query filters.
func risingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "Tracks per page", Value: 100},
		&cli.IntFlag{Name: "skip", Usage: "Tracks to skip", Value: 0},
		&cli.IntFlag{Name: "lag-days", Usage: "Growth window in days", Value: 7},
		&cli.StringFlag{Name: "order-by", Usage: "Sort column", Value: "musicai_score"},
		&cli.IntFlag{Name: "min-score", Usage: "Minimum MusicAI score", Value: 1},
		&cli.IntFlag{Name: "max-score", Usage: "Maximum MusicAI score", Value: 5},
	}
}

// tracksCommand handles rising tracks
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Rising tracks",
		Commands: []*cli.Command{
			{
				Name:  "rising",
				Usage: "Fetch rising tracks",
				Flags: append(append(risingFlags(),
					&cli.IntFlag{Name: "pages", Usage: "Pages to fetch and merge", Value: 1},
				), formatFlags()...),
				Action: r.TracksRising,
			},
			{
				Name:    "browse",
				Aliases: []string{"tui", "ui"},
				Usage:   "Browse rising tracks interactively",
				Flags:   risingFlags(),
				Action:  r.TracksBrowse,
			},
			{
				Name:  "save",
				Usage: "Save a track to your Spotify library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.TracksSave,
			},
		},
	}
}

// playlistCommand handles playlist generation
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Generated playlists",
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Generate a playlist from your Spotify top artists and tracks",
				Flags:  formatFlags(),
				Action: r.PlaylistGenerate,
			},
		},
	}
}
