// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// rootFlags are shared by the default invocation and the download command.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log warnings and errors",
		},
		&cli.BoolFlag{
			Name:  "car-audio",
			Usage: "Skip downloading and repackage [path] (default: most recent download folder) for car audio",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Answer yes to the car audio prompt",
		},
		&cli.BoolFlag{
			Name:  "no-car-audio",
			Usage: "Do not offer car audio repackaging after downloading",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show the interactive download monitor",
		},
	}
}

// downloadCommand is the default pipeline: fetch the playlist, download new tracks, offer car audio.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "download",
		Usage:  "Download new tracks of the configured playlist",
		Action: r.Download,
	}
}

// carAudioCommand repackages a folder for car stereos
func carAudioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "car-audio",
		Usage: "Copy a playlist folder into CarAudio with short names and ID3v2.3 tags",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "path",
				UsageText: "playlist folder, defaults to the most recent one under the download directory",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "fix-metadata",
				Usage: "Clean artist and title with the text assistant",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output root (default: CarAudio next to the source folder)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
		},
		Action: r.CarAudio,
	}
}

// listCommand prints a folder's tracking document
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the tracks recorded in a playlist folder",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "path",
				UsageText: "playlist folder, defaults to the configured playlist's folder",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "text, markdown, csv or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.List,
	}
}

// historyCommand shows past runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent download runs",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the per-track outcomes of one run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a run from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   10,
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Only show runs of this playlist id",
			},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.History,
	}
}

// assistantCommand inspects the text assistant
func assistantCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "assistant",
		Usage: "Text assistant (Ollama) operations",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show whether the assistant answers and which models it has",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.AssistantStatus,
			},
		},
	}
}

// authCommand runs the Spotify login
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in to Spotify in the browser and cache the token",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: authTimeout,
			},
		},
		Action: r.Auth,
	}
}

// initCommand writes the config file and history schema
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create config.toml and initialize the history database",
		Action: r.Init,
	}
}
