// gazetrack - live pupil tracking with fixation and blink classification
package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

var version = "v0.1.0"

func init() {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		disableStyling()
	}

	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config file. GAZE_* environment variables override it.",
		EnvVars: []string{"GAZE_CONFIG"},
		Value:   "gazetrack.yaml",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "gazetrack",
		Usage:     "Track pupils from a camera or video, classify fixations and blinks, and record sessions.",
		UsageText: "gazetrack [COMMAND] [OPTIONS]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable coloured output.",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("no-color") {
				disableStyling()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start tracking until interrupted or the video ends",
				Action: runAction,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read frames from a video file instead of a camera.",
					},
					&cli.IntFlag{
						Name:    "device",
						Aliases: []string{"d"},
						Usage:   "Camera device index.",
						Value:   -1,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory for session files.",
					},
					&cli.BoolFlag{
						Name:  "no-web",
						Usage: "Disable the live dashboard.",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging.",
					},
					&cli.BoolFlag{
						Name:  "debug-frames",
						Usage: "Log every processed frame (very verbose).",
					},
				},
			},
			{
				Name:      "inspect",
				Usage:     "Summarize a saved session JSON file",
				ArgsUsage: "<session.json>",
				Action:    inspectAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fixations",
						Usage: "List every fixation.",
					},
				},
			},
			{
				Name:   "sessions",
				Usage:  "List or delete archived session snapshots",
				Action: sessionsAction,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "db",
						Usage: "Archive path (defaults to store.path).",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots to show (0 = all).",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "delete",
						Usage: "Delete the snapshot with this key instead of listing.",
					},
				},
			},
			{
				Name:   "save",
				Usage:  "Ask a running tracker to save its session",
				Action: saveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Dashboard address of the running tracker.",
						Value: "localhost:8090",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: json or csv.",
						Value: "json",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration as YAML",
				Action: configAction,
				Flags:  []cli.Flag{configFlag()},
			},
		},
	}
}
