package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tapedeck/internal/caraudio"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp(runner).Run(ctx, os.Args)
	if err == nil {
		return
	}

	code := exitCode(err)
	if code == 0 {
		logger.Warn(err.Error())
		return
	}
	if shared.IsFatal(err) {
		logger.Error("cannot continue", "error", err)
	} else {
		logger.Error("command failed", "error", err)
	}
	stop()
	os.Exit(code)
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tapedeck",
		Usage:   "Download a Spotify playlist as MP3s and prepare it for car audio",
		Version: "0.1.0",
		Flags:   rootFlags(),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "path",
				UsageText: "folder to repackage with --car-audio",
			},
		},
		Before:   r.before,
		After:    r.after,
		Action:   r.Download,
		Commands: r.register(),
	}
}

// exitCode maps a command error to the process exit status. Interrupts and an empty
// car audio folder are not failures; per-track failures never reach here.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, caraudio.ErrNoAudioFiles) {
		return 0
	}
	return 1
}
