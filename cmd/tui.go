package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/tapedeck-tui.log"

// useFileLogger redirects logs to a file so they do not interfere with TUI rendering.
// The returned func restores the console logger.
func (r *Runner) useFileLogger() (func(), error) {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	console := r.logger
	r.SetLogger(fileLogger)
	return func() { r.SetLogger(console) }, nil
}

// runTUI drives the download through the interactive monitor.
func (r *Runner) runTUI(ctx context.Context, cmd *cli.Command, d *tasks.Downloader, playlist *models.Playlist, census tasks.Census, status string) error {
	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.DownloadRun, error) {
		return d.Run(ctx, playlist, progress)
	}

	model := ui.NewModel(ctx, playlist, census, status, run)
	if cmd.Bool("yes") {
		model = model.AutoStart()
	}

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	result, runErr := model.Result()
	if runErr != nil {
		return runErr
	}
	if result != nil {
		r.printSummary(result)
	}

	if !model.WantsCarAudio() || cmd.Bool("no-car-audio") {
		return nil
	}
	if result != nil && result.Summary().Interrupted {
		return nil
	}
	return r.repackage(ctx, carAudioRequest{path: d.Dir(), entries: d.Entries(), fixMetadata: true})
}
