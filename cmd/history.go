package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a recorded run.
type runView struct {
	ID           string                `json:"id"`
	PlaylistID   string                `json:"playlist_id"`
	PlaylistName string                `json:"playlist_name"`
	Directory    string                `json:"directory"`
	Summary      models.RunSummary     `json:"summary"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`
	Outcomes     []models.TrackOutcome `json:"outcomes,omitempty"`
}

func newRunView(run *models.DownloadRun) runView {
	return runView{
		ID:           run.ID(),
		PlaylistID:   run.PlaylistID(),
		PlaylistName: run.PlaylistName(),
		Directory:    run.Directory(),
		Summary:      run.Summary(),
		StartedAt:    run.StartedAt(),
		FinishedAt:   run.FinishedAt(),
		Outcomes:     run.Outcomes(),
	}
}

func (r *Runner) requireHistory() (*repositories.RunRepository, error) {
	repo := r.historyRepo()
	if repo == nil {
		return nil, fmt.Errorf("%w: run history is disabled, set [database] path in the config", shared.ErrServiceUnavailable)
	}
	return repo, nil
}

// History lists recent download runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.requireHistory()
	if err != nil {
		return err
	}

	runs, err := repo.List(ctx, map[string]any{
		"limit":       int(cmd.Int("limit")),
		"playlist_id": cmd.String("playlist"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No download runs recorded yet.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Download history (%d runs)", len(runs)))
	for _, run := range runs {
		s := run.Summary()
		state := "done"
		switch {
		case run.FinishedAt() == nil:
			state = "running"
		case s.Interrupted:
			state = "interrupted"
		}
		r.writePlain("%s  %-24s %s  %d new, %d skipped, %d failed of %d (%s)\n",
			shortID(run.ID()), run.PlaylistName(), humanize.Time(run.StartedAt()),
			s.Downloaded, s.Skipped, s.Failed, s.Total, state)
	}
	return nil
}

// HistoryShow prints one run with its per-track outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	repo, err := r.requireHistory()
	if err != nil {
		return err
	}

	run, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRunView(run), true)
	}

	s := run.Summary()
	r.writePlainHeader(fmt.Sprintf("%s (%s)", run.PlaylistName(), run.PlaylistID()))
	r.writePlain("Run:        %s\n", run.ID())
	r.writePlain("Started:    %s (%s)\n", run.StartedAt().Format(time.RFC3339), humanize.Time(run.StartedAt()))
	if f := run.FinishedAt(); f != nil {
		r.writePlain("Finished:   %s\n", f.Format(time.RFC3339))
	}
	r.writePlain("Directory:  %s\n", run.Directory())
	r.writePlain("Tracks:     %d total, %d downloaded, %d skipped, %d failed\n", s.Total, s.Downloaded, s.Skipped, s.Failed)

	if len(run.Outcomes()) > 0 {
		r.writePlainln("Tracks")
		for _, o := range run.Outcomes() {
			line := fmt.Sprintf("%3d. [%s] %s - %s", o.Number, o.State, o.Artist, o.Title)
			if o.Error != "" {
				line += ": " + o.Error
			}
			r.writePlain("%s\n", line)
		}
	}
	return nil
}

// HistoryDelete removes a run from the history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}

	repo, err := r.requireHistory()
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted run %s\n", id)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
