package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// RunRepository implements models.Repository[*models.DownloadRun] for the history database.
//
// It also satisfies the downloader's run recorder: Create opens a run and Complete stores its
// summary and per-track outcomes.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.DownloadRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, playlist_id, playlist_name, directory, total, skipped, downloaded, failed, interrupted,
	started_at, finished_at, created_at, updated_at`

// Create inserts a new run with a generated ID
func (r *RunRepository) Create(ctx context.Context, run *models.DownloadRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO download_runs (id, playlist_id, playlist_name, directory, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id,
		run.PlaylistID(),
		run.PlaylistName(),
		run.Directory(),
		run.StartedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	return nil
}

// Get retrieves a run and its outcomes by ID, excluding soft-deleted runs
func (r *RunRepository) Get(ctx context.Context, id string) (*models.DownloadRun, error) {
	query := `SELECT ` + runColumns + ` FROM download_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	outcomes, err := r.outcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	run.SetOutcomes(outcomes)
	return run, nil
}

// Update writes the run's summary columns
func (r *RunRepository) Update(ctx context.Context, run *models.DownloadRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)
	s := run.Summary()

	query := `
		UPDATE download_runs
		SET total = ?, skipped = ?, downloaded = ?, failed = ?, interrupted = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Total, s.Skipped, s.Downloaded, s.Failed, boolToInt(s.Interrupted),
		run.FinishedAt(), now, run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return expectOne(result, "run", run.ID())
}

// Complete stores the summary and replaces the outcomes of a finished run in one transaction.
func (r *RunRepository) Complete(ctx context.Context, run *models.DownloadRun) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	run.SetUpdatedAt(now)
	s := run.Summary()

	result, err := tx.ExecContext(ctx, `
		UPDATE download_runs
		SET total = ?, skipped = ?, downloaded = ?, failed = ?, interrupted = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, s.Total, s.Skipped, s.Downloaded, s.Failed, boolToInt(s.Interrupted), run.FinishedAt(), now, run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if err := expectOne(result, "run", run.ID()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM track_outcomes WHERE run_id = ?`, run.ID()); err != nil {
		return fmt.Errorf("failed to clear outcomes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_outcomes (run_id, position, track_id, title, artist, state, file_path, query, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range run.Outcomes() {
		if _, err := stmt.ExecContext(ctx, run.ID(), o.Number, o.TrackID, o.Title, o.Artist, string(o.State), o.FilePath, o.Query, o.Error); err != nil {
			return fmt.Errorf("failed to insert outcome %d: %w", o.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE download_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOne(result, "run", id)
}

// List retrieves runs newest first, without outcomes.
//
// Supported criteria: "playlist_id" (string) and "limit" (int).
func (r *RunRepository) List(ctx context.Context, criteria map[string]any) ([]*models.DownloadRun, error) {
	query := `SELECT ` + runColumns + ` FROM download_runs WHERE deleted_at IS NULL`
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY started_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.DownloadRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func (r *RunRepository) outcomes(ctx context.Context, runID string) ([]models.TrackOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, track_id, title, artist, state, file_path, query, error
		FROM track_outcomes
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.TrackOutcome
	for rows.Next() {
		var (
			o     models.TrackOutcome
			state string
		)
		if err := rows.Scan(&o.Number, &o.TrackID, &o.Title, &o.Artist, &state, &o.FilePath, &o.Query, &o.Error); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.State = models.TrackState(state)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.DownloadRun]
func scanRun(row scanner) (*models.DownloadRun, error) {
	var (
		id, playlistID, playlistName, directory string
		s                                       models.RunSummary
		interrupted                             int
		startedAt, createdAt, updatedAt         time.Time
		finishedAt                              sql.NullTime
	)

	err := row.Scan(&id, &playlistID, &playlistName, &directory,
		&s.Total, &s.Skipped, &s.Downloaded, &s.Failed, &interrupted,
		&startedAt, &finishedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	s.Interrupted = interrupted != 0

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	return models.RestoreDownloadRun(id, playlistID, playlistName, directory, s, startedAt, finished, createdAt, updatedAt), nil
}
