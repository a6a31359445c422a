// Package repositories implements SQLite persistence for download run history.
//
// [RunRepository] stores one row per pipeline invocation in download_runs and the
// per-track outcomes of finished runs in track_outcomes. Runs are soft-deleted via
// deleted_at and excluded from queries afterwards.
package repositories
