package models

import (
	"fmt"
	"time"
)

// TrackState is the terminal state of one track in a run.
type TrackState string

const (
	StatePending     TrackState = "pending"
	StateSkipped     TrackState = "skipped"
	StateDownloading TrackState = "downloading"
	StateRecorded    TrackState = "recorded"
	StateFailed      TrackState = "failed"
)

// TrackOutcome records how a single track ended within a [DownloadRun].
type TrackOutcome struct {
	TrackID  string     `json:"track_id"`
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	Artist   string     `json:"artist"`
	State    TrackState `json:"state"`
	FilePath string     `json:"file_path,omitempty"`
	Query    string     `json:"query,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// DownloadRun is one invocation of the download pipeline, persisted for the history command.
type DownloadRun struct {
	id           string
	playlistID   string
	playlistName string
	directory    string
	summary      RunSummary
	outcomes     []TrackOutcome
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

var _ Model = (*DownloadRun)(nil)

// NewDownloadRun creates a run that starts now. The id is assigned by the repository.
func NewDownloadRun(playlistID, playlistName, directory string) *DownloadRun {
	now := time.Now()
	return &DownloadRun{
		playlistID:   playlistID,
		playlistName: playlistName,
		directory:    directory,
		startedAt:    now,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestoreDownloadRun rebuilds a run from stored columns.
func RestoreDownloadRun(id, playlistID, playlistName, directory string, summary RunSummary, startedAt time.Time, finishedAt *time.Time, createdAt, updatedAt time.Time) *DownloadRun {
	return &DownloadRun{
		id:           id,
		playlistID:   playlistID,
		playlistName: playlistName,
		directory:    directory,
		summary:      summary,
		startedAt:    startedAt,
		finishedAt:   finishedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (r *DownloadRun) ID() string                { return r.id }
func (r *DownloadRun) SetID(id string)           { r.id = id }
func (r *DownloadRun) PlaylistID() string        { return r.playlistID }
func (r *DownloadRun) PlaylistName() string      { return r.playlistName }
func (r *DownloadRun) Directory() string         { return r.directory }
func (r *DownloadRun) Summary() RunSummary       { return r.summary }
func (r *DownloadRun) Outcomes() []TrackOutcome  { return r.outcomes }
func (r *DownloadRun) StartedAt() time.Time      { return r.startedAt }
func (r *DownloadRun) FinishedAt() *time.Time    { return r.finishedAt }
func (r *DownloadRun) CreatedAt() time.Time      { return r.createdAt }
func (r *DownloadRun) UpdatedAt() time.Time      { return r.updatedAt }
func (r *DownloadRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *DownloadRun) AddOutcome(o TrackOutcome) { r.outcomes = append(r.outcomes, o) }

// SetOutcomes replaces the outcomes, used when loading from storage.
func (r *DownloadRun) SetOutcomes(outcomes []TrackOutcome) { r.outcomes = outcomes }

// Finish stamps the run with its summary and completion time.
func (r *DownloadRun) Finish(summary RunSummary) {
	now := time.Now()
	r.summary = summary
	r.finishedAt = &now
	r.updatedAt = now
}

// Validate checks required fields.
func (r *DownloadRun) Validate() error {
	if r.playlistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if r.startedAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}
