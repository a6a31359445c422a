package tasks

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	CountExisting
	SkipTrack
	CleanName
	DownloadTrack
	RecordTrack
	FailTrack
	Interrupted
	Summarize
	RepackageTrack
	RepackageDone
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case CountExisting:
		return "count_existing"
	case SkipTrack:
		return "skip_track"
	case CleanName:
		return "clean_name"
	case DownloadTrack:
		return "download_track"
	case RecordTrack:
		return "record_track"
	case FailTrack:
		return "fail_track"
	case Interrupted:
		return "interrupted"
	case Summarize:
		return "summarize"
	case RepackageTrack:
		return "repackage_track"
	case RepackageDone:
		return "repackage_done"
	default:
		return ""
	}
}

// updatesPerTrack is the most updates one track produces: clean, download, record or fail.
const updatesPerTrack = 3

// ProgressCapacity is a channel buffer that holds every update of a run over n tracks,
// including the interrupt and summary updates, so [Send] never drops one.
func ProgressCapacity(tracks int) int {
	return updatesPerTrack*tracks + 2
}

// Send delivers update without blocking. A nil or full channel drops the update.
func Send(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func skipUpdate(step, total int, track models.Track, entry string) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ⏭️  Skipping (already downloaded): %s", step, total, track)
	if entry != "" {
		msg += "\n    File: " + filepath.Base(entry)
	}
	return ProgressUpdate{Phase: SkipTrack, Step: step, Total: total, Message: msg, Data: track}
}

func cleanNameUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CleanName,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] 🏷️  Clean name: %s", step, total, name),
	}
}

func downloadUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("    🔄 Downloading: %s", filepath.Base(path)),
	}
}

func recordUpdate(step, total int, outcome models.TrackOutcome, fallback bool) ProgressUpdate {
	label := "Downloaded"
	if fallback {
		label = "Fallback successful"
	}
	return ProgressUpdate{
		Phase:   RecordTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("    ✓ %s: %s", label, filepath.Base(outcome.FilePath)),
		Data:    outcome,
	}
}

func failUpdate(step, total int, outcome models.TrackOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FailTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("    ✗ Failed: %s - %s: %s", outcome.Artist, outcome.Title, firstLine(outcome.Error)),
		Data:    outcome,
	}
}

func interruptedUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Interrupted,
		Step:    step,
		Total:   total,
		Message: "Download interrupted by user.",
	}
}

func summaryUpdate(summary models.RunSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    summary.Processed(),
		Total:   summary.Total,
		Message: fmt.Sprintf("Downloaded %d, skipped %d, failed %d of %d tracks", summary.Downloaded, summary.Skipped, summary.Failed, summary.Total),
		Data:    summary,
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
