// package tasks implements the download pipeline: it decides per playlist track whether
// to fetch, runs the acquisition strategy and records outcomes.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/acquire"
	"github.com/desertthunder/tapedeck/internal/cleaner"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tagging"
	"github.com/desertthunder/tapedeck/internal/tracking"
)

// Acquirer fetches one track to dest, a path without extension. [*acquire.Strategy]
// implements it.
type Acquirer interface {
	Acquire(ctx context.Context, track models.Track, dest string) (acquire.Outcome, error)
}

// NameCleaner derives the "Artist - Title" part of a filename. [*cleaner.Cleaner] implements it.
type NameCleaner interface {
	CleanFilename(ctx context.Context, artist, title string) string
}

// TagWriter writes tags to a downloaded file.
type TagWriter func(path string, tags tagging.Tags) error

// RunRecorder persists run history. Failures are logged and never stop a run.
type RunRecorder interface {
	Create(ctx context.Context, run *models.DownloadRun) error
	Complete(ctx context.Context, run *models.DownloadRun) error
}

// Census is the pre-run count of a playlist against the tracking store.
type Census struct {
	Total      int
	Downloaded int
	Pending    []models.Track
	Dir        string
}

// New is the number of tracks that will be fetched.
func (c Census) New() int {
	return len(c.Pending)
}

// DownloaderOpts contains the optional collaborators of a [Downloader].
type DownloaderOpts struct {
	Cleaner  NameCleaner // nil uses [cleaner.FallbackFilename]
	Tag      TagWriter   // nil disables tagging
	Recorder RunRecorder // nil disables run history
	Logger   *log.Logger
}

// Downloader is the download orchestrator. It owns its tracking store for the length of
// a run and processes tracks strictly one at a time in playlist order.
//
// Per track: Pending → Skipped, or Pending → Downloading → Recorded | Failed.
type Downloader struct {
	dir      string
	store    tracking.Store
	acquirer Acquirer
	cleaner  NameCleaner
	tag      TagWriter
	recorder RunRecorder
	logger   *log.Logger
}

// NewDownloader creates a Downloader writing into dir. Recorded file paths are absolute.
func NewDownloader(dir string, store tracking.Store, acquirer Acquirer, opts DownloaderOpts) *Downloader {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Downloader{
		dir:      dir,
		store:    store,
		acquirer: acquirer,
		cleaner:  opts.Cleaner,
		tag:      opts.Tag,
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// Dir returns the playlist download directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Entries returns the tracking entries of the store the Downloader writes to.
func (d *Downloader) Entries() tracking.Document {
	return d.store.Entries()
}

// Census counts tracks already present. Stale entries are purged as a side effect of lookup.
func (d *Downloader) Census(playlist *models.Playlist) Census {
	c := Census{Total: len(playlist.Tracks), Dir: d.dir}
	for _, track := range playlist.Tracks {
		if _, ok := d.store.Lookup(track); ok {
			c.Downloaded++
			continue
		}
		c.Pending = append(c.Pending, track)
	}
	return c
}

// Run processes every track of playlist. A failed track is counted and the loop moves on.
// Cancelling ctx stops the loop between tracks; the returned run is marked interrupted.
//
// The only error returned is a failure to create the download directory.
func (d *Downloader) Run(ctx context.Context, playlist *models.Playlist, progress chan<- ProgressUpdate) (*models.DownloadRun, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", d.dir, err)
	}

	run := models.NewDownloadRun(playlist.ID, playlist.Name, d.dir)
	d.recordStart(ctx, run)

	total := len(playlist.Tracks)
	summary := models.RunSummary{Total: total}

	for i, track := range playlist.Tracks {
		step := i + 1
		if ctx.Err() != nil {
			summary.Interrupted = true
			Send(progress, interruptedUpdate(step, total))
			break
		}

		if track.Number == 0 {
			track.Number = step
		}

		outcome := d.process(ctx, track, step, total, progress)
		if outcome.State == models.StatePending {
			summary.Interrupted = true
			Send(progress, interruptedUpdate(step, total))
			break
		}

		run.AddOutcome(outcome)
		switch outcome.State {
		case models.StateSkipped:
			summary.Skipped++
		case models.StateRecorded:
			summary.Downloaded++
		case models.StateFailed:
			summary.Failed++
		}
	}

	run.Finish(summary)
	Send(progress, summaryUpdate(summary))
	d.recordComplete(ctx, run)

	d.logger.Info("run finished",
		"playlist", playlist.Name,
		"total", summary.Total,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"interrupted", summary.Interrupted,
	)
	return run, nil
}

// process moves one track to a terminal state. StatePending means the context was
// cancelled while the track was downloading.
func (d *Downloader) process(ctx context.Context, track models.Track, step, total int, progress chan<- ProgressUpdate) models.TrackOutcome {
	outcome := models.TrackOutcome{
		TrackID: track.ID,
		Number:  track.Number,
		Title:   track.Title,
		Artist:  track.ArtistDisplay(),
		State:   models.StatePending,
	}

	if entry, ok := d.store.Lookup(track); ok {
		outcome.State = models.StateSkipped
		outcome.FilePath = entry.FilePath
		outcome.Query = entry.SourceReference
		Send(progress, skipUpdate(step, total, track, entry.FilePath))
		return outcome
	}

	name := d.cleanName(ctx, track)
	Send(progress, cleanNameUpdate(step, total, name))

	path, err := files.Allocate(fmt.Sprintf("%02d. %s", track.Number, name), d.dir, "mp3")
	if err != nil {
		return d.fail(outcome, "allocate", err, step, total, progress)
	}

	outcome.State = models.StateDownloading
	Send(progress, downloadUpdate(step, total, path))

	result, err := d.acquirer.Acquire(ctx, track, files.TrimExt(path))
	if err != nil {
		if ctx.Err() != nil {
			outcome.State = models.StatePending
			return outcome
		}
		return d.fail(outcome, "fetch", err, step, total, progress)
	}

	outcome.State = models.StateRecorded
	outcome.FilePath = result.FilePath
	outcome.Query = result.SourceReference

	if d.tag != nil {
		tags := tagging.Tags{Title: track.Title, Artist: track.ArtistDisplay(), Album: track.Album, Track: track.Number}
		if err := d.tag(result.FilePath, tags); err != nil {
			d.logger.Warn("tagging failed", "track", track.String(), "path", result.FilePath, "error", err)
		}
	}

	if err := d.store.Record(track, result.FilePath, result.SourceReference); err != nil {
		d.logger.Warn("tracking update not persisted", "track", track.String(), "error", err)
	}

	Send(progress, recordUpdate(step, total, outcome, result.Fallback))
	return outcome
}

func (d *Downloader) cleanName(ctx context.Context, track models.Track) string {
	if d.cleaner == nil {
		return cleaner.FallbackFilename(track.ArtistDisplay(), track.Title)
	}
	return d.cleaner.CleanFilename(ctx, track.ArtistDisplay(), track.Title)
}

func (d *Downloader) fail(outcome models.TrackOutcome, phase string, err error, step, total int, progress chan<- ProgressUpdate) models.TrackOutcome {
	outcome.State = models.StateFailed
	outcome.Error = err.Error()

	var fetchErr *acquire.FetchError
	if errors.As(err, &fetchErr) && len(fetchErr.Attempts) > 0 {
		outcome.Query = fetchErr.Attempts[len(fetchErr.Attempts)-1].Source
	}

	d.logger.Error("track failed", "track", outcome.Title, "artist", outcome.Artist, "phase", phase, "error", err)
	Send(progress, failUpdate(step, total, outcome))
	return outcome
}

func (d *Downloader) recordStart(ctx context.Context, run *models.DownloadRun) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Create(context.WithoutCancel(ctx), run); err != nil {
		d.logger.Warn("run history unavailable", "error", err)
	}
}

func (d *Downloader) recordComplete(ctx context.Context, run *models.DownloadRun) {
	if d.recorder == nil || run.ID() == "" {
		return
	}
	if err := d.recorder.Complete(context.WithoutCancel(ctx), run); err != nil {
		d.logger.Warn("run history not saved", "run", run.ID(), "error", err)
	}
}
