package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/acquire"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tagging"
	"github.com/desertthunder/tapedeck/internal/tracking"
)

type fakeAcquirer struct {
	fail   map[string]error
	dests  []string
	onCall func(n int)
}

func (f *fakeAcquirer) Acquire(ctx context.Context, track models.Track, dest string) (acquire.Outcome, error) {
	f.dests = append(f.dests, dest)
	if f.onCall != nil {
		f.onCall(len(f.dests))
	}
	if err := ctx.Err(); err != nil {
		return acquire.Outcome{}, err
	}
	if err, ok := f.fail[track.Title]; ok {
		return acquire.Outcome{}, err
	}

	path := dest + ".mp3"
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return acquire.Outcome{}, err
	}
	return acquire.Outcome{FilePath: path, SourceReference: acquire.SourceFor(acquire.PrimaryQuery(track)), Attempts: 1}, nil
}

type fakeRecorder struct {
	created   int
	completed []*models.DownloadRun
	err       error
}

func (f *fakeRecorder) Create(ctx context.Context, run *models.DownloadRun) error {
	f.created++
	if f.err != nil {
		return f.err
	}
	run.SetID(fmt.Sprintf("run-%d", f.created))
	return nil
}

func (f *fakeRecorder) Complete(ctx context.Context, run *models.DownloadRun) error {
	f.completed = append(f.completed, run)
	return f.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func samplePlaylist() *models.Playlist {
	return &models.Playlist{
		ID:   "pl1",
		Name: "Road Trip",
		Tracks: []models.Track{
			{ID: "t1", Title: "First Song", Artists: []string{"Artist A"}, DurationMS: 180000, Number: 1},
			{ID: "t2", Title: "Second Song (Remastered)", Artists: []string{"Beatles, The"}, DurationMS: 200000, Number: 2},
			{ID: "t3", Title: "Third Song", Artists: []string{"Artist C", "Artist D"}, DurationMS: 210000, Number: 3},
		},
	}
}

func newDownloader(t *testing.T, dir string, acq Acquirer, opts DownloaderOpts) *Downloader {
	t.Helper()
	store, err := tracking.LoadDocumentStore(dir, quietLogger())
	if err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	opts.Logger = quietLogger()
	return NewDownloader(dir, store, acq, opts)
}

func TestDownloader(t *testing.T) {
	ctx := context.Background()

	t.Run("Downloads And Records", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{}
		run, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		summary := run.Summary()
		if summary.Downloaded != 3 || summary.Skipped != 0 || summary.Failed != 0 || summary.Total != 3 {
			t.Errorf("unexpected summary: %+v", summary)
		}

		wantNames := []string{
			"01. Artist A - First Song.mp3",
			"02. The Beatles - Second Song.mp3",
			"03. Artist C, Artist D - Third Song.mp3",
		}
		for _, name := range wantNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s to exist: %v", name, err)
			}
		}

		doc, err := tracking.Load(dir)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(doc) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(doc))
		}
		entry := doc["t2"]
		if !filepath.IsAbs(entry.FilePath) || filepath.Base(entry.FilePath) != wantNames[1] {
			t.Errorf("expected absolute path to %s, got %s", wantNames[1], entry.FilePath)
		}
		if entry.SourceReference != "ytsearch:Second Song (Remastered) Beatles, The audio -official -video -mv" {
			t.Errorf("unexpected source reference %q", entry.SourceReference)
		}
		if len(run.Outcomes()) != 3 || run.Outcomes()[0].State != models.StateRecorded {
			t.Errorf("unexpected outcomes: %+v", run.Outcomes())
		}
	})

	t.Run("Idempotent Second Run", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{}
		if _, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil); err != nil {
			t.Fatalf("first run: %v", err)
		}
		before, _ := os.ReadFile(tracking.DocumentPath(dir))

		run, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil)
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		after, _ := os.ReadFile(tracking.DocumentPath(dir))

		if run.Summary().Downloaded != 0 || run.Summary().Skipped != 3 {
			t.Errorf("expected all skipped, got %+v", run.Summary())
		}
		if len(acq.dests) != 3 {
			t.Errorf("expected 3 fetches across both runs, got %d", len(acq.dests))
		}
		if !bytes.Equal(before, after) {
			t.Error("expected tracking document to be unchanged")
		}
	})

	t.Run("Self Heals Deleted File", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{}
		newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil)

		removed := filepath.Join(dir, "02. The Beatles - Second Song.mp3")
		if err := os.Remove(removed); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}

		run, _ := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil)
		if run.Summary().Downloaded != 1 || run.Summary().Skipped != 2 {
			t.Errorf("expected 1 download and 2 skips, got %+v", run.Summary())
		}

		doc, _ := tracking.Load(dir)
		if doc["t2"].FilePath != removed {
			t.Errorf("expected entry to be recreated at %s, got %s", removed, doc["t2"].FilePath)
		}
		if _, err := os.Stat(removed); err != nil {
			t.Errorf("expected file to be downloaded again: %v", err)
		}
	})

	t.Run("Failed Track Does Not Stop Run", func(t *testing.T) {
		dir := t.TempDir()
		fetchErr := &acquire.FetchError{
			Track: "Artist A - First Song",
			Attempts: []acquire.Attempt{
				{Source: "ytsearch:primary", Err: acquire.ErrNoFile},
				{Source: "ytsearch:fallback", Err: acquire.ErrNoFile},
			},
		}
		acq := &fakeAcquirer{fail: map[string]error{"First Song": fetchErr}}

		run, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Summary().Failed != 1 || run.Summary().Downloaded != 2 {
			t.Errorf("expected 1 failure and 2 downloads, got %+v", run.Summary())
		}

		failed := run.Outcomes()[0]
		if failed.State != models.StateFailed || failed.Query != "ytsearch:fallback" || failed.Error == "" {
			t.Errorf("unexpected failed outcome: %+v", failed)
		}

		doc, _ := tracking.Load(dir)
		if _, ok := doc["t1"]; ok {
			t.Error("expected no tracking entry for failed track")
		}
	})

	t.Run("Tracks Without ID Are Never Recorded", func(t *testing.T) {
		dir := t.TempDir()
		playlist := &models.Playlist{ID: "pl", Name: "Local", Tracks: []models.Track{
			{Title: "Local File", Artists: []string{"Someone"}, Number: 1},
		}}
		acq := &fakeAcquirer{}

		for range 2 {
			run, _ := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, playlist, nil)
			if run.Summary().Downloaded != 1 {
				t.Errorf("expected download on every run, got %+v", run.Summary())
			}
		}

		doc, _ := tracking.Load(dir)
		if len(doc) != 0 {
			t.Errorf("expected no entries, got %d", len(doc))
		}
		if _, err := os.Stat(filepath.Join(dir, "01. Someone - Local File (1).mp3")); err != nil {
			t.Errorf("expected second download to get a suffixed name: %v", err)
		}
	})

	t.Run("Allocates Around Existing Files", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "01. Artist A - First Song.mp3"), []byte("other"), 0644)

		acq := &fakeAcquirer{}
		playlist := samplePlaylist()
		playlist.Tracks = playlist.Tracks[:1]
		newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, playlist, nil)

		if got := filepath.Base(acq.dests[0]); got != "01. Artist A - First Song (1)" {
			t.Errorf("expected suffixed destination, got %q", got)
		}
	})

	t.Run("Interrupt Between Tracks", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		acq := &fakeAcquirer{onCall: func(n int) {
			if n == 1 {
				cancel()
			}
		}}
		progress := make(chan ProgressUpdate, 64)

		run, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, samplePlaylist(), progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		summary := run.Summary()
		if !summary.Interrupted || summary.Downloaded != 0 || summary.Failed != 0 {
			t.Errorf("expected interrupted run without failures, got %+v", summary)
		}
		if len(acq.dests) != 1 {
			t.Errorf("expected loop to stop after the in-flight track, got %d fetches", len(acq.dests))
		}

		close(progress)
		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if len(phases) < 2 || phases[len(phases)-2] != Interrupted || phases[len(phases)-1] != Summarize {
			t.Errorf("expected interrupted then summary, got %v", phases)
		}
	})

	t.Run("Census", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{}
		playlist := samplePlaylist()
		first := &models.Playlist{ID: playlist.ID, Tracks: playlist.Tracks[:2]}
		newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, first, nil)

		census := newDownloader(t, dir, acq, DownloaderOpts{}).Census(playlist)
		if census.Total != 3 || census.Downloaded != 2 || census.New() != 1 || census.Pending[0].ID != "t3" {
			t.Errorf("unexpected census: %+v", census)
		}
	})

	t.Run("Tags And Records History", func(t *testing.T) {
		dir := t.TempDir()
		var tagged []tagging.Tags
		recorder := &fakeRecorder{}
		opts := DownloaderOpts{
			Tag: func(path string, tags tagging.Tags) error {
				tagged = append(tagged, tags)
				return errors.New("not MPEG")
			},
			Recorder: recorder,
		}

		run, err := newDownloader(t, dir, &fakeAcquirer{}, opts).Run(ctx, samplePlaylist(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Summary().Downloaded != 3 {
			t.Errorf("expected tag errors to be ignored, got %+v", run.Summary())
		}
		if len(tagged) != 3 || tagged[2].Artist != "Artist C, Artist D" || tagged[2].Track != 3 {
			t.Errorf("unexpected tags: %+v", tagged)
		}
		if recorder.created != 1 || len(recorder.completed) != 1 || recorder.completed[0].ID() != "run-1" {
			t.Errorf("expected run to be created and completed, got %+v", recorder)
		}
		if recorder.completed[0].FinishedAt() == nil {
			t.Error("expected run to be finished before completion is recorded")
		}
	})

	t.Run("History Failures Are Ignored", func(t *testing.T) {
		recorder := &fakeRecorder{err: errors.New("database is locked")}
		run, err := newDownloader(t, t.TempDir(), &fakeAcquirer{}, DownloaderOpts{Recorder: recorder}).Run(ctx, samplePlaylist(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if run.Summary().Downloaded != 3 {
			t.Errorf("unexpected summary: %+v", run.Summary())
		}
		if len(recorder.completed) != 0 {
			t.Error("expected completion to be skipped for a run that was never created")
		}
	})
}

func TestSend(t *testing.T) {
	t.Run("Nil Channel", func(t *testing.T) {
		Send(nil, ProgressUpdate{Phase: SkipTrack})
	})

	t.Run("Full Channel Does Not Block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		Send(ch, ProgressUpdate{Phase: SkipTrack})
		Send(ch, ProgressUpdate{Phase: FailTrack})
		if u := <-ch; u.Phase != SkipTrack {
			t.Errorf("expected first update to be kept, got %v", u.Phase)
		}
	})
}

func TestProgressCapacity(t *testing.T) {
	ctx := context.Background()

	playlist := &models.Playlist{ID: "pl1", Name: "Long"}
	for i := 1; i <= 150; i++ {
		title := fmt.Sprintf("Song %d", i)
		playlist.Tracks = append(playlist.Tracks, models.Track{
			ID: fmt.Sprintf("t%d", i), Title: title, Artists: []string{"Artist"}, Number: i,
		})
	}

	t.Run("Holds Every Update Of A First Run", func(t *testing.T) {
		dir := t.TempDir()
		acq := &fakeAcquirer{fail: map[string]error{"Song 7": errors.New("no results")}}
		progress := make(chan ProgressUpdate, ProgressCapacity(len(playlist.Tracks)))

		if _, err := newDownloader(t, dir, acq, DownloaderOpts{}).Run(ctx, playlist, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		want := updatesPerTrack*len(playlist.Tracks) + 1
		if got := len(progress); got != want {
			t.Errorf("expected %d buffered updates, got %d", want, got)
		}
	})

	t.Run("Holds Every Skip Of A Re-Run", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := newDownloader(t, dir, &fakeAcquirer{}, DownloaderOpts{}).Run(ctx, playlist, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		progress := make(chan ProgressUpdate, ProgressCapacity(len(playlist.Tracks)))
		if _, err := newDownloader(t, dir, &fakeAcquirer{}, DownloaderOpts{}).Run(ctx, playlist, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		skips := 0
		for u := range progress {
			if u.Phase == SkipTrack {
				skips++
			}
		}
		if skips != len(playlist.Tracks) {
			t.Errorf("expected %d skip updates, got %d", len(playlist.Tracks), skips)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tc := []struct {
		phase Phase
		want  string
	}{
		{FetchPlaylist, "fetch_playlist"},
		{SkipTrack, "skip_track"},
		{RecordTrack, "record_track"},
		{RepackageDone, "repackage_done"},
		{Phase(99), ""},
	}
	for _, c := range tc {
		if got := c.phase.String(); got != c.want {
			t.Errorf("expected %q, got %q", c.want, got)
		}
	}
}
