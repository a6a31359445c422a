package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/tapedeck/internal/acquire"
	"github.com/desertthunder/tapedeck/internal/cleaner"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tagging"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/urfave/cli/v3"
)

// Download fetches the configured playlist and downloads every track the tracking store
// does not already account for. With --car-audio it repackages a folder instead.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("car-audio") {
		return r.repackage(ctx, carAudioRequest{path: cmd.StringArg("path"), fixMetadata: true})
	}

	if err := r.config.Validate(); err != nil {
		r.writePlain("❌ Missing required configuration! Set SPOTIPY_CLIENT_ID, SPOTIPY_CLIENT_SECRET and PLAYLIST_ID.\n")
		return err
	}

	if cmd.Bool("tui") {
		restore, err := r.useFileLogger()
		if err != nil {
			return err
		}
		defer restore()
	}

	r.writePlain("Connecting to Spotify...\n")
	source, err := r.playlistSource(ctx)
	if err != nil {
		return err
	}

	playlist, err := source.FetchPlaylist(ctx, r.config.Playlist.ID)
	if err != nil {
		r.writePlain("No tracks found. Please check your playlist ID and credentials.\n")
		return err
	}
	if len(playlist.Tracks) == 0 {
		r.writePlain("No tracks found. Please check your playlist ID and credentials.\n")
		return fmt.Errorf("%w: %s", shared.ErrEmptyPlaylist, playlist.ID)
	}

	dir := r.playlistDir(playlist)
	store, err := tracking.Open(dir, r.trackingBackend(dir), r.logger)
	if err != nil {
		r.logger.Warn("starting with empty tracking data", "dir", dir, "error", err)
	}
	defer store.Close()

	assistant := r.textAssistant()
	names := cleaner.New(assistant, r.logger)
	defer names.Stop()

	opts := tasks.DownloaderOpts{Cleaner: names, Logger: shared.WithLogger(r.logger, "playlist", playlist.ID)}
	if r.config.Download.Tag {
		opts.Tag = tagging.WriteDownloadTags
	}
	if repo := r.historyRepo(); repo != nil {
		opts.Recorder = repo
	}

	downloader := tasks.NewDownloader(dir, store, r.mediaAcquirer(), opts)
	census := downloader.Census(playlist)
	status := r.assistantStatusLine(ctx, assistant)

	if cmd.Bool("tui") {
		return r.runTUI(ctx, cmd, downloader, playlist, census, status)
	}

	r.printCensus(census)
	if census.New() == 0 {
		r.writePlain("✅ All tracks already downloaded! No new downloads needed.\n")
		return r.offerCarAudio(ctx, cmd, downloader, "🚗 Prepare existing music for car audio system?")
	}

	if names.AssistantActive(ctx) {
		r.writePlain("Starting downloads with AI-powered filename generation...\n\n")
	} else {
		r.writePlain("Starting downloads...\n\n")
	}
	r.writePlain("%s\n\n", status)

	run, err := r.runDownload(ctx, downloader, playlist)
	if err != nil {
		return err
	}

	r.printSummary(run)
	if run.Summary().Interrupted {
		return nil
	}
	return r.offerCarAudio(ctx, cmd, downloader, "🚗 Prepare music for car audio system?")
}

// runDownload runs the orchestrator and prints its progress until it returns.
func (r *Runner) runDownload(ctx context.Context, d *tasks.Downloader, playlist *models.Playlist) (*models.DownloadRun, error) {
	progress := make(chan tasks.ProgressUpdate, tasks.ProgressCapacity(len(playlist.Tracks)))
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.printUpdate(update)
		}
	}()

	run, err := d.Run(ctx, playlist, progress)
	close(progress)
	<-done
	return run, err
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Summarize:
	case tasks.SkipTrack, tasks.RecordTrack, tasks.FailTrack:
		r.writePlain("%s\n\n", update.Message)
	case tasks.Interrupted:
		r.writePlainln("%s", update.Message)
	default:
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) printCensus(c tasks.Census) {
	r.writePlain("Found %d tracks in playlist.\n", c.Total)
	r.writePlain("Already downloaded: %d tracks\n", c.Downloaded)
	r.writePlain("New tracks to download: %d tracks\n", c.New())
	r.writePlain("Download directory: %s\n", c.Dir)
}

func (r *Runner) printSummary(run *models.DownloadRun) {
	s := run.Summary()
	if s.Interrupted {
		r.writePlain("Stopped after %d of %d tracks (%d downloaded, %d failed).\n", s.Processed(), s.Total, s.Downloaded, s.Failed)
		return
	}

	r.writePlain("Downloads complete! Successfully downloaded %d new tracks.\n", s.Downloaded)
	r.writePlain("Total tracks in playlist: %d\n", s.Total)
	if s.Failed > 0 {
		r.writePlain("Failed: %d tracks\n", s.Failed)
	}
	r.writePlain("Files saved to: %s\n", run.Directory())
}

// offerCarAudio asks before repackaging the downloader's folder unless --yes or
// --no-car-audio decides it.
func (r *Runner) offerCarAudio(ctx context.Context, cmd *cli.Command, d *tasks.Downloader, question string) error {
	if cmd.Bool("no-car-audio") {
		return nil
	}

	ok := cmd.Bool("yes")
	if !ok {
		r.writePlain("\n")
		answer, err := r.confirm(question)
		if err != nil {
			r.logger.Warn("prompt failed, skipping car audio", "error", err)
			return nil
		}
		ok = answer
	}
	if !ok {
		return nil
	}
	return r.repackage(ctx, carAudioRequest{path: d.Dir(), entries: d.Entries(), fixMetadata: true})
}

// playlistDir is "{download dir}/{name} - {id}".
func (r *Runner) playlistDir(p *models.Playlist) string {
	return filepath.Join(r.config.Download.Dir, files.Sanitize(p.Name)+" - "+p.ID)
}

// trackingBackend uses the configured backend, or whatever the folder already has.
func (r *Runner) trackingBackend(dir string) tracking.Backend {
	if r.config.Download.Tracking == "" {
		return tracking.Detect(dir)
	}
	return tracking.Backend(r.config.Download.Tracking)
}

// textAssistant returns nil when the assistant is disabled.
func (r *Runner) textAssistant() services.Assistant {
	if r.assistant != nil {
		return r.assistant
	}
	if !r.config.Assistant.Enabled {
		return nil
	}
	r.assistant = services.NewOllamaAssistant(r.config.Assistant.URL, r.config.Assistant.Model, r.logger)
	return r.assistant
}

func (r *Runner) mediaAcquirer() tasks.Acquirer {
	if r.acquirer != nil {
		return r.acquirer
	}
	engine := acquire.NewYtdlpEngine(acquire.YtdlpOptions{
		Format:       r.config.Download.Format,
		Executable:   r.config.Download.YtdlpPath,
		Transcode:    r.config.Download.Transcode,
		AudioFormat:  r.config.Download.AudioFormat,
		AudioQuality: r.config.Download.AudioQuality,
	}, r.logger)
	r.acquirer = acquire.NewStrategy(engine, r.logger)
	return r.acquirer
}

func (r *Runner) assistantStatusLine(ctx context.Context, a services.Assistant) string {
	if a == nil {
		return "🤖 AI Status: Disabled | Model: none"
	}
	st := a.Status(ctx)
	return fmt.Sprintf("🤖 AI Status: %s | Model: %s", st.Label(), st.Model)
}
