package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/tapedeck/internal/caraudio"
	"github.com/desertthunder/tapedeck/internal/cleaner"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

type carAudioRequest struct {
	path        string
	output      string
	fixMetadata bool
	json        bool

	// entries of a tracking store the caller still holds open
	entries tracking.Document
}

// CarAudio repackages a playlist folder for car stereos.
func (r *Runner) CarAudio(ctx context.Context, cmd *cli.Command) error {
	return r.repackage(ctx, carAudioRequest{
		path:        cmd.StringArg("path"),
		output:      cmd.String("output"),
		fixMetadata: cmd.Bool("fix-metadata"),
		json:        cmd.Bool("json"),
	})
}

func (r *Runner) repackage(ctx context.Context, req carAudioRequest) error {
	source := req.path
	if source == "" {
		dir, err := files.MostRecentDir(r.config.Download.Dir, caraudio.Folder)
		if err != nil {
			r.writePlain("❌ No download folders found\n")
			return fmt.Errorf("%w: %s: %w", shared.ErrNoDownloads, r.config.Download.Dir, err)
		}
		source = dir
	}

	var names caraudio.Cleaner
	assistantOn := false
	if req.fixMetadata {
		c := cleaner.New(r.textAssistant(), r.logger)
		defer c.Stop()
		names = c
		assistantOn = c.AssistantActive(ctx)
	}

	output := req.output
	if output == "" {
		output = r.config.CarAudio.OutputDir
	}

	rp := caraudio.New(caraudio.Options{
		OutputRoot:  output,
		Genre:       r.config.CarAudio.Genre,
		FixMetadata: req.fixMetadata,
		Cleaner:     names,
		Logger:      r.logger,
		Entries:     req.entries,
	})

	if !req.json {
		r.writePlain("\n🚗 Preparing music for car audio system...\n")
		r.writePlain("📁 Source: %s\n", source)
		r.writePlain("📁 Output: %s\n", rp.OutputDir(source))
		if req.fixMetadata && !assistantOn {
			r.writePlain("⚠️  AI unavailable, using basic metadata cleanup\n")
		}
	}

	// one update per file plus the final one
	pending, _ := caraudio.Discover(source)
	progress := make(chan tasks.ProgressUpdate, len(pending)+1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Phase == tasks.RepackageTrack && !req.json {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := rp.Repackage(ctx, source, progress)
	close(progress)
	<-done

	if errors.Is(err, caraudio.ErrNoAudioFiles) {
		r.writePlain("❌ No MP3 files found in source directory\n")
		return err
	}
	if err != nil && result == nil {
		return err
	}

	if req.json {
		return r.writeJSON(result, true)
	}
	r.printCarAudioSummary(result)
	return err
}

func (r *Runner) printCarAudioSummary(result *caraudio.Result) {
	untagged := lo.CountBy(result.Files, func(f caraudio.FileResult) bool { return f.Untagged() })

	r.writePlain("\n🎵 Car audio preparation complete!\n")
	r.writePlain("✅ %d/%d files processed (%s)\n", result.Processed, result.Total, humanize.Bytes(uint64(result.Bytes)))
	if untagged > 0 {
		r.writePlain("⚠️  %d files copied without tags (not MPEG audio)\n", untagged)
	}
	r.writePlain("📁 Files ready for USB: %s\n", result.AlbumDir)
	r.writePlain("\n💡 USB Stick Tips:\n")
	r.writePlain("   • Format as FAT32\n")
	r.writePlain("   • Use USB 2.0 stick (≤32GB)\n")
	r.writePlain("   • Copy entire '%s' folder to USB root\n", filepath.Base(result.AlbumDir))
}
