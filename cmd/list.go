package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tapedeck/internal/caraudio"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/urfave/cli/v3"
)

// List prints the tracking document of a playlist folder.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	dir := cmd.StringArg("path")
	if dir == "" {
		if dir, err = r.defaultPlaylistDir(); err != nil {
			r.writePlain("❌ No download folders found\n")
			return err
		}
	}

	store, err := tracking.Open(dir, tracking.Detect(dir), r.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTrackingIO, err)
	}
	defer store.Close()

	export := formatter.NewExport(dir, store.Entries())
	r.logger.Debug("listing tracking entries", "dir", dir, "entries", len(export.Rows), "missing", export.Missing())

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(export, format, path); err != nil {
			return err
		}
		r.writePlain("Wrote %d entries to %s\n", len(export.Rows), path)
		return nil
	}

	data, err := formatter.Render(export, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// defaultPlaylistDir finds the folder of the configured playlist, or the most recent one.
func (r *Runner) defaultPlaylistDir() (string, error) {
	root := r.config.Download.Dir
	if id := r.config.Playlist.ID; id != "" {
		matches, _ := filepath.Glob(filepath.Join(root, "*"))
		for _, m := range matches {
			if strings.HasSuffix(filepath.Base(m), " - "+id) {
				if info, err := os.Stat(m); err == nil && info.IsDir() {
					return m, nil
				}
			}
		}
	}

	dir, err := files.MostRecentDir(root, caraudio.Folder)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", shared.ErrNoDownloads, root, err)
	}
	return dir, nil
}
