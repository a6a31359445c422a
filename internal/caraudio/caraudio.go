// Package caraudio repackages a playlist folder for legacy car stereos: sequential short
// filenames in a single album folder and a minimal ID3v2.3 tag set.
//
// Artist and title come from structured data first: the playlist's tracking entry for
// the file, then existing tags, and only then the "NN. Artist - Title" filename.
package caraudio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/cleaner"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/tagging"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/samber/lo"
)

// Folder is the output directory created next to the playlist folders.
const Folder = "CarAudio"

const unknownArtist = "Unknown Artist"

// ErrNoAudioFiles is returned when the source folder holds no .mp3 files.
var ErrNoAudioFiles = errors.New("no MP3 files found in source directory")

// Cleaner is the subset of [cleaner.Cleaner] used for repackaging.
type Cleaner interface {
	CleanFilename(ctx context.Context, artist, title string) string
	CleanMetadata(ctx context.Context, artist, title, album string) cleaner.Metadata
}

// Source says where a file's artist and title came from.
type Source string

const (
	FromTracking Source = "tracking"
	FromTags     Source = "tags"
	FromFilename Source = "filename"
)

// FileResult is the outcome for one source file.
type FileResult struct {
	Source string
	Target string
	Artist string
	Title  string
	From   Source
	Size   int64
	TagErr error // tagging failed; the copy still counts as processed
	Err    error // the file was not copied
}

// Untagged reports whether the copy kept its source bytes because it is not MPEG audio.
func (f FileResult) Untagged() bool {
	return errors.Is(f.TagErr, tagging.ErrNotMPEG)
}

// Result summarizes a repackaging run.
type Result struct {
	SourceDir string
	AlbumDir  string
	Album     string
	Total     int
	Processed int
	Bytes     int64
	Files     []FileResult
}

// Options configures a [Repackager].
type Options struct {
	OutputRoot  string // defaults to {parent(source)}/CarAudio
	Genre       string // defaults to [tagging.DefaultCarGenre]
	FixMetadata bool   // pass artist and title through the cleaner's metadata pass
	Cleaner     Cleaner
	Logger      *log.Logger

	// Entries replaces reading the source folder's tracking store. Callers that still
	// hold the store open pass its entries here.
	Entries tracking.Document
}

// Repackager copies and retags a playlist folder.
type Repackager struct {
	opts   Options
	logger *log.Logger
}

// New creates a Repackager. A nil Cleaner uses the rule-based fallbacks.
func New(opts Options) *Repackager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Repackager{opts: opts, logger: logger}
}

// AlbumName is the playlist name part of a "{name} - {id}" folder.
func AlbumName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if name, _, ok := strings.Cut(base, " - "); ok {
		return name
	}
	return base
}

// OutputDir returns the album folder for source.
func (r *Repackager) OutputDir(source string) string {
	root := r.opts.OutputRoot
	if root == "" {
		root = filepath.Join(filepath.Dir(filepath.Clean(source)), Folder)
	}
	return filepath.Join(root, files.SanitizeCar(AlbumName(source)))
}

// Discover lists the .mp3 files of dir sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".mp3")
	})
	slices.Sort(names)
	return names, nil
}

// ParseFilename splits "NN. Artist - Title" (extension already removed). Names without
// both separators yield ("Unknown Artist", name).
func ParseFilename(base string) (artist, title string) {
	if !strings.Contains(base, ". ") || !strings.Contains(base, " - ") {
		return unknownArtist, base
	}
	_, rest, _ := strings.Cut(base, ". ")
	if artist, title, ok := strings.Cut(rest, " - "); ok {
		return artist, title
	}
	return unknownArtist, rest
}

// Repackage processes every .mp3 in source into the album folder. A per-file failure is
// recorded in the result and the loop continues; cancelling ctx stops before the next file.
func (r *Repackager) Repackage(ctx context.Context, source string, progress chan<- tasks.ProgressUpdate) (*Result, error) {
	names, err := Discover(source)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioFiles, source)
	}

	album := AlbumName(source)
	result := &Result{
		SourceDir: source,
		AlbumDir:  r.OutputDir(source),
		Album:     album,
		Total:     len(names),
	}
	if err := os.MkdirAll(result.AlbumDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", result.AlbumDir, err)
	}

	entries := r.opts.Entries
	if entries == nil {
		entries = r.loadEntries(source)
	}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n := i + 1
		fr := r.process(ctx, source, name, n, album, entries)
		result.Files = append(result.Files, fr)

		switch {
		case fr.Err != nil:
			r.logger.Error("failed to process file", "file", name, "error", fr.Err)
			tasks.Send(progress, tasks.ProgressUpdate{
				Phase: tasks.RepackageTrack, Step: n, Total: len(names),
				Message: fmt.Sprintf("❌ Failed to process %s: %v", name, fr.Err),
				Data:    fr,
			})
		default:
			result.Processed++
			result.Bytes += fr.Size
			msg := fmt.Sprintf("✓ [%02d/%02d] %s", n, len(names), filepath.Base(fr.Target))
			switch {
			case fr.Untagged():
				r.logger.Warn("copied without tags, not MPEG audio", "file", fr.Target)
				msg = fmt.Sprintf("⚠️  [%02d/%02d] %s copied without tags (not MPEG audio)", n, len(names), filepath.Base(fr.Target))
			case fr.TagErr != nil:
				r.logger.Warn("metadata error", "file", fr.Target, "error", fr.TagErr)
				msg = fmt.Sprintf("⚠️  Metadata error for %s: %v", filepath.Base(fr.Target), fr.TagErr)
			}
			tasks.Send(progress, tasks.ProgressUpdate{
				Phase: tasks.RepackageTrack, Step: n, Total: len(names), Message: msg, Data: fr,
			})
		}
	}

	tasks.Send(progress, tasks.ProgressUpdate{
		Phase:   tasks.RepackageDone,
		Step:    result.Processed,
		Total:   result.Total,
		Message: fmt.Sprintf("%d/%d files processed", result.Processed, result.Total),
		Data:    result,
	})
	return result, nil
}

func (r *Repackager) process(ctx context.Context, dir, name string, n int, album string, entries tracking.Document) FileResult {
	src := filepath.Join(dir, name)
	fr := FileResult{Source: src}

	fr.Artist, fr.Title, fr.From = r.identify(dir, src, entries)

	display := r.cleanFilename(ctx, fr.Artist, fr.Title)
	if r.opts.FixMetadata && r.opts.Cleaner != nil {
		md := r.opts.Cleaner.CleanMetadata(ctx, fr.Artist, fr.Title, album)
		if md.Artist != "" {
			fr.Artist = md.Artist
		}
		if md.Title != "" {
			fr.Title = md.Title
		}
	}

	fr.Target = filepath.Join(r.OutputDir(dir), fmt.Sprintf("%02d - %s.mp3", n, files.SanitizeCar(display)))
	if err := files.CopyFile(src, fr.Target); err != nil {
		fr.Err = err
		return fr
	}

	fr.TagErr = tagging.WriteCarTags(fr.Target, tagging.Tags{
		Title:  fr.Title,
		Artist: fr.Artist,
		Album:  album,
		Genre:  r.opts.Genre,
		Track:  n,
	})

	if info, err := os.Stat(fr.Target); err == nil {
		fr.Size = info.Size()
	}
	return fr
}

func (r *Repackager) identify(dir, path string, entries tracking.Document) (artist, title string, from Source) {
	if _, e, ok := tracking.FindByPath(dir, entries, path); ok && e.Name != "" {
		artist = e.Artists
		if artist == "" {
			artist = unknownArtist
		}
		return artist, e.Name, FromTracking
	}

	if tags, err := tagging.ReadTags(path); err == nil && tags.Title != "" && tags.Artist != "" {
		return tags.Artist, tags.Title, FromTags
	}

	artist, title = ParseFilename(files.TrimExt(filepath.Base(path)))
	return artist, title, FromFilename
}

func (r *Repackager) cleanFilename(ctx context.Context, artist, title string) string {
	if r.opts.Cleaner == nil {
		return cleaner.FallbackFilename(artist, title)
	}
	return r.opts.Cleaner.CleanFilename(ctx, artist, title)
}

// loadEntries reads the tracking store of dir without modifying it.
func (r *Repackager) loadEntries(dir string) tracking.Document {
	store, err := tracking.Open(dir, tracking.Detect(dir), r.logger)
	if err != nil {
		r.logger.Warn("tracking data unavailable, falling back to tags and filenames", "dir", dir, "error", err)
	}
	defer store.Close()
	return store.Entries()
}
