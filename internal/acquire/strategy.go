// package acquire turns one playlist track into one local audio file by searching the
// video platform through an external media engine.
package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/models"
)

const (
	searchPrefix   = "ytsearch:"
	primarySuffix  = " audio -official -video -mv"
	fallbackSuffix = " audio"

	// DurationSlack is added to the expected track length to get the upper bound.
	DurationSlack = 60 * time.Second

	primaryExt   = ".mp3"
	alternateExt = ".m4a"
)

// MediaEngine locates and materializes the best match for a search source.
type MediaEngine interface {
	Fetch(ctx context.Context, req Request) error
}

// Request is a single engine invocation.
type Request struct {
	Source         string             // "ytsearch:<query>"
	OutputTemplate string             // destination without extension plus ".%(ext)s"
	Constraint     DurationConstraint // candidates longer than this are rejected before download
}

// DurationConstraint bounds candidate length from above. The zero value accepts everything.
type DurationConstraint struct {
	Max time.Duration
}

// ConstraintFor returns track length plus [DurationSlack]. Tracks without a known length are unconstrained.
func ConstraintFor(track models.Track) DurationConstraint {
	if track.DurationMS <= 0 {
		return DurationConstraint{}
	}
	return DurationConstraint{Max: track.Duration() + DurationSlack}
}

// Accepts reports whether a candidate of length d passes. There is no lower bound.
func (c DurationConstraint) Accepts(d time.Duration) bool {
	return c.Max <= 0 || d <= c.Max
}

// Filter renders the constraint as a yt-dlp match filter. Candidates with no reported
// duration pass, as they do in [DurationConstraint.Accepts] for a zero length.
func (c DurationConstraint) Filter() string {
	if c.Max <= 0 {
		return ""
	}
	return fmt.Sprintf("duration <=? %d", int64(c.Max/time.Second))
}

// PrimaryQuery biases the search toward plain audio uploads.
func PrimaryQuery(track models.Track) string {
	return track.SearchQuery() + primarySuffix
}

// FallbackQuery drops the video exclusion qualifiers.
func FallbackQuery(track models.Track) string {
	return track.SearchQuery() + fallbackSuffix
}

// SourceFor is the engine source and the source reference recorded for a query.
func SourceFor(query string) string {
	return searchPrefix + query
}

// Outcome describes a successful acquisition.
type Outcome struct {
	FilePath        string
	SourceReference string
	Attempts        int
	Fallback        bool
}

// Strategy runs the primary query and, only if it fails, one fallback query.
type Strategy struct {
	engine MediaEngine
	logger *log.Logger
}

// NewStrategy builds a Strategy around engine.
func NewStrategy(engine MediaEngine, logger *log.Logger) *Strategy {
	return &Strategy{engine: engine, logger: logger}
}

// Acquire fetches track into dest (a path without extension). On success the file is
// dest+".mp3"; an .m4a result is renamed to that name. When both queries fail the error is
// a [*FetchError].
func (s *Strategy) Acquire(ctx context.Context, track models.Track, dest string) (Outcome, error) {
	constraint := ConstraintFor(track)
	fetchErr := &FetchError{Track: track.String()}

	for i, query := range []string{PrimaryQuery(track), FallbackQuery(track)} {
		if err := ctx.Err(); err != nil {
			fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Source: SourceFor(query), Err: err})
			s.removeLeftovers(dest)
			return Outcome{}, fetchErr
		}

		source := SourceFor(query)
		if i > 0 {
			s.debug("trying fallback search", "track", track.String(), "source", source)
		}

		path, err := s.attempt(ctx, source, dest, constraint)
		if err == nil {
			return Outcome{
				FilePath:        path,
				SourceReference: source,
				Attempts:        i + 1,
				Fallback:        i > 0,
			}, nil
		}

		s.debug("search attempt failed", "track", track.String(), "source", source, "error", err)
		fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Source: source, Err: err})
	}

	s.removeLeftovers(dest)
	return Outcome{}, fetchErr
}

// removeLeftovers deletes files the engine wrote for dest in containers [normalize] does
// not pick up (webm, opus, .part fragments).
func (s *Strategy) removeLeftovers(dest string) {
	dir, base := filepath.Dir(dest), filepath.Base(dest)+"."
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, base) {
			continue
		}
		if ext := filepath.Ext(name); ext == primaryExt || ext == alternateExt {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			s.debug("failed to remove leftover file", "file", path, "error", err)
			continue
		}
		s.debug("removed leftover file", "file", path)
	}
}

func (s *Strategy) attempt(ctx context.Context, source, dest string, constraint DurationConstraint) (string, error) {
	err := s.engine.Fetch(ctx, Request{
		Source:         source,
		OutputTemplate: strings.ReplaceAll(dest, "%", "%%") + ".%(ext)s",
		Constraint:     constraint,
	})
	if err != nil {
		return "", err
	}
	return normalize(dest)
}

// normalize finds the produced file, preferring .mp3, and renames an .m4a to .mp3.
func normalize(dest string) (string, error) {
	primary := dest + primaryExt
	if ok, err := files.Exists(primary); err != nil {
		return "", err
	} else if ok {
		return primary, nil
	}

	alternate := dest + alternateExt
	ok, err := files.Exists(alternate)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoFile
	}

	if err := os.Rename(alternate, primary); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", alternate, err)
	}
	return primary, nil
}

func (s *Strategy) debug(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, kv...)
	}
}
