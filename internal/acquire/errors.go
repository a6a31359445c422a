package acquire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// ErrNoFile means the engine exited cleanly but left nothing at the destination, which is
// how a search with no result or a duration-filtered candidate looks from outside.
var ErrNoFile = errors.New("no audio file produced")

// ErrRateLimited is reported when the engine output mentions HTTP 429.
var ErrRateLimited = errors.New("rate limited by video platform")

// Attempt is one engine invocation.
type Attempt struct {
	Source string
	Err    error
}

// FetchError is a TrackFetchFailure: every query variant failed.
type FetchError struct {
	Track    string
	Attempts []Attempt
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return fmt.Sprintf("%v for %s after %d attempt(s): %s", shared.ErrTrackFetch, e.Track, len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the last underlying cause alongside [shared.ErrTrackFetch].
func (e *FetchError) Unwrap() []error {
	errs := []error{shared.ErrTrackFetch}
	if n := len(e.Attempts); n > 0 && e.Attempts[n-1].Err != nil {
		errs = append(errs, e.Attempts[n-1].Err)
	}
	return errs
}

// EngineError wraps a failed engine run.
type EngineError struct {
	Source   string
	Output   string
	Original error
}

func (e *EngineError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("engine failed for %q: %v: %s", e.Source, e.Original, e.Output)
	}
	return fmt.Sprintf("engine failed for %q: %v", e.Source, e.Original)
}

func (e *EngineError) Unwrap() error {
	return e.Original
}
