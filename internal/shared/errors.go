package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Playlist source errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrSourceUnavailable  = fmt.Errorf("playlist source unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrEmptyPlaylist      = fmt.Errorf("playlist has no tracks")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Pipeline errors
	ErrTrackFetch           = fmt.Errorf("track fetch failed")
	ErrTrackingIO           = fmt.Errorf("tracking document unavailable")
	ErrAssistantUnavailable = fmt.Errorf("text assistant unavailable")
	ErrTagWrite             = fmt.Errorf("tag write failed")
	ErrNoDownloads          = fmt.Errorf("no download folders found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsFatal reports whether err should terminate the process with a nonzero exit.
func IsFatal(err error) bool {
	for _, target := range []error{ErrMissingConfig, ErrMissingCredentials, ErrInvalidConfig, ErrSourceUnavailable, ErrEmptyPlaylist, ErrNoDownloads} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
