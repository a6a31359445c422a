package services

import (
	"context"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
)

// PlaylistSource retrieves playlist metadata and ordered tracks from a streaming service.
type PlaylistSource interface {
	// Authenticate configures credentials. See [SpotifyService.Authenticate] for the accepted keys.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Ping verifies the credentials with a cheap call.
	Ping(ctx context.Context) error

	// FetchPlaylist returns the playlist name and its tracks in order. Missing or partial
	// items are skipped. An invalid id or unreachable service is reported as
	// [shared.ErrSourceUnavailable].
	FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Assistant is a text-generation service used to clean artist and title text.
type Assistant interface {
	// Available reports whether the service answers, using a cached check.
	Available(ctx context.Context) bool

	// Generate runs prompt and returns the trimmed completion. The call is bounded by timeout.
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)

	// Status describes the service for display.
	Status(ctx context.Context) AssistantStatus
}

// AssistantStatus is the assistant summary printed before downloads.
type AssistantStatus struct {
	Available bool     `json:"available"`
	URL       string   `json:"url"`
	Model     string   `json:"model"`
	Installed bool     `json:"installed"` // Model is among the server's models
	Models    []string `json:"models"`
}

// Label is "Available" or "Unavailable".
func (s AssistantStatus) Label() string {
	if s.Available {
		return "Available"
	}
	return "Unavailable"
}
