package models

import (
	"fmt"
	"strings"
	"time"
)

// Track is one playlist entry. It is built once per playlist fetch and never mutated.
type Track struct {
	ID         string   // Stable source identifier, empty for degraded items
	Title      string
	Artists    []string // Artist names in source order
	Album      string
	DurationMS int      // Expected length in milliseconds
	Number     int      // 1-based position in the playlist
}

// HasID reports whether the track can be deduplicated across runs.
func (t Track) HasID() bool {
	return strings.TrimSpace(t.ID) != ""
}

// ArtistDisplay joins the artist names with ", ".
func (t Track) ArtistDisplay() string {
	return strings.Join(t.Artists, ", ")
}

// SearchQuery is "{title} {artists}".
func (t Track) SearchQuery() string {
	return fmt.Sprintf("%s %s", t.Title, t.ArtistDisplay())
}

// Duration returns the expected length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// String renders "Artist - Title" for log lines and progress output.
func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return t.ArtistDisplay() + " - " + t.Title
}

// Playlist is a playlist with its ordered, already filtered tracks.
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	Tracks      []Track
}

// RunSummary holds the counts of one download run. It is derived, not persisted.
type RunSummary struct {
	Total       int  `json:"total"`
	Skipped     int  `json:"skipped"`
	Downloaded  int  `json:"downloaded"`
	Failed      int  `json:"failed"`
	Interrupted bool `json:"interrupted"`
}

// Processed is the number of tracks that reached a terminal state.
func (s RunSummary) Processed() int {
	return s.Skipped + s.Downloaded + s.Failed
}
