// Package cleaner normalizes artist and title text for filenames and tags.
//
// A [services.Assistant] is consulted when it is configured and answers its cached
// liveness check; otherwise, or when its answer is unusable, deterministic rules apply.
package cleaner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/karlseguin/ccache/v3"
	"github.com/tidwall/gjson"
)

const (
	FilenameTimeout = 10 * time.Second
	MetadataTimeout = 15 * time.Second

	maxFilenameLength = 120
	maxFieldLength    = 100
	maxGenreLength    = 50
	memoTTL           = time.Hour
)

const filenamePrompt = `Clean this music track information for a filename:
Artist: %s
Title: %s

Rules:
1. Standardize artist names (e.g., "Beatles, The" → "The Beatles")
2. Clean track titles (remove "(Remastered)", version info, etc.)
3. Use format: "Artist - Title"
4. Remove special characters that cause file issues
5. Keep essential information only
6. Max 80 characters total

Respond with just the clean filename (no quotes, no extension):`

const metadataPrompt = `Clean and standardize this music metadata:
Artist: %s
Title: %s
Album: %s

Rules:
1. Standardize artist names using music knowledge
2. Clean track titles while preserving essential information
3. Fix capitalization and formatting
4. Remove problematic characters for file systems
5. Add genre if determinable from the track info

Respond with JSON only:
{"artist": "Clean Artist Name", "title": "Clean Track Title", "album": "Album Name", "genre": "Genre if known"}`

var (
	parenthetical = regexp.MustCompile(`\s*\(.*?\)\s*`)
	yearSuffix    = regexp.MustCompile(`\s*-\s*\d{4}\s*.*`)
	whitespace    = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[<>:"/\\|?*]`)
	jsonObject    = regexp.MustCompile(`(?s)\{.*\}`)
)

// Metadata is the structured result of [Cleaner.CleanMetadata].
type Metadata struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album"`
	Genre  string `json:"genre"`
}

// Cleaner produces display names and tag fields. The zero assistant means rules only.
type Cleaner struct {
	assistant services.Assistant
	logger    *log.Logger
	names     *ccache.Cache[string]
	metadata  *ccache.Cache[Metadata]
}

// New creates a cleaner. assistant may be nil.
func New(assistant services.Assistant, logger *log.Logger) *Cleaner {
	if logger == nil {
		logger = log.Default()
	}
	return &Cleaner{
		assistant: assistant,
		logger:    logger,
		names:     ccache.New(ccache.Configure[string]().MaxSize(2000).GetsPerPromote(3).ItemsToPrune(10)),
		metadata:  ccache.New(ccache.Configure[Metadata]().MaxSize(2000).GetsPerPromote(3).ItemsToPrune(10)),
	}
}

// Stop releases the memo caches.
func (c *Cleaner) Stop() {
	c.names.Stop()
	c.metadata.Stop()
}

// AssistantActive reports whether the assistant is configured and currently answering.
func (c *Cleaner) AssistantActive(ctx context.Context) bool {
	return c.assistant != nil && c.assistant.Available(ctx)
}

// CleanFilename returns "Artist - Title" suitable for a filename.
//
// An assistant answer is used only when it is shorter than 120 characters, non-empty
// after removing filesystem-hostile characters and contains " - ".
func (c *Cleaner) CleanFilename(ctx context.Context, artist, title string) string {
	item, err := c.names.Fetch(memoKey(artist, title), memoTTL, func() (string, error) {
		if !c.AssistantActive(ctx) {
			return "", shared.ErrAssistantUnavailable
		}

		answer, err := c.assistant.Generate(ctx, fmt.Sprintf(filenamePrompt, artist, title), FilenameTimeout)
		if err != nil {
			c.logger.Warn("assistant filename cleaning failed", "artist", artist, "title", title, "error", err)
			return "", err
		}
		if name, ok := acceptFilename(answer); ok {
			return name, nil
		}
		c.logger.Debug("assistant filename rejected", "answer", answer)
		return FallbackFilename(artist, title), nil
	})
	if err != nil {
		return FallbackFilename(artist, title)
	}
	return item.Value()
}

func acceptFilename(answer string) (string, bool) {
	if answer == "" || len(answer) >= maxFilenameLength {
		return "", false
	}
	cleaned := strings.TrimSpace(unsafeChars.ReplaceAllString(answer, ""))
	if cleaned == "" || !strings.Contains(cleaned, " - ") {
		return "", false
	}
	return cleaned, true
}

// CleanMetadata returns cleaned artist, title, album and genre.
//
// The assistant answer must contain a JSON object with at least "artist" and "title".
func (c *Cleaner) CleanMetadata(ctx context.Context, artist, title, album string) Metadata {
	item, err := c.metadata.Fetch(memoKey(artist, title, album), memoTTL, func() (Metadata, error) {
		if !c.AssistantActive(ctx) {
			return Metadata{}, shared.ErrAssistantUnavailable
		}

		answer, err := c.assistant.Generate(ctx, fmt.Sprintf(metadataPrompt, artist, title, album), MetadataTimeout)
		if err != nil {
			c.logger.Warn("assistant metadata cleaning failed", "artist", artist, "title", title, "error", err)
			return Metadata{}, err
		}
		if md, ok := parseMetadata(answer, artist, title, album); ok {
			return md, nil
		}
		c.logger.Debug("assistant metadata rejected", "answer", answer)
		return FallbackMetadata(artist, title, album), nil
	})
	if err != nil {
		return FallbackMetadata(artist, title, album)
	}
	return item.Value()
}

func parseMetadata(answer, artist, title, album string) (Metadata, bool) {
	raw := jsonObject.FindString(answer)
	if raw == "" || !gjson.Valid(raw) {
		return Metadata{}, false
	}

	obj := gjson.Parse(raw)
	if !obj.IsObject() || !obj.Get("artist").Exists() || !obj.Get("title").Exists() {
		return Metadata{}, false
	}

	field := func(key, def string, limit int) string {
		v := obj.Get(key)
		if !v.Exists() {
			return truncate(def, limit)
		}
		return truncate(v.String(), limit)
	}

	return Metadata{
		Artist: field("artist", artist, maxFieldLength),
		Title:  field("title", title, maxFieldLength),
		Album:  field("album", album, maxFieldLength),
		Genre:  field("genre", "", maxGenreLength),
	}, true
}

// FallbackFilename applies the deterministic rules: parenthetical annotations and
// trailing "- YYYY ..." suffixes are removed, "X, The" becomes "The X" (likewise
// "X, A") and whitespace is collapsed.
func FallbackFilename(artist, title string) string {
	return fmt.Sprintf("%s - %s", cleanArtist(artist), cleanTitle(title))
}

// FallbackMetadata is the rule-based counterpart of [Cleaner.CleanMetadata]. Genre is empty.
func FallbackMetadata(artist, title, album string) Metadata {
	return Metadata{
		Artist: truncate(cleanArtist(artist), maxFieldLength),
		Title:  truncate(cleanTitle(title), maxFieldLength),
		Album:  truncate(collapse(parenthetical.ReplaceAllString(album, " ")), maxFieldLength),
	}
}

func cleanTitle(title string) string {
	title = parenthetical.ReplaceAllString(title, " ")
	title = yearSuffix.ReplaceAllString(title, "")
	return collapse(title)
}

func cleanArtist(artist string) string {
	artist = cleanTitle(artist)
	switch {
	case strings.HasSuffix(artist, ", The"):
		artist = "The " + strings.TrimSuffix(artist, ", The")
	case strings.HasSuffix(artist, ", A"):
		artist = "A " + strings.TrimSuffix(artist, ", A")
	}
	return collapse(artist)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func memoKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
