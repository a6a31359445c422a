// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/acquire"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// FakeSource is a [services.PlaylistSource] serving fixed playlists.
type FakeSource struct {
	Playlists map[string]*models.Playlist
	AuthErr   error
	FetchErr  error

	mu    sync.Mutex
	Calls int
}

var _ services.PlaylistSource = (*FakeSource)(nil)

func (f *FakeSource) Authenticate(context.Context, map[string]string) error { return f.AuthErr }
func (f *FakeSource) Ping(context.Context) error                            { return nil }
func (f *FakeSource) Name() string                                          { return "fake" }

func (f *FakeSource) FetchPlaylist(_ context.Context, id string) (*models.Playlist, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()

	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	p, ok := f.Playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrSourceUnavailable, shared.ErrPlaylistNotFound, id)
	}
	return p, nil
}

// FakeAcquirer writes a small MPEG file for every track not listed in Fail.
type FakeAcquirer struct {
	Fail  map[string]bool   // keyed by track title
	Names map[string]string // file base name used instead of dest's, keyed by track title

	mu    sync.Mutex
	Dests []string
}

func (f *FakeAcquirer) Acquire(ctx context.Context, track models.Track, dest string) (acquire.Outcome, error) {
	f.mu.Lock()
	f.Dests = append(f.Dests, dest)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return acquire.Outcome{}, err
	}
	if f.Fail[track.Title] {
		return acquire.Outcome{}, &acquire.FetchError{
			Track:    track.String(),
			Attempts: []acquire.Attempt{{Source: acquire.SourceFor(acquire.PrimaryQuery(track)), Err: errors.New("no results")}},
		}
	}

	path := dest + ".mp3"
	if name, ok := f.Names[track.Title]; ok {
		path = filepath.Join(filepath.Dir(dest), name+".mp3")
	}
	if err := os.WriteFile(path, MPEGBytes(), 0644); err != nil {
		return acquire.Outcome{}, err
	}
	return acquire.Outcome{FilePath: path, SourceReference: "https://www.youtube.com/watch?v=" + track.ID, Attempts: 1}, nil
}

// FakeAssistant is a [services.Assistant] returning a fixed answer.
type FakeAssistant struct {
	Up     bool
	Answer string
}

var _ services.Assistant = (*FakeAssistant)(nil)

func (f *FakeAssistant) Available(context.Context) bool { return f.Up }

func (f *FakeAssistant) Generate(context.Context, string, time.Duration) (string, error) {
	if !f.Up {
		return "", shared.ErrAssistantUnavailable
	}
	return f.Answer, nil
}

func (f *FakeAssistant) Status(context.Context) services.AssistantStatus {
	return services.AssistantStatus{Available: f.Up, URL: "http://fake", Model: "fake-model", Installed: f.Up}
}

// MPEGBytes is an empty ID3v2.4 header followed by one MPEG-1 Layer III frame header and padding.
func MPEGBytes() []byte {
	data := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0, 0xFF, 0xFB, 0x90, 0x64}
	return append(data, make([]byte, 2048)...)
}

// WriteMPEG writes [MPEGBytes] to dir/name and returns the path.
func WriteMPEG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, MPEGBytes(), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
