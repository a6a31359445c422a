package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsFatal(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want bool
	}{
		{name: "missing credentials", err: fmt.Errorf("%w: SPOTIPY_CLIENT_ID", ErrMissingCredentials), want: true},
		{name: "missing playlist id", err: fmt.Errorf("%w: PLAYLIST_ID", ErrMissingConfig), want: true},
		{name: "source unavailable", err: fmt.Errorf("%w: %w", ErrSourceUnavailable, ErrPlaylistNotFound), want: true},
		{name: "empty playlist", err: ErrEmptyPlaylist, want: true},
		{name: "track fetch failure", err: fmt.Errorf("%w: no file", ErrTrackFetch), want: false},
		{name: "tracking io", err: ErrTrackingIO, want: false},
		{name: "assistant unavailable", err: ErrAssistantUnavailable, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("NewFileLogger Creates Parents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "tapedeck.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		logger.Info("hello", "k", "v")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected log file at %s: %v", path, err)
		}
		if !strings.Contains(string(data), "k=v") {
			t.Errorf("expected logfmt output, got %q", data)
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == "" || a == b {
			t.Errorf("expected distinct ids, got %q and %q", a, b)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "freebsd", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, "http://127.0.0.1:8888")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if name != tt.want {
				t.Errorf("expected %s, got %s", tt.want, name)
			}
			if args[len(args)-1] != "http://127.0.0.1:8888" {
				t.Errorf("expected url as last arg, got %v", args)
			}
		})
	}
}
