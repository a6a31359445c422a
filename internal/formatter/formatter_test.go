package formatter

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/goccy/go-json"
)

func testExport(t *testing.T) *Export {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Road Trip - pl123")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	present := filepath.Join(dir, "01. Daft Punk - One More Time.mp3")
	if err := os.WriteFile(present, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	return NewExport(dir, tracking.Document{
		"b": {Name: "Gone", Artists: "Nobody", FilePath: filepath.Join(dir, "02. Nobody - Gone.mp3"), DownloadDate: "2024-02-01 10:00:00"},
		"a": {Name: "One More Time", Artists: "Daft Punk", FilePath: present, SourceReference: "https://www.youtube.com/watch?v=x", DownloadDate: "2024-01-01 10:00:00"},
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"TEXT", FormatText},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"csv", FormatCSV},
		{" json ", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestNewExport(t *testing.T) {
	export := testExport(t)

	if export.Album != "Road Trip" {
		t.Errorf("expected album Road Trip, got %s", export.Album)
	}
	if len(export.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(export.Rows))
	}
	if export.Rows[0].TrackID != "a" {
		t.Errorf("expected oldest download first, got %s", export.Rows[0].TrackID)
	}
	if !export.Rows[0].Present || export.Rows[1].Present {
		t.Errorf("unexpected presence: %v %v", export.Rows[0].Present, export.Rows[1].Present)
	}
	if export.Missing() != 1 {
		t.Errorf("expected 1 missing, got %d", export.Missing())
	}

	t.Run("Relative Path", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("x"), 0644)

		export := NewExport(dir, tracking.Document{"id": {Name: "Song", FilePath: "song.mp3"}})
		if !export.Rows[0].Present {
			t.Error("expected relative path to resolve against the folder")
		}
	})

	t.Run("Empty Document", func(t *testing.T) {
		export := NewExport(t.TempDir(), tracking.Document{})
		if len(export.Rows) != 0 {
			t.Errorf("expected no rows, got %d", len(export.Rows))
		}
	})
}

func TestExporters(t *testing.T) {
	export := testExport(t)

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header plus 2 records, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "ID,Name,Artists,File,Source,Query,Downloaded,Present" {
			t.Errorf("CSV missing headers, got: %v", records[0])
		}
		if records[1][1] != "One More Time" || records[1][7] != "true" {
			t.Errorf("unexpected first record: %v", records[1])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(export)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Road Trip",
			"**Tracks**: 2",
			"**Missing files**: 1",
			"1. Daft Punk - One More Time ([source](https://www.youtube.com/watch?v=x))",
			"2. ~~Nobody - Gone~~",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(export)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Playlist: Road Trip") {
			t.Errorf("text missing playlist header, got:\n%s", output)
		}
		if !strings.Contains(output, "✓ 1. Daft Punk - One More Time") {
			t.Errorf("text missing first track, got:\n%s", output)
		}
		if !strings.Contains(output, "✗ 2. Nobody - Gone") {
			t.Errorf("text missing second track, got:\n%s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(export)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			Playlist string `json:"playlist"`
			Tracks   []Row  `json:"tracks"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Playlist != "Road Trip" || len(decoded.Tracks) != 2 {
			t.Errorf("unexpected decoded export: %+v", decoded)
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.md")
		if err := WriteExport(export, FormatMarkdown, path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		data, _ := os.ReadFile(path)
		if !strings.HasPrefix(string(data), "# Road Trip") {
			t.Errorf("unexpected file content: %s", data)
		}
	})
}
