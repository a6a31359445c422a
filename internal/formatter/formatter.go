// package formatter renders a playlist folder's tracking document as text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/goccy/go-json"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats in help-text order.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat accepts a format name, case-insensitively. "md" is an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Row is one tracking entry with its resolved file state.
type Row struct {
	TrackID         string `json:"track_id"`
	Name            string `json:"name"`
	Artists         string `json:"artists"`
	FilePath        string `json:"file_path"`
	SourceReference string `json:"source_reference"`
	SearchQuery     string `json:"search_query"`
	DownloadDate    string `json:"download_date"`
	Present         bool   `json:"present"`
}

// Export is the tracking document of one playlist folder.
type Export struct {
	Dir   string `json:"dir"`
	Album string `json:"playlist"`
	Rows  []Row  `json:"tracks"`
}

// NewExport builds an export for dir, ordered by download date then name.
func NewExport(dir string, doc tracking.Document) *Export {
	rows := make([]Row, 0, len(doc))
	for id, e := range doc {
		path := e.FilePath
		if path != "" && !filepath.IsAbs(path) {
			if ok, _ := files.Exists(filepath.Join(dir, path)); ok {
				path = filepath.Join(dir, path)
			}
		}
		present, _ := files.Exists(path)

		rows = append(rows, Row{
			TrackID:         id,
			Name:            e.Name,
			Artists:         e.Artists,
			FilePath:        e.FilePath,
			SourceReference: e.SourceReference,
			SearchQuery:     e.SearchQuery,
			DownloadDate:    e.DownloadDate,
			Present:         path != "" && present,
		})
	}

	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.DownloadDate, b.DownloadDate),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.TrackID, b.TrackID),
		)
	})

	album, _, _ := strings.Cut(filepath.Base(filepath.Clean(dir)), " - ")
	return &Export{Dir: dir, Album: album, Rows: rows}
}

// Missing counts rows whose file is gone.
func (e *Export) Missing() int {
	n := 0
	for _, r := range e.Rows {
		if !r.Present {
			n++
		}
	}
	return n
}

// Render encodes export in format.
func Render(export *Export, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return ExportToText(export)
	}
}

// ExportToCSV writes columns: ID, Name, Artists, File, Source, Query, Downloaded, Present
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artists", "File", "Source", "Query", "Downloaded", "Present"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range export.Rows {
		record := []string{
			r.TrackID,
			r.Name,
			r.Artists,
			r.FilePath,
			r.SourceReference,
			r.SearchQuery,
			r.DownloadDate,
			fmt.Sprintf("%t", r.Present),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, counts and a numbered track list. Missing files are struck through.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Album)
	fmt.Fprintf(&buf, "**Directory**: `%s`\n\n", export.Dir)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Rows))
	if missing := export.Missing(); missing > 0 {
		fmt.Fprintf(&buf, "**Missing files**: %d\n", missing)
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, r := range export.Rows {
		line := fmt.Sprintf("%s - %s", r.Artists, r.Name)
		if !r.Present {
			line = "~~" + line + "~~"
		}
		if r.SourceReference != "" {
			line += fmt.Sprintf(" ([source](%s))", r.SourceReference)
		}
		fmt.Fprintf(&buf, "%d. %s\n", i+1, line)
	}

	return buf.Bytes(), nil
}

// ExportToText converts an export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Album)
	fmt.Fprintf(&buf, "Directory: %s\n", export.Dir)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Rows))

	for i, r := range export.Rows {
		mark := "✓"
		if !r.Present {
			mark = "✗"
		}
		fmt.Fprintf(&buf, "%s %d. %s - %s\n", mark, i+1, r.Artists, r.Name)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the export as indented JSON.
func ExportToJSON(export *Export) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders export to path.
func WriteExport(export *Export, format Format, path string) error {
	data, err := Render(export, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
