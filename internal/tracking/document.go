package tracking

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
)

// DocumentName is the hidden tracking file kept in each playlist folder.
const DocumentName = ".download_tracking.json"

// Document maps a track id to its entry.
type Document map[string]Entry

// DocumentPath returns the tracking document path for a playlist folder.
func DocumentPath(dir string) string {
	return filepath.Join(dir, DocumentName)
}

// Load reads the tracking document in dir.
//
// The returned Document is never nil. A missing file yields an empty document and no error;
// an unreadable or malformed file yields an empty document and an [shared.ErrTrackingIO] warning.
func Load(dir string) (Document, error) {
	data, err := os.ReadFile(DocumentPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: could not parse %s: %v", shared.ErrTrackingIO, DocumentName, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save replaces the tracking document in dir with doc.
//
// The file is written to a temporary sibling and renamed so a crash never leaves a partial document.
func Save(dir string, doc Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	path := DocumentPath(dir)
	tmp, err := os.CreateTemp(dir, DocumentName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	return nil
}
