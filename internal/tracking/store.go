// package tracking persists which playlist tracks have already been downloaded so repeated
// runs converge instead of fetching again.
package tracking

import (
	"maps"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/models"
)

// Store is the tracking contract used by the download orchestrator. Implementations are
// owned by a single run and are not safe for concurrent writers.
type Store interface {
	// Lookup reports whether track was downloaded and its file still exists. A stale entry
	// is purged and the purge persisted before returning false. Tracks without an id are
	// never present.
	Lookup(track models.Track) (Entry, bool)

	// Record stores the outcome for track and persists it immediately. Tracks without an id
	// are ignored. A persistence error leaves the in-memory state updated.
	Record(track models.Track, filePath, sourceReference string) error

	// Entries returns a snapshot of all entries keyed by track id.
	Entries() Document

	Close() error
}

// Backend selects the on-disk representation.
type Backend string

const (
	BackendJSON Backend = "json"
	BackendBolt Backend = "bolt"
)

// Open opens the tracking store for a playlist folder.
//
// The returned Store is always usable. A non-nil error is a TrackingIOFailure warning: the
// store then starts empty, and for the bolt backend it is memory only.
func Open(dir string, backend Backend, logger *log.Logger) (Store, error) {
	switch backend {
	case BackendBolt:
		s, err := OpenBolt(dir, logger)
		if err != nil {
			return NewMemoryStore(logger), err
		}
		return s, nil
	default:
		return LoadDocumentStore(dir, logger)
	}
}

// Detect returns the backend already used in dir, defaulting to JSON.
func Detect(dir string) Backend {
	if ok, _ := files.Exists(filepath.Join(dir, BoltName)); ok {
		return BackendBolt
	}
	return BackendJSON
}

// DocumentStore is the JSON document backed [Store].
type DocumentStore struct {
	dir    string
	doc    Document
	logger *log.Logger
	now    func() time.Time
}

var _ Store = (*DocumentStore)(nil)

// LoadDocumentStore loads dir's tracking document. See [Load] for error semantics.
func LoadDocumentStore(dir string, logger *log.Logger) (*DocumentStore, error) {
	doc, err := Load(dir)
	return &DocumentStore{dir: dir, doc: doc, logger: logger, now: time.Now}, err
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(logger *log.Logger) *DocumentStore {
	return &DocumentStore{doc: Document{}, logger: logger, now: time.Now}
}

func (s *DocumentStore) Lookup(track models.Track) (Entry, bool) {
	if !track.HasID() {
		return Entry{}, false
	}

	entry, ok := s.doc[track.ID]
	if !ok {
		return Entry{}, false
	}

	if present, _ := files.Exists(resolve(s.dir, entry.FilePath)); present {
		return entry, true
	}

	delete(s.doc, track.ID)
	if s.logger != nil {
		s.logger.Info("purged stale tracking entry", "track", track.String(), "path", entry.FilePath)
	}
	if err := s.save(); err != nil && s.logger != nil {
		s.logger.Warn("could not persist tracking purge", "error", err)
	}
	return Entry{}, false
}

func (s *DocumentStore) Record(track models.Track, filePath, sourceReference string) error {
	if !track.HasID() {
		return nil
	}

	s.doc[track.ID] = newEntry(track, filePath, sourceReference, s.now())
	return s.save()
}

func (s *DocumentStore) Entries() Document {
	return maps.Clone(s.doc)
}

func (s *DocumentStore) Close() error { return nil }

func (s *DocumentStore) save() error {
	if s.dir == "" {
		return nil
	}
	return Save(s.dir, s.doc)
}

func newEntry(track models.Track, filePath, sourceReference string, at time.Time) Entry {
	return Entry{
		Name:            track.Title,
		Artists:         track.ArtistDisplay(),
		FilePath:        filePath,
		SourceReference: sourceReference,
		SearchQuery:     track.SearchQuery(),
		DownloadDate:    at.Format(DateLayout),
	}
}

// resolve interprets a relative entry path. Entries written by the downloader are
// absolute; relative ones are tried against the playlist folder, then the working directory.
func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	joined := filepath.Join(dir, path)
	if ok, _ := files.Exists(joined); ok {
		return joined
	}
	if ok, _ := files.Exists(path); ok {
		return path
	}
	return joined
}

// FindByPath returns the entry whose file resolves to path.
func FindByPath(dir string, doc Document, path string) (string, Entry, bool) {
	target, err := filepath.Abs(path)
	if err != nil {
		target = path
	}
	for id, e := range doc {
		p, err := filepath.Abs(resolve(dir, e.FilePath))
		if err != nil {
			continue
		}
		if p == target {
			return id, e, true
		}
	}
	return "", Entry{}, false
}
