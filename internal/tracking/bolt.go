package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/files"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

// BoltName is the embedded database kept in each playlist folder by the bolt backend.
const BoltName = ".download_tracking.db"

var tracksBucket = []byte("tracks")

// BoltStore is a [Store] backed by an embedded bbolt database. Every mutation is its own
// committed transaction.
type BoltStore struct {
	dir    string
	db     *bbolt.DB
	logger *log.Logger
	now    func() time.Time
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the bolt tracking database in dir.
func OpenBolt(dir string, logger *log.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	db, err := bbolt.Open(filepath.Join(dir, BoltName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tracksBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	return &BoltStore{dir: dir, db: db, logger: logger, now: time.Now}, nil
}

func (s *BoltStore) Lookup(track models.Track) (Entry, bool) {
	if !track.HasID() {
		return Entry{}, false
	}

	var entry Entry
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(tracksBucket).Get([]byte(track.ID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &entry)
	})
	if err != nil {
		s.warn("could not read tracking entry", "track", track.String(), "error", err)
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}

	if present, _ := files.Exists(resolve(s.dir, entry.FilePath)); present {
		return entry, true
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(tracksBucket).Delete([]byte(track.ID))
	}); err != nil {
		s.warn("could not persist tracking purge", "error", err)
	} else if s.logger != nil {
		s.logger.Info("purged stale tracking entry", "track", track.String(), "path", entry.FilePath)
	}
	return Entry{}, false
}

func (s *BoltStore) Record(track models.Track, filePath, sourceReference string) error {
	if !track.HasID() {
		return nil
	}

	data, err := json.Marshal(newEntry(track, filePath, sourceReference, s.now()))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(tracksBucket).Put([]byte(track.ID), data)
	}); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTrackingIO, err)
	}
	return nil
}

func (s *BoltStore) Entries() Document {
	doc := Document{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(tracksBucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			doc[string(k)] = e
			return nil
		})
	})
	if err != nil {
		s.warn("could not read tracking entries", "error", err)
	}
	return doc
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) warn(msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, kv...)
	}
}
