package caraudio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/cleaner"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tagging"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMPEG(t *testing.T, path string) {
	t.Helper()
	data := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0, 0xFF, 0xFB, 0x90, 0x64}
	data = append(data, make([]byte, 2048)...)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func playlistDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Road Trip - 37i9dQZF1DX0XUsuxWHRQd")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		writeMPEG(t, filepath.Join(dir, n))
	}
	return dir
}

func quiet() *log.Logger { return log.New(io.Discard) }

type upperCleaner struct{ metadataCalls int }

func (u *upperCleaner) CleanFilename(_ context.Context, artist, title string) string {
	return strings.ToUpper(artist + " - " + title)
}

func (u *upperCleaner) CleanMetadata(_ context.Context, artist, title, album string) cleaner.Metadata {
	u.metadataCalls++
	return cleaner.Metadata{Artist: "Fixed " + artist, Title: title, Album: album}
}

func TestAlbumName(t *testing.T) {
	assert.Equal(t, "Road Trip", AlbumName("/music/Road Trip - abc123"))
	assert.Equal(t, "Loose", AlbumName("/music/Loose"))
	assert.Equal(t, "A", AlbumName("A - B - C"))
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name, in, artist, title string
	}{
		{"Numbered", "01. Daft Punk - One More Time", "Daft Punk", "One More Time"},
		{"Hyphen In Title", "12. Artist - Title - Live", "Artist", "Title - Live"},
		{"No Number", "Artist - Title", unknownArtist, "Artist - Title"},
		{"Bare", "track", unknownArtist, "track"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artist, title := ParseFilename(tt.in)
			assert.Equal(t, tt.artist, artist)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := playlistDir(t, "02. B - Two.mp3", "01. A - One.MP3")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp3"), 0755))

	names, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"01. A - One.MP3", "02. B - Two.mp3"}, names)
}

func TestRepackage(t *testing.T) {
	t.Run("Copies And Tags", func(t *testing.T) {
		dir := playlistDir(t, "01. Daft Punk - One More Time.mp3", "02. Björk - Jóga.mp3")
		r := New(Options{Logger: quiet()})

		result, err := r.Repackage(context.Background(), dir, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, filepath.Join(filepath.Dir(dir), Folder, "Road Trip"), result.AlbumDir)
		assert.Positive(t, result.Bytes)

		first := filepath.Join(result.AlbumDir, "01 - Daft Punk - One More Time.mp3")
		second := filepath.Join(result.AlbumDir, "02 - Bjork - Joga.mp3")
		assert.FileExists(t, first)
		assert.FileExists(t, second)

		tags, err := tagging.ReadTags(first)
		require.NoError(t, err)
		assert.Equal(t, "One More Time", tags.Title)
		assert.Equal(t, "Daft Punk", tags.Artist)
		assert.Equal(t, "Road Trip", tags.Album)
		assert.Equal(t, tagging.DefaultCarGenre, tags.Genre)
		assert.Equal(t, 1, tags.Track)

		assert.FileExists(t, filepath.Join(dir, "01. Daft Punk - One More Time.mp3"), "source must be left in place")
	})

	t.Run("Prefers Tracking Entry", func(t *testing.T) {
		dir := playlistDir(t, "01. garbled name.mp3")
		require.NoError(t, tracking.Save(dir, tracking.Document{
			"id1": {Name: "Real Title", Artists: "Real Artist", FilePath: filepath.Join(dir, "01. garbled name.mp3")},
		}))

		result, err := New(Options{Logger: quiet()}).Repackage(context.Background(), dir, nil)
		require.NoError(t, err)
		require.Len(t, result.Files, 1)

		fr := result.Files[0]
		assert.Equal(t, FromTracking, fr.From)
		assert.Equal(t, "Real Artist", fr.Artist)
		assert.Equal(t, "Real Title", fr.Title)
		assert.Equal(t, "01 - Real Artist - Real Title.mp3", filepath.Base(fr.Target))
	})

	t.Run("Prefers Existing Tags Over Filename", func(t *testing.T) {
		dir := playlistDir(t, "05. wrong - wrong.mp3")
		require.NoError(t, tagging.WriteDownloadTags(filepath.Join(dir, "05. wrong - wrong.mp3"),
			tagging.Tags{Title: "Tagged", Artist: "Tagger"}))

		result, err := New(Options{Logger: quiet()}).Repackage(context.Background(), dir, nil)
		require.NoError(t, err)
		assert.Equal(t, FromTags, result.Files[0].From)
		assert.Equal(t, "Tagger", result.Files[0].Artist)
	})

	t.Run("Uses Cleaner", func(t *testing.T) {
		dir := playlistDir(t, "01. a - b.mp3")
		c := &upperCleaner{}

		result, err := New(Options{Logger: quiet(), Cleaner: c, FixMetadata: true, Genre: "Pop"}).
			Repackage(context.Background(), dir, nil)
		require.NoError(t, err)

		fr := result.Files[0]
		assert.Equal(t, "01 - A - B.mp3", filepath.Base(fr.Target))
		assert.Equal(t, 1, c.metadataCalls)

		tags, err := tagging.ReadTags(fr.Target)
		require.NoError(t, err)
		assert.Equal(t, "Fixed a", tags.Artist)
		assert.Equal(t, "Pop", tags.Genre)
	})

	t.Run("Copies Non MPEG Without Tags", func(t *testing.T) {
		dir := playlistDir(t, "01. A - One.mp3", "03. C - Three.mp3")
		m4a := []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00M4A mp42isom\x00\x00\x00\x00")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "02. B - Two.mp3"), m4a, 0644))

		result, err := New(Options{Logger: quiet()}).Repackage(context.Background(), dir, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 3, result.Processed)

		targets := make([]string, 0, len(result.Files))
		for _, f := range result.Files {
			targets = append(targets, filepath.Base(f.Target))
		}
		assert.Equal(t, []string{"01 - A - One.mp3", "02 - B - Two.mp3", "03 - C - Three.mp3"}, targets)

		fr := result.Files[1]
		assert.True(t, fr.Untagged())
		assert.ErrorIs(t, fr.TagErr, tagging.ErrNotMPEG)
		data, err := os.ReadFile(fr.Target)
		require.NoError(t, err)
		assert.Equal(t, m4a, data)

		assert.False(t, result.Files[2].Untagged())
		tags, err := tagging.ReadTags(result.Files[2].Target)
		require.NoError(t, err)
		assert.Equal(t, 3, tags.Track)
	})

	t.Run("Uses Entries Of An Open Store", func(t *testing.T) {
		dir := playlistDir(t, "01. garbled name.mp3")
		store, err := tracking.OpenBolt(dir, quiet())
		require.NoError(t, err)
		defer store.Close()

		track := models.Track{ID: "id1", Title: "Real Title", Artists: []string{"Real Artist"}, Number: 1}
		require.NoError(t, store.Record(track, filepath.Join(dir, "01. garbled name.mp3"), "ytsearch1:Real Artist Real Title"))

		result, err := New(Options{Logger: quiet(), Entries: store.Entries()}).Repackage(context.Background(), dir, nil)
		require.NoError(t, err)
		require.Len(t, result.Files, 1)

		fr := result.Files[0]
		assert.Equal(t, FromTracking, fr.From)
		assert.Equal(t, "Real Artist", fr.Artist)
		assert.Equal(t, "01 - Real Artist - Real Title.mp3", filepath.Base(fr.Target))
	})

	t.Run("Empty Folder", func(t *testing.T) {
		dir := playlistDir(t)
		_, err := New(Options{Logger: quiet()}).Repackage(context.Background(), dir, nil)
		assert.True(t, errors.Is(err, ErrNoAudioFiles))
	})

	t.Run("Custom Output Root", func(t *testing.T) {
		dir := playlistDir(t, "01. A - One.mp3")
		root := t.TempDir()

		result, err := New(Options{Logger: quiet(), OutputRoot: root}).Repackage(context.Background(), dir, nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "Road Trip"), result.AlbumDir)
	})

	t.Run("Reports Progress", func(t *testing.T) {
		dir := playlistDir(t, "01. A - One.mp3", "02. B - Two.mp3")
		progress := make(chan tasks.ProgressUpdate, 10)

		_, err := New(Options{Logger: quiet()}).Repackage(context.Background(), dir, progress)
		require.NoError(t, err)
		close(progress)

		var phases []tasks.Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		assert.Equal(t, []tasks.Phase{tasks.RepackageTrack, tasks.RepackageTrack, tasks.RepackageDone}, phases)
	})

	t.Run("Cancelled", func(t *testing.T) {
		dir := playlistDir(t, "01. A - One.mp3")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := New(Options{Logger: quiet()}).Repackage(ctx, dir, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, result.Processed)
	})
}
