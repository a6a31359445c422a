package tagging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// writeMPEG creates an empty ID3v2.4 header followed by an MPEG-1 Layer III frame.
func writeMPEG(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0, 0xFF, 0xFB, 0x90, 0x64}
	data = append(data, make([]byte, 2048)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestIsMPEG(t *testing.T) {
	t.Run("MPEG Frame", func(t *testing.T) {
		ok, err := IsMPEG(writeMPEG(t, "a.mp3"))
		if err != nil || !ok {
			t.Errorf("expected MPEG, got %v (err %v)", ok, err)
		}
	})

	t.Run("Text File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.mp3")
		os.WriteFile(path, []byte("definitely not audio\n"), 0644)
		ok, err := IsMPEG(path)
		if err != nil || ok {
			t.Errorf("expected not MPEG, got %v (err %v)", ok, err)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		if _, err := IsMPEG(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestWriteDownloadTags(t *testing.T) {
	t.Run("Writes Frames", func(t *testing.T) {
		path := writeMPEG(t, "01. Song.mp3")
		err := WriteDownloadTags(path, Tags{Title: "Song", Artist: "Artist A, Artist B", Album: "Album", Track: 7})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := ReadTags(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := Tags{Title: "Song", Artist: "Artist A, Artist B", Album: "Album", Track: 7}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}

		if ok, _ := IsMPEG(path); !ok {
			t.Error("expected file to remain MPEG after tagging")
		}
	})

	t.Run("Skips Non MPEG", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.mp3")
		os.WriteFile(path, []byte("<html>error page</html>"), 0644)

		err := WriteDownloadTags(path, Tags{Title: "Song"})
		if !errors.Is(err, ErrNotMPEG) || !errors.Is(err, shared.ErrTagWrite) {
			t.Errorf("expected ErrNotMPEG wrapped in ErrTagWrite, got %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "<html>error page</html>" {
			t.Error("expected file to be untouched")
		}
	})
}

func TestWriteCarTags(t *testing.T) {
	t.Run("Replaces Frames", func(t *testing.T) {
		path := writeMPEG(t, "01 - Song.mp3")

		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		tag.SetTitle("Old Title")
		tag.AddTextFrame("TCOM", id3v2.EncodingUTF8, "Composer")
		if err := tag.Save(); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		tag.Close()

		if err := WriteCarTags(path, Tags{Title: "Canción", Artist: "Artista", Album: "Viaje", Track: 3}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tag, err = id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer tag.Close()

		if tag.Version() != 3 {
			t.Errorf("expected ID3v2.3, got v2.%d", tag.Version())
		}

		tc := []struct {
			id   string
			want string
		}{
			{"TIT2", "Canción"},
			{"TPE1", "Artista"},
			{"TALB", "Viaje"},
			{"TRCK", "3"},
			{"TCON", DefaultCarGenre},
			{"TCOM", ""},
		}
		for _, c := range tc {
			if got := tag.GetTextFrame(c.id).Text; got != c.want {
				t.Errorf("%s: expected %q, got %q", c.id, c.want, got)
			}
		}
	})

	t.Run("Leaves Non MPEG Untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "01 - Song.mp3")
		m4a := []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00M4A mp42isom\x00\x00\x00\x00")
		os.WriteFile(path, m4a, 0644)

		err := WriteCarTags(path, Tags{Title: "Song", Track: 1})
		if !errors.Is(err, ErrNotMPEG) || !errors.Is(err, shared.ErrTagWrite) {
			t.Errorf("expected ErrNotMPEG wrapped in ErrTagWrite, got %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != string(m4a) {
			t.Error("expected file to be untouched")
		}
	})
}
