// Package tagging writes ID3v2 tags to downloaded and repackaged MP3 files.
package tagging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultCarGenre is written as TCON when no genre is configured.
const DefaultCarGenre = "World Music"

// ErrNotMPEG is returned for files whose content is not MPEG audio.
var ErrNotMPEG = errors.New("not an MPEG audio file")

// Tags holds the frames written by this package.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Track  int
}

// IsMPEG sniffs the file content.
func IsMPEG(path string) (bool, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	return mt.Is("audio/mpeg"), nil
}

// WriteDownloadTags sets title, artist, album and track number on a freshly downloaded
// file, keeping the frames the media engine wrote. Non-MPEG files are left untouched.
func WriteDownloadTags(path string, tags Tags) error {
	if err := requireMPEG(path); err != nil {
		return err
	}

	tag, err := open(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if tags.Track > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, strconv.Itoa(tags.Track))
	}
	if tags.Genre != "" {
		tag.SetGenre(tags.Genre)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrTagWrite, path, err)
	}
	return nil
}

// WriteCarTags replaces every frame with ID3v2.3 UTF-16 TIT2, TPE1, TALB, TRCK and
// TCON, the subset older head units read reliably.
func WriteCarTags(path string, tags Tags) error {
	if err := requireMPEG(path); err != nil {
		return err
	}

	tag, err := open(path)
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.DeleteAllFrames()
	tag.SetVersion(3)
	tag.SetDefaultEncoding(id3v2.EncodingUTF16)

	genre := tags.Genre
	if genre == "" {
		genre = DefaultCarGenre
	}

	tag.AddTextFrame("TIT2", id3v2.EncodingUTF16, tags.Title)
	tag.AddTextFrame("TPE1", id3v2.EncodingUTF16, tags.Artist)
	tag.AddTextFrame("TALB", id3v2.EncodingUTF16, tags.Album)
	tag.AddTextFrame("TRCK", id3v2.EncodingUTF16, strconv.Itoa(tags.Track))
	tag.AddTextFrame("TCON", id3v2.EncodingUTF16, genre)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrTagWrite, path, err)
	}
	return nil
}

func requireMPEG(path string) error {
	if ok, err := IsMPEG(path); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrTagWrite, path, err)
	} else if !ok {
		return fmt.Errorf("%w: %s: %w", shared.ErrTagWrite, path, ErrNotMPEG)
	}
	return nil
}

// ReadTags returns the frames this package knows about. Missing frames are zero.
func ReadTags(path string) (Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}
	defer tag.Close()

	track, _, _ := strings.Cut(tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text, "/")
	n, _ := strconv.Atoi(strings.TrimSpace(track))

	return Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Genre:  tag.Genre(),
		Track:  n,
	}, nil
}

func open(path string) (*id3v2.Tag, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		tag, err = id3v2.Open(path, id3v2.Options{Parse: false})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open %s: %w", shared.ErrTagWrite, path, err)
		}
	}
	return tag, nil
}
