// package files allocates collision-free destination paths and sanitizes names for
// the filesystems tapedeck writes to.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

const (
	MaxNameLength    = 200
	MaxCarNameLength = 50
)

var (
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	carUnsafeChars = regexp.MustCompile(`[<>:"/\\|?*&%#@!]`)
	whitespace     = regexp.MustCompile(`\s+`)

	accentFolds = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`[áàâãäå]`), "a"},
		{regexp.MustCompile(`[éèêë]`), "e"},
		{regexp.MustCompile(`[íìîï]`), "i"},
		{regexp.MustCompile(`[óòôõö]`), "o"},
		{regexp.MustCompile(`[úùûü]`), "u"},
		{regexp.MustCompile(`ñ`), "n"},
		{regexp.MustCompile(`ç`), "c"},
	}
)

// Sanitize removes <>:"/\|?*, collapses whitespace, trims and caps the result at [MaxNameLength] characters.
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	return truncate(name, MaxNameLength)
}

// SanitizeCar is the stricter variant for FAT32 head units: it also drops &%#@!, folds
// lowercase accented vowels, ñ and ç to ASCII and caps at [MaxCarNameLength] characters.
func SanitizeCar(name string) string {
	name = carUnsafeChars.ReplaceAllString(name, "")
	for _, f := range accentFolds {
		name = f.re.ReplaceAllString(name, f.repl)
	}
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	return truncate(name, MaxCarNameLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Allocate returns the first unused path among "{dir}/{base}.{ext}", "{dir}/{base} (1).{ext}",
// "{dir}/{base} (2).{ext}" and so on, with base passed through [Sanitize].
//
// Existence is checked synchronously; concurrent callers racing on one base name may collide.
func Allocate(base, dir, ext string) (string, error) {
	base = Sanitize(base)
	if base == "" {
		return "", fmt.Errorf("empty file name after sanitizing")
	}
	ext = strings.TrimPrefix(ext, ".")

	candidate := filepath.Join(dir, base+"."+ext)
	for i := 1; ; i++ {
		exists, err := Exists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d).%s", base, i, ext))
	}
}

// Exists reports whether path exists. Errors other than "not exist" are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// TrimExt strips the extension from a path.
func TrimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// CopyFile copies src to dst, replacing dst, and keeps the source modification time.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// MostRecentDir returns the most recently modified subdirectory of root, ignoring hidden
// directories and the names in skip.
func MostRecentDir(root string, skip ...string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", root, err)
	}

	var latest string
	var latestMod int64
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || slices.Contains(skip, e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest, latestMod = filepath.Join(root, e.Name()), mod
		}
	}

	if latest == "" {
		return "", os.ErrNotExist
	}
	return latest, nil
}
