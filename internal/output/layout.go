// Package output writes the products of a segmentation run: clip files in
// a clips subdirectory, and either one text file per clip or a single
// manifest pairing each clip with its transcript.
package output

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/srtsegment/internal/failure"
)

// Filename pattern placeholders. Both are replaced by the caption index.
const (
	IndexPlaceholder = "{index}"
	BarePlaceholder  = "{}"
)

// ErrNotADirectory is returned when an output path exists as a file.
var ErrNotADirectory = errors.New("path exists and is not a directory")

// HasPlaceholder reports whether pattern names the caption index.
func HasPlaceholder(pattern string) bool {
	return strings.Contains(pattern, IndexPlaceholder) || strings.Contains(pattern, BarePlaceholder)
}

// RenderPattern substitutes index into every placeholder of pattern.
func RenderPattern(pattern string, index int) string {
	n := strconv.Itoa(index)
	out := strings.ReplaceAll(pattern, IndexPlaceholder, n)
	return strings.ReplaceAll(out, BarePlaceholder, n)
}

// Layout describes where a run's files go.
type Layout struct {
	// Dir is the output root. Text files and the manifest live here.
	Dir string
	// ClipsDir is the clips subdirectory name, relative to Dir.
	ClipsDir string
	// AudioPattern names clip files.
	AudioPattern string
	// TextPattern names per-caption text files.
	TextPattern string
}

// ClipsPath returns the clips directory on disk.
func (l Layout) ClipsPath() string {
	return filepath.Join(l.Dir, l.ClipsDir)
}

// Clip returns the on-disk path of the clip for a caption index and the
// slash-separated reference to it relative to Dir.
func (l Layout) Clip(index int) (file, ref string) {
	name := RenderPattern(l.AudioPattern, index)
	return filepath.Join(l.ClipsPath(), name), path.Join(filepath.ToSlash(l.ClipsDir), filepath.ToSlash(name))
}

// Text returns the path of the text file for a caption index.
func (l Layout) Text(index int) string {
	return filepath.Join(l.Dir, RenderPattern(l.TextPattern, index))
}

// Prepare creates Dir and the clips directory, parents included.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.Dir, l.ClipsPath()} {
		if err := ensureDir(dir); err != nil {
			return failure.IO(dir, failure.NoIndex, err)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return ErrNotADirectory
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}
