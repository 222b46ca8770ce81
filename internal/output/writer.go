package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/textenc"
)

// Mode selects the output strategy.
type Mode string

const (
	// ModePerFile writes one text file per clip.
	ModePerFile Mode = "txt"
	// ModeManifest writes a single separator-delimited manifest.
	ModeManifest Mode = "csv"
)

// IsValid returns true if the mode is known.
func (m Mode) IsValid() bool {
	return m == ModePerFile || m == ModeManifest
}

// ErrWriterClosed is returned by Emit after Finalize.
var ErrWriterClosed = errors.New("output writer is finalized")

// Record pairs an exported clip with its transcript.
type Record struct {
	// Index is the original caption index.
	Index int
	// ClipRef is the clip path relative to the output directory, slash-separated.
	ClipRef string
	// Text is the finalized transcript.
	Text string
}

// Writer receives the records of one run. The implementations are
// PerFileWriter and ManifestWriter.
type Writer interface {
	// Mode reports the strategy implemented by the writer.
	Mode() Mode
	// Emit writes one record.
	Emit(rec Record) error
	// Finalize releases any open handle. It is safe to call more than once.
	Finalize() error
	// Target is the manifest file or, for per-file output, the output directory.
	Target() string

	sealed()
}

// Options configures Open.
type Options struct {
	Mode Mode
	// Separator is placed between clip path and text in manifest lines.
	Separator string
	// ManifestName is the manifest file name inside the output directory.
	ManifestName string
	// Encoding is the text encoding label for transcripts. Empty means UTF-8.
	Encoding string
}

// Open creates the writer selected by opts.Mode. The manifest file, if
// any, is created and truncated here and stays open until Finalize.
func Open(layout Layout, opts Options) (Writer, error) {
	if _, err := textenc.Lookup(opts.Encoding); err != nil {
		return nil, failure.Config("out_encoding", err)
	}

	switch opts.Mode {
	case ModePerFile:
		return &PerFileWriter{layout: layout, encoding: opts.Encoding}, nil
	case ModeManifest:
		return openManifest(filepath.Join(layout.Dir, opts.ManifestName), opts)
	default:
		return nil, failure.Config("output_type", fmt.Errorf("unknown output mode %q", opts.Mode))
	}
}

// PerFileWriter writes each transcript to its own text file.
type PerFileWriter struct {
	layout   Layout
	encoding string
}

func (w *PerFileWriter) sealed() {}

// Mode returns ModePerFile.
func (w *PerFileWriter) Mode() Mode { return ModePerFile }

// Target returns the output directory.
func (w *PerFileWriter) Target() string { return w.layout.Dir }

// Emit writes rec.Text, without a trailing newline, to the record's text file.
func (w *PerFileWriter) Emit(rec Record) error {
	path := w.layout.Text(rec.Index)
	if err := writeTextFile(path, rec.Text, w.encoding); err != nil {
		return failure.IO(path, rec.Index, err)
	}
	return nil
}

// Finalize is a no-op; every text file is closed by Emit.
func (w *PerFileWriter) Finalize() error { return nil }

func writeTextFile(path, text, encoding string) error {
	f, err := os.Create(path) // #nosec G304 - path is built from configured patterns
	if err != nil {
		return fmt.Errorf("create text file: %w", err)
	}
	enc, err := textenc.NewWriter(f, encoding)
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write([]byte(text)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write text: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode text: %w", err)
	}
	return f.Close()
}

// ManifestWriter appends one line per record to a single manifest file.
type ManifestWriter struct {
	path      string
	separator string
	file      *os.File
	enc       io.WriteCloser
	buf       *bufio.Writer
}

func openManifest(path string, opts Options) (*ManifestWriter, error) {
	f, err := os.Create(path) // #nosec G304 - path is built from configured names
	if err != nil {
		return nil, failure.IO(path, failure.NoIndex, fmt.Errorf("create manifest: %w", err))
	}
	enc, err := textenc.NewWriter(f, opts.Encoding)
	if err != nil {
		_ = f.Close()
		return nil, failure.Config("out_encoding", err)
	}
	return &ManifestWriter{
		path:      path,
		separator: opts.Separator,
		file:      f,
		enc:       enc,
		buf:       bufio.NewWriter(enc),
	}, nil
}

func (w *ManifestWriter) sealed() {}

// Mode returns ModeManifest.
func (w *ManifestWriter) Mode() Mode { return ModeManifest }

// Target returns the manifest path.
func (w *ManifestWriter) Target() string { return w.path }

// Emit writes "<clip ref><separator><text>\n".
func (w *ManifestWriter) Emit(rec Record) error {
	if w.file == nil {
		return failure.IO(w.path, rec.Index, ErrWriterClosed)
	}

	var line strings.Builder
	line.Grow(len(rec.ClipRef) + len(w.separator) + len(rec.Text) + 1)
	line.WriteString(rec.ClipRef)
	line.WriteString(w.separator)
	line.WriteString(rec.Text)
	line.WriteByte('\n')

	if _, err := w.buf.WriteString(line.String()); err != nil {
		return failure.IO(w.path, rec.Index, fmt.Errorf("write manifest line: %w", err))
	}
	return nil
}

// Finalize flushes and closes the manifest.
func (w *ManifestWriter) Finalize() error {
	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil

	err := w.buf.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return failure.IO(w.path, failure.NoIndex, fmt.Errorf("close manifest: %w", err))
	}
	return nil
}

var (
	_ Writer = (*PerFileWriter)(nil)
	_ Writer = (*ManifestWriter)(nil)
)
