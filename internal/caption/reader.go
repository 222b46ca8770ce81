package caption

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asticode/go-astisub"

	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/textenc"
)

// Format names a caption document grammar.
type Format string

const (
	// FormatSRT is SubRip, parsed by ParseSRT.
	FormatSRT Format = "srt"
	// FormatVTT is WebVTT.
	FormatVTT Format = "vtt"
	// FormatSSA is SubStation Alpha.
	FormatSSA Format = "ssa"
	// FormatASS is Advanced SubStation Alpha.
	FormatASS Format = "ass"
	// FormatTTML is Timed Text Markup Language.
	FormatTTML Format = "ttml"
)

var (
	// ErrUnsupportedFormat is returned for unknown caption formats.
	ErrUnsupportedFormat = errors.New("unsupported caption format")
	// ErrInvalidText is returned when caption text is not valid in the
	// document's encoding.
	ErrInvalidText = errors.New("caption text is not valid in the declared encoding")
)

// IsValid returns true if the format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatSRT, FormatVTT, FormatSSA, FormatASS, FormatTTML:
		return true
	}
	return false
}

// FormatFromPath infers the format from a file extension, falling back to SRT.
func FormatFromPath(path string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "vtt", "webvtt":
		return FormatVTT
	case "ssa":
		return FormatSSA
	case "ass":
		return FormatASS
	case "ttml", "dfxp":
		return FormatTTML
	default:
		return FormatSRT
	}
}

// ReadOptions controls how a caption file is read.
type ReadOptions struct {
	// Encoding is the document's text encoding label. Empty means UTF-8.
	Encoding string
	// Format overrides the format inferred from the file extension.
	Format Format
}

// ReadFile reads and parses a caption file. Any failure is reported as a
// parse failure naming the file and, when known, the caption position.
func ReadFile(path string, opts ReadOptions) ([]Caption, error) {
	format := opts.Format
	if format == "" {
		format = FormatFromPath(path)
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, failure.Parse(path, failure.NoIndex, fmt.Errorf("open captions: %w", err))
	}
	defer func() { _ = f.Close() }()

	r, err := textenc.NewReader(f, opts.Encoding)
	if err != nil {
		return nil, failure.Parse(path, failure.NoIndex, err)
	}

	captions, err := Parse(r, format)
	if err != nil {
		index := failure.NoIndex
		var se *SyntaxError
		if errors.As(err, &se) {
			index = se.Block
		}
		return nil, failure.Parse(path, index, err)
	}

	// Decoders substitute U+FFFD for bytes they cannot map.
	for _, c := range captions {
		if !utf8.ValidString(c.Content) || strings.ContainsRune(c.Content, utf8.RuneError) {
			return nil, failure.Parse(path, c.Index, fmt.Errorf("%w (%s)", ErrInvalidText, encodingLabel(opts.Encoding)))
		}
	}
	return captions, nil
}

func encodingLabel(name string) string {
	if name == "" {
		return "utf-8"
	}
	return name
}

// Parse reads a caption document of the given format from r.
func Parse(r io.Reader, format Format) ([]Caption, error) {
	var (
		subs *astisub.Subtitles
		err  error
	)
	switch format {
	case FormatSRT:
		return ParseSRT(r)
	case FormatVTT:
		subs, err = astisub.ReadFromWebVTT(r)
	case FormatSSA, FormatASS:
		subs, err = astisub.ReadFromSSA(r)
	case FormatTTML:
		subs, err = astisub.ReadFromTTML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	return fromSubtitles(subs)
}

// fromSubtitles converts decoded subtitle items into captions. Each line of
// an item becomes one line of Content; styled runs within a line are joined
// with a space.
func fromSubtitles(subs *astisub.Subtitles) ([]Caption, error) {
	captions := make([]Caption, 0, len(subs.Items))
	for i, item := range subs.Items {
		if item.EndAt < item.StartAt {
			return nil, &SyntaxError{Block: i, Err: ErrEndBeforeStart}
		}

		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			var parts []string
			for _, li := range line.Items {
				if text := strings.TrimSpace(li.Text); text != "" {
					parts = append(parts, text)
				}
			}
			lines = append(lines, strings.Join(parts, " "))
		}

		captions = append(captions, Caption{
			Index:   i,
			Start:   item.StartAt,
			End:     item.EndAt,
			Content: strings.Join(lines, "\n"),
		})
	}
	return captions, nil
}
