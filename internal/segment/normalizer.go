// Package segment turns a caption track and a decoded audio track into
// exported clips and transcript records.
package segment

import (
	"strings"

	"github.com/maauso/srtsegment/internal/caption"
	"github.com/maauso/srtsegment/internal/output"
)

// FilterMarker marks bracketed annotations such as [music] or [__]. A
// merged manifest caption containing it is dropped.
const FilterMarker = "["

// Segment is a normalized caption ready for export.
type Segment struct {
	// Index is the original caption index.
	Index   int
	StartMs int64
	EndMs   int64
	// Text is the finalized single-line transcript.
	Text string
	// Keep is false for captions the filter rejected.
	Keep bool
}

// Merge appends neighbor to current, separated by one space.
func Merge(current, neighbor string) string {
	return current + " " + neighbor
}

// JoinLines replaces every line break with a single space.
func JoinLines(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

// Normalize derives one Segment per caption without modifying caps.
//
// In manifest mode the caption at idx absorbs the original text of the
// caption at idx+1 when idx+1 < len(caps)-1, so the last two captions are
// never merged. A merged text containing FilterMarker is not kept. Per-file
// mode only joins lines.
func Normalize(caps []caption.Caption, mode output.Mode) []Segment {
	out := make([]Segment, len(caps))
	n := len(caps)

	for idx, c := range caps {
		text := c.Content
		keep := true

		if mode == output.ModeManifest {
			if idx+1 < n-1 {
				text = Merge(text, caps[idx+1].Content)
			}
			keep = !strings.Contains(text, FilterMarker)
		}

		out[idx] = Segment{
			Index:   c.Index,
			StartMs: c.StartMs(),
			EndMs:   c.EndMs(),
			Text:    JoinLines(text),
			Keep:    keep,
		}
	}
	return out
}
