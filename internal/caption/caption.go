// Package caption reads caption-track documents into ordered Caption
// records. Records come back exactly as written: no merging, filtering or
// text normalization happens here.
package caption

import "time"

// Caption is one timed entry of a caption track.
type Caption struct {
	// Index is the zero-based position in the document, assigned at parse time.
	Index int
	// Start and End are the offsets into the audio track.
	Start time.Duration
	End   time.Duration
	// Content is the caption text with its original line breaks.
	Content string
}

// StartMs returns Start truncated to whole milliseconds.
func (c Caption) StartMs() int64 {
	return c.Start.Milliseconds()
}

// EndMs returns End truncated to whole milliseconds.
func (c Caption) EndMs() int64 {
	return c.End.Milliseconds()
}
