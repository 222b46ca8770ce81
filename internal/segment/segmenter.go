package segment

import (
	"log/slog"
	"time"

	"github.com/maauso/srtsegment/internal/audio"
	"github.com/maauso/srtsegment/internal/caption"
	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/output"
)

// Summary describes a finished run.
type Summary struct {
	RunID string
	// Captions is the number of captions parsed.
	Captions int
	// Emitted is the number of clips written.
	Emitted int
	// Skipped is the number of captions the filter rejected.
	Skipped int
	Mode    output.Mode
	// Target is the manifest file or the per-file output directory.
	Target string
	// Published holds the URLs of uploaded files, if publishing is enabled.
	Published []string
	Elapsed   time.Duration
}

// Segmenter exports one clip per kept caption and hands it to a Writer.
type Segmenter struct {
	layout   output.Layout
	reporter *Reporter
	logger   *slog.Logger
}

// NewSegmenter creates a Segmenter writing clips under layout.
func NewSegmenter(layout output.Layout, reporter *Reporter, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		layout:   layout,
		reporter: reporter,
		logger:   logger,
	}
}

// Run processes caps in order. The first export or write failure aborts
// the run; files already written are left in place.
func (s *Segmenter) Run(caps []caption.Caption, track *audio.Track, w output.Writer) (Summary, error) {
	summary := Summary{
		Captions: len(caps),
		Mode:     w.Mode(),
		Target:   w.Target(),
	}

	for _, seg := range Normalize(caps, w.Mode()) {
		if !seg.Keep {
			summary.Skipped++
			s.logger.Debug("skipping filtered caption",
				slog.Int("segment", seg.Index),
				slog.String("text", seg.Text),
			)
			continue
		}

		file, ref := s.layout.Clip(seg.Index)
		if err := track.Slice(seg.StartMs, seg.EndMs).Export(file); err != nil {
			return summary, failure.IO(file, seg.Index, err)
		}

		if err := w.Emit(output.Record{Index: seg.Index, ClipRef: ref, Text: seg.Text}); err != nil {
			return summary, err
		}

		s.reporter.Tick(seg.Index)
		summary.Emitted++
	}

	return summary, nil
}
