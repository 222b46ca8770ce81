package segment

import (
	"context"
	"log/slog"
	"time"

	"github.com/maauso/srtsegment/internal/audio"
	"github.com/maauso/srtsegment/internal/caption"
	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/output"
	"github.com/maauso/srtsegment/internal/runid"
	"github.com/maauso/srtsegment/internal/storage"
)

// TrackDecoder opens an audio input as a sliceable track.
type TrackDecoder interface {
	Open(ctx context.Context, path, format string) (*audio.Track, error)
}

// Request names the inputs of one run.
type Request struct {
	AudioPath string
	// AudioFormat overrides the container inferred from AudioPath.
	AudioFormat string
	CaptionPath string
	Captions    caption.ReadOptions
}

// Service runs a complete segmentation: output layout, captions, audio,
// clips and records, then optional publication.
type Service struct {
	decoder   TrackDecoder
	layout    output.Layout
	writer    output.Options
	increment int
	publisher storage.Storage
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher uploads the output directory through store after a
// successful run.
func WithPublisher(store storage.Storage) Option {
	return func(s *Service) {
		s.publisher = store
	}
}

// NewService creates a Service. A non-positive progress increment is
// rejected here, before anything touches the filesystem.
func NewService(decoder TrackDecoder, layout output.Layout, writer output.Options, increment int, logger *slog.Logger, opts ...Option) (*Service, error) {
	if increment <= 0 {
		return nil, failure.Config("progress_increment", ErrInvalidIncrement)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		decoder:   decoder,
		layout:    layout,
		writer:    writer,
		increment: increment,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one segmentation run.
func (s *Service) Run(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	id := runid.Generate()
	logger := s.logger.With(slog.String("run_id", id))

	reporter, err := NewReporter(s.increment, logger)
	if err != nil {
		return nil, failure.Config("progress_increment", err)
	}

	if err := s.layout.Prepare(); err != nil {
		return nil, err
	}
	lock, err := output.AcquireLock(s.layout.Dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release output lock",
				slog.String("path", lock.Path()),
				slog.String("error", err.Error()),
			)
		}
	}()

	caps, err := caption.ReadFile(req.CaptionPath, req.Captions)
	if err != nil {
		return nil, err
	}
	logger.Info("captions parsed",
		slog.String("path", req.CaptionPath),
		slog.Int("count", len(caps)),
	)

	track, err := s.decoder.Open(ctx, req.AudioPath, req.AudioFormat)
	if err != nil {
		return nil, err
	}
	if end := latestEnd(caps); end > track.Duration() {
		logger.Warn("captions run past the end of the audio",
			slog.Duration("audio", track.Duration()),
			slog.Duration("captions", end),
		)
	}

	w, err := output.Open(s.layout, s.writer)
	if err != nil {
		return nil, err
	}
	logger.Info("output writer selected",
		slog.String("mode", string(w.Mode())),
		slog.String("target", w.Target()),
	)

	summary, err := NewSegmenter(s.layout, reporter, logger).Run(caps, track, w)
	if ferr := w.Finalize(); err == nil {
		err = ferr
	}
	if err != nil {
		logger.Error("segmentation aborted",
			slog.Int("emitted", summary.Emitted),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	summary.RunID = id

	if s.publisher != nil {
		urls, err := storage.PublishDir(ctx, s.publisher, s.layout.Dir, func(rel string) bool {
			return rel == output.LockFileName
		})
		if err != nil {
			return nil, failure.IO(s.layout.Dir, failure.NoIndex, err)
		}
		logger.Info("output published", slog.Int("files", len(urls)))
		summary.Published = urls
	}

	summary.Elapsed = time.Since(start)
	return &summary, nil
}

// latestEnd returns the largest caption end. Captions need not be ordered.
func latestEnd(caps []caption.Caption) time.Duration {
	var end time.Duration
	for _, c := range caps {
		end = max(end, c.End)
	}
	return end
}
