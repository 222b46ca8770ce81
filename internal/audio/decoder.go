package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/srtsegment/internal/failure"
	"github.com/maauso/srtsegment/internal/media"
	"github.com/maauso/srtsegment/internal/storage"
)

// ErrNotARegularFile is returned when the audio input is a directory or device.
var ErrNotARegularFile = errors.New("not a regular file")

// Decoder turns an audio or video container into a Track. Integer PCM WAV
// input is read in-process; everything else goes through ffmpeg into a
// scratch WAV first.
type Decoder struct {
	processor media.Processor
	scratch   storage.Storage
	logger    *slog.Logger
}

// NewDecoder creates a Decoder. processor and scratch are only used for
// non-WAV input.
func NewDecoder(processor media.Processor, scratch storage.Storage, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		processor: processor,
		scratch:   scratch,
		logger:    logger,
	}
}

// Open decodes the file at path. format names the container ("wav", "mp3",
// "mp4", ...); when empty it is taken from the file extension. Every
// failure is returned as a decode failure for path.
func (d *Decoder) Open(ctx context.Context, path, format string) (*Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, failure.Decode(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, failure.Decode(path, ErrNotARegularFile)
	}

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	if format == "wav" {
		track, err := ReadWAVFile(path)
		if err == nil {
			d.logDecoded(path, "native", track)
			return track, nil
		}
		d.logger.Debug("native WAV decode failed, falling back to ffmpeg",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	track, err := d.convert(ctx, path, format)
	if err != nil {
		return nil, failure.Decode(path, err)
	}
	d.logDecoded(path, "ffmpeg", track)
	return track, nil
}

// convert runs the container through ffmpeg into a scratch WAV and decodes it.
func (d *Decoder) convert(ctx context.Context, path, format string) (*Track, error) {
	if d.processor == nil || d.scratch == nil {
		return nil, fmt.Errorf("no decoder available for %q input", format)
	}

	probe, err := d.processor.ProbeAudio(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe audio: %w", err)
	}
	d.logger.Debug("probed audio input",
		slog.String("path", path),
		slog.String("codec", probe.Codec),
		slog.Int("sample_rate", probe.SampleRate),
		slog.Int("channels", probe.Channels),
		slog.Float64("duration_sec", probe.DurationSec),
	)

	wavPath, err := d.scratch.ReserveTemp(ctx, "decoded_*.wav")
	if err != nil {
		return nil, fmt.Errorf("reserve scratch file: %w", err)
	}
	defer func() {
		if err := d.scratch.CleanupTemp(context.Background(), []string{wavPath}); err != nil {
			d.logger.Warn("failed to remove scratch file",
				slog.String("path", wavPath),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Force the container only when it differs from the file extension.
	forced := ""
	if !strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), format) {
		forced = format
	}
	if err := d.processor.ConvertToWAV(ctx, path, wavPath, forced); err != nil {
		return nil, fmt.Errorf("convert to wav: %w", err)
	}

	track, err := ReadWAVFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read converted wav: %w", err)
	}
	return track, nil
}

func (d *Decoder) logDecoded(path, via string, t *Track) {
	d.logger.Info("audio decoded",
		slog.String("path", path),
		slog.String("decoder", via),
		slog.Duration("duration", t.Duration()),
		slog.Int("sample_rate", t.SampleRate()),
		slog.Int("channels", t.Channels()),
		slog.Int("bit_depth", t.BitDepth()),
	)
}
