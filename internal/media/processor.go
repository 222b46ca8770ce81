// Package media runs ffmpeg and ffprobe to turn arbitrary media containers
// into PCM audio the rest of the pipeline can slice.
package media

import "context"

// AudioInfo describes the first audio stream of a media file.
type AudioInfo struct {
	Codec      string
	SampleRate int
	Channels   int
	// DurationSec is the container duration in seconds, 0 if unknown.
	DurationSec float64
}

// Processor defines the interface for container decoding operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ConvertToWAV decodes the first audio stream of src into a PCM WAV file
	// at dst. Sample rate and channel count are preserved. format, when not
	// empty, forces the input container format instead of probing it.
	ConvertToWAV(ctx context.Context, src, dst, format string) error

	// ProbeAudio reports the first audio stream of a media file.
	// Returns ErrNoAudioStream if the file has none.
	ProbeAudio(ctx context.Context, path string) (*AudioInfo, error)
}
