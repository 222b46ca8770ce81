// Package audio provides a decoded, randomly sliceable audio track addressed
// by millisecond offsets, and WAV export of the slices.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// Static errors for track decoding.
var (
	// ErrInvalidWAV is returned when the input is not a readable RIFF/WAVE file.
	ErrInvalidWAV = errors.New("not a valid WAV file")
	// ErrUnsupportedWAV is returned for WAV encodings other than integer PCM.
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
	// ErrInvalidFormat is returned when a track is built with a bad sample layout.
	ErrInvalidFormat = errors.New("invalid audio format")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	// maxFmtChunk bounds the fmt chunk read by formatTag.
	maxFmtChunk = 1 << 10

	// decodeFrames is the number of frames read per PCMBuffer call.
	decodeFrames = 4096
)

// pcm holds interleaved samples at a fixed storage width.
type pcm interface {
	len() int
	truncate(n int)
	push(src []int)
	ints(from, to int) []int
}

// pcmBuffer stores samples as T. 8-bit WAV samples are unsigned.
type pcmBuffer[T uint8 | int16 | int32] []T

func (p *pcmBuffer[T]) len() int { return len(*p) }

func (p *pcmBuffer[T]) truncate(n int) { *p = (*p)[:n] }

func (p *pcmBuffer[T]) push(src []int) {
	for _, v := range src {
		*p = append(*p, T(v))
	}
}

func (p *pcmBuffer[T]) ints(from, to int) []int {
	out := make([]int, to-from)
	for i, v := range (*p)[from:to] {
		out[i] = int(v)
	}
	return out
}

// newPCM returns an empty buffer at the native width of bitDepth.
func newPCM(bitDepth, capacity int) pcm {
	switch bitDepth {
	case 8:
		b := make(pcmBuffer[uint8], 0, capacity)
		return &b
	case 16:
		b := make(pcmBuffer[int16], 0, capacity)
		return &b
	default:
		b := make(pcmBuffer[int32], 0, capacity)
		return &b
	}
}

// Track is a fully decoded PCM audio track held in memory at the sample
// width of its source.
type Track struct {
	sampleRate int
	channels   int
	bitDepth   int
	// samples are interleaved by channel.
	samples pcm
}

// NewTrack builds a track from interleaved integer samples. Values must fit
// bitDepth; 8-bit samples are unsigned.
func NewTrack(sampleRate, channels, bitDepth int, samples []int) (*Track, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, sampleRate, channels)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidFormat, bitDepth)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels", ErrInvalidFormat, len(samples), channels)
	}
	buf := newPCM(bitDepth, len(samples))
	buf.push(samples)
	return &Track{
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		samples:    buf,
	}, nil
}

// DecodeWAV reads an integer PCM WAV stream into a Track. A
// WAVE_FORMAT_EXTENSIBLE stream is accepted only when its subformat is PCM.
func DecodeWAV(r io.ReadSeeker) (*Track, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locate wav: %w", err)
	}
	tag, err := formatTag(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind wav: %w", err)
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if tag != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %#x", ErrUnsupportedWAV, tag)
	}

	rate, channels, bitDepth := int(d.SampleRate), int(d.NumChans), int(d.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedWAV, bitDepth)
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}
	if d.PCMChunk == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
	}

	// limit is the sample count declared by the data chunk.
	limit := int(d.PCMLen()) / (bitDepth / 8)
	samples := newPCM(bitDepth, limit)
	chunk := &goaudio.IntBuffer{Data: make([]int, decodeFrames*channels)}
	for samples.len() < limit {
		n, err := d.PCMBuffer(chunk)
		if err != nil {
			return nil, fmt.Errorf("read PCM data: %w", err)
		}
		if n <= 0 {
			break
		}
		samples.push(chunk.Data[:min(n, limit-samples.len())])
	}

	// Drop a trailing partial frame.
	samples.truncate(samples.len() - samples.len()%channels)
	return &Track{
		sampleRate: rate,
		channels:   channels,
		bitDepth:   bitDepth,
		samples:    samples,
	}, nil
}

// formatTag returns the sample format of the RIFF/WAVE stream r: the fmt
// chunk's format tag, or for WAVE_FORMAT_EXTENSIBLE the leading field of the
// subformat GUID. An extensible chunk without the extension reports
// wavFormatExtensible.
func formatTag(r io.Reader) (uint16, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	if p.Format != riff.WavFormatID {
		return 0, riff.ErrFmtNotSupported
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("fmt chunk not found: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < 16 || ch.Size > maxFmtChunk {
			return 0, fmt.Errorf("fmt chunk of %d bytes", ch.Size)
		}

		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, body); err != nil {
			return 0, fmt.Errorf("read fmt chunk: %w", err)
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		// cbSize(2) validBits(2) channelMask(4) precede the GUID at offset 24.
		if tag == wavFormatExtensible && len(body) >= 26 {
			tag = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, nil
	}
}

// ReadWAVFile opens path and decodes it with DecodeWAV.
func ReadWAVFile(path string) (*Track, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeWAV(f)
}

// SampleRate returns the number of frames per second.
func (t *Track) SampleRate() int { return t.sampleRate }

// Channels returns the number of interleaved channels.
func (t *Track) Channels() int { return t.channels }

// BitDepth returns the sample width in bits.
func (t *Track) BitDepth() int { return t.bitDepth }

// Frames returns the number of sample frames.
func (t *Track) Frames() int { return t.samples.len() / t.channels }

// Duration returns the playback length of the track.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.Frames()) * time.Second / time.Duration(t.sampleRate)
}

// frameAt maps a millisecond offset to a frame offset, clamped to the track.
func (t *Track) frameAt(ms int64) int {
	if ms <= 0 {
		return 0
	}
	frame := ms * int64(t.sampleRate) / 1000
	if frame > int64(t.Frames()) {
		return t.Frames()
	}
	return int(frame)
}

// Slice returns the half-open interval [startMs, endMs) as a clip. Offsets
// past the end of the track are clamped, so the clip may be shorter than
// requested or empty. The clip shares the track's samples.
func (t *Track) Slice(startMs, endMs int64) *Clip {
	start := t.frameAt(startMs)
	end := t.frameAt(endMs)
	if end < start {
		end = start
	}
	return &Clip{track: t, startFrame: start, endFrame: end}
}

// Clip is a view of a frame range of a Track.
type Clip struct {
	track      *Track
	startFrame int
	endFrame   int
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int { return c.endFrame - c.startFrame }

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.track.sampleRate)
}

// Encode writes the clip as a PCM WAV stream with the track's sample layout.
func (c *Clip) Encode(w io.WriteSeeker) error {
	t := c.track
	enc := wav.NewEncoder(w, t.sampleRate, t.bitDepth, t.channels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: t.channels,
			SampleRate:  t.sampleRate,
		},
		Data:           t.samples.ints(c.startFrame*t.channels, c.endFrame*t.channels),
		SourceBitDepth: t.bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Export writes the clip to a WAV file at path, replacing any existing file.
func (c *Clip) Export(path string) error {
	f, err := os.Create(path) // #nosec G304 - path is built from configured patterns
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	if err := c.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close clip file: %w", err)
	}
	return nil
}
