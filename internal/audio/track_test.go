package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampSamples returns frames*channels interleaved samples whose value is the
// frame number, so a slice can be checked by its first sample.
func rampSamples(frames, channels int) []int {
	out := make([]int, 0, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out = append(out, f)
		}
	}
	return out
}

// writeWAV encodes samples to a 16-bit PCM WAV file and returns its path.
func writeWAV(t *testing.T, dir, name string, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

// allSamples returns the track's samples widened to int.
func allSamples(tr *Track) []int {
	return tr.samples.ints(0, tr.samples.len())
}

// extensibleWAV builds a 16-bit WAVE_FORMAT_EXTENSIBLE stream whose subformat
// GUID starts with subFormat.
func extensibleWAV(t *testing.T, rate, channels int, subFormat uint16, samples []int16) []byte {
	t.Helper()
	var fmtChunk bytes.Buffer
	for _, v := range []any{
		uint16(0xFFFE),              // format tag
		uint16(channels),            // channels
		uint32(rate),                // sample rate
		uint32(rate * channels * 2), // byte rate
		uint16(channels * 2),        // block align
		uint16(16),                  // bits per sample
		uint16(22),                  // extension size
		uint16(16),                  // valid bits
		uint32(0),                   // channel mask
		subFormat,                   // GUID data1, low half
		uint16(0),                   // GUID data1, high half
		[]byte{0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71},
	} {
		require.NoError(t, binary.Write(&fmtChunk, binary.LittleEndian, v))
	}

	var data bytes.Buffer
	require.NoError(t, binary.Write(&data, binary.LittleEndian, samples))

	var out bytes.Buffer
	out.WriteString("RIFF")
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+data.Len())))
	out.WriteString("WAVEfmt ")
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(fmtChunk.Len())))
	out.Write(fmtChunk.Bytes())
	out.WriteString("data")
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(data.Len())))
	out.Write(data.Bytes())
	return out.Bytes()
}

func TestNewTrack(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
		bitDepth int
		samples  []int
		wantErr  bool
	}{
		{"mono 16-bit", 8000, 1, 16, make([]int, 10), false},
		{"stereo 24-bit", 48000, 2, 24, make([]int, 10), false},
		{"zero rate", 0, 1, 16, nil, true},
		{"zero channels", 8000, 0, 16, nil, true},
		{"odd bit depth", 8000, 1, 12, nil, true},
		{"ragged stereo", 8000, 2, 16, make([]int, 3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, err := NewTrack(tt.rate, tt.channels, tt.bitDepth, tt.samples)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.samples)/tt.channels, track.Frames())
		})
	}
}

func TestTrack_Duration(t *testing.T) {
	track, err := NewTrack(1000, 2, 16, rampSamples(2500, 2))
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, track.Duration())
	assert.Equal(t, 2, track.Channels())
	assert.Equal(t, 16, track.BitDepth())
	assert.Equal(t, 1000, track.SampleRate())
}

func TestTrack_Slice(t *testing.T) {
	// 1 kHz so one frame is one millisecond.
	track, err := NewTrack(1000, 1, 16, rampSamples(3000, 1))
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end int64
		wantFrames int
		wantStart  int
	}{
		{"inside", 1500, 3000, 1500, 1500},
		{"from zero", 0, 250, 250, 0},
		{"empty", 1000, 1000, 0, 1000},
		{"past end is clamped", 2500, 9000, 500, 2500},
		{"entirely past end", 5000, 6000, 0, 3000},
		{"inverted collapses", 2000, 1000, 0, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := track.Slice(tt.start, tt.end)
			assert.Equal(t, tt.wantFrames, clip.Frames())
			assert.Equal(t, tt.wantStart, clip.startFrame)
			assert.Equal(t, time.Duration(tt.wantFrames)*time.Millisecond, clip.Duration())
		})
	}
}

func TestTrack_SliceFrameMapping(t *testing.T) {
	// 44.1 kHz: 1 ms is 44.1 frames, floor is used.
	track, err := NewTrack(44100, 1, 16, make([]int, 44100))
	require.NoError(t, err)

	clip := track.Slice(10, 20)
	assert.Equal(t, 441, clip.startFrame)
	assert.Equal(t, 882, clip.endFrame)
}

func TestDecodeWAV(t *testing.T) {
	dir := t.TempDir()
	samples := rampSamples(1200, 2)
	path := writeWAV(t, dir, "in.wav", 1000, 2, samples)

	track, err := ReadWAVFile(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, track.SampleRate())
	assert.Equal(t, 2, track.Channels())
	assert.Equal(t, 16, track.BitDepth())
	assert.Equal(t, 1200, track.Frames())
	assert.Equal(t, samples, allSamples(track))
}

func TestTrack_NativeSampleWidth(t *testing.T) {
	tests := []struct {
		bitDepth int
		samples  []int
		want     pcm
	}{
		{8, []int{0, 128, 255}, &pcmBuffer[uint8]{0, 128, 255}},
		{16, []int{-32768, 0, 32767}, &pcmBuffer[int16]{-32768, 0, 32767}},
		{24, []int{-8388608, 0, 8388607}, &pcmBuffer[int32]{-8388608, 0, 8388607}},
		{32, []int{-2147483648, 0, 2147483647}, &pcmBuffer[int32]{-2147483648, 0, 2147483647}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-bit", tt.bitDepth), func(t *testing.T) {
			track, err := NewTrack(8000, 1, tt.bitDepth, tt.samples)
			require.NoError(t, err)

			assert.Equal(t, tt.want, track.samples)
			assert.Equal(t, tt.samples, allSamples(track))
		})
	}
}

func TestDecodeWAV_KeepsSourceWidth(t *testing.T) {
	path := writeWAV(t, t.TempDir(), "in.wav", 1000, 1, []int{-32768, -1, 0, 1, 32767})

	track, err := ReadWAVFile(path)
	require.NoError(t, err)

	assert.IsType(t, &pcmBuffer[int16]{}, track.samples)
	assert.Equal(t, []int{-32768, -1, 0, 1, 32767}, allSamples(track))
}

func TestDecodeWAV_Extensible(t *testing.T) {
	samples := []int16{0, 0, 1, 1, 2, 2, -3, -3}

	t.Run("pcm subformat is decoded", func(t *testing.T) {
		track, err := DecodeWAV(bytes.NewReader(extensibleWAV(t, 1000, 2, 1, samples)))
		require.NoError(t, err)

		assert.Equal(t, 2, track.Channels())
		assert.Equal(t, 4, track.Frames())
		assert.Equal(t, []int{0, 0, 1, 1, 2, 2, -3, -3}, allSamples(track))
	})

	t.Run("float subformat is unsupported", func(t *testing.T) {
		_, err := DecodeWAV(bytes.NewReader(extensibleWAV(t, 1000, 2, 3, samples)))
		assert.ErrorIs(t, err, ErrUnsupportedWAV)
	})

	t.Run("extensible tag without extension is unsupported", func(t *testing.T) {
		f, err := os.Create(filepath.Join(t.TempDir(), "short.wav"))
		require.NoError(t, err)
		defer f.Close()
		enc := wav.NewEncoder(f, 1000, 16, 1, 0xFFFE)
		require.NoError(t, enc.Write(&goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: 1000},
			Data:           rampSamples(100, 1),
			SourceBitDepth: 16,
		}))
		require.NoError(t, enc.Close())
		_, err = f.Seek(0, io.SeekStart)
		require.NoError(t, err)

		_, err = DecodeWAV(f)
		assert.ErrorIs(t, err, ErrUnsupportedWAV)
	})
}

func TestDecodeWAV_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data, just text"), 0o600))

	_, err := ReadWAVFile(path)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestReadWAVFile_Missing(t *testing.T) {
	_, err := ReadWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClip_Export(t *testing.T) {
	dir := t.TempDir()
	track, err := NewTrack(1000, 2, 16, rampSamples(3000, 2))
	require.NoError(t, err)

	out := filepath.Join(dir, "clip.wav")
	require.NoError(t, track.Slice(1000, 1750).Export(out))

	clip, err := ReadWAVFile(out)
	require.NoError(t, err)
	assert.Equal(t, 750, clip.Frames())
	assert.Equal(t, 2, clip.Channels())
	assert.Equal(t, 1000, clip.SampleRate())
	got := allSamples(clip)
	assert.Equal(t, 1000, got[0])
	assert.Equal(t, 1749, got[len(got)-1])
}

func TestClip_ExportOverwrites(t *testing.T) {
	dir := t.TempDir()
	track, err := NewTrack(1000, 1, 16, rampSamples(2000, 1))
	require.NoError(t, err)

	out := filepath.Join(dir, "clip.wav")
	require.NoError(t, track.Slice(0, 1500).Export(out))
	require.NoError(t, track.Slice(0, 100).Export(out))

	clip, err := ReadWAVFile(out)
	require.NoError(t, err)
	assert.Equal(t, 100, clip.Frames())
}

func TestClip_ExportMissingDir(t *testing.T) {
	track, err := NewTrack(1000, 1, 16, rampSamples(10, 1))
	require.NoError(t, err)

	err = track.Slice(0, 5).Export(filepath.Join(t.TempDir(), "nope", "clip.wav"))
	assert.Error(t, err)
}
