package caption

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/srtsegment/internal/failure"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"talk.srt", FormatSRT},
		{"talk.SRT", FormatSRT},
		{"talk.vtt", FormatVTT},
		{"talk.ass", FormatASS},
		{"talk.ssa", FormatSSA},
		{"talk.ttml", FormatTTML},
		{"talk.dfxp", FormatTTML},
		{"talk.txt", FormatSRT},
		{"talk", FormatSRT},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromPath(tt.path))
			assert.True(t, tt.want.IsValid())
		})
	}
	assert.False(t, Format("sbv").IsValid())
}

func TestReadFile_SRT(t *testing.T) {
	path := writeFile(t, "subs.srt", []byte(sampleSRT))

	caps, err := ReadFile(path, ReadOptions{Encoding: "utf-8"})
	require.NoError(t, err)
	require.Len(t, caps, 3)
	assert.Equal(t, "Hello there,\ngeneral Kenobi.", caps[0].Content)
}

func TestReadFile_LegacyEncoding(t *testing.T) {
	doc := []byte("1\n00:00:00,000 --> 00:00:01,000\ncaf")
	doc = append(doc, 0xE9, '\n')
	path := writeFile(t, "subs.srt", doc)

	caps, err := ReadFile(path, ReadOptions{Encoding: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "café", caps[0].Content)
}

func TestReadFile_WebVTT(t *testing.T) {
	doc := "WEBVTT\n\n00:00:01.500 --> 00:00:03.250\nHello there,\ngeneral Kenobi.\n\n00:00:04.000 --> 00:00:05.000\nSecond\n"
	path := writeFile(t, "subs.vtt", []byte(doc))

	caps, err := ReadFile(path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, caps, 2)

	assert.Equal(t, 0, caps[0].Index)
	assert.Equal(t, int64(1500), caps[0].StartMs())
	assert.Equal(t, int64(3250), caps[0].EndMs())
	assert.Equal(t, "Hello there,\ngeneral Kenobi.", caps[0].Content)
	assert.Equal(t, 1, caps[1].Index)
	assert.Equal(t, "Second", caps[1].Content)
}

func TestReadFile_FormatOverride(t *testing.T) {
	path := writeFile(t, "subs.txt", []byte(sampleSRT))

	caps, err := ReadFile(path, ReadOptions{Format: FormatSRT})
	require.NoError(t, err)
	assert.Len(t, caps, 3)
}

func TestReadFile_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope.srt"), ReadOptions{})
		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.KindParse))
		assert.Contains(t, err.Error(), "nope.srt")
	})

	t.Run("malformed block carries index", func(t *testing.T) {
		path := writeFile(t, "bad.srt", []byte("1\n00:00:00,000 --> 00:00:01,000\nok\n\n2\nnot a timing line\n"))

		_, err := ReadFile(path, ReadOptions{})
		require.Error(t, err)

		var fe *failure.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, failure.KindParse, fe.Kind)
		assert.Equal(t, path, fe.Resource)
		assert.Equal(t, 1, fe.Index)
		assert.ErrorIs(t, err, ErrMissingTiming)
	})

	t.Run("bytes invalid in the declared encoding", func(t *testing.T) {
		path := writeFile(t, "latin1.srt", []byte("1\n00:00:00,000 --> 00:00:01,000\nfine\n\n"+
			"2\n00:00:01,000 --> 00:00:02,000\ncaf\xe9 latin1 byte\n"))

		caps, err := ReadFile(path, ReadOptions{Encoding: "utf-8"})
		require.Error(t, err)
		assert.Nil(t, caps)

		var fe *failure.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, failure.KindParse, fe.Kind)
		assert.Equal(t, path, fe.Resource)
		assert.Equal(t, 1, fe.Index)
		assert.ErrorIs(t, err, ErrInvalidText)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		path := writeFile(t, "subs.srt", []byte(sampleSRT))

		_, err := ReadFile(path, ReadOptions{Encoding: "nope"})
		assert.True(t, failure.Is(err, failure.KindParse))
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := writeFile(t, "subs.srt", []byte(sampleSRT))

		_, err := ReadFile(path, ReadOptions{Format: Format("sbv")})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
