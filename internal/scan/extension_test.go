package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		path string
		want Extension
		ok   bool
	}{
		{"song.mp3", MP3, true},
		{"/music/Album/01 Track.FLAC", FLAC, true},
		{"a.b.c.M4a", M4A, true},
		{"cover.jpg", "", false},
		{"README", "", false},
		{"mp3", "", false},
		{"archive.mp3.zip", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ext, ok := ExtensionOf(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ext)
		})
	}
}

func TestParseExtensions(t *testing.T) {
	set, err := ParseExtensions([]string{"mp3", ".FLAC", " wav "})
	require.NoError(t, err)
	assert.Equal(t, []Extension{FLAC, MP3, WAV}, set.Sorted())

	_, ok := set.Match("x.ogg")
	assert.False(t, ok, "ogg not in the configured subset")
	ext, ok := set.Match("x.Flac")
	assert.True(t, ok)
	assert.Equal(t, FLAC, ext)
}

func TestParseExtensions_Unknown(t *testing.T) {
	_, err := ParseExtensions([]string{"mp3", "txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "txt")
}

func TestDefaultExtensions(t *testing.T) {
	set := DefaultExtensions()
	for _, ext := range []Extension{MP3, WAV, FLAC, AAC, OGG, M4A, WMA, AIFF} {
		assert.True(t, set.Contains(ext), string(ext))
	}
}
