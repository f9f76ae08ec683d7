package manifest

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NormalizesFields(t *testing.T) {
	data := []byte(`{
		"ok": true,
		"shareId": "  abc123 ",
		"albumTitle": "",
		"coverUrl": "https://cdn.example.com/cover.jpg",
		"meta": {"albumTitle": " Night Drive ", "artistName": "The Band", "releaseDate": "2024-05-01"},
		"tracks": [
			{"slot": "1", "title": " Intro ", "durationSec": "20", "playbackUrl": " https://cdn.example.com/1.mp3 "},
			{"slot": 2, "title": "Long One", "durationSec": 50.5, "playbackUrl": "https://cdn.example.com/2.mp3"},
			{"title": "No slot no url"},
			{"slot": "abc", "s3Key": "albums/x/3.wav", "durationSec": -4},
			"not a track"
		]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	assert.True(t, m.OK)
	assert.Equal(t, "abc123", m.ShareID)
	assert.Equal(t, "Night Drive", m.AlbumTitle)
	assert.Equal(t, "The Band", m.Meta.ArtistName)
	require.Len(t, m.Tracks, 3)

	assert.Equal(t, TrackEntry{Slot: 1, Title: "Intro", DurationSec: 20, PlaybackURL: "https://cdn.example.com/1.mp3"}, m.Tracks[0])
	assert.Equal(t, 50.5, m.Tracks[1].DurationSec)
	assert.Equal(t, 0, m.Tracks[2].Slot)
	assert.Equal(t, 0.0, m.Tracks[2].DurationSec)
	assert.Equal(t, "albums/x/3.wav", m.Tracks[2].S3Key)
}

func TestParse_AlbumTitleFallback(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected string
	}{
		{name: "top level title", data: `{"albumTitle": "Top", "meta": {"albumTitle": "Meta"}}`, expected: "Top"},
		{name: "meta title", data: `{"meta": {"albumTitle": "Meta"}}`, expected: "Meta"},
		{name: "default title", data: `{}`, expected: "Album"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.AlbumTitle)
			assert.NotNil(t, m.Tracks)
		})
	}
}

func TestParse_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"tracks": [`},
		{name: "array document", data: `[1, 2, 3]`},
		{name: "null document", data: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrManifestShape))
		})
	}
}

func TestManifest_Playlist(t *testing.T) {
	m, err := Parse([]byte(`{
		"shareId": "share-9",
		"albumTitle": "Album",
		"tracks": [
			{"slot": 1, "title": "a", "durationSec": 20, "playbackUrl": "https://cdn/1.mp3"},
			{"slot": 1, "title": "dup", "durationSec": 30, "playbackUrl": "https://cdn/dup.mp3"},
			{"slot": 2, "title": "b", "durationSec": 12.5}
		]
	}`))
	require.NoError(t, err)

	p := m.Playlist()
	assert.Equal(t, "share-9", p.ID())
	assert.Equal(t, 2, p.Len())

	first, _ := p.At(0)
	assert.Equal(t, 20*time.Second, first.Duration)
	assert.True(t, first.Playable())

	second, _ := p.At(1)
	assert.Equal(t, 12500*time.Millisecond, second.Duration)
	assert.False(t, second.Playable())
}
