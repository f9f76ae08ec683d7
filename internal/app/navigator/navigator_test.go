package navigator

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/previewbox/internal/domain/playlist"
	"github.com/osa030/previewbox/internal/domain/track"
)

func newPlaylist() *playlist.Playlist {
	return playlist.New("share-1", "Album", []track.Track{
		{Slot: 1, PlaybackURL: "https://cdn/1.mp3"},
		{Slot: 2},
		{Slot: 3, PlaybackURL: "https://cdn/3.mp3"},
	})
}

func TestNavigator_Select(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		expected int
		wantErr  error
	}{
		{name: "first", index: 0, expected: 0},
		{name: "last", index: 2, expected: 2},
		{name: "clamped below", index: -5, expected: 0},
		{name: "clamped above", index: 10, expected: 2},
		{name: "unplayable", index: 1, expected: 1, wantErr: ErrNoPlayableTrack},
	}

	n := New(newPlaylist())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := n.Select(tt.index)
			assert.Equal(t, tt.expected, idx)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNavigator_NextPrevNeverWrap(t *testing.T) {
	n := New(newPlaylist())

	assert.Equal(t, 1, n.Next(0))
	assert.Equal(t, 2, n.Next(1))
	assert.Equal(t, 2, n.Next(2))
	assert.Equal(t, 0, n.Next(-1))

	assert.Equal(t, 1, n.Prev(2))
	assert.Equal(t, 0, n.Prev(1))
	assert.Equal(t, 0, n.Prev(0))
	assert.Equal(t, 0, n.Prev(-1))
}

func TestNavigator_NextPlayable(t *testing.T) {
	n := New(newPlaylist())

	idx, ok := n.NextPlayable(0)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, ok = n.NextPlayable(-1)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = n.NextPlayable(2)
	assert.False(t, ok)
}

func TestNavigator_EmptyPlaylist(t *testing.T) {
	n := New(playlist.Empty("share-1"))

	idx, err := n.Select(0)
	assert.Equal(t, None, idx)
	assert.True(t, errors.Is(err, ErrEmptyPlaylist))
	assert.Equal(t, None, n.Next(0))
	assert.Equal(t, None, n.Prev(0))

	_, ok := n.NextPlayable(None)
	assert.False(t, ok)
}
