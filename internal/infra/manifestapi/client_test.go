package manifestapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/previewbox/internal/domain/manifest"
)

const sampleManifest = `{
  "ok": true,
  "shareId": "abc 123",
  "meta": {"albumTitle": " Night Drive ", "artistName": "Kei"},
  "tracks": [
    {"slot": 1, "title": "Intro", "durationSec": 20, "playbackUrl": "https://cdn.example.com/1.mp3"},
    {"slot": "2", "title": "Long", "durationSec": "50.5", "playbackUrl": "https://cdn.example.com/2.mp3"}
  ]
}`

func TestNew(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL+"/publish/x.json", c.ManifestURL("x"))

	c, err = New(Config{BaseURL: "https://manifest.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://manifest.example.com/publish/a%2Fb%20c.json", c.ManifestURL("a/b c"))

	_, err = New(Config{BaseURL: "::not a url"})
	assert.Error(t, err)
}

func TestClient_Fetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleManifest))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	m, err := c.Fetch(context.Background(), " abc 123 ")
	require.NoError(t, err)

	assert.Equal(t, "/publish/abc%20123.json", gotPath)
	assert.Equal(t, "Night Drive", m.AlbumTitle)
	require.Len(t, m.Tracks, 2)
	assert.Equal(t, 2, m.Tracks[1].Slot)
	assert.InDelta(t, 50.5, m.Tracks[1].DurationSec, 0.001)
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		shareID    string
		status     int
		body       string
		sentinel   error
		wantStatus int
	}{
		{name: "missing share id", shareID: "  ", sentinel: manifest.ErrMissingShareID},
		{name: "not found", shareID: "gone", status: http.StatusNotFound, sentinel: manifest.ErrManifestFetch, wantStatus: http.StatusNotFound},
		{name: "server error", shareID: "boom", status: http.StatusBadGateway, sentinel: manifest.ErrManifestFetch, wantStatus: http.StatusBadGateway},
		{name: "not an object", shareID: "list", status: http.StatusOK, body: `[1,2,3]`, sentinel: manifest.ErrManifestShape},
		{name: "not json", shareID: "html", status: http.StatusOK, body: `<html>`, sentinel: manifest.ErrManifestShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = c.Fetch(context.Background(), tt.shareID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			status, ok := StatusCode(err)
			if tt.wantStatus != 0 {
				require.True(t, ok)
				assert.Equal(t, tt.wantStatus, status)
			} else {
				assert.False(t, ok)
			}
		})
	}
}

func TestClient_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrManifestFetch))
}
