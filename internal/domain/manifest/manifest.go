// Package manifest provides the published album manifest and its permissive validation.
package manifest

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/previewbox/internal/domain/playlist"
	"github.com/osa030/previewbox/internal/domain/track"
)

// Errors
var (
	ErrMissingShareID = errors.New("missing share id")
	ErrManifestFetch  = errors.New("manifest fetch failed")
	ErrManifestShape  = errors.New("manifest is malformed")
)

const defaultAlbumTitle = "Album"

// Meta holds album metadata.
type Meta struct {
	AlbumTitle  string `json:"albumTitle" mapstructure:"albumTitle"`
	ArtistName  string `json:"artistName" mapstructure:"artistName"`
	ReleaseDate string `json:"releaseDate" mapstructure:"releaseDate"`
}

// TrackEntry is one validated manifest track.
type TrackEntry struct {
	Slot        int     `json:"slot" mapstructure:"slot"`
	Title       string  `json:"title" mapstructure:"title"`
	DurationSec float64 `json:"durationSec" mapstructure:"durationSec"`
	PlaybackURL string  `json:"playbackUrl" mapstructure:"playbackUrl"`
	S3Key       string  `json:"s3Key" mapstructure:"s3Key"`
}

// Manifest is the normalized manifest of one published album snapshot.
type Manifest struct {
	OK          bool         `json:"ok" mapstructure:"ok"`
	ShareID     string       `json:"shareId" mapstructure:"shareId"`
	ProjectID   string       `json:"projectId" mapstructure:"projectId"`
	CreatedAt   string       `json:"createdAt" mapstructure:"createdAt"`
	SnapshotKey string       `json:"snapshotKey" mapstructure:"snapshotKey"`
	AlbumTitle  string       `json:"albumTitle" mapstructure:"albumTitle"`
	CoverURL    string       `json:"coverUrl" mapstructure:"coverUrl"`
	Meta        Meta         `json:"meta" mapstructure:"-"`
	Tracks      []TrackEntry `json:"tracks" mapstructure:"-"`
}

// Parse decodes raw manifest JSON and validates it.
func Parse(data []byte) (*Manifest, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode manifest json"), ErrManifestShape)
	}
	return Validate(raw)
}

// Validate normalizes a decoded manifest document.
// Scalars are coerced, strings trimmed and tracks without slot, playback URL
// and storage key are dropped.
func Validate(raw any) (*Manifest, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Wrap(ErrManifestShape, "manifest is not an object")
	}

	top := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "meta" || k == "tracks" {
			continue
		}
		top[k] = v
	}

	var m Manifest
	if err := decode(top, &m); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode manifest"), ErrManifestShape)
	}

	if metaDoc, ok := doc["meta"].(map[string]any); ok {
		if err := decode(metaDoc, &m.Meta); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to decode manifest meta"), ErrManifestShape)
		}
	}

	if items, ok := doc["tracks"].([]any); ok {
		m.Tracks = make([]TrackEntry, 0, len(items))
		for i, item := range items {
			itemDoc, ok := item.(map[string]any)
			if !ok {
				continue
			}
			var entry TrackEntry
			if err := decode(itemDoc, &entry); err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "failed to decode track %d", i), ErrManifestShape)
			}
			if entry.Slot < 0 {
				entry.Slot = 0
			}
			if entry.DurationSec < 0 || math.IsNaN(entry.DurationSec) || math.IsInf(entry.DurationSec, 0) {
				entry.DurationSec = 0
			}
			if entry.Slot == 0 && entry.PlaybackURL == "" && entry.S3Key == "" {
				continue
			}
			m.Tracks = append(m.Tracks, entry)
		}
	} else {
		m.Tracks = []TrackEntry{}
	}

	if m.AlbumTitle == "" {
		m.AlbumTitle = m.Meta.AlbumTitle
	}
	if m.AlbumTitle == "" {
		m.AlbumTitle = defaultAlbumTitle
	}

	return &m, nil
}

// Playlist derives the immutable playlist for the manifest.
func (m *Manifest) Playlist() *playlist.Playlist {
	tracks := make([]track.Track, 0, len(m.Tracks))
	for _, e := range m.Tracks {
		tracks = append(tracks, track.Track{
			Slot:        e.Slot,
			Title:       e.Title,
			Duration:    time.Duration(e.DurationSec * float64(time.Second)),
			PlaybackURL: e.PlaybackURL,
		})
	}
	return playlist.New(m.ShareID, m.AlbumTitle, tracks)
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       coerceHook,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	return decoder.Decode(input)
}

// coerceHook maps values the weak decoder would reject to zero values:
// unparseable numbers become 0, nested documents in scalar fields are ignored
// and strings are trimmed.
func coerceHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.String:
		switch v := data.(type) {
		case nil, map[string]any, []any:
			return "", nil
		case string:
			return strings.TrimSpace(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	case reflect.Int, reflect.Float64:
		switch v := data.(type) {
		case nil, map[string]any, []any:
			return 0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return 0, nil
			}
			if to.Kind() == reflect.Int {
				return int(f), nil
			}
			return f, nil
		case float64:
			if to.Kind() == reflect.Int {
				return int(v), nil
			}
		}
	case reflect.Bool:
		switch v := data.(type) {
		case nil, map[string]any, []any:
			return false, nil
		case string:
			return v != "", nil
		}
	}
	return data, nil
}
