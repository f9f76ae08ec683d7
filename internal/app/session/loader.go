package session

import (
	"context"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/domain/manifest"
)

// ManifestSource fetches published manifests.
type ManifestSource interface {
	Fetch(ctx context.Context, shareID string) (*manifest.Manifest, error)
}

// ManifestCache stores validated manifests.
type ManifestCache interface {
	Get(ctx context.Context, shareID string) (*manifest.Manifest, bool, error)
	Set(ctx context.Context, shareID string, m *manifest.Manifest) error
}

// Loader loads manifests through an optional cache.
type Loader struct {
	source ManifestSource
	cache  ManifestCache
}

// NewLoader creates a loader. cache may be nil.
func NewLoader(source ManifestSource, cache ManifestCache) *Loader {
	return &Loader{source: source, cache: cache}
}

// Load returns the manifest for shareID. Cache failures are logged and
// never fail the load.
func (l *Loader) Load(ctx context.Context, shareID string) (*manifest.Manifest, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return nil, manifest.ErrMissingShareID
	}

	if l.cache != nil {
		m, ok, err := l.cache.Get(ctx, shareID)
		switch {
		case err != nil:
			zlog.Warn().Err(err).Msgf("session: manifest cache read failed: share_id=%s", shareID)
		case ok:
			zlog.Debug().Msgf("session: manifest cache hit: share_id=%s", shareID)
			return m, nil
		}
	}

	m, err := l.source.Fetch(ctx, shareID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, shareID, m); err != nil {
			zlog.Warn().Err(err).Msgf("session: manifest cache write failed: share_id=%s", shareID)
		}
	}
	return m, nil
}
