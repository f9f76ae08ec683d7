// Package manifestapi provides a client for the published album manifest endpoint.
package manifestapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/domain/manifest"
)

// DefaultBaseURL is the publishing backend.
const DefaultBaseURL = "https://album-backend-kmuo.onrender.com"

const maxManifestBytes = 4 << 20

// StatusError is a non-2xx manifest response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("manifest request failed with status %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// Config represents manifest client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches manifests by share id.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new manifest client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ManifestURL returns the manifest location for shareID.
func (c *Client) ManifestURL(shareID string) string {
	return c.baseURL + "/publish/" + url.PathEscape(shareID) + ".json"
}

// Fetch retrieves and validates the manifest published under shareID.
func (c *Client) Fetch(ctx context.Context, shareID string) (*manifest.Manifest, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return nil, manifest.ErrMissingShareID
	}

	reqURL := c.ManifestURL(shareID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to send request"), manifest.ErrManifestFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Warn().Msgf("manifest: fetch failed: share_id=%s status=%d", shareID, resp.StatusCode)
		return nil, errors.Mark(&StatusError{StatusCode: resp.StatusCode}, manifest.ErrManifestFetch)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read response body"), manifest.ErrManifestFetch)
	}

	m, err := manifest.Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid manifest for share id %s", shareID)
	}
	zlog.Debug().Msgf("manifest: fetched: share_id=%s tracks=%d", shareID, len(m.Tracks))
	return m, nil
}
