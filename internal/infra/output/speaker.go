package output

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// SpeakerConfig represents the settings of the speaker output.
type SpeakerConfig struct {
	SampleRate         int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs           int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gt=0,lte=1000"`
	ProgressIntervalMs int `yaml:"progress_interval_ms" mapstructure:"progress_interval_ms" default:"250" validate:"gt=0,lte=5000"`
	DownloadTimeoutSec int `yaml:"download_timeout_sec" mapstructure:"download_timeout_sec" default:"30" validate:"gt=0"`
	MaxDownloadMB      int `yaml:"max_download_mb" mapstructure:"max_download_mb" default:"50" validate:"gt=0"`
}

// download fetches a preview into memory.
func download(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch audio")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("audio request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audio")
	}
	if int64(len(data)) > limit {
		return nil, errors.Newf("audio exceeds %d bytes", limit)
	}
	return data, nil
}

func newDownloadClient(cfg SpeakerConfig) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSec) * time.Second}
}
