// Package output provides the media outputs a playback engine can own.
package output

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/playback"
)

// Output types
const (
	TypeVirtual = "virtual"
	TypeSpeaker = "speaker"
)

// Errors
var (
	ErrUnsupportedType  = errors.New("unsupported output type")
	ErrAudioUnavailable = errors.New("audio output is not available in this build")
)

// Factory creates a fresh output for every engine.
type Factory func() (playback.Output, error)

// NewFactory validates settings for typ once and returns a factory for it.
func NewFactory(typ string, settings map[string]any) (Factory, error) {
	switch typ {
	case TypeVirtual, "":
		var cfg VirtualConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s output settings", TypeVirtual)
		}
		zlog.Info().Msgf("output: using virtual output: %+v", cfg)
		return func() (playback.Output, error) {
			return NewVirtual(cfg), nil
		}, nil

	case TypeSpeaker:
		var cfg SpeakerConfig
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid %s output settings", TypeSpeaker)
		}
		if !AudioAvailable {
			zlog.Warn().Msg("output: speaker output built without audio support; every play will fail")
		}
		zlog.Info().Msgf("output: using speaker output: %+v", cfg)
		return func() (playback.Output, error) {
			return NewSpeaker(cfg), nil
		}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %q", typ)
	}
}

// decodeSettings decodes a settings map into cfg, applies defaults and validates it.
func decodeSettings(settings map[string]any, cfg any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// toWallTime returns the time with monotonic clock stripped.
// Elapsed playback time is measured on the wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
