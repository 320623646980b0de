package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Settings represents the beep engine configuration.
type Settings struct {
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	Quality    int `yaml:"quality" mapstructure:"quality" default:"4" validate:"gte=1,lte=64"`
	TickMs     int `yaml:"tick_ms" mapstructure:"tick_ms" default:"200" validate:"gte=50,lte=5000"`
}

// decodeSettings decodes the engine settings map into a Settings struct.
func decodeSettings(settings map[string]any) (*Settings, error) {
	var cfg Settings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &cfg, nil
}
