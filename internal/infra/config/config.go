// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Playback PlaybackConfig `yaml:"playback"`
	Spoiler  SpoilerConfig  `yaml:"spoiler"`
	Engine   EngineConfig   `yaml:"engine"`
	Messages MessagesConfig `yaml:"messages"`
}

// StoreConfig represents persistence configuration. An empty Dir falls
// back to a per-user data directory resolved at startup.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	MinSpeed            float64 `yaml:"min_speed" default:"0.5" validate:"gt=0"`
	MaxSpeed            float64 `yaml:"max_speed" default:"3.0" validate:"gt=0"`
	SpeedStep           float64 `yaml:"speed_step" default:"0.25" validate:"gt=0"`
	VolumeStep          float64 `yaml:"volume_step" default:"0.1" validate:"gt=0,lte=1"`
	SeekStepSec         int     `yaml:"seek_step_sec" default:"5" validate:"gte=1,lte=600"`
	SnapshotIntervalSec int     `yaml:"snapshot_interval_sec" default:"5" validate:"gte=1,lte=300"`
}

// SpoilerConfig represents the antispoiler display policy.
type SpoilerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EngineConfig represents the playback engine selection. Settings are
// engine-specific and decoded by the engine itself.
type EngineConfig struct {
	Type     string         `yaml:"type" default:"beep" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// MessagesConfig represents user-facing status messages.
type MessagesConfig struct {
	TimeoutSec         int    `yaml:"timeout_sec" default:"4" validate:"gte=1,lte=60"`
	EngineError        string `yaml:"engine_error" default:"Playback engine error, try again"`
	MetadataUnreadable string `yaml:"metadata_unreadable" default:"Could not read chapters, playing as a single file"`
	StateCorrupt       string `yaml:"state_corrupt" default:"Saved session was unreadable, starting fresh"`
	InvalidPosition    string `yaml:"invalid_position" default:"Position out of range"`
	BookFinished       string `yaml:"book_finished" default:"End of book"`
}

// Load loads configuration from a YAML file. A missing file is not an
// error: the player runs on defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("LEKTOR_STATE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("LEKTOR_ENGINE"); v != "" {
		c.Engine.Type = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Playback.MinSpeed > c.Playback.MaxSpeed {
		return errors.Newf("min_speed (%.2f) must not exceed max_speed (%.2f)",
			c.Playback.MinSpeed, c.Playback.MaxSpeed)
	}

	return nil
}

// GetMessage returns the user-facing message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "engine_error":
		return c.Messages.EngineError
	case "metadata_unreadable":
		return c.Messages.MetadataUnreadable
	case "state_corrupt":
		return c.Messages.StateCorrupt
	case "invalid_position":
		return c.Messages.InvalidPosition
	case "book_finished":
		return c.Messages.BookFinished
	default:
		return code
	}
}
