package engine

import (
	"github.com/cockroachdb/errors"

	"github.com/wbialy/lektor/internal/app/playback"
	"github.com/wbialy/lektor/internal/infra/config"
)

// New creates the playback engine selected by the configuration.
func New(cfg config.EngineConfig) (playback.Engine, error) {
	switch cfg.Type {
	case "beep":
		return NewBeep(cfg.Settings)
	default:
		return nil, errors.Newf("unknown engine type: %s", cfg.Type)
	}
}
