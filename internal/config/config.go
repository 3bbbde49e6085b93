// Package config provides the configuration structure for the render service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                  string `toml:"url"`
	RenderRequestSubject string `toml:"render_request_subject"`
	ScriptObjectBucket   string `toml:"script_object_store_bucket"`
	AssetObjectBucket    string `toml:"asset_object_store_bucket"`
	RenderObjectBucket   string `toml:"render_object_store_bucket"`
	RenderTimeoutSeconds int    `toml:"render_timeout_seconds"`
}

// SynthConfig holds the speech-engine invocation settings.
type SynthConfig struct {
	BinaryPath string `toml:"binary_path"`
	ModelPath  string `toml:"model_path"`
	FfmpegPath string `toml:"ffmpeg_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure: NATS wiring, the project's
// render output settings, the global audio defaults for the three categories,
// the synthesizer engine, and paths.
type Config struct {
	NATS   NATSConfig          `toml:"nats"`
	Render core.RenderSettings `toml:"render"`
	Audio  core.AudioDefaults  `toml:"audio"`
	Synth  SynthConfig         `toml:"synth"`
	Paths  PathsConfig         `toml:"paths"`
}

// Load loads the configuration for the render service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
