// Package params resolves the three-tier audio configuration (global defaults,
// per-asset defaults, inline directive flags) into fully-typed playback
// parameters.
package params

import (
	"errors"
	"fmt"
)

// ErrConfig is the sentinel wrapped by every ConfigError.
var ErrConfig = errors.New("invalid audio configuration")

// Hard-coded fallbacks, used only when neither the directive, the asset, nor
// the global defaults provide a value.
const (
	FallbackVolume    = 1.0
	FallbackFade      = 0.0
	FallbackDuckLevel = 0.3
)

// Flag names understood by the resolver.
const (
	FlagVolume      = "volume"
	FlagFadeIn      = "fade_in"
	FlagFadeOut     = "fade_out"
	FlagStartAt     = "start_at"
	FlagEndAt       = "end_at"
	FlagDuration    = "duration"
	FlagLoop        = "loop"
	FlagPauseSpeech = "pause_speech"
	FlagDuckSpeech  = "duck_speech"
	FlagDuckLevel   = "duck_level"
)

// Category identifies which audio category a directive belongs to.
type Category int

const (
	// CategoryVoice covers narration segments.
	CategoryVoice Category = iota
	// CategorySfx covers one-shot sound effects.
	CategorySfx
	// CategoryBackground covers background tracks.
	CategoryBackground
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryVoice:
		return "voice"
	case CategorySfx:
		return "sfx"
	case CategoryBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Resolved is the fully-typed, precedence-merged parameter set governing one
// audio event. It is never mutated after creation; re-resolving produces a new
// value.
type Resolved struct {
	Volume  float64
	FadeIn  float64
	FadeOut float64
	// StartAt shifts the event, in seconds, relative to its anchor.
	StartAt float64
	// EndAt and Duration bound the effective playback window of a sound
	// effect; the Has flags distinguish "unset" from zero.
	EndAt       float64
	HasEndAt    bool
	Duration    float64
	HasDuration bool
	Loop        bool
	PauseSpeech bool
	DuckSpeech  bool
	DuckLevel   float64
}

// ConfigError reports a directive flag whose value cannot be coerced to its
// type, or a flag the category does not understand. The render aborts rather
// than silently substituting a default the author did not intend.
type ConfigError struct {
	Directive string
	Flag      string
	Value     string
	Reason    string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("directive %s: flag %q=%q: %s", e.Directive, e.Flag, e.Value, e.Reason)
}

// Unwrap lets callers match any resolver failure with errors.Is(err,
// ErrConfig).
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// Warning is a non-fatal range violation: the value was clamped and the render
// continues.
type Warning struct {
	Directive string
	Flag      string
	Message   string
}

// String formats the warning for logs and the render result.
func (w Warning) String() string {
	return fmt.Sprintf("directive %s: flag %q: %s", w.Directive, w.Flag, w.Message)
}
