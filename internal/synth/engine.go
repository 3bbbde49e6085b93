// Package synth adapts an external text-to-speech binary to the pipeline's
// Synthesizer interface. The engine is invoked once per narration segment and
// its WAV output is decoded into the mono interchange format; a segment that
// fails to synthesize fails the whole render.
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/wavio"
)

// Static errors for engine configuration and inputs.
var (
	// ErrBinaryPathEmpty indicates a missing engine binary path.
	ErrBinaryPathEmpty = errors.New("engine binary path cannot be empty")
	// ErrVoiceEmpty indicates an empty voice identifier.
	ErrVoiceEmpty = errors.New("voice cannot be empty")
	// ErrTextEmpty indicates an empty narration segment.
	ErrTextEmpty = errors.New("text cannot be empty")
)

// Config holds the engine invocation settings.
type Config struct {
	BinaryPath string
	ModelPath  string
	SampleRate int
}

// Engine implements core.Synthesizer by shelling out to the configured TTS
// binary.
type Engine struct {
	config Config
	log    *logger.Logger
}

// New creates an Engine.
func New(cfg Config, log *logger.Logger) (*Engine, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	return &Engine{
		config: cfg,
		log:    log,
	}, nil
}

// Synthesize renders one narration segment with the configured voice and
// returns the decoded clip.
func (e *Engine) Synthesize(ctx context.Context, voiceID, text string) (core.Clip, error) {
	if voiceID == "" {
		return core.Clip{}, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrVoiceEmpty)
	}

	if text == "" {
		return core.Clip{}, fmt.Errorf("%w: voice %q: %w", core.ErrSynthesis, voiceID, ErrTextEmpty)
	}

	tempFile, tempErr := os.CreateTemp("", "render-segment-*.wav")
	if tempErr != nil {
		return core.Clip{}, fmt.Errorf("failed to create temp file for engine output: %w", tempErr)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	args := []string{
		"-m", e.config.ModelPath,
		"-p", fmt.Sprintf("{%s}: %s", voiceID, text),
		"--tts_export", tempFile.Name(),
		"--sample_rate", fmt.Sprintf("%d", e.config.SampleRate),
	}

	// #nosec G204 -- the binary path comes from trusted service configuration
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return core.Clip{}, fmt.Errorf(
			"%w: voice %q: engine execution failed: %w - output: %s",
			core.ErrSynthesis, voiceID, runErr, string(output),
		)
	}

	audioData, readErr := os.ReadFile(tempFile.Name())
	if readErr != nil {
		return core.Clip{}, fmt.Errorf("failed to read engine output: %w", readErr)
	}

	clip, decodeErr := wavio.Decode(audioData)
	if decodeErr != nil {
		return core.Clip{}, fmt.Errorf(
			"%w: voice %q: engine produced undecodable audio: %w", core.ErrSynthesis, voiceID, decodeErr,
		)
	}

	return clip, nil
}
