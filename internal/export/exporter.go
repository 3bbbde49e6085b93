// Package export writes a finished sample buffer into its container format.
// WAV is written natively; mp3 and flac are encoded by handing the WAV bytes
// to an external ffmpeg binary, the same external-tool boundary the
// synthesizer uses.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/wavio"
)

// Supported container formats.
const (
	FormatWav  = "wav"
	FormatMp3  = "mp3"
	FormatFlac = "flac"
)

const defaultFfmpegBinary = "ffmpeg"

const filePermissions = 0o600

// ErrUnsupportedFormat indicates a format outside {wav, mp3, flac}.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Exporter implements core.Exporter.
type Exporter struct {
	ffmpegPath string
	log        *logger.Logger
}

// New creates an Exporter. An empty ffmpeg path falls back to the binary on
// PATH.
func New(ffmpegPath string, log *logger.Logger) *Exporter {
	if ffmpegPath == "" {
		ffmpegPath = defaultFfmpegBinary
	}

	return &Exporter{
		ffmpegPath: ffmpegPath,
		log:        log,
	}
}

// Export encodes the buffer in the requested format. Any failure wraps
// core.ErrExport so the caller can report the render as a whole.
func (e *Exporter) Export(ctx context.Context, samples []float64, settings core.RenderSettings) ([]byte, error) {
	wavData := wavio.Encode(samples, settings.SampleRate)

	switch settings.Format {
	case FormatWav, "":
		return wavData, nil
	case FormatMp3, FormatFlac:
		return e.transcode(ctx, wavData, settings.Format)
	default:
		return nil, fmt.Errorf("%w: %w: %q", core.ErrExport, ErrUnsupportedFormat, settings.Format)
	}
}

// transcode runs ffmpeg over a temp WAV file and reads back the encoded
// container.
func (e *Exporter) transcode(ctx context.Context, wavData []byte, format string) ([]byte, error) {
	workDir, dirErr := os.MkdirTemp("", "render-export-")
	if dirErr != nil {
		return nil, fmt.Errorf("%w: failed to create temp directory: %w", core.ErrExport, dirErr)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			e.log.Warn("Failed to remove export temp dir '%s': %v", workDir, removeErr)
		}
	}()

	inputPath := filepath.Join(workDir, "mix.wav")
	outputPath := filepath.Join(workDir, "mix."+format)

	writeErr := os.WriteFile(inputPath, wavData, filePermissions)
	if writeErr != nil {
		return nil, fmt.Errorf("%w: failed to write temp wav: %w", core.ErrExport, writeErr)
	}

	args := []string{"-y", "-i", inputPath, outputPath}

	// #nosec G204 -- the binary path comes from trusted service configuration
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return nil, fmt.Errorf(
			"%w: ffmpeg failed for format %q: %w - output: %s", core.ErrExport, format, runErr, string(output),
		)
	}

	encoded, readErr := os.ReadFile(outputPath)
	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read encoded output: %w", core.ErrExport, readErr)
	}

	return encoded, nil
}
