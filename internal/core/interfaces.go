// Package core defines the collaborator interfaces and shared types for the
// render service.
package core

import (
	"context"
	"errors"
)

// Static errors shared by collaborator implementations and their callers.
var (
	// ErrAssetNotFound indicates that a sound-effect or background-track id is not
	// registered in the asset store.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrSynthesis indicates that the speech synthesizer failed for a narration
	// segment.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrExport indicates that the exporter failed to write the final audio.
	ErrExport = errors.New("audio export failed")
)

// Clip is decoded audio in the pipeline interchange format: mono PCM samples in
// [-1, 1] at the project sample rate.
type Clip struct {
	SampleRate int
	Samples    []float64
}

// DurationSamples returns the clip length in samples.
func (c Clip) DurationSamples() int {
	return len(c.Samples)
}

// Synthesizer converts one narration segment into a Clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) (Clip, error)
}

// AssetStore resolves a sound-effect or background-track id into its registered
// descriptor and decoded audio. Lookup misses return an error wrapping
// ErrAssetNotFound.
type AssetStore interface {
	Lookup(ctx context.Context, assetID string) (AssetDescriptor, Clip, error)
}

// Exporter writes a finished sample buffer in the requested container format.
type Exporter interface {
	Export(ctx context.Context, samples []float64, settings RenderSettings) ([]byte, error)
}

// ObjectStore is a key-value blob store used for scripts and finished renders.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// RenderProcessor turns a raw markup script into a finished, exported render.
type RenderProcessor interface {
	Render(ctx context.Context, script []byte, settings RenderSettings) (*RenderResult, error)
}

// ChapterMarker records a chapter boundary in the finished render, derived from
// a voice directive flagged as a chapter start.
type ChapterMarker struct {
	OffsetSamples int    `json:"offsetSamples"`
	VoiceID       string `json:"voiceId"`
}

// RenderResult is the outcome of one successful render.
type RenderResult struct {
	Audio           []byte
	Format          string
	SampleRate      int
	DurationSamples int
	Markers         []ChapterMarker
	Warnings        []string
}
