// Package render orchestrates the markup-to-mix pipeline: parse the script,
// build the timeline, synthesize narration, composite the master buffer, and
// export it. Data flows strictly forward; no stage reaches back into an
// earlier stage's state.
package render

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/markup"
	"github.com/FatStinkyPanda/talk2me-render/internal/mix"
	"github.com/FatStinkyPanda/talk2me-render/internal/params"
	"github.com/FatStinkyPanda/talk2me-render/internal/text"
	"github.com/FatStinkyPanda/talk2me-render/internal/timeline"
)

// Pipeline implements core.RenderProcessor. One Pipeline serves many renders;
// each render owns its own timeline and buffer, so renders of different
// scripts proceed fully in parallel.
type Pipeline struct {
	assets       core.AssetStore
	synth        core.Synthesizer
	exporter     core.Exporter
	defaults     core.AudioDefaults
	settings     core.RenderSettings
	preprocessor *text.Preprocessor
	log          *logger.Logger
}

// NewPipeline creates a render pipeline with the project's audio defaults and
// output settings.
func NewPipeline(
	assets core.AssetStore,
	synth core.Synthesizer,
	exporter core.Exporter,
	defaults core.AudioDefaults,
	settings core.RenderSettings,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		assets:       assets,
		synth:        synth,
		exporter:     exporter,
		defaults:     defaults,
		settings:     settings,
		preprocessor: text.NewPreprocessor(),
		log:          log,
	}
}

// Render runs the whole pipeline for one script. Every failure is fatal to
// the render as a unit: there is no partial-success mode, because a partially
// mixed chapter is worse than a clear failure with a position reference.
func (p *Pipeline) Render(
	ctx context.Context,
	script []byte,
	settings core.RenderSettings,
) (*core.RenderResult, error) {
	settings = p.effectiveSettings(settings)

	nodes, parseErr := markup.Parse(string(script))
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse script: %w", parseErr)
	}

	builder := timeline.NewBuilder(p.assets, p.defaults, p.log)

	resolvedTimeline, buildErr := builder.Build(ctx, nodes)
	if buildErr != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", buildErr)
	}

	p.log.Info(
		"Timeline built: %d segments, %d events", len(resolvedTimeline.Segments), len(resolvedTimeline.Events),
	)

	for _, segment := range resolvedTimeline.Segments {
		segment.Text = p.preprocessor.CleanNarration(segment.Text)
	}

	durations := timeline.NewDurationPass(p.synth, settings.SampleRate, p.log)

	resolveErr := durations.Resolve(ctx, resolvedTimeline)
	if resolveErr != nil {
		return nil, resolveErr
	}

	gainErr := p.applyVoiceGain(resolvedTimeline)
	if gainErr != nil {
		return nil, gainErr
	}

	compositor := mix.NewCompositor(
		settings.SampleRate, settings.EndPaddingSeconds, settings.DuckRampMilliseconds, p.log,
	)

	buffer := compositor.Mix(resolvedTimeline)

	if settings.Normalize {
		gain, normalizeErr := mix.Normalize(buffer, settings.NormalizeMode, settings.NormalizeTarget)
		if normalizeErr != nil {
			return nil, fmt.Errorf("failed to normalize mix: %w", normalizeErr)
		}

		p.log.Info("Normalized mix (%s): applied gain %.3f", settings.NormalizeMode, gain)
	}

	audio, exportErr := p.exporter.Export(ctx, buffer, settings)
	if exportErr != nil {
		return nil, fmt.Errorf("failed to export mix: %w", exportErr)
	}

	return &core.RenderResult{
		Audio:           audio,
		Format:          settings.Format,
		SampleRate:      settings.SampleRate,
		DurationSamples: len(buffer),
		Markers:         chapterMarkers(resolvedTimeline, settings),
		Warnings:        warningStrings(resolvedTimeline),
	}, nil
}

// applyVoiceGain scales narration clips by the globally configured voice
// volume. Narration has no per-directive audio flags, so the voice category
// resolves once from defaults alone.
func (p *Pipeline) applyVoiceGain(resolvedTimeline *timeline.Timeline) error {
	voiceParams, _, resolveErr := params.Resolve(
		params.CategoryVoice, nil, p.defaults, nil, "voice defaults",
	)
	if resolveErr != nil {
		return fmt.Errorf("failed to resolve voice defaults: %w", resolveErr)
	}

	if voiceParams.Volume == 1 {
		return nil
	}

	for _, segment := range resolvedTimeline.Segments {
		for i := range segment.Clip.Samples {
			segment.Clip.Samples[i] *= voiceParams.Volume
		}
	}

	return nil
}

// effectiveSettings fills unset fields of a per-render override from the
// project settings. The boolean passes are additive: a render request can
// enable normalization or chapter markers, never disable what the project
// asks for.
func (p *Pipeline) effectiveSettings(settings core.RenderSettings) core.RenderSettings {
	settings.Normalize = settings.Normalize || p.settings.Normalize
	settings.ChapterMarkers = settings.ChapterMarkers || p.settings.ChapterMarkers

	if settings.Format == "" {
		settings.Format = p.settings.Format
	}

	if settings.SampleRate == 0 {
		settings.SampleRate = p.settings.SampleRate
	}

	if settings.BitDepth == 0 {
		settings.BitDepth = p.settings.BitDepth
	}

	if settings.NormalizeMode == "" {
		settings.NormalizeMode = p.settings.NormalizeMode
	}

	if settings.NormalizeTarget == 0 {
		settings.NormalizeTarget = p.settings.NormalizeTarget
	}

	if settings.EndPaddingSeconds == 0 {
		settings.EndPaddingSeconds = p.settings.EndPaddingSeconds
	}

	if settings.DuckRampMilliseconds == 0 {
		settings.DuckRampMilliseconds = p.settings.DuckRampMilliseconds
	}

	return settings
}

// chapterMarkers derives markers from segments flagged as chapter starts.
func chapterMarkers(resolvedTimeline *timeline.Timeline, settings core.RenderSettings) []core.ChapterMarker {
	if !settings.ChapterMarkers {
		return nil
	}

	var markers []core.ChapterMarker

	for _, segment := range resolvedTimeline.Segments {
		if !segment.Chapter {
			continue
		}

		markers = append(markers, core.ChapterMarker{
			OffsetSamples: segment.StartSample,
			VoiceID:       segment.VoiceID,
		})
	}

	return markers
}

func warningStrings(resolvedTimeline *timeline.Timeline) []string {
	if len(resolvedTimeline.Warnings) == 0 {
		return nil
	}

	warnings := make([]string, 0, len(resolvedTimeline.Warnings))
	for _, warning := range resolvedTimeline.Warnings {
		warnings = append(warnings, warning.String())
	}

	return warnings
}
