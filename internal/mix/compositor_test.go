// Package mix_test tests sample-accurate compositing of resolved timelines.
package mix_test

import (
	"math"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/mix"
	"github.com/FatStinkyPanda/talk2me-render/internal/params"
	"github.com/FatStinkyPanda/talk2me-render/internal/timeline"
)

// A small rate keeps the sample arithmetic in these tests readable.
const testSampleRate = 1000

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return testLogger
}

func newTestCompositor(t *testing.T) *mix.Compositor {
	t.Helper()

	return mix.NewCompositor(testSampleRate, 0, 0, createTestLogger(t))
}

// constClip builds a clip holding the same value in every sample.
func constClip(value float64, samples int) core.Clip {
	buffer := make([]float64, samples)
	for i := range buffer {
		buffer[i] = value
	}

	return core.Clip{SampleRate: testSampleRate, Samples: buffer}
}

func narrationSegment(start int, clip core.Clip) *timeline.Segment {
	return &timeline.Segment{
		VoiceID:     "narrator",
		Text:        "text",
		Chapter:     false,
		Line:        1,
		Column:      1,
		Clip:        clip,
		StartSample: start,
	}
}

func sfxEvent(offset int, clip core.Clip, resolved params.Resolved) *timeline.Event {
	return &timeline.Event{
		Kind:          timeline.EventSfx,
		AssetID:       "effect",
		Descriptor:    core.AssetDescriptor{},
		Clip:          clip,
		Params:        resolved,
		Anchor:        timeline.Anchor{Segment: 0, Placement: timeline.PlacementBefore},
		Line:          1,
		Column:        1,
		OffsetSamples: offset,
	}
}

func backgroundSpanEvents(start, stop int, clip core.Clip, resolved params.Resolved) []*timeline.Event {
	startEvent := &timeline.Event{
		Kind:          timeline.EventBackgroundStart,
		AssetID:       "track",
		Descriptor:    core.AssetDescriptor{},
		Clip:          clip,
		Params:        resolved,
		Anchor:        timeline.Anchor{Segment: 0, Placement: timeline.PlacementBefore},
		Line:          1,
		Column:        1,
		OffsetSamples: start,
	}
	stopEvent := &timeline.Event{
		Kind:          timeline.EventBackgroundStop,
		AssetID:       "track",
		Descriptor:    core.AssetDescriptor{},
		Clip:          core.Clip{SampleRate: 0, Samples: nil},
		Params:        resolved,
		Anchor:        timeline.Anchor{Segment: 0, Placement: timeline.PlacementAfter},
		Line:          1,
		Column:        1,
		OffsetSamples: stop,
	}

	return []*timeline.Event{startEvent, stopEvent}
}

func TestMix_NarrationRoundTrip(t *testing.T) {
	t.Parallel()

	first := constClip(0.5, 200)
	second := constClip(-0.25, 300)

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{
			narrationSegment(0, first),
			narrationSegment(200, second),
		},
		Events:       nil,
		TotalSamples: 500,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	require.Len(t, buffer, 500)
	assert.InDelta(t, 0.5, buffer[0], 1e-12)
	assert.InDelta(t, 0.5, buffer[199], 1e-12)
	assert.InDelta(t, -0.25, buffer[200], 1e-12)
	assert.InDelta(t, -0.25, buffer[499], 1e-12)
}

func TestMix_EndPaddingExtendsBuffer(t *testing.T) {
	t.Parallel()

	tl := &timeline.Timeline{
		Segments:     []*timeline.Segment{narrationSegment(0, constClip(0.1, 100))},
		Events:       nil,
		TotalSamples: 100,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	compositor := mix.NewCompositor(testSampleRate, 0.5, 0, createTestLogger(t))
	buffer := compositor.Mix(tl)

	require.Len(t, buffer, 600)
	assert.InDelta(t, 0.0, buffer[599], 1e-12)
}

func TestMix_SfxSumsAdditively(t *testing.T) {
	t.Parallel()

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0.5, 100))},
		Events: []*timeline.Event{
			sfxEvent(50, constClip(0.2, 100), params.Resolved{Volume: 1.0}),
		},
		TotalSamples: 100,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	// Narration alone, then narration plus effect, then effect tail alone.
	assert.InDelta(t, 0.5, buffer[49], 1e-12)
	assert.InDelta(t, 0.7, buffer[50], 1e-12)
	assert.InDelta(t, 0.2, buffer[120], 1e-12)
}

func TestMix_SfxTailExtendsBuffer(t *testing.T) {
	t.Parallel()

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0.5, 100))},
		Events: []*timeline.Event{
			sfxEvent(90, constClip(0.2, 200), params.Resolved{Volume: 1.0}),
		},
		TotalSamples: 100,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)
	require.Len(t, buffer, 290)
	assert.InDelta(t, 0.2, buffer[289], 1e-12)
}

func TestMix_SfxVolume(t *testing.T) {
	t.Parallel()

	tl := &timeline.Timeline{
		Segments: nil,
		Events: []*timeline.Event{
			sfxEvent(0, constClip(0.8, 100), params.Resolved{Volume: 0.5}),
		},
		TotalSamples: 0,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)
	assert.InDelta(t, 0.4, buffer[50], 1e-12)
}

func TestMix_SfxFades(t *testing.T) {
	t.Parallel()

	// 0.1 s fades over a 1000-sample effect: 100-sample ramps at both ends.
	resolved := params.Resolved{Volume: 1.0, FadeIn: 0.1, FadeOut: 0.1}

	tl := &timeline.Timeline{
		Segments: nil,
		Events: []*timeline.Event{
			sfxEvent(0, constClip(1.0, 1000), resolved),
		},
		TotalSamples: 0,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	assert.InDelta(t, 0.0, buffer[0], 1e-12)
	assert.InDelta(t, 0.5, buffer[50], 1e-12)
	assert.InDelta(t, 1.0, buffer[500], 1e-12)
	assert.InDelta(t, 0.5, buffer[950], 1e-12)
	assert.InDelta(t, 0.01, buffer[999], 1e-12)
}

func TestMix_SfxDurationTruncatesWindow(t *testing.T) {
	t.Parallel()

	resolved := params.Resolved{Volume: 1.0, Duration: 0.05, HasDuration: true}

	tl := &timeline.Timeline{
		Segments: nil,
		Events: []*timeline.Event{
			sfxEvent(0, constClip(0.3, 1000), resolved),
		},
		TotalSamples: 0,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	require.Len(t, buffer, 50)
	assert.InDelta(t, 0.3, buffer[49], 1e-12)
}

func TestMix_SfxEndAtBoundsWindow(t *testing.T) {
	t.Parallel()

	// start_at 0.1s, end_at 0.25s: a 150-sample window.
	resolved := params.Resolved{
		Volume:   1.0,
		StartAt:  0.1,
		EndAt:    0.25,
		HasEndAt: true,
	}

	tl := &timeline.Timeline{
		Segments: nil,
		Events: []*timeline.Event{
			sfxEvent(100, constClip(0.3, 1000), resolved),
		},
		TotalSamples: 0,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	require.Len(t, buffer, 250)
	assert.InDelta(t, 0.0, buffer[99], 1e-12)
	assert.InDelta(t, 0.3, buffer[100], 1e-12)
	assert.InDelta(t, 0.3, buffer[249], 1e-12)
}

func TestMix_PauseSpeechGatesNarrationOnly(t *testing.T) {
	t.Parallel()

	resolved := params.Resolved{Volume: 1.0, PauseSpeech: true}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0.5, 300))},
		Events: []*timeline.Event{
			sfxEvent(100, constClip(0.2, 100), resolved),
		},
		TotalSamples: 300,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	// Narration intact outside the gate, only the effect inside it.
	assert.InDelta(t, 0.5, buffer[99], 1e-12)
	assert.InDelta(t, 0.2, buffer[150], 1e-12)
	assert.InDelta(t, 0.5, buffer[200], 1e-12)
}

func TestMix_BackgroundLoopsAcrossSpan(t *testing.T) {
	t.Parallel()

	// A 100-sample source looping over a 350-sample span wraps mid-cycle.
	source := make([]float64, 100)
	for i := range source {
		source[i] = float64(i) / 100
	}

	resolved := params.Resolved{Volume: 1.0, Loop: true}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0, 350))},
		Events: backgroundSpanEvents(0, 350, core.Clip{
			SampleRate: testSampleRate,
			Samples:    source,
		}, resolved),
		TotalSamples: 350,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	assert.InDelta(t, source[25], buffer[25], 1e-12)
	assert.InDelta(t, source[25], buffer[125], 1e-12)
	assert.InDelta(t, source[49], buffer[349], 1e-12)
}

func TestMix_BackgroundTruncatesWithoutLoop(t *testing.T) {
	t.Parallel()

	resolved := params.Resolved{Volume: 1.0, Loop: false}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0, 300))},
		Events: backgroundSpanEvents(
			0, 300, constClip(0.4, 100), resolved,
		),
		TotalSamples: 300,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	assert.InDelta(t, 0.4, buffer[99], 1e-12)
	assert.InDelta(t, 0.0, buffer[100], 1e-12)
	assert.InDelta(t, 0.0, buffer[299], 1e-12)
}

func TestMix_BackgroundSilentAfterStop(t *testing.T) {
	t.Parallel()

	resolved := params.Resolved{Volume: 1.0, Loop: true}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0, 400))},
		Events: backgroundSpanEvents(
			0, 200, constClip(0.4, 100), resolved,
		),
		TotalSamples: 400,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	assert.InDelta(t, 0.4, buffer[199], 1e-12)

	for i := 200; i < 400; i++ {
		require.InDelta(t, 0.0, buffer[i], 1e-12)
	}
}

func TestMix_BackgroundFadesOverSpan(t *testing.T) {
	t.Parallel()

	// 0.1 s fades over a one-second span.
	resolved := params.Resolved{Volume: 1.0, FadeIn: 0.1, FadeOut: 0.1, Loop: true}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0, 1000))},
		Events: backgroundSpanEvents(
			0, 1000, constClip(1.0, 100), resolved,
		),
		TotalSamples: 1000,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)

	assert.InDelta(t, 0.0, buffer[0], 1e-12)
	assert.InDelta(t, 0.5, buffer[50], 1e-12)
	assert.InDelta(t, 1.0, buffer[500], 1e-12)
	assert.InDelta(t, 0.5, buffer[950], 1e-12)
}

func TestMix_DuckingDipsUnderNarration(t *testing.T) {
	t.Parallel()

	// 10 ms ramps at this rate are 10 samples wide.
	compositor := mix.NewCompositor(testSampleRate, 0, 10, createTestLogger(t))

	resolved := params.Resolved{
		Volume:     1.0,
		Loop:       true,
		DuckSpeech: true,
		DuckLevel:  0.25,
	}

	// Narration occupies [400, 600) of a 1000-sample span.
	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(400, constClip(0, 200))},
		Events: backgroundSpanEvents(
			0, 1000, constClip(1.0, 100), resolved,
		),
		TotalSamples: 1000,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := compositor.Mix(tl)

	// Full level clear of the overlap, duck level in its middle.
	assert.InDelta(t, 1.0, buffer[200], 1e-12)
	assert.InDelta(t, 0.25, buffer[500], 1e-12)
	assert.InDelta(t, 1.0, buffer[800], 1e-12)

	// The ramps land between the two levels.
	assert.Greater(t, buffer[405], 0.25)
	assert.Less(t, buffer[405], 1.0)
}

func TestMix_DuckingRampIsMonotonic(t *testing.T) {
	t.Parallel()

	compositor := mix.NewCompositor(testSampleRate, 0, 50, createTestLogger(t))

	resolved := params.Resolved{
		Volume:     1.0,
		Loop:       true,
		DuckSpeech: true,
		DuckLevel:  0.3,
	}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(300, constClip(0, 400))},
		Events: backgroundSpanEvents(
			0, 1000, constClip(1.0, 50), resolved,
		),
		TotalSamples: 1000,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := compositor.Mix(tl)

	for i := 301; i < 350; i++ {
		require.LessOrEqual(t, buffer[i], buffer[i-1]+1e-12)
	}

	for i := 651; i < 700; i++ {
		require.GreaterOrEqual(t, buffer[i], buffer[i-1]-1e-12)
	}
}

func TestMix_DuckingOffLeavesLevel(t *testing.T) {
	t.Parallel()

	resolved := params.Resolved{Volume: 0.6, Loop: true, DuckSpeech: false}

	tl := &timeline.Timeline{
		Segments: []*timeline.Segment{narrationSegment(0, constClip(0, 500))},
		Events: backgroundSpanEvents(
			0, 500, constClip(1.0, 100), resolved,
		),
		TotalSamples: 500,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)
	assert.InDelta(t, 0.6, buffer[250], 1e-12)
}

func TestMix_EmptyTimeline(t *testing.T) {
	t.Parallel()

	tl := &timeline.Timeline{
		Segments:     nil,
		Events:       nil,
		TotalSamples: 0,
		SampleRate:   testSampleRate,
		Warnings:     nil,
	}

	buffer := newTestCompositor(t).Mix(tl)
	assert.Empty(t, buffer)
}

func TestNormalize_Peak(t *testing.T) {
	t.Parallel()

	samples := []float64{0.1, -0.5, 0.25}

	gain, err := mix.Normalize(samples, mix.NormalizeModePeak, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 1.9, gain, 1e-12)
	assert.InDelta(t, 0.95, math.Abs(samples[1]), 1e-12)
}

func TestNormalize_RMS(t *testing.T) {
	t.Parallel()

	samples := []float64{0.2, 0.2, 0.2, 0.2}

	gain, err := mix.Normalize(samples, mix.NormalizeModeRMS, 0.1)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, gain, 1e-12)
	assert.InDelta(t, 0.1, samples[0], 1e-12)
}

func TestNormalize_EmptyModeDefaultsToPeak(t *testing.T) {
	t.Parallel()

	samples := []float64{0.5}

	gain, err := mix.Normalize(samples, "", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, gain, 1e-12)
}

func TestNormalize_ZeroTargetUsesDefault(t *testing.T) {
	t.Parallel()

	samples := []float64{1.0}

	gain, err := mix.Normalize(samples, mix.NormalizeModePeak, 0)
	require.NoError(t, err)
	assert.InDelta(t, mix.DefaultNormalizeTarget, gain, 1e-12)
}

func TestNormalize_SilentBuffer(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 100)

	gain, err := mix.Normalize(samples, mix.NormalizeModePeak, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, gain, 1e-12)
}

func TestNormalize_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := mix.Normalize([]float64{0.5}, "loudness", 0.95)
	require.ErrorIs(t, err, mix.ErrUnknownNormalizeMode)
}
