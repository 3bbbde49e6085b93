package timeline_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/timeline"
)

var errSynthUnavailable = errors.New("synthesis backend unavailable")

// mockSynthesizer returns one second of silence per word, so segment
// durations are predictable from the text.
type mockSynthesizer struct {
	sampleRate  int
	shouldFail  bool
	failVoiceID string
	callCount   atomic.Int64
}

func (m *mockSynthesizer) Synthesize(
	ctx context.Context,
	voiceID, text string,
) (core.Clip, error) {
	m.callCount.Add(1)

	if ctx.Err() != nil {
		return core.Clip{}, ctx.Err()
	}

	if m.shouldFail && (m.failVoiceID == "" || m.failVoiceID == voiceID) {
		return core.Clip{}, errSynthUnavailable
	}

	words := len(strings.Fields(text))

	return core.Clip{
		SampleRate: m.sampleRate,
		Samples:    make([]float64, words*m.sampleRate),
	}, nil
}

func buildTestTimeline(t *testing.T, script string) *timeline.Timeline {
	t.Helper()

	built, err := newTestBuilder(t, testAssetStore()).Build(
		context.Background(), mustParse(t, script),
	)
	require.NoError(t, err)

	return built
}

func TestResolve_RunningSumOffsets(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t,
		"{{{voice:a}}}one two three{{{voice:b}}}four five{{{voice:c}}}six",
	)

	synth := &mockSynthesizer{sampleRate: testSampleRate}
	pass := timeline.NewDurationPass(synth, testSampleRate, createTestLogger(t))

	require.NoError(t, pass.Resolve(context.Background(), built))

	require.Len(t, built.Segments, 3)
	assert.Equal(t, 0, built.Segments[0].StartSample)
	assert.Equal(t, 3*testSampleRate, built.Segments[1].StartSample)
	assert.Equal(t, 5*testSampleRate, built.Segments[2].StartSample)
	assert.Equal(t, 6*testSampleRate, built.TotalSamples)
	assert.Equal(t, testSampleRate, built.SampleRate)
}

func TestResolve_SegmentsAreContiguous(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t,
		"{{{voice:a}}}alpha beta{{{voice:b}}}gamma{{{voice:c}}}delta epsilon zeta",
	)

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))

	for i := 1; i < len(built.Segments); i++ {
		assert.Equal(t, built.Segments[i-1].EndSample(), built.Segments[i].StartSample)
	}

	last := built.Segments[len(built.Segments)-1]
	assert.Equal(t, last.EndSample(), built.TotalSamples)
}

func TestResolve_AnchorsBecomeAbsoluteOffsets(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t,
		"{{{voice:a}}}one two{{{sfx:thunder}}}{{{voice:b}}}three",
	)

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))

	require.Len(t, built.Events, 1)
	// Anchored before segment 1, which starts after the two-word segment 0.
	assert.Equal(t, 2*testSampleRate, built.Events[0].OffsetSamples)
}

func TestResolve_StartAtShiftsOffset(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t,
		"{{{voice:a}}}one two{{{sfx:thunder,start_at:1.5}}}{{{voice:b}}}three",
	)

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))

	require.Len(t, built.Events, 1)

	expected := 2*testSampleRate + int(1.5*testSampleRate)
	assert.Equal(t, expected, built.Events[0].OffsetSamples)
}

func TestResolve_EndAnchorMapsToTotalSamples(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "{{{voice:a}}}one two{{{sfx:thunder}}}")

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))

	require.Len(t, built.Events, 1)
	assert.Equal(t, built.TotalSamples, built.Events[0].OffsetSamples)
}

func TestResolve_BackgroundStopAfterSegment(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t,
		"{{{bg:rain}}}{{{voice:a}}}one two three{{{bg:stop}}}{{{voice:b}}}four",
	)

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))

	require.Len(t, built.Events, 2)
	assert.Equal(t, 0, built.Events[0].OffsetSamples)
	assert.Equal(t, 3*testSampleRate, built.Events[1].OffsetSamples)
}

func TestResolve_SynthesisFailureFailsRender(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "{{{voice:a}}}one{{{voice:broken}}}two{{{voice:c}}}three")

	synth := &mockSynthesizer{
		sampleRate:  testSampleRate,
		shouldFail:  true,
		failVoiceID: "broken",
	}
	pass := timeline.NewDurationPass(synth, testSampleRate, createTestLogger(t))

	err := pass.Resolve(context.Background(), built)
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrSynthesis)
	require.ErrorIs(t, err, errSynthUnavailable)
	assert.Contains(t, err.Error(), `voice "broken"`)
}

func TestResolve_AllSegmentsRequested(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "{{{voice:a}}}one{{{voice:b}}}two{{{voice:c}}}three")

	synth := &mockSynthesizer{sampleRate: testSampleRate}
	pass := timeline.NewDurationPass(synth, testSampleRate, createTestLogger(t))

	require.NoError(t, pass.Resolve(context.Background(), built))
	assert.Equal(t, int64(3), synth.callCount.Load())
}

func TestResolve_SampleRateMismatch(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "{{{voice:a}}}one")

	synth := &mockSynthesizer{sampleRate: 48000}
	pass := timeline.NewDurationPass(synth, testSampleRate, createTestLogger(t))

	err := pass.Resolve(context.Background(), built)
	require.ErrorIs(t, err, timeline.ErrSampleRateMismatch)
}

func TestResolve_CancelledContext(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "{{{voice:a}}}one{{{voice:b}}}two")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	synth := &mockSynthesizer{sampleRate: testSampleRate}
	pass := timeline.NewDurationPass(synth, testSampleRate, createTestLogger(t))

	err := pass.Resolve(ctx, built)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolve_EmptyTimeline(t *testing.T) {
	t.Parallel()

	built := buildTestTimeline(t, "")

	pass := timeline.NewDurationPass(
		&mockSynthesizer{sampleRate: testSampleRate}, testSampleRate, createTestLogger(t),
	)
	require.NoError(t, pass.Resolve(context.Background(), built))
	assert.Equal(t, 0, built.TotalSamples)
}

var _ core.Synthesizer = (*mockSynthesizer)(nil)
