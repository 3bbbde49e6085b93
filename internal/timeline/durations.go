package timeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
)

// ErrSampleRateMismatch indicates a synthesized clip not at the project sample
// rate. Resampling belongs at the synthesizer boundary, never inside the
// pipeline.
var ErrSampleRateMismatch = fmt.Errorf("%w: clip sample rate differs from project rate", core.ErrSynthesis)

// DurationPass requests synthesized clips for every narration segment and
// converts the timeline's segment-relative anchors into absolute sample
// offsets.
type DurationPass struct {
	synth      core.Synthesizer
	sampleRate int
	log        *logger.Logger
}

// NewDurationPass creates a duration resolution pass.
func NewDurationPass(synth core.Synthesizer, sampleRate int, log *logger.Logger) *DurationPass {
	return &DurationPass{
		synth:      synth,
		sampleRate: sampleRate,
		log:        log,
	}
}

// Resolve synthesizes all segments concurrently, waits for every request, and
// then computes absolute offsets. Segments are independent, so requests run in
// parallel; the offsets of later segments depend on every earlier duration, so
// the pass joins before converting anchors. The first failure cancels all
// outstanding requests and fails the render as a unit — a mix with missing
// narration is never produced.
func (p *DurationPass) Resolve(ctx context.Context, tl *Timeline) error {
	synthErr := p.synthesizeAll(ctx, tl)
	if synthErr != nil {
		return synthErr
	}

	total := 0
	for _, segment := range tl.Segments {
		segment.StartSample = total
		total += segment.DurationSamples()
	}

	tl.TotalSamples = total
	tl.SampleRate = p.sampleRate

	for _, event := range tl.Events {
		base := p.anchorOffset(tl, event.Anchor)

		event.OffsetSamples = base + p.secondsToSamples(event.Params.StartAt)
	}

	return nil
}

// synthesizeAll dispatches one request per segment and joins on all of them.
func (p *DurationPass) synthesizeAll(ctx context.Context, tl *Timeline) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		firstErr  error
	)

	for index, segment := range tl.Segments {
		waitGroup.Add(1)

		go func(index int, segment *Segment) {
			defer waitGroup.Done()

			clip, synthErr := p.synth.Synthesize(ctx, segment.VoiceID, segment.Text)
			if synthErr == nil && clip.SampleRate != p.sampleRate {
				synthErr = fmt.Errorf(
					"%w: got %d Hz, want %d Hz", ErrSampleRateMismatch, clip.SampleRate, p.sampleRate,
				)
			}

			if synthErr != nil {
				mutex.Lock()

				if firstErr == nil {
					firstErr = fmt.Errorf(
						"%w: segment %d (voice %q): %w", core.ErrSynthesis, index, segment.VoiceID, synthErr,
					)

					// Cancel every outstanding request; the render fails as
					// a unit.
					cancel()
				}

				mutex.Unlock()

				return
			}

			segment.Clip = clip
		}(index, segment)
	}

	waitGroup.Wait()

	return firstErr
}

// anchorOffset converts a segment-relative anchor to an absolute sample
// offset. An index at or past the segment count means the timeline's end.
func (p *DurationPass) anchorOffset(tl *Timeline, anchor Anchor) int {
	if anchor.Segment >= len(tl.Segments) {
		return tl.TotalSamples
	}

	segment := tl.Segments[anchor.Segment]

	if anchor.Placement == PlacementAfter {
		return segment.EndSample()
	}

	return segment.StartSample
}

func (p *DurationPass) secondsToSamples(seconds float64) int {
	return int(math.Round(seconds * float64(p.sampleRate)))
}
