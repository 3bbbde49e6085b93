// Package mix composites a resolved timeline into one sample-accurate master
// buffer: narration at absolute offsets, sound effects with fades and optional
// speech gating, background tracks with looping, fades, and speech ducking.
package mix

import (
	"math"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/timeline"
)

// DefaultDuckRampMilliseconds is the transition width at the edges of each
// ducking overlap. No source material pins this number down; 50 ms is wide
// enough to avoid clicks and short enough to stay unnoticeable.
const DefaultDuckRampMilliseconds = 50

const millisecondsPerSecond = 1000

// Compositor mixes one render's timeline into a master buffer it exclusively
// owns until the buffer is handed to the exporter.
type Compositor struct {
	sampleRate        int
	endPaddingSeconds float64
	duckRampSamples   int
	log               *logger.Logger
}

// NewCompositor creates a compositor for the project sample rate. A zero or
// negative duck ramp selects the default.
func NewCompositor(sampleRate int, endPaddingSeconds float64, duckRampMilliseconds int, log *logger.Logger) *Compositor {
	if duckRampMilliseconds <= 0 {
		duckRampMilliseconds = DefaultDuckRampMilliseconds
	}

	return &Compositor{
		sampleRate:        sampleRate,
		endPaddingSeconds: endPaddingSeconds,
		duckRampSamples:   duckRampMilliseconds * sampleRate / millisecondsPerSecond,
		log:               log,
	}
}

// backgroundSpan is a paired bg_start/bg_stop with absolute bounds.
type backgroundSpan struct {
	event *timeline.Event
	start int
	stop  int
}

// Mix composites the resolved timeline. The buffer is sized to the narration
// end, extended by whatever sound-effect or background tail reaches further,
// plus the configured end padding. Contributions sum additively; no clipping
// guard is applied here — normalization is a separate, explicit pass.
func (c *Compositor) Mix(tl *timeline.Timeline) []float64 {
	spans := c.pairBackgroundSpans(tl)

	buffer := make([]float64, c.bufferLength(tl, spans))

	c.writeNarration(buffer, tl)
	c.gateSpeechPauses(buffer, tl)

	for _, event := range tl.Events {
		if event.Kind == timeline.EventSfx {
			c.mixSoundEffect(buffer, event)
		}
	}

	for _, span := range spans {
		c.mixBackground(buffer, tl, span)
	}

	return buffer
}

// pairBackgroundSpans matches each bg_start with its stop. The builder emits a
// stop for every start, including the implicit end-of-script one; an unpaired
// start (a timeline built by hand in tests) closes at the narration end.
func (c *Compositor) pairBackgroundSpans(tl *timeline.Timeline) []backgroundSpan {
	var (
		spans []backgroundSpan
		open  *backgroundSpan
	)

	for _, event := range tl.Events {
		switch event.Kind {
		case timeline.EventBackgroundStart:
			open = &backgroundSpan{event: event, start: event.OffsetSamples, stop: 0}
		case timeline.EventBackgroundStop:
			if open == nil {
				continue
			}

			open.stop = event.OffsetSamples
			if open.stop > open.start {
				spans = append(spans, *open)
			}

			open = nil
		case timeline.EventSfx:
		}
	}

	if open != nil {
		open.stop = tl.TotalSamples
		if open.stop > open.start {
			spans = append(spans, *open)
		}
	}

	return spans
}

// bufferLength computes the master buffer size: the furthest contribution end
// plus the end padding, so trailing fades and loops complete.
func (c *Compositor) bufferLength(tl *timeline.Timeline, spans []backgroundSpan) int {
	length := tl.TotalSamples

	for _, event := range tl.Events {
		if event.Kind != timeline.EventSfx {
			continue
		}

		if end := event.OffsetSamples + c.effectWindow(event); end > length {
			length = end
		}
	}

	for _, span := range spans {
		if span.stop > length {
			length = span.stop
		}
	}

	return length + c.secondsToSamples(c.endPaddingSeconds)
}

// writeNarration places each segment's clip at its absolute offset. Segments
// never overlap by construction, so this is a plain copy.
func (c *Compositor) writeNarration(buffer []float64, tl *timeline.Timeline) {
	for _, segment := range tl.Segments {
		copy(buffer[segment.StartSample:], segment.Clip.Samples)
	}
}

// gateSpeechPauses silences narration under sound effects with pause_speech
// set. This runs before any effect or background is mixed in, so only
// narration is gated: pause means pause, not a quieter mix.
func (c *Compositor) gateSpeechPauses(buffer []float64, tl *timeline.Timeline) {
	for _, event := range tl.Events {
		if event.Kind != timeline.EventSfx || !event.Params.PauseSpeech {
			continue
		}

		start := event.OffsetSamples

		end := start + c.effectWindow(event)
		if end > len(buffer) {
			end = len(buffer)
		}

		for i := start; i < end; i++ {
			buffer[i] = 0
		}
	}
}

// effectWindow is the effective playback window of a sound effect: the asset
// length bounded by the duration flag and by the end_at/start_at pair,
// whichever is shortest.
func (c *Compositor) effectWindow(event *timeline.Event) int {
	window := len(event.Clip.Samples)

	if event.Params.HasDuration {
		if limit := c.secondsToSamples(event.Params.Duration); limit < window {
			window = limit
		}
	}

	if event.Params.HasEndAt {
		limit := c.secondsToSamples(event.Params.EndAt - event.Params.StartAt)
		if limit < 0 {
			limit = 0
		}

		if limit < window {
			window = limit
		}
	}

	return window
}

// mixSoundEffect sums one effect into the buffer with its linear fade ramps
// and resolved volume.
func (c *Compositor) mixSoundEffect(buffer []float64, event *timeline.Event) {
	window := c.effectWindow(event)

	fadeIn := c.fadeSamples(event.Params.FadeIn, window)
	fadeOut := c.fadeSamples(event.Params.FadeOut, window)
	volume := event.Params.Volume
	offset := event.OffsetSamples

	for i := 0; i < window && offset+i < len(buffer); i++ {
		gain := volume * fadeGain(i, window, fadeIn, fadeOut)

		buffer[offset+i] += event.Clip.Samples[i] * gain
	}
}

// mixBackground generates stop−start samples from the track — looping with a
// sample-accurate wrap, or truncating and zero-padding when looping is off —
// and sums them in with fades, volume, and the speech-ducking envelope.
func (c *Compositor) mixBackground(buffer []float64, tl *timeline.Timeline, span backgroundSpan) {
	source := span.event.Clip.Samples
	if len(source) == 0 {
		return
	}

	duration := span.stop - span.start

	fadeIn := c.fadeSamples(span.event.Params.FadeIn, duration)
	fadeOut := c.fadeSamples(span.event.Params.FadeOut, duration)
	volume := span.event.Params.Volume
	loop := span.event.Params.Loop

	envelope := c.duckEnvelope(tl, span)

	for i := 0; i < duration && span.start+i < len(buffer); i++ {
		var sample float64

		if loop {
			sample = source[i%len(source)]
		} else if i < len(source) {
			sample = source[i]
		} else {
			// Non-looping track shorter than its span: the remainder stays
			// silent.
			break
		}

		gain := volume * fadeGain(i, duration, fadeIn, fadeOut)
		if envelope != nil {
			gain *= envelope[i]
		}

		buffer[span.start+i] += sample * gain
	}
}

// duckEnvelope builds the per-sample gain curve for a ducking background span:
// duck_level wherever narration overlaps the span, 1.0 elsewhere, with linear
// ramps at each overlap edge so the dip never clicks. The envelope never
// exceeds 1, so the effective gain never exceeds the resolved volume. Returns
// nil when ducking is off.
func (c *Compositor) duckEnvelope(tl *timeline.Timeline, span backgroundSpan) []float64 {
	if !span.event.Params.DuckSpeech {
		return nil
	}

	duration := span.stop - span.start
	level := span.event.Params.DuckLevel

	envelope := make([]float64, duration)
	for i := range envelope {
		envelope[i] = 1
	}

	for _, segment := range tl.Segments {
		overlapStart := max(segment.StartSample, span.start)

		overlapEnd := min(segment.EndSample(), span.stop)
		if overlapEnd <= overlapStart {
			continue
		}

		c.applyDuckWindow(envelope, overlapStart-span.start, overlapEnd-span.start, level)
	}

	return envelope
}

// applyDuckWindow dips envelope[from:to] to level, ramping over the configured
// transition width at each edge. Short overlaps shrink the ramps so entry and
// exit never cross.
func (c *Compositor) applyDuckWindow(envelope []float64, from, to int, level float64) {
	ramp := c.duckRampSamples
	if limit := (to - from) / 2; ramp > limit {
		ramp = limit
	}

	for i := from; i < to; i++ {
		target := level

		switch {
		case ramp > 0 && i < from+ramp:
			progress := float64(i-from) / float64(ramp)
			target = 1 - (1-level)*progress
		case ramp > 0 && i >= to-ramp:
			progress := float64(to-i) / float64(ramp)
			target = 1 - (1-level)*progress
		}

		// Overlapping narration windows keep the deepest dip.
		if target < envelope[i] {
			envelope[i] = target
		}
	}
}

// fadeGain is the linear fade multiplier for sample i of a window.
func fadeGain(i, window, fadeIn, fadeOut int) float64 {
	gain := 1.0

	if fadeIn > 0 && i < fadeIn {
		gain *= float64(i) / float64(fadeIn)
	}

	if fadeOut > 0 && i >= window-fadeOut {
		gain *= float64(window-i) / float64(fadeOut)
	}

	return gain
}

// fadeSamples converts a fade duration to samples, capped at the window so a
// long fade on a short event stays a full ramp.
func (c *Compositor) fadeSamples(seconds float64, window int) int {
	samples := c.secondsToSamples(seconds)
	if samples > window {
		samples = window
	}

	return samples
}

func (c *Compositor) secondsToSamples(seconds float64) int {
	return int(math.Round(seconds * float64(c.sampleRate)))
}
