// Package timeline builds the time-ordered representation of one render:
// narration segments plus anchored audio events, first with segment-relative
// anchors and, after synthesis, with absolute sample offsets.
package timeline

import (
	"errors"
	"fmt"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/params"
)

// Static errors raised while building a timeline.
var (
	// ErrUnassignedNarration indicates narration text with no preceding voice
	// directive.
	ErrUnassignedNarration = errors.New("narration text before any voice directive")
	// ErrAssetKindMismatch indicates a directive naming an asset registered
	// under the other kind (an sfx directive pointing at a background track,
	// or the reverse).
	ErrAssetKindMismatch = errors.New("asset kind does not match directive")
)

// EventKind discriminates the audio event variants.
type EventKind int

const (
	// EventSfx is a one-shot sound effect.
	EventSfx EventKind = iota
	// EventBackgroundStart begins a background track.
	EventBackgroundStart
	// EventBackgroundStop ends the active background track.
	EventBackgroundStop
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventSfx:
		return "sfx"
	case EventBackgroundStart:
		return "bg_start"
	case EventBackgroundStop:
		return "bg_stop"
	default:
		return "unknown"
	}
}

// Placement positions an anchor relative to its segment boundary.
type Placement int

const (
	// PlacementBefore anchors at the start of the segment.
	PlacementBefore Placement = iota
	// PlacementAfter anchors at the end of the segment.
	PlacementAfter
)

// Anchor expresses an event position relative to a narration segment before
// absolute offsets exist. A Segment index equal to the segment count means the
// end of the timeline.
type Anchor struct {
	Segment   int
	Placement Placement
}

// Segment is one narration span: a voice, its accumulated text, and, once
// synthesis completes, its clip and absolute start. Sequence position is its
// identity; segments are never reordered.
type Segment struct {
	VoiceID string
	Text    string
	// Chapter marks the segment as a chapter start, from a voice directive's
	// chapter flag.
	Chapter bool
	Line    int
	Column  int
	// Clip and StartSample are filled by the duration resolution pass.
	Clip        core.Clip
	StartSample int
}

// DurationSamples returns the synthesized clip length.
func (s *Segment) DurationSamples() int {
	return len(s.Clip.Samples)
}

// EndSample returns the absolute sample index one past the segment.
func (s *Segment) EndSample() int {
	return s.StartSample + s.DurationSamples()
}

// Event is one anchored audio event. Sound effects and background starts carry
// their resolved parameters and decoded asset audio; stops carry only the
// asset id they close.
type Event struct {
	Kind       EventKind
	AssetID    string
	Descriptor core.AssetDescriptor
	Clip       core.Clip
	Params     params.Resolved
	Anchor     Anchor
	Line       int
	Column     int
	// OffsetSamples is filled by the duration resolution pass.
	OffsetSamples int
}

// Timeline is the ordered output of one build: segments and events for a
// single render invocation. It is immutable once the duration resolution pass
// completes and is never shared across renders.
type Timeline struct {
	Segments []*Segment
	Events   []*Event
	// TotalSamples is the narration length: the end of the last segment.
	TotalSamples int
	SampleRate   int
	Warnings     []params.Warning
}

// UnassignedNarrationError positions an ErrUnassignedNarration failure at the
// offending text run.
type UnassignedNarrationError struct {
	Line   int
	Column int
}

// Error implements the error interface.
func (e *UnassignedNarrationError) Error() string {
	return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, ErrUnassignedNarration)
}

// Unwrap lets callers match with errors.Is(err, ErrUnassignedNarration).
func (e *UnassignedNarrationError) Unwrap() error {
	return ErrUnassignedNarration
}
