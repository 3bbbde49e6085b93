package timeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/markup"
	"github.com/FatStinkyPanda/talk2me-render/internal/params"
)

// Voice directives accept one flag beyond the shared grammar: chapter marks
// the segment as a chapter start.
const voiceFlagChapter = "chapter"

// Builder walks a parsed node stream and emits a Timeline. Asset directives
// are resolved against the store and global defaults as they are encountered,
// so a misconfigured script fails before any synthesis is requested.
type Builder struct {
	assets   core.AssetStore
	defaults core.AudioDefaults
	log      *logger.Logger
}

// NewBuilder creates a timeline builder.
func NewBuilder(assets core.AssetStore, defaults core.AudioDefaults, log *logger.Logger) *Builder {
	return &Builder{
		assets:   assets,
		defaults: defaults,
		log:      log,
	}
}

// buildState is the explicit state threaded through the single forward pass:
// the pending narration segment and the active background track.
type buildState struct {
	timeline *Timeline
	// pending is the open narration segment. It joins timeline.Segments when
	// its first text arrives; a voice change before any text discards it
	// silently.
	pending *Segment
	// pendingPlaced reports whether pending is already in timeline.Segments.
	pendingPlaced bool
	// activeBackground is the unstopped bg_start event, if any.
	activeBackground *Event
}

// Build consumes the node stream and produces a timeline with
// segment-relative anchors. Narration durations are unknown at this stage;
// the duration resolution pass converts anchors to absolute offsets.
func (b *Builder) Build(ctx context.Context, nodes []markup.Node) (*Timeline, error) {
	state := &buildState{
		timeline: &Timeline{
			Segments:     nil,
			Events:       nil,
			TotalSamples: 0,
			SampleRate:   0,
			Warnings:     nil,
		},
		pending:          nil,
		pendingPlaced:    false,
		activeBackground: nil,
	}

	for _, node := range nodes {
		var nodeErr error

		switch node.Kind {
		case markup.KindText:
			nodeErr = b.handleText(state, node)
		case markup.KindVoice:
			nodeErr = b.handleVoice(state, node)
		case markup.KindSfx:
			nodeErr = b.handleSfx(ctx, state, node)
		case markup.KindBackground:
			nodeErr = b.handleBackground(ctx, state, node)
		}

		if nodeErr != nil {
			return nil, nodeErr
		}
	}

	// Every started background track gets a matching stop, at the latest at
	// the timeline's end.
	if state.activeBackground != nil {
		b.emitBackgroundStop(state, endAnchor(state))
	}

	return state.timeline, nil
}

// handleText appends a run to the open segment, placing the segment into the
// timeline on its first text. Text with no voice set is an author error.
func (b *Builder) handleText(state *buildState, node markup.Node) error {
	if state.pending == nil {
		return &UnassignedNarrationError{Line: node.Line, Column: node.Column}
	}

	if !state.pendingPlaced {
		state.pending.Text = node.Text
		state.timeline.Segments = append(state.timeline.Segments, state.pending)
		state.pendingPlaced = true

		return nil
	}

	state.pending.Text += " " + node.Text

	return nil
}

// handleVoice closes the current segment (an empty one closes silently) and
// opens a new segment for the directive's voice.
func (b *Builder) handleVoice(state *buildState, node markup.Node) error {
	chapter, chapterErr := voiceChapterFlag(node)
	if chapterErr != nil {
		return chapterErr
	}

	state.pending = &Segment{
		VoiceID:     node.ID,
		Text:        "",
		Chapter:     chapter,
		Line:        node.Line,
		Column:      node.Column,
		Clip:        core.Clip{SampleRate: 0, Samples: nil},
		StartSample: 0,
	}
	state.pendingPlaced = false

	return nil
}

// handleSfx emits a sound-effect event anchored before the next narration
// segment starts, or at the timeline's end when none follows.
func (b *Builder) handleSfx(ctx context.Context, state *buildState, node markup.Node) error {
	descriptor, clip, lookupErr := b.lookupAsset(ctx, node, core.AssetKindSfx)
	if lookupErr != nil {
		return lookupErr
	}

	resolved, warnings, resolveErr := params.Resolve(
		params.CategorySfx, &descriptor, b.defaults, node.Flags, node.Raw,
	)
	if resolveErr != nil {
		return resolveErr
	}

	b.recordWarnings(state, warnings)

	state.timeline.Events = append(state.timeline.Events, &Event{
		Kind:          EventSfx,
		AssetID:       node.ID,
		Descriptor:    descriptor,
		Clip:          clip,
		Params:        resolved,
		Anchor:        endAnchor(state),
		Line:          node.Line,
		Column:        node.Column,
		OffsetSamples: 0,
	})

	return nil
}

// handleBackground starts a new background track, replacing any active one, or
// stops the active track for the reserved id "stop".
func (b *Builder) handleBackground(ctx context.Context, state *buildState, node markup.Node) error {
	if node.IsBackgroundStop() {
		if state.activeBackground == nil {
			// Authors may stop defensively; nothing to do.
			return nil
		}

		b.emitBackgroundStop(state, stopAnchor(state))

		return nil
	}

	descriptor, clip, lookupErr := b.lookupAsset(ctx, node, core.AssetKindBackground)
	if lookupErr != nil {
		return lookupErr
	}

	resolved, warnings, resolveErr := params.Resolve(
		params.CategoryBackground, &descriptor, b.defaults, node.Flags, node.Raw,
	)
	if resolveErr != nil {
		return resolveErr
	}

	b.recordWarnings(state, warnings)

	// One active background track at a time: a new track implies a stop for
	// the previous one at the same position.
	if state.activeBackground != nil {
		b.emitBackgroundStop(state, stopAnchor(state))
	}

	start := &Event{
		Kind:          EventBackgroundStart,
		AssetID:       node.ID,
		Descriptor:    descriptor,
		Clip:          clip,
		Params:        resolved,
		Anchor:        endAnchor(state),
		Line:          node.Line,
		Column:        node.Column,
		OffsetSamples: 0,
	}

	state.timeline.Events = append(state.timeline.Events, start)
	state.activeBackground = start

	return nil
}

// emitBackgroundStop closes the active background track with a stop event at
// the given anchor.
func (b *Builder) emitBackgroundStop(state *buildState, anchor Anchor) {
	active := state.activeBackground

	state.timeline.Events = append(state.timeline.Events, &Event{
		Kind:          EventBackgroundStop,
		AssetID:       active.AssetID,
		Descriptor:    active.Descriptor,
		Clip:          core.Clip{SampleRate: 0, Samples: nil},
		Params:        active.Params,
		Anchor:        anchor,
		Line:          active.Line,
		Column:        active.Column,
		OffsetSamples: 0,
	})
	state.activeBackground = nil
}

// lookupAsset fetches a directive's asset and checks it is registered under
// the expected kind.
func (b *Builder) lookupAsset(
	ctx context.Context,
	node markup.Node,
	kind core.AssetKind,
) (core.AssetDescriptor, core.Clip, error) {
	descriptor, clip, lookupErr := b.assets.Lookup(ctx, node.ID)
	if lookupErr != nil {
		return core.AssetDescriptor{}, core.Clip{}, fmt.Errorf(
			"directive %s (line %d, column %d): %w", node.Raw, node.Line, node.Column, lookupErr,
		)
	}

	if descriptor.Kind != kind {
		return core.AssetDescriptor{}, core.Clip{}, fmt.Errorf(
			"directive %s (line %d, column %d): %w: registered as %q",
			node.Raw, node.Line, node.Column, ErrAssetKindMismatch, descriptor.Kind,
		)
	}

	return descriptor, clip, nil
}

func (b *Builder) recordWarnings(state *buildState, warnings []params.Warning) {
	for _, warning := range warnings {
		b.log.Warn("range clamped: %s", warning)
	}

	state.timeline.Warnings = append(state.timeline.Warnings, warnings...)
}

// endAnchor anchors before the next narration segment to start, which is the
// timeline's end when no further segment follows.
func endAnchor(state *buildState) Anchor {
	return Anchor{Segment: len(state.timeline.Segments), Placement: PlacementBefore}
}

// stopAnchor anchors a background stop after the most recent narration
// segment, or at position zero when no narration has occurred yet.
func stopAnchor(state *buildState) Anchor {
	if len(state.timeline.Segments) == 0 {
		return Anchor{Segment: 0, Placement: PlacementBefore}
	}

	return Anchor{Segment: len(state.timeline.Segments) - 1, Placement: PlacementAfter}
}

// voiceChapterFlag coerces the optional chapter flag on a voice directive.
// Any other flag is rejected.
func voiceChapterFlag(node markup.Node) (bool, error) {
	for flag, value := range node.Flags {
		if flag == voiceFlagChapter {
			continue
		}

		return false, &params.ConfigError{
			Directive: node.Raw,
			Flag:      flag,
			Value:     value,
			Reason:    "not a valid flag for voice directives",
		}
	}

	value, hasChapter := node.Flags[voiceFlagChapter]
	if !hasChapter {
		return false, nil
	}

	chapter, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return false, &params.ConfigError{
			Directive: node.Raw,
			Flag:      voiceFlagChapter,
			Value:     value,
			Reason:    "not a boolean",
		}
	}

	return chapter, nil
}
