// Package markup parses the triple-brace audiobook directive syntax into an
// ordered stream of script nodes.
//
// Syntax:
//
//	{{{voice:narrator}}}
//	{{{sfx:thunder,volume:0.8,fade_in:0.5}}}
//	{{{bg:rain,duck_speech:true}}}
//	{{{bg:stop}}}
package markup

import (
	"errors"
	"fmt"
	"strings"
)

// Directive type names accepted by the grammar.
const (
	TypeVoice      = "voice"
	TypeSfx        = "sfx"
	TypeBackground = "bg"
)

// BackgroundStopID is the reserved background-track identifier that stops the
// active track instead of starting a new one.
const BackgroundStopID = "stop"

// ErrMalformedMarkup is the sentinel wrapped by every ParseError.
var ErrMalformedMarkup = errors.New("malformed markup")

// NodeKind discriminates the script node variants.
type NodeKind int

const (
	// KindText is a run of narration text between directives.
	KindText NodeKind = iota
	// KindVoice switches the active narration voice.
	KindVoice
	// KindSfx triggers a one-shot sound effect.
	KindSfx
	// KindBackground starts or stops a background track.
	KindBackground
)

// String returns the directive type name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return TypeVoice
	case KindSfx:
		return TypeSfx
	case KindBackground:
		return TypeBackground
	default:
		return "unknown"
	}
}

// Node is one element of the parsed script stream: either a text run or a
// directive with its identifier and raw flag strings. Nodes are immutable once
// produced and consumed linearly by the timeline builder.
type Node struct {
	Kind   NodeKind
	Line   int
	Column int
	// Text is set for KindText nodes only, with the whitespace that touched
	// the surrounding directives trimmed and interior whitespace verbatim.
	Text string
	// ID is the directive identifier: a voice name, an asset id, or the
	// reserved background id "stop".
	ID string
	// Flags maps raw flag keys to raw string values. Typing happens later in
	// the resolver.
	Flags map[string]string
	// Raw is the directive exactly as written, kept for error reporting.
	Raw string
}

// IsBackgroundStop reports whether the node is the bg:stop directive.
func (n Node) IsBackgroundStop() bool {
	return n.Kind == KindBackground && strings.EqualFold(n.ID, BackgroundStopID)
}

// ParseError describes a malformed directive. It carries the position of the
// directive opener so the author can find the offending markup.
type ParseError struct {
	Line   int
	Column int
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Reason)
}

// Unwrap lets callers match any parse failure with errors.Is(err,
// ErrMalformedMarkup).
func (e *ParseError) Unwrap() error {
	return ErrMalformedMarkup
}

func newParseError(line, column int, format string, args ...any) *ParseError {
	return &ParseError{
		Line:   line,
		Column: column,
		Reason: fmt.Sprintf(format, args...),
	}
}
