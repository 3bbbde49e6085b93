package markup

import (
	"strings"
)

// Markers of the directive grammar.
const (
	openMarker  = "{{{"
	closeMarker = "}}}"
)

// Separators inside a directive body.
const (
	typeSeparator = ":"
	flagSeparator = ","
)

// Parse tokenizes a raw UTF-8 script into an ordered node stream in one
// forward pass. Adjacent text is coalesced into a single run per gap between
// directives. The first malformed directive aborts the whole parse: scripts
// are short files and a partial render of a broken script is not useful.
//
// The grammar defines no escape for a literal "{{{" inside narration, so any
// occurrence starts a directive and fails the parse if its body is invalid.
func Parse(script string) ([]Node, error) {
	var (
		nodes   []Node
		scanner = newPositionScanner(script)
	)

	for {
		openIndex := strings.Index(script[scanner.offset:], openMarker)
		if openIndex < 0 {
			nodes = appendTextNode(nodes, scanner, len(script))

			return nodes, nil
		}

		openOffset := scanner.offset + openIndex

		nodes = appendTextNode(nodes, scanner, openOffset)

		scanner.advanceTo(openOffset)

		openLine, openColumn := scanner.line, scanner.column

		bodyStart := openOffset + len(openMarker)

		closeIndex := strings.Index(script[bodyStart:], closeMarker)
		if closeIndex < 0 {
			return nil, newParseError(openLine, openColumn, "unterminated directive: missing %q", closeMarker)
		}

		body := script[bodyStart : bodyStart+closeIndex]
		if strings.Contains(body, openMarker) {
			return nil, newParseError(openLine, openColumn, "unbalanced braces: directive reopened before %q", closeMarker)
		}

		node, parseErr := parseDirective(body, openLine, openColumn)
		if parseErr != nil {
			return nil, parseErr
		}

		nodes = append(nodes, node)

		scanner.advanceTo(bodyStart + closeIndex + len(closeMarker))
	}
}

// appendTextNode flushes the text between the scanner position and end as one
// coalesced run. Whitespace touching the surrounding directives is trimmed;
// the run is dropped when nothing remains.
func appendTextNode(nodes []Node, scanner *positionScanner, end int) []Node {
	raw := scanner.source[scanner.offset:end]

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nodes
	}

	leading := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))

	line, column := scanner.positionAt(scanner.offset + leading)

	return append(nodes, Node{
		Kind:   KindText,
		Line:   line,
		Column: column,
		Text:   trimmed,
		ID:     "",
		Flags:  nil,
		Raw:    "",
	})
}

// parseDirective validates and splits one directive body (the text between the
// triple braces) into a typed node with raw flag strings.
func parseDirective(body string, line, column int) (Node, error) {
	raw := openMarker + body + closeMarker

	directiveType, remainder, found := strings.Cut(body, typeSeparator)
	if !found {
		return Node{}, newParseError(line, column, "directive %q is missing the %q separator", raw, typeSeparator)
	}

	directiveType = strings.ToLower(strings.TrimSpace(directiveType))

	switch directiveType {
	case TypeVoice, TypeSfx, TypeBackground:
	default:
		return Node{}, newParseError(line, column, "unknown directive type %q in %q", directiveType, raw)
	}

	parts := strings.Split(remainder, flagSeparator)

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return Node{}, newParseError(line, column, "directive %q has an empty identifier", raw)
	}

	flags, flagsErr := parseFlags(parts[1:], raw, line, column)
	if flagsErr != nil {
		return Node{}, flagsErr
	}

	return Node{
		Kind:   kindForType(directiveType),
		Line:   line,
		Column: column,
		Text:   "",
		ID:     id,
		Flags:  flags,
		Raw:    raw,
	}, nil
}

// parseFlags splits comma-separated key:value pairs. Values stay raw strings
// at this stage; the resolver owns type coercion. A repeated key keeps the
// last occurrence.
func parseFlags(pairs []string, raw string, line, column int) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	flags := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, typeSeparator)
		if !found {
			return nil, newParseError(line, column, "flag %q in %q is not a key:value pair", strings.TrimSpace(pair), raw)
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, newParseError(line, column, "flag with empty key in %q", raw)
		}

		flags[key] = strings.TrimSpace(value)
	}

	return flags, nil
}

func kindForType(directiveType string) NodeKind {
	switch directiveType {
	case TypeVoice:
		return KindVoice
	case TypeSfx:
		return KindSfx
	default:
		return KindBackground
	}
}

// positionScanner tracks the line and column of a byte offset while the parser
// walks forward through the script.
type positionScanner struct {
	source string
	offset int
	line   int
	column int
}

func newPositionScanner(source string) *positionScanner {
	return &positionScanner{
		source: source,
		offset: 0,
		line:   1,
		column: 1,
	}
}

// advanceTo moves the scanner forward to the given byte offset, updating the
// line and column counters over the consumed bytes.
func (s *positionScanner) advanceTo(offset int) {
	for ; s.offset < offset; s.offset++ {
		if s.source[s.offset] == '\n' {
			s.line++
			s.column = 1
		} else {
			s.column++
		}
	}
}

// positionAt reports the line and column of a byte offset at or ahead of the
// scanner without moving it.
func (s *positionScanner) positionAt(offset int) (line, column int) {
	line, column = s.line, s.column

	for i := s.offset; i < offset; i++ {
		if s.source[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}

	return line, column
}
