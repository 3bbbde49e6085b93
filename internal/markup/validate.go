package markup

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is one validation finding, positioned at the directive opener.
type Issue struct {
	Line    int
	Column  int
	Message string
}

// String formats the issue for author-facing output.
func (i Issue) String() string {
	return fmt.Sprintf("line %d, column %d: %s", i.Line, i.Column, i.Message)
}

// Validate checks every directive in the script and reports all findings
// instead of stopping at the first, so an author can fix a whole script in one
// pass. A clean script returns nil.
func Validate(script string) []Issue {
	var (
		issues  []Issue
		scanner = newPositionScanner(script)
	)

	for {
		openIndex := strings.Index(script[scanner.offset:], openMarker)
		if openIndex < 0 {
			return issues
		}

		scanner.advanceTo(scanner.offset + openIndex)

		openLine, openColumn := scanner.line, scanner.column

		bodyStart := scanner.offset + len(openMarker)

		closeIndex := strings.Index(script[bodyStart:], closeMarker)
		if closeIndex < 0 {
			// Nothing after an unterminated opener can be trusted.
			return append(issues, Issue{
				Line:    openLine,
				Column:  openColumn,
				Message: fmt.Sprintf("unterminated directive: missing %q", closeMarker),
			})
		}

		body := script[bodyStart : bodyStart+closeIndex]
		if strings.Contains(body, openMarker) {
			issues = append(issues, Issue{
				Line:    openLine,
				Column:  openColumn,
				Message: fmt.Sprintf("unbalanced braces: directive reopened before %q", closeMarker),
			})

			scanner.advanceTo(bodyStart + closeIndex + len(closeMarker))

			continue
		}

		_, parseErr := parseDirective(body, openLine, openColumn)
		if parseErr != nil {
			var directiveErr *ParseError
			if errors.As(parseErr, &directiveErr) {
				issues = append(issues, Issue{
					Line:    openLine,
					Column:  openColumn,
					Message: directiveErr.Reason,
				})
			}
		}

		scanner.advanceTo(bodyStart + closeIndex + len(closeMarker))
	}
}
