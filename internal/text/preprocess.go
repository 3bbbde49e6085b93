// Package text cleans narration segments before they are sent to the speech
// synthesizer. The markup parser keeps text verbatim; this pass normalizes
// only what harms prosody: typographic punctuation the engine mispronounces,
// collapsed whitespace, and missing sentence endings.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const whitespaceRegexPattern = `\s+`

// Typographic characters normalized for the synthesizer.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor normalizes narration text for synthesis. Construct once and
// reuse; the compiled pattern and replacers are shared across renders.
type Preprocessor struct {
	whitespacePattern    *regexp.Regexp
	punctuationReplacer  *strings.Replacer
	abbreviationReplacer *strings.Replacer
}

// NewPreprocessor creates a preprocessor with compiled patterns and replacers.
func NewPreprocessor() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
	}

	punctuation := []string{
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	}

	return &Preprocessor{
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		punctuationReplacer:  strings.NewReplacer(punctuation...),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
	}
}

// CleanNarration normalizes one narration segment: abbreviations expanded,
// whitespace collapsed, typographic punctuation flattened, and a final
// sentence ending ensured so the synthesizer does not trail off mid-phrase.
func (p *Preprocessor) CleanNarration(segment string) string {
	cleaned := p.abbreviationReplacer.Replace(segment)
	cleaned = p.whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = p.punctuationReplacer.Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	return ensureSentenceEnding(cleaned)
}

// ensureSentenceEnding appends a period unless the text already closes with
// sentence punctuation.
func ensureSentenceEnding(segment string) string {
	if segment == "" {
		return segment
	}

	lastRune, _ := utf8.DecodeLastRuneInString(segment)

	switch lastRune {
	case '.', '!', '?':
		return segment
	}

	if unicode.IsPunct(lastRune) {
		return segment
	}

	return segment + "."
}
