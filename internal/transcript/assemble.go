// Package transcript assembles the session's ordered Segment list into the published,
// human-facing transcript: trailing-space normalization, sentence-boundary casing, and speaker
// label title-casing.
package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vitalscribe/core/internal/domain"
)

// terminalPunctuation marks a segment as ending a sentence, so the next segment's first
// alphabetic rune is capitalized.
func terminalPunctuation(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Assembler implements session.TranscriptAssembler.
type Assembler struct {
	titleCaser cases.Caser
}

// New constructs an Assembler.
func New() *Assembler {
	return &Assembler{titleCaser: cases.Title(language.English)}
}

// Assemble normalizes seg.Text's leading/trailing whitespace and, if the previous segment ended
// with terminal punctuation, capitalizes seg.Text's first alphabetic rune. The stored Segment.Text
// is not speaker-label-cased; that casing applies only at display time via FormatLine.
func (a *Assembler) Assemble(prev []domain.Segment, seg domain.Segment) domain.Segment {
	seg.Text = strings.TrimSpace(seg.Text)
	if seg.Text == "" {
		return seg
	}

	if len(prev) > 0 && endsWithTerminalPunctuation(prev[len(prev)-1].Text) {
		seg.Text = capitalizeFirstLetter(seg.Text)
	}

	return seg
}

// FormatLine renders one segment as a display line with a title-cased speaker label. It never
// mutates the stored Segment.
func (a *Assembler) FormatLine(seg domain.Segment) string {
	label := seg.SpeakerID
	if label == "" {
		label = "unknown speaker"
	}
	return a.titleCaser.String(label) + ": " + seg.Text
}

func endsWithTerminalPunctuation(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	r := []rune(trimmed)
	return terminalPunctuation(r[len(r)-1])
}

func capitalizeFirstLetter(text string) string {
	runes := []rune(text)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			return string(runes)
		}
		if !unicode.IsSpace(r) {
			// First non-space rune isn't a letter (e.g. quote, digit); leave as-is.
			return text
		}
	}
	return text
}
