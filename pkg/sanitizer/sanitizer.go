package sanitizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxNotesLength = 500

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
	reIdentifier  = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)
	reLineSpacing = regexp.MustCompile(`[ \t]+`)
)

func truncateRunes(limit int) Strategy {
	return func(s string) string {
		if utf8.RuneCountInString(s) <= limit {
			return s
		}
		return strings.TrimSpace(string([]rune(s)[:limit]))
	}
}

// SanitizeNotes keeps line breaks but drops control characters, collapses runs
// of spaces and blank lines, and caps the length.
func SanitizeNotes(input string) string {
	p := Pipeline{
		func(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") },
		StripControl,
		func(s string) string { return reLineSpacing.ReplaceAllString(s, " ") },
		func(s string) string { return reBlankLines.ReplaceAllString(s, "\n\n") },
		strings.TrimSpace,
		truncateRunes(MaxNotesLength),
	}
	return p.Apply(input)
}

// SanitizeIdentifier trims an opaque identifier and removes characters that
// never appear in trainer, user or booking IDs.
func SanitizeIdentifier(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reIdentifier.ReplaceAllString(s, "") },
	}
	return p.Apply(input)
}

func SanitizeName(input string) string {
	return Pipeline{StripControl, TrimAndNormalize}.Apply(input)
}
