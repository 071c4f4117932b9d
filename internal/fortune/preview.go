package fortune

import (
	"strings"
	"unicode"
)

// DefaultPreviewChars is the preview length used by Enrich.
const DefaultPreviewChars = 160

const (
	previewSeparator = " • "
	ellipsis         = "…"
)

// CreatePreview renders a one-line summary of parsed: every section as
// "Title: content", then "Tips: a, b" when tips exist, joined by " • ".
// Output longer than maxChars runes is cut to exactly maxChars runes, trailing
// whitespace at the cut is dropped and an ellipsis appended. maxChars <= 0 means
// DefaultPreviewChars.
func CreatePreview(parsed Parsed, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultPreviewChars
	}

	segments := make([]string, 0, len(parsed.Sections)+1)
	for _, s := range parsed.Sections {
		segments = append(segments, s.Title+": "+s.Content)
	}
	if len(parsed.Tips) > 0 {
		segments = append(segments, "Tips: "+strings.Join(parsed.Tips, ", "))
	}

	joined := strings.Join(nonEmpty(segments), previewSeparator)
	return Truncate(joined, maxChars)
}

// Truncate cuts s to maxChars runes and appends an ellipsis when it is longer.
func Truncate(s string, maxChars int) string {
	maxChars = max(maxChars, 0)
	if CountChars(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxChars]), unicode.IsSpace) + ellipsis
}
