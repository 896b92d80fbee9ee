package openai

import "unicode/utf8"

const truncationMarker = "… [truncated]"

// truncateText bounds text to maxChars bytes, backing off to a rune
// boundary and appending a truncation marker when text was cut.
func truncateText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}
