// Package content implements the text measurement layer shared by
// layout, locations, search and the player: HTML tag stripping,
// paragraph extraction and sentence segmentation.
//
// StripTags is the canonical character-count basis for CFIs, pages and
// locations. Its exact output length is part of the persisted contract,
// any change invalidates stored CFIs.
package content

import (
	"strings"
	"unicode/utf8"
)

// StripTags removes everything between '<' and '>' and returns the
// remaining character data.
func StripTags(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inTag := false
	for _, ch := range s {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// CharCount returns the number of Unicode scalar values in the
// HTML-stripped form of s.
func CharCount(s string) int {
	return utf8.RuneCountInString(StripTags(s))
}

// breakReplacer rewrites paragraph and line break tags into newlines
// ahead of tag stripping.
var breakReplacer = strings.NewReplacer(
	"</p>", "\n\n",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
)

// NormalizeBreaks converts paragraph ends and line breaks to newlines
// and strips all remaining tags.
func NormalizeBreaks(html string) string {
	return StripTags(breakReplacer.Replace(html))
}

// IsHTML reports whether the mime names an (X)HTML content document.
func IsHTML(mime string) bool {
	return strings.Contains(strings.ToLower(mime), "html")
}
