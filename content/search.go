package content

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ExcerptRadius is the number of characters kept on each side of a
// match when building excerpts.
const ExcerptRadius = 30

// Match is one hit inside a single stripped text: the character offset
// of the match start and the surrounding excerpt.
type Match struct {
	Offset  int
	Excerpt string
}

var lowerCaser = cases.Lower(language.Und)

// FindAll returns every occurrence of query in text, case-insensitive
// under Unicode lowercasing. Offsets are indices into the rune sequence
// of the lowercased text; combining characters can drift positions by
// one, which callers accept (tests pin fixtures instead of re-deriving).
func FindAll(text, query string, limit int) []Match {
	if query == "" || limit == 0 {
		return nil
	}

	hay := []rune(lowerCaser.String(text))
	needle := []rune(lowerCaser.String(query))
	if len(needle) == 0 || len(needle) > len(hay) {
		return nil
	}

	var out []Match
	for i := 0; i+len(needle) <= len(hay); i++ {
		if !runesEqual(hay[i:i+len(needle)], needle) {
			continue
		}
		out = append(out, Match{Offset: i, Excerpt: excerpt(hay, i, len(needle))})
		if limit > 0 && len(out) >= limit {
			break
		}
		i += len(needle) - 1
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func excerpt(hay []rune, at, n int) string {
	lo := max(at-ExcerptRadius, 0)
	hi := min(at+n+ExcerptRadius, len(hay))
	return strings.TrimSpace(string(hay[lo:hi]))
}
