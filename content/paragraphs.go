package content

import (
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// DefaultMinParagraphLength filters out headings, captions and other
// fragments that make poor playback units.
const DefaultMinParagraphLength = 50

// Paragraph is one playback unit with its character span in the
// HTML-stripped text of the spine item. Spans use the same running
// index CFIs use: cumulative character count plus one per newline
// separating kept paragraphs.
type Paragraph struct {
	Text  string
	Start int
	End   int
}

// Paragraphs splits spine item HTML into playback paragraphs.
// Breaks are normalized to newlines, tags stripped, fragments trimmed;
// empty fragments and those shorter than minLength are dropped before
// the running index is computed.
func Paragraphs(html string, minLength int) []Paragraph {
	if minLength <= 0 {
		minLength = DefaultMinParagraphLength
	}

	var kept []string
	for _, part := range strings.Split(NormalizeBreaks(html), "\n") {
		part = strings.TrimSpace(part)
		if part == "" || utf8.RuneCountInString(part) < minLength {
			continue
		}
		kept = append(kept, part)
	}

	out := make([]Paragraph, 0, len(kept))
	cum := 0
	for _, part := range kept {
		n := utf8.RuneCountInString(part)
		out = append(out, Paragraph{Text: part, Start: cum, End: cum + n})
		cum += n + 1
	}
	return out
}

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	// english ships its training data compiled in; errors only on a
	// corrupted build.
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		panic(err)
	}
	sentenceTokenizer = t
}

// Sentences segments a paragraph into sentences for TTS chunking.
func Sentences(text string) []string {
	toks := sentenceTokenizer.Tokenize(text)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		s := strings.TrimSpace(tok.Text)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
