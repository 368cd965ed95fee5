// Package player drives the per-book playback cursor: a page and
// paragraph position plus a play state, emitting paragraph payloads the
// TTS pipeline consumes.
package player

import (
	"rishi/cfi"
	"rishi/common"
	"rishi/content"
	"rishi/epub"
	"rishi/layout"
)

// Paragraph is one playback unit: its text and the CFI range covering
// it inside the spine item.
type Paragraph struct {
	Text     string
	CFIRange string
}

// ParagraphsForPage extracts the playback paragraphs of a page:
// the spine item's HTML is split into paragraphs, their running
// character spans intersected with the page span, and each surviving
// slice wrapped into an epubcfi(range(...)) of offset CFIs.
func ParagraphsForPage(doc *epub.Document, plan *layout.Plan, pageIndex, minLength int) []Paragraph {
	if pageIndex < 0 || pageIndex >= len(plan.Pages) {
		return nil
	}
	page := plan.Pages[pageIndex]

	html, mime, err := doc.SpineContent(page.SpineIndex)
	if err != nil || !content.IsHTML(mime) {
		return nil
	}

	var out []Paragraph
	for _, p := range content.Paragraphs(html, minLength) {
		if p.End <= page.StartChar || p.Start >= page.EndChar {
			continue
		}
		start := max(p.Start, page.StartChar)
		end := min(p.End, page.EndChar)
		out = append(out, Paragraph{
			Text: p.Text,
			CFIRange: cfi.WrapRange(
				cfi.FormatOffset(page.SpineIndex, start),
				cfi.FormatOffset(page.SpineIndex, end),
			),
		})
	}
	return out
}

// Source supplies the player with paragraphs and bounds. The engine
// implements it over a book's document and layout plan.
type Source interface {
	Paragraphs(pageIndex int) []Paragraph
	TotalPages() int
}

// Player is one book's cursor state machine. It is not self-locking,
// the engine serializes access.
type Player struct {
	src Source

	PageIndex      int
	ParagraphIndex int
	State          common.PlayState
}

// New creates a stopped player at page 0, paragraph 0.
func New(src Source) *Player {
	return &Player{src: src, State: common.PlayStateStopped}
}

// Current returns the paragraph under the cursor.
func (p *Player) Current() (Paragraph, bool) {
	paras := p.src.Paragraphs(p.PageIndex)
	if p.ParagraphIndex < 0 || p.ParagraphIndex >= len(paras) {
		return Paragraph{}, false
	}
	return paras[p.ParagraphIndex], true
}

// Play switches to playing and returns the current paragraph for
// emission.
func (p *Player) Play() (Paragraph, bool) {
	p.State = common.PlayStatePlaying
	return p.Current()
}

// Pause switches to paused.
func (p *Player) Pause() {
	p.State = common.PlayStatePaused
}

// Resume switches back to playing and re-emits the current paragraph.
func (p *Player) Resume() (Paragraph, bool) {
	p.State = common.PlayStatePlaying
	return p.Current()
}

// Stop halts playback and rewinds the paragraph position.
func (p *Player) Stop() {
	p.State = common.PlayStateStopped
	p.ParagraphIndex = 0
}

// Next advances one paragraph, rolling over to the next page (bounded
// by the last page) when the current page runs out.
func (p *Player) Next() (Paragraph, bool) {
	p.ParagraphIndex++
	if _, ok := p.Current(); ok {
		return p.Current()
	}
	if p.PageIndex < p.src.TotalPages()-1 {
		p.PageIndex++
	}
	p.ParagraphIndex = 0
	return p.Current()
}

// Prev is the mirror of Next: step back one paragraph, rolling to the
// previous page (bounded by page 0) at the start of a page.
func (p *Player) Prev() (Paragraph, bool) {
	p.ParagraphIndex--
	if p.ParagraphIndex < 0 {
		if p.PageIndex > 0 {
			p.PageIndex--
		}
		p.ParagraphIndex = 0
	}
	return p.Current()
}

// SetPage jumps to a page and rewinds the paragraph position. The play
// state is unchanged.
func (p *Player) SetPage(page int) {
	p.PageIndex = page
	p.ParagraphIndex = 0
}
