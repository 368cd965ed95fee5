// Package layout turns an opened publication into a plan of page
// references and spreads. The plan follows the section model: every
// non-empty HTML spine item becomes exactly one PageRef spanning its
// full character range, and the renderer derives visual pages from CSS
// columns, reporting real counts asynchronously. Fixed-layout
// publications get the same shape with one pre-paginated page per item.
package layout

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"rishi/common"
	"rishi/content"
	"rishi/epub"
)

// Defaults applied by DefaultOptions and zero-valued option fields.
const (
	DefaultViewportWidth  = 1024
	DefaultViewportHeight = 768
	DefaultMinSpreadWidth = 900
)

// Options control plan computation for one viewport.
type Options struct {
	ViewportWidth  float64
	ViewportHeight float64
	Flow           common.FlowMode
	Spread         common.SpreadMode
	AvgCharWidth   float64
	LineHeight     float64
	ColumnGap      float64
	MinSpreadWidth float64
}

// DefaultOptions returns the options used when the host does not
// specify a viewport.
func DefaultOptions() Options {
	return Options{
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
		Flow:           common.FlowModePaginated,
		Spread:         common.SpreadModeAuto,
		AvgCharWidth:   8,
		LineHeight:     20,
		ColumnGap:      32,
		MinSpreadWidth: DefaultMinSpreadWidth,
	}
}

// PageRef is one display unit: a character span inside one spine item.
// Global indices number pages 0..TotalPages in traversal order.
type PageRef struct {
	GlobalIndex int
	SpineIndex  int
	StartChar   int
	EndChar     int
}

// SpreadEntry pairs up to two page indices shown side by side. Nil
// means the slot is empty.
type SpreadEntry struct {
	Left  *int
	Right *int
}

// Plan is the computed layout for one book and viewport.
type Plan struct {
	Pages            []PageRef
	PagesPerSpine    []int
	TotalPages       int
	Spreads          []SpreadEntry
	SpreadMode       common.SpreadMode
	ReadingDirection string
	IsFixedLayout    bool
}

// Compute builds the plan for doc under opts.
func Compute(doc *epub.Document, opts Options, log *zap.Logger) *Plan {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("layout")

	minSpreadWidth := opts.MinSpreadWidth
	if minSpreadWidth <= 0 {
		minSpreadWidth = DefaultMinSpreadWidth
	}
	spreadMode := opts.Spread
	if spreadMode == common.SpreadModeAuto {
		if opts.ViewportWidth >= minSpreadWidth {
			spreadMode = common.SpreadModeAlways
		} else {
			spreadMode = common.SpreadModeNone
		}
	}

	plan := &Plan{
		PagesPerSpine:    make([]int, 0, len(doc.Spine)),
		SpreadMode:       spreadMode,
		ReadingDirection: doc.PageProgressionDirection,
		IsFixedLayout:    doc.FixedLayout(),
	}

	global := 0
	for i := range doc.Spine {
		html, mime, err := doc.SpineContent(i)
		if err != nil {
			plan.PagesPerSpine = append(plan.PagesPerSpine, 0)
			continue
		}
		if !content.IsHTML(mime) {
			plan.PagesPerSpine = append(plan.PagesPerSpine, 0)
			continue
		}
		n := utf8.RuneCountInString(content.StripTags(html))
		if n == 0 {
			plan.PagesPerSpine = append(plan.PagesPerSpine, 0)
			continue
		}
		plan.Pages = append(plan.Pages, PageRef{
			GlobalIndex: global,
			SpineIndex:  i,
			StartChar:   0,
			EndChar:     n,
		})
		global++
		plan.PagesPerSpine = append(plan.PagesPerSpine, 1)
	}
	plan.TotalPages = global
	plan.Spreads = assembleSpreads(global, spreadMode)

	log.Debug("Layout computed",
		zap.Int("spine", len(doc.Spine)),
		zap.Int("pages", plan.TotalPages),
		zap.Stringer("spread", spreadMode),
		zap.Bool("fixed", plan.IsFixedLayout))
	return plan
}

// assembleSpreads pairs pages left-then-right in always mode with a
// trailing singleton when the count is odd; in none mode each page is
// alone on the right so the front-end centers it.
func assembleSpreads(total int, mode common.SpreadMode) []SpreadEntry {
	var spreads []SpreadEntry
	if mode == common.SpreadModeAlways {
		for i := 0; i < total; i += 2 {
			left := i
			entry := SpreadEntry{Left: &left}
			if i+1 < total {
				right := i + 1
				entry.Right = &right
			}
			spreads = append(spreads, entry)
		}
		return spreads
	}
	for i := 0; i < total; i++ {
		right := i
		spreads = append(spreads, SpreadEntry{Right: &right})
	}
	return spreads
}

// PageForOffset returns the page of the plan containing the given
// character offset of a spine item. For fixed-layout plans the first
// page of the spine item wins.
func (p *Plan) PageForOffset(spineIndex, offset int) (*PageRef, bool) {
	for i := range p.Pages {
		page := &p.Pages[i]
		if page.SpineIndex != spineIndex {
			continue
		}
		if p.IsFixedLayout {
			return page, true
		}
		if offset >= page.StartChar && offset < page.EndChar {
			return page, true
		}
	}
	if p.IsFixedLayout {
		for i := range p.Pages {
			if p.Pages[i].SpineIndex == spineIndex {
				return &p.Pages[i], true
			}
		}
	}
	return nil, false
}

// PagesBefore sums PagesPerSpine for all spine items before spineIndex.
func (p *Plan) PagesBefore(spineIndex int) int {
	count := 0
	for i, n := range p.PagesPerSpine {
		if i == spineIndex {
			break
		}
		count += n
	}
	return count
}
