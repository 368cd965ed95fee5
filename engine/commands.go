package engine

import (
	"encoding/base64"
	"fmt"

	"rishi/cfi"
	"rishi/content"
	"rishi/epub"
	"rishi/layout"
	"rishi/mapping"
)

// NavResult is the host view of a book's navigation: EPUB3 nav lists
// when the publication carries them, with the NCX tree converted as a
// fallback so every book exposes a TOC through one shape.
type NavResult struct {
	TOC                  []epub.NavItem
	PageList             []epub.NavItem
	Landmarks            []epub.NavItem
	PageListSpineIndices []int
}

// Nav assembles the navigation view of a book.
func (e *Engine) Nav(bookID uint64) (*NavResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return nil, err
	}

	out := &NavResult{}
	if nav, ok := book.Doc.NavData(); ok {
		out.TOC = nav.TOC
		out.PageList = nav.PageList
		out.Landmarks = nav.Landmarks
	}
	if len(out.TOC) == 0 {
		out.TOC = navItemsFromNCX(book.Doc.TOC)
	}
	for _, item := range out.PageList {
		if idx, ok := book.Doc.HrefToSpineIndex(item.Href); ok {
			out.PageListSpineIndices = append(out.PageListSpineIndices, idx)
		} else {
			out.PageListSpineIndices = append(out.PageListSpineIndices, -1)
		}
	}
	return out, nil
}

// navItemsFromNCX flattens the NavPoint tree into the NavItem shape.
// NCX content paths are container-absolute; hrefs stay package-relative
// in nav documents, so the absolute path is used verbatim here.
func navItemsFromNCX(points []epub.NavPoint) []epub.NavItem {
	out := make([]epub.NavItem, 0, len(points))
	for _, p := range points {
		out = append(out, epub.NavItem{
			Label:    p.Label,
			Href:     p.Content,
			Children: navItemsFromNCX(p.Children),
		})
	}
	return out
}

// PackagingResult carries rendition properties and the packaging
// extras: guides, bindings, collections.
type PackagingResult struct {
	Version                  string
	UniqueIdentifier         string
	PageProgressionDirection string
	RenditionLayout          string
	RenditionFlow            string
	RenditionOrientation     string
	RenditionSpread          string
	Guides                   []epub.GuideRef
	Bindings                 []epub.Binding
	Collections              []epub.Collection
}

// Packaging returns the packaging view of a book.
func (e *Engine) Packaging(bookID uint64) (*PackagingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return nil, err
	}
	d := book.Doc
	return &PackagingResult{
		Version:                  d.Version,
		UniqueIdentifier:         d.UniqueIdentifier,
		PageProgressionDirection: d.PageProgressionDirection,
		RenditionLayout:          d.RenditionLayout,
		RenditionFlow:            d.RenditionFlow,
		RenditionOrientation:     d.RenditionOrientation,
		RenditionSpread:          d.RenditionSpread,
		Guides:                   d.Guides,
		Bindings:                 d.Bindings,
		Collections:              d.Collections,
	}, nil
}

// CoverResult is the cover image ready for host transport.
type CoverResult struct {
	Mime       string
	DataBase64 string
}

// Cover returns the book's cover, rasterized when the source is SVG.
func (e *Engine) Cover(bookID uint64) (*CoverResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return nil, err
	}
	data, mime, err := book.Doc.Cover()
	if err != nil {
		return nil, err
	}
	return &CoverResult{Mime: mime, DataBase64: base64.StdEncoding.EncodeToString(data)}, nil
}

// ComputeLayout builds and stores the book's plan and emits
// rendition://rendered.
func (e *Engine) ComputeLayout(bookID uint64, opts layout.Options) (*layout.Plan, error) {
	e.mu.Lock()
	book, err := e.book(bookID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	plan := layout.Compute(book.Doc, opts, e.log)
	e.plans[bookID] = plan
	e.mu.Unlock()

	e.emitter.Emit(EventRendered, map[string]any{
		"bookId":        bookID,
		"totalPages":    plan.TotalPages,
		"spreadMode":    plan.SpreadMode.String(),
		"isFixedLayout": plan.IsFixedLayout,
	})
	return plan, nil
}

// DefaultLayoutOptions derives layout options from configuration.
func (e *Engine) DefaultLayoutOptions() layout.Options {
	opts := layout.DefaultOptions()
	if e.cfg.Layout.ViewportWidth > 0 {
		opts.ViewportWidth = e.cfg.Layout.ViewportWidth
	}
	if e.cfg.Layout.ViewportHeight > 0 {
		opts.ViewportHeight = e.cfg.Layout.ViewportHeight
	}
	if e.cfg.Layout.MinSpreadWidth > 0 {
		opts.MinSpreadWidth = e.cfg.Layout.MinSpreadWidth
	}
	return opts
}

// PagePayload is one renderable page: its reference and the content
// document prepared for display.
type PagePayload struct {
	Page layout.PageRef
	HTML string
}

// RenderPlanResult hands the front-end everything it needs for a
// window of pages.
type RenderPlanResult struct {
	TotalPages               int
	Pages                    []PagePayload
	ThemeCSS                 string
	Annotations              []AnnotationView
	PageProgressionDirection string
}

// AnnotationView mirrors the stored annotation for transport.
type AnnotationView struct {
	ID       string
	Kind     string
	CFIRange string
	Color    string
	Note     string
}

// RenderPlan returns count pages starting at startPage with inlined
// stylesheets, the active theme CSS and the book's annotations.
func (e *Engine) RenderPlan(bookID uint64, startPage, count int) (*RenderPlanResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return nil, err
	}

	out := &RenderPlanResult{
		TotalPages:               plan.TotalPages,
		ThemeCSS:                 e.themes.ActiveCSS(bookID),
		PageProgressionDirection: book.Doc.PageProgressionDirection,
	}
	if store, ok := e.annots[bookID]; ok {
		for _, a := range store.List() {
			out.Annotations = append(out.Annotations, AnnotationView{
				ID:       a.ID,
				Kind:     a.Kind.String(),
				CFIRange: a.CFIRange,
				Color:    a.Color,
				Note:     a.Note,
			})
		}
	}

	if startPage < 0 {
		startPage = 0
	}
	for i := startPage; i < startPage+count && i < len(plan.Pages); i++ {
		page := plan.Pages[i]
		html, err := e.inlinedSpineHTML(book, page.SpineIndex)
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, PagePayload{Page: page, HTML: html})
	}
	return out, nil
}

// PointToCFI maps a viewport point to its canonical CFI and announces
// the location change.
func (e *Engine) PointToCFI(bookID uint64, req mapping.PointRequest) (string, error) {
	e.mu.Lock()
	_, plan, err := e.bookAndPlan(bookID)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	out, err := mapping.PointToCFI(plan, req)
	if err != nil {
		return "", err
	}
	e.emitter.Emit(EventLocationChanged, map[string]any{"bookId": bookID, "cfi": out})
	return out, nil
}

// CFIToRects maps an already resolved range onto page rectangles.
func (e *Engine) CFIToRects(bookID uint64, req mapping.RangeRequest) ([]mapping.PageRects, error) {
	e.mu.Lock()
	_, plan, err := e.bookAndPlan(bookID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return mapping.RangeToRects(plan, req), nil
}

// CFIRangeToRects maps a range string to page-local rectangles.
func (e *Engine) CFIRangeToRects(bookID uint64, rangeStr string, vp mapping.Viewport) ([]mapping.PageRects, error) {
	e.mu.Lock()
	_, plan, err := e.bookAndPlan(bookID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return mapping.CFIRangeToRects(plan, rangeStr, vp)
}

// CFIToPageIndex resolves a CFI to a global page index.
func (e *Engine) CFIToPageIndex(bookID uint64, cfiStr string) (int, error) {
	e.mu.Lock()
	_, plan, err := e.bookAndPlan(bookID)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return mapping.CFIToPageIndex(plan, cfiStr)
}

// OffsetToCFI formats the canonical CFI of a (spine, offset) pair.
func (e *Engine) OffsetToCFI(bookID uint64, spine, offset int) (string, error) {
	e.mu.Lock()
	_, err := e.book(bookID)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	return cfi.FormatOffset(spine, offset), nil
}

// HrefToPageIndex resolves a content href to the global index of its
// first page.
func (e *Engine) HrefToPageIndex(bookID uint64, href string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return 0, err
	}
	spine, ok := book.Doc.HrefToSpineIndex(href)
	if !ok {
		return 0, fmt.Errorf("%w: href %q", mapping.ErrNotMappable, href)
	}
	page, ok := plan.PageForOffset(spine, 0)
	if !ok {
		return 0, fmt.Errorf("%w: href %q has no page", mapping.ErrNotMappable, href)
	}
	return page.GlobalIndex, nil
}

// SearchHit is one match with its canonical offset CFI and excerpt.
type SearchHit struct {
	CFI     string
	Excerpt string
}

// DefaultMaxSearchResults bounds result sets when the host passes no
// limit.
const DefaultMaxSearchResults = 50

// Search scans the HTML-stripped text of every HTML spine item in
// spine order. Each item contributes at most the remaining room under
// the limit, and iteration stops once the limit is reached.
func (e *Engine) Search(bookID uint64, query string, maxResults int) ([]SearchHit, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxSearchResults
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for i := range book.Doc.Spine {
		html, mime, err := book.Doc.SpineContent(i)
		if err != nil || !content.IsHTML(mime) {
			continue
		}
		text := content.NormalizeBreaks(html)
		for _, m := range content.FindAll(text, query, maxResults-len(hits)) {
			hits = append(hits, SearchHit{
				CFI:     cfi.FormatOffset(i, m.Offset),
				Excerpt: m.Excerpt,
			})
		}
		if len(hits) >= maxResults {
			break
		}
	}
	return hits, nil
}
