// Package mapping converts between viewport points, CFIs, page indices
// and page-local rectangles over a computed layout plan. Coordinates in
// rectangles are normalized page units in 0..1.
package mapping

import (
	"errors"
	"fmt"
	"math"

	"rishi/cfi"
	"rishi/layout"
)

// ErrNoPage indicates a point that does not land on any page.
var ErrNoPage = errors.New("mapping: no page found")

// ErrNotMappable indicates a CFI that does not resolve to a page.
var ErrNotMappable = errors.New("mapping: cfi not mappable")

// MinRectHeight keeps zero-length spans visible as hairline rects.
const MinRectHeight = 0.002

// Viewport is the renderer's visible area in CSS pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// PointRequest locates a point inside a spine item's rendered column.
type PointRequest struct {
	SpineIndex int
	X          float64
	Y          float64
	Viewport   Viewport
}

// Rect is one normalized rectangle inside a page.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PageRects groups the rectangles a range produces on one page.
type PageRects struct {
	PageIndex int
	Rects     []Rect
}

// PointToCFI derives the character offset under a viewport point and
// returns its canonical offset CFI. Vertical pagination is assumed,
// page height equals viewport height.
func PointToCFI(plan *layout.Plan, req PointRequest) (string, error) {
	if req.Viewport.Height <= 0 {
		return "", fmt.Errorf("%w: non-positive viewport height", ErrNoPage)
	}
	pageInSpine := int(math.Max(math.Floor(req.Y/req.Viewport.Height), 0))
	globalIdx := plan.PagesBefore(req.SpineIndex) + pageInSpine
	if globalIdx >= len(plan.Pages) {
		return "", fmt.Errorf("%w: spine %d page %d", ErrNoPage, req.SpineIndex, pageInSpine)
	}
	page := plan.Pages[globalIdx]

	pageHeight := math.Max(req.Viewport.Height, 1)
	relY := math.Mod(req.Y, pageHeight) / pageHeight
	span := max(page.EndChar-page.StartChar, 1)
	within := int(math.Floor(relY * float64(span)))
	return cfi.FormatOffset(req.SpineIndex, page.StartChar+within), nil
}

// RangeRequest maps a resolved CFI range onto page rectangles.
type RangeRequest struct {
	StartSpine  int
	StartOffset int
	EndSpine    int
	EndOffset   int
	Viewport    Viewport
}

// RangeToRects intersects the range with every page whose spine index
// falls inside it. Fixed-layout pages and pages with unknown spans
// contribute one full-page rectangle; otherwise the clipped character
// span becomes a vertical band.
func RangeToRects(plan *layout.Plan, req RangeRequest) []PageRects {
	var out []PageRects
	for _, page := range plan.Pages {
		if page.SpineIndex < req.StartSpine || page.SpineIndex > req.EndSpine {
			continue
		}
		pageLen := page.EndChar - page.StartChar
		if plan.IsFixedLayout || pageLen <= 0 {
			out = append(out, PageRects{
				PageIndex: page.GlobalIndex,
				Rects:     []Rect{{X: 0, Y: 0, Width: 1, Height: 1}},
			})
			continue
		}

		startChar := page.StartChar
		if page.SpineIndex == req.StartSpine {
			startChar = req.StartOffset
		}
		endChar := page.EndChar
		if page.SpineIndex == req.EndSpine {
			endChar = req.EndOffset
		}
		if endChar < page.StartChar || startChar >= page.EndChar {
			continue
		}
		clampedStart := max(startChar, page.StartChar)
		clampedEnd := min(endChar, page.EndChar)
		if clampedEnd < clampedStart {
			continue
		}

		startY := float64(clampedStart-page.StartChar) / float64(pageLen)
		endY := float64(clampedEnd-page.StartChar) / float64(pageLen)
		out = append(out, PageRects{
			PageIndex: page.GlobalIndex,
			Rects: []Rect{{
				X:      0,
				Y:      startY,
				Width:  1,
				Height: math.Max(endY-startY, MinRectHeight),
			}},
		})
	}
	return out
}

// CFIRangeToRects parses a range string and maps it to rectangles.
func CFIRangeToRects(plan *layout.Plan, rangeStr string, vp Viewport) ([]PageRects, error) {
	ss, so, es, eo, ok := cfi.ParseRangeToOffsets(rangeStr)
	if !ok {
		return nil, fmt.Errorf("%w: %q", cfi.ErrInvalid, rangeStr)
	}
	return RangeToRects(plan, RangeRequest{
		StartSpine:  ss,
		StartOffset: so,
		EndSpine:    es,
		EndOffset:   eo,
		Viewport:    vp,
	}), nil
}

// CFIToPageIndex resolves a CFI to the global index of the page
// containing its character offset.
func CFIToPageIndex(plan *layout.Plan, cfiStr string) (int, error) {
	spine, offset, ok := cfi.ParseToOffset(cfiStr)
	if !ok {
		return 0, fmt.Errorf("%w: %q", cfi.ErrInvalid, cfiStr)
	}
	page, ok := plan.PageForOffset(spine, offset)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotMappable, cfiStr)
	}
	return page.GlobalIndex, nil
}
