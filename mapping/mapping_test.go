package mapping

import (
	"errors"
	"testing"

	"rishi/cfi"
	"rishi/epub/epubtest"
	"rishi/layout"
)

func planOf(t *testing.T, chapters []epubtest.Chapter, opts epubtest.Options) *layout.Plan {
	t.Helper()
	doc := epubtest.Build(t, chapters, opts)
	return layout.Compute(doc, layout.DefaultOptions(), nil)
}

func TestPointToCFI(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{{HTML: epubtest.Repeat(1000)}}, epubtest.Options{})

	t.Run("middle of page", func(t *testing.T) {
		got, err := PointToCFI(plan, PointRequest{
			SpineIndex: 0, X: 10, Y: 250,
			Viewport: Viewport{Width: 800, Height: 500},
		})
		if err != nil {
			t.Fatalf("PointToCFI() error = %v", err)
		}
		if got != cfi.FormatOffset(0, 500) {
			t.Errorf("PointToCFI() = %q, want %q", got, cfi.FormatOffset(0, 500))
		}
	})

	t.Run("top of page", func(t *testing.T) {
		got, err := PointToCFI(plan, PointRequest{SpineIndex: 0, Y: 0, Viewport: Viewport{Width: 800, Height: 500}})
		if err != nil {
			t.Fatal(err)
		}
		if got != "epubcfi(/0:0)" {
			t.Errorf("PointToCFI() = %q", got)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := PointToCFI(plan, PointRequest{SpineIndex: 0, Y: 600, Viewport: Viewport{Width: 800, Height: 500}})
		if !errors.Is(err, ErrNoPage) {
			t.Errorf("error = %v, want ErrNoPage", err)
		}
	})

	t.Run("zero height viewport", func(t *testing.T) {
		_, err := PointToCFI(plan, PointRequest{SpineIndex: 0, Y: 0, Viewport: Viewport{}})
		if !errors.Is(err, ErrNoPage) {
			t.Errorf("error = %v, want ErrNoPage", err)
		}
	})
}

func TestPointToCFIAcrossSpines(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: epubtest.Repeat(200)},
	}, epubtest.Options{})

	got, err := PointToCFI(plan, PointRequest{SpineIndex: 1, Y: 250, Viewport: Viewport{Width: 800, Height: 500}})
	if err != nil {
		t.Fatal(err)
	}
	if got != cfi.FormatOffset(1, 100) {
		t.Errorf("PointToCFI() = %q", got)
	}
}

func TestRangeToRects(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: epubtest.Repeat(200)},
	}, epubtest.Options{})

	t.Run("band inside one page", func(t *testing.T) {
		out := RangeToRects(plan, RangeRequest{
			StartSpine: 0, StartOffset: 25,
			EndSpine: 0, EndOffset: 75,
		})
		if len(out) != 1 {
			t.Fatalf("rects on %d pages", len(out))
		}
		r := out[0].Rects[0]
		if r.Y != 0.25 || r.Height != 0.5 || r.Width != 1 || r.X != 0 {
			t.Errorf("rect = %+v", r)
		}
	})

	t.Run("cross-spine range covers both pages", func(t *testing.T) {
		out := RangeToRects(plan, RangeRequest{
			StartSpine: 0, StartOffset: 50,
			EndSpine: 1, EndOffset: 100,
		})
		if len(out) != 2 {
			t.Fatalf("rects on %d pages, want 2", len(out))
		}
		if out[0].PageIndex != 0 || out[0].Rects[0].Y != 0.5 {
			t.Errorf("first page rect = %+v", out[0])
		}
		if out[1].PageIndex != 1 || out[1].Rects[0].Height != 0.5 {
			t.Errorf("second page rect = %+v", out[1])
		}
	})

	t.Run("zero length span keeps hairline height", func(t *testing.T) {
		out := RangeToRects(plan, RangeRequest{
			StartSpine: 0, StartOffset: 10,
			EndSpine: 0, EndOffset: 10,
		})
		if len(out) != 1 {
			t.Fatalf("rects = %+v", out)
		}
		if h := out[0].Rects[0].Height; h < MinRectHeight {
			t.Errorf("height = %v", h)
		}
	})

	t.Run("non-intersecting range", func(t *testing.T) {
		out := RangeToRects(plan, RangeRequest{
			StartSpine: 0, StartOffset: 100,
			EndSpine: 0, EndOffset: 100,
		})
		if len(out) != 0 {
			t.Errorf("rects = %+v", out)
		}
	})
}

func TestRangeToRectsFixedLayout(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(40)},
	}, epubtest.Options{RenditionLayout: "pre-paginated"})

	out := RangeToRects(plan, RangeRequest{StartSpine: 0, StartOffset: 5, EndSpine: 0, EndOffset: 10})
	if len(out) != 1 {
		t.Fatalf("rects = %+v", out)
	}
	r := out[0].Rects[0]
	if r.X != 0 || r.Y != 0 || r.Width != 1 || r.Height != 1 {
		t.Errorf("fixed layout rect = %+v, want full page", r)
	}
}

func TestCFIRangeToRects(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{{HTML: epubtest.Repeat(100)}}, epubtest.Options{})

	out, err := CFIRangeToRects(plan, "epubcfi(range(/0:20,/0:40))", Viewport{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("CFIRangeToRects() error = %v", err)
	}
	if len(out) != 1 || out[0].Rects[0].Y != 0.2 {
		t.Errorf("out = %+v", out)
	}

	if _, err := CFIRangeToRects(plan, "garbage", Viewport{}); !errors.Is(err, cfi.ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestCFIToPageIndex(t *testing.T) {
	plan := planOf(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: ""},
		{HTML: epubtest.Repeat(250)},
	}, epubtest.Options{})

	t.Run("resolves to containing page", func(t *testing.T) {
		idx, err := CFIToPageIndex(plan, cfi.FormatOffset(2, 10))
		if err != nil {
			t.Fatalf("CFIToPageIndex() error = %v", err)
		}
		if idx != 1 {
			t.Errorf("page index = %d, want 1", idx)
		}
	})

	t.Run("page start offset round trip", func(t *testing.T) {
		for _, page := range plan.Pages {
			idx, err := CFIToPageIndex(plan, cfi.FormatOffset(page.SpineIndex, page.StartChar))
			if err != nil {
				t.Fatalf("CFIToPageIndex() error = %v", err)
			}
			if idx != page.GlobalIndex {
				t.Errorf("round trip = %d, want %d", idx, page.GlobalIndex)
			}
		}
	})

	t.Run("empty spine item not mappable", func(t *testing.T) {
		if _, err := CFIToPageIndex(plan, cfi.FormatOffset(1, 0)); !errors.Is(err, ErrNotMappable) {
			t.Errorf("error = %v, want ErrNotMappable", err)
		}
	})

	t.Run("invalid cfi", func(t *testing.T) {
		if _, err := CFIToPageIndex(plan, "nope"); !errors.Is(err, cfi.ErrInvalid) {
			t.Errorf("error = %v, want ErrInvalid", err)
		}
	})
}
