package layout

import (
	"testing"

	"rishi/common"
	"rishi/epub/epubtest"
)

func TestComputeReflowable(t *testing.T) {
	doc := epubtest.Build(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: ""},
		{HTML: epubtest.Repeat(250)},
	}, epubtest.Options{})

	plan := Compute(doc, DefaultOptions(), nil)

	if plan.TotalPages != 2 {
		t.Fatalf("TotalPages = %d, want 2", plan.TotalPages)
	}
	wantPer := []int{1, 0, 1}
	for i, n := range wantPer {
		if plan.PagesPerSpine[i] != n {
			t.Errorf("PagesPerSpine[%d] = %d, want %d", i, plan.PagesPerSpine[i], n)
		}
	}
	if p := plan.Pages[0]; p.GlobalIndex != 0 || p.SpineIndex != 0 || p.StartChar != 0 || p.EndChar != 100 {
		t.Errorf("pages[0] = %+v", p)
	}
	if p := plan.Pages[1]; p.GlobalIndex != 1 || p.SpineIndex != 2 || p.EndChar != 250 {
		t.Errorf("pages[1] = %+v", p)
	}
	if plan.IsFixedLayout {
		t.Error("IsFixedLayout = true")
	}
}

func TestComputeSkipsNonHTML(t *testing.T) {
	doc := epubtest.Build(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(10)},
		{HTML: "body { color: red }", Mime: "text/css"},
	}, epubtest.Options{})

	plan := Compute(doc, DefaultOptions(), nil)
	if plan.TotalPages != 1 || plan.PagesPerSpine[1] != 0 {
		t.Errorf("plan = total %d, per-spine %v", plan.TotalPages, plan.PagesPerSpine)
	}
}

func TestComputeFixedLayout(t *testing.T) {
	doc := epubtest.Build(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(40)},
		{HTML: epubtest.Repeat(60)},
	}, epubtest.Options{RenditionLayout: "pre-paginated", Direction: "rtl"})

	plan := Compute(doc, DefaultOptions(), nil)
	if !plan.IsFixedLayout {
		t.Fatal("IsFixedLayout = false")
	}
	if plan.TotalPages != 2 {
		t.Errorf("TotalPages = %d", plan.TotalPages)
	}
	if plan.ReadingDirection != "rtl" {
		t.Errorf("ReadingDirection = %q", plan.ReadingDirection)
	}
}

func TestSpreadResolution(t *testing.T) {
	chapters := []epubtest.Chapter{
		{HTML: epubtest.Repeat(10)}, {HTML: epubtest.Repeat(10)},
		{HTML: epubtest.Repeat(10)}, {HTML: epubtest.Repeat(10)},
		{HTML: epubtest.Repeat(10)},
	}
	doc := epubtest.Build(t, chapters, epubtest.Options{})

	t.Run("always pairs with trailing singleton", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Spread = common.SpreadModeAlways
		plan := Compute(doc, opts, nil)
		if len(plan.Spreads) != 3 {
			t.Fatalf("spreads = %d", len(plan.Spreads))
		}
		if *plan.Spreads[0].Left != 0 || *plan.Spreads[0].Right != 1 {
			t.Errorf("spreads[0] = %+v", plan.Spreads[0])
		}
		last := plan.Spreads[2]
		if *last.Left != 4 || last.Right != nil {
			t.Errorf("spreads[2] = {%v %v}", last.Left, last.Right)
		}
	})

	t.Run("none centers each page", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Spread = common.SpreadModeNone
		plan := Compute(doc, opts, nil)
		if len(plan.Spreads) != 5 {
			t.Fatalf("spreads = %d", len(plan.Spreads))
		}
		for i, s := range plan.Spreads {
			if s.Left != nil || *s.Right != i {
				t.Errorf("spreads[%d] = {%v %v}", i, s.Left, s.Right)
			}
		}
	})

	t.Run("auto by viewport width", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ViewportWidth = 1200
		plan := Compute(doc, opts, nil)
		if plan.SpreadMode != common.SpreadModeAlways {
			t.Errorf("wide viewport SpreadMode = %v", plan.SpreadMode)
		}

		opts.ViewportWidth = 600
		plan = Compute(doc, opts, nil)
		if plan.SpreadMode != common.SpreadModeNone {
			t.Errorf("narrow viewport SpreadMode = %v", plan.SpreadMode)
		}
	})

	t.Run("every page appears exactly once", func(t *testing.T) {
		for _, mode := range []common.SpreadMode{common.SpreadModeNone, common.SpreadModeAlways} {
			opts := DefaultOptions()
			opts.Spread = mode
			plan := Compute(doc, opts, nil)
			seen := make(map[int]int)
			for _, s := range plan.Spreads {
				if s.Left != nil {
					seen[*s.Left]++
				}
				if s.Right != nil {
					seen[*s.Right]++
				}
			}
			if len(seen) != plan.TotalPages {
				t.Errorf("mode %v: %d distinct pages in spreads, want %d", mode, len(seen), plan.TotalPages)
			}
			for idx, n := range seen {
				if n != 1 {
					t.Errorf("mode %v: page %d appears %d times", mode, idx, n)
				}
			}
		}
	})
}

func TestPageForOffset(t *testing.T) {
	doc := epubtest.Build(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: epubtest.Repeat(50)},
	}, epubtest.Options{})
	plan := Compute(doc, DefaultOptions(), nil)

	if p, ok := plan.PageForOffset(1, 25); !ok || p.GlobalIndex != 1 {
		t.Errorf("PageForOffset(1,25) = %+v, %v", p, ok)
	}
	if _, ok := plan.PageForOffset(1, 50); ok {
		t.Error("PageForOffset at end-char should miss (half-open span)")
	}
	if _, ok := plan.PageForOffset(5, 0); ok {
		t.Error("PageForOffset on unknown spine resolved")
	}
}

func TestComputeLocations(t *testing.T) {
	doc := epubtest.Build(t, []epubtest.Chapter{
		{HTML: epubtest.Repeat(2500)},
		{HTML: epubtest.Repeat(100)},
	}, epubtest.Options{})

	locs := ComputeLocations(doc, 1200)
	if locs.Total != 2 {
		t.Fatalf("Total = %d, want 2", locs.Total)
	}
	if locs.BySpine[0] != 2 || locs.BySpine[1] != 0 {
		t.Errorf("BySpine = %v", locs.BySpine)
	}
	if locs.Points[0].CharOffset != 1200 || locs.Points[1].CharOffset != 2400 {
		t.Errorf("points = %+v", locs.Points)
	}
	if got := locs.Points[0].ProgressInSpine; got != 1200.0/2500.0 {
		t.Errorf("ProgressInSpine = %v", got)
	}

	t.Run("exact multiple emits final point", func(t *testing.T) {
		doc := epubtest.Build(t, []epubtest.Chapter{{HTML: epubtest.Repeat(2400)}}, epubtest.Options{})
		locs := ComputeLocations(doc, 1200)
		if locs.Total != 2 || locs.Points[1].ProgressInSpine != 1.0 {
			t.Errorf("locs = %+v", locs)
		}
	})

	t.Run("default spacing", func(t *testing.T) {
		doc := epubtest.Build(t, []epubtest.Chapter{{HTML: epubtest.Repeat(1300)}}, epubtest.Options{})
		locs := ComputeLocations(doc, 0)
		if locs.Total != 1 || locs.Points[0].CharOffset != DefaultCharsPerLocation {
			t.Errorf("locs = %+v", locs)
		}
	})
}
