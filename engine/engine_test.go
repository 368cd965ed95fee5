package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rishi/annotations"
	"rishi/common"
	"rishi/config"
	"rishi/epub/epubtest"
	"rishi/mapping"
)

type recordedEvent struct {
	Name    string
	Payload map[string]any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Emit(event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Name: event, Payload: payload})
}

func (r *recorder) named(name string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func testEngine(t *testing.T, proxyURL string) (*Engine, *recorder) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.Directory = t.TempDir()
	cfg.Tts.CacheDirectory = t.TempDir()
	cfg.Tts.ProxyURL = proxyURL
	cfg.Tts.TimeoutSeconds = 5

	rec := &recorder{}
	e := New(cfg, rec, nil)
	t.Cleanup(e.Shutdown)
	return e, rec
}

func writeEpub(t *testing.T, chapters []epubtest.Chapter, opts epubtest.Options) string {
	t.Helper()
	data := epubtest.BuildZip(t, chapters, opts)
	path := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openBook(t *testing.T, e *Engine, chapters []epubtest.Chapter, opts epubtest.Options) uint64 {
	t.Helper()
	res, err := e.Open(writeEpub(t, chapters, opts))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return res.BookID
}

func TestOpenAndCount(t *testing.T) {
	e, rec := testEngine(t, "")

	id := openBook(t, e, []epubtest.Chapter{
		{HTML: epubtest.Repeat(100)},
		{HTML: ""},
		{HTML: epubtest.Repeat(250)},
	}, epubtest.Options{})

	plan, err := e.ComputeLayout(id, e.DefaultLayoutOptions())
	if err != nil {
		t.Fatalf("ComputeLayout() error = %v", err)
	}

	if plan.TotalPages != 2 {
		t.Errorf("TotalPages = %d", plan.TotalPages)
	}
	want := []int{1, 0, 1}
	for i, n := range want {
		if plan.PagesPerSpine[i] != n {
			t.Errorf("PagesPerSpine[%d] = %d, want %d", i, plan.PagesPerSpine[i], n)
		}
	}
	if p := plan.Pages[1]; p.SpineIndex != 2 || p.StartChar != 0 || p.EndChar != 250 {
		t.Errorf("pages[1] = %+v", p)
	}

	if got := rec.named(EventRendered); len(got) != 1 || got[0].Payload["totalPages"] != 2 {
		t.Errorf("rendered events = %+v", got)
	}
}

func TestSpineEqualsPagesSum(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{
		{HTML: epubtest.Repeat(10)},
		{HTML: ""},
		{HTML: epubtest.Repeat(20)},
		{HTML: "x", Mime: "text/css"},
	}, epubtest.Options{})

	plan, err := e.ComputeLayout(id, e.DefaultLayoutOptions())
	if err != nil {
		t.Fatal(err)
	}
	sum := 0
	for _, n := range plan.PagesPerSpine {
		sum += n
	}
	if sum != plan.TotalPages {
		t.Errorf("sum(PagesPerSpine) = %d, TotalPages = %d", sum, plan.TotalPages)
	}
	if len(plan.PagesPerSpine) != 4 {
		t.Errorf("PagesPerSpine length = %d, want spine length 4", len(plan.PagesPerSpine))
	}
}

func TestBookNotFound(t *testing.T) {
	e, _ := testEngine(t, "")
	if _, err := e.Nav(99); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("Nav() error = %v", err)
	}
	if _, err := e.ComputeLayout(99, e.DefaultLayoutOptions()); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("ComputeLayout() error = %v", err)
	}
}

func TestLayoutNotComputed(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(10)}}, epubtest.Options{})
	if _, err := e.CFIToPageIndex(id, "epubcfi(/0:1)"); !errors.Is(err, ErrLayoutNotComputed) {
		t.Errorf("CFIToPageIndex() error = %v", err)
	}
}

func TestPointToCFIEmitsLocation(t *testing.T) {
	e, rec := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(1000)}}, epubtest.Options{})
	if _, err := e.ComputeLayout(id, e.DefaultLayoutOptions()); err != nil {
		t.Fatal(err)
	}

	got, err := e.PointToCFI(id, mapping.PointRequest{
		SpineIndex: 0, Y: 250,
		Viewport: mapping.Viewport{Width: 800, Height: 500},
	})
	if err != nil {
		t.Fatalf("PointToCFI() error = %v", err)
	}
	if got != "epubcfi(/0:500)" {
		t.Errorf("PointToCFI() = %q", got)
	}
	events := rec.named(EventLocationChanged)
	if len(events) != 1 || events[0].Payload["cfi"] != got {
		t.Errorf("location events = %+v", events)
	}
}

func TestSearch(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{
		{HTML: "<p>The Quick brown fox</p>"},
		{HTML: "<p>Another QUICK appearance</p>"},
	}, epubtest.Options{})

	t.Run("hits in spine order with cfis", func(t *testing.T) {
		hits, err := e.Search(id, "quick", 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("hits = %+v", hits)
		}
		if !strings.HasPrefix(hits[0].CFI, "epubcfi(/0:") || !strings.HasPrefix(hits[1].CFI, "epubcfi(/1:") {
			t.Errorf("hit cfis = %q, %q", hits[0].CFI, hits[1].CFI)
		}
		if !strings.Contains(hits[0].Excerpt, "quick") {
			t.Errorf("excerpt = %q", hits[0].Excerpt)
		}
	})

	t.Run("bounded by max results", func(t *testing.T) {
		hits, err := e.Search(id, "quick", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 {
			t.Errorf("hits = %d, want 1", len(hits))
		}
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := e.Search(id, "zebra", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 0 {
			t.Errorf("hits = %+v", hits)
		}
	})
}

func TestAnnotationLifecycleAndPersistence(t *testing.T) {
	e, _ := testEngine(t, "")
	path := writeEpub(t, []epubtest.Chapter{{HTML: epubtest.Repeat(100)}}, epubtest.Options{})

	res, err := e.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	a := annotations.Annotation{
		ID:       "x",
		Kind:     common.AnnotationKindHighlight,
		CFIRange: "epubcfi(range(/2:0,/2:10))",
	}
	if _, err := e.AddAnnotation(res.BookID, a); err != nil {
		t.Fatalf("AddAnnotation() error = %v", err)
	}

	t.Run("idempotent add", func(t *testing.T) {
		if _, err := e.AddAnnotation(res.BookID, a); err != nil {
			t.Fatal(err)
		}
		list, _ := e.Annotations(res.BookID)
		if len(list) != 1 {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("survives reopen", func(t *testing.T) {
		if err := e.Close(res.BookID); err != nil {
			t.Fatal(err)
		}
		res2, err := e.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		list, err := e.Annotations(res2.BookID)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].ID != "x" || list[0].CFIRange != a.CFIRange {
			t.Errorf("reloaded = %+v", list)
		}
	})
}

func TestAnnotationUpdateRemove(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(100)}}, epubtest.Options{})

	if err := e.UpdateAnnotation(id, annotations.Annotation{ID: "ghost"}); !errors.Is(err, annotations.ErrNotFound) {
		t.Errorf("UpdateAnnotation() error = %v", err)
	}

	stored, _ := e.AddAnnotation(id, annotations.Annotation{Kind: common.AnnotationKindMark, CFIRange: "epubcfi(range(/0:0,/0:5))"})
	if stored.ID == "" {
		t.Error("generated id empty")
	}
	if err := e.RemoveAnnotation(id, stored.ID); err != nil {
		t.Fatal(err)
	}
	list, _ := e.Annotations(id)
	if len(list) != 0 {
		t.Errorf("list after remove = %+v", list)
	}
}

func TestRenderPlan(t *testing.T) {
	e, _ := testEngine(t, "")
	css := "body { margin: 0 }"
	id := openBook(t, e, []epubtest.Chapter{
		{HTML: `<html><head><link rel="stylesheet" href="../styles/main.css"/></head><body><p>` + strings.Repeat("a", 60) + `</p></body></html>`},
	}, epubtest.Options{
		ExtraManifest: `<item id="css" href="styles/main.css" media-type="text/css"/>`,
		ExtraFiles:    map[string][]byte{"OEBPS/styles/main.css": []byte(css)},
	})
	if _, err := e.ComputeLayout(id, e.DefaultLayoutOptions()); err != nil {
		t.Fatal(err)
	}
	e.RegisterTheme("dark", "body { background: black }")
	if err := e.ApplyTheme(id, "dark"); err != nil {
		t.Fatal(err)
	}

	res, err := e.RenderPlan(id, 0, 5)
	if err != nil {
		t.Fatalf("RenderPlan() error = %v", err)
	}
	if res.TotalPages != 1 || len(res.Pages) != 1 {
		t.Fatalf("res = %+v", res)
	}
	if !strings.Contains(res.Pages[0].HTML, css) {
		t.Errorf("stylesheet not inlined: %s", res.Pages[0].HTML)
	}
	if !strings.Contains(res.ThemeCSS, "background: black") {
		t.Errorf("ThemeCSS = %q", res.ThemeCSS)
	}
}

func TestPlayerFlow(t *testing.T) {
	e, rec := testEngine(t, "")
	long1 := strings.Repeat("a", 60)
	long2 := strings.Repeat("b", 70)
	id := openBook(t, e, []epubtest.Chapter{
		{HTML: "<p>" + long1 + "</p><p>" + long2 + "</p>"},
	}, epubtest.Options{})
	if _, err := e.ComputeLayout(id, e.DefaultLayoutOptions()); err != nil {
		t.Fatal(err)
	}

	if err := e.PlayerPlay(id); err != nil {
		t.Fatalf("PlayerPlay() error = %v", err)
	}
	events := rec.named(EventPlayerPlay)
	if len(events) != 1 || events[0].Payload["text"] != long1 {
		t.Fatalf("play events = %+v", events)
	}

	if err := e.PlayerNext(id); err != nil {
		t.Fatal(err)
	}
	events = rec.named(EventPlayerPlay)
	if len(events) != 2 || events[1].Payload["text"] != long2 {
		t.Fatalf("events after next = %+v", events)
	}

	st, err := e.PlayerStatus(id)
	if err != nil {
		t.Fatal(err)
	}
	if st.ParagraphIndex != 1 || st.State != "playing" {
		t.Errorf("status = %+v", st)
	}

	if err := e.PlayerStop(id); err != nil {
		t.Fatal(err)
	}
	st, _ = e.PlayerStatus(id)
	if st.State != "stopped" || st.ParagraphIndex != 0 {
		t.Errorf("status after stop = %+v", st)
	}
}

func TestTtsRequestDedup(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("AUDIO"))
	}))
	defer srv.Close()

	e, _ := testEngine(t, srv.URL)
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(100)}}, epubtest.Options{})

	cfiRange := "epubcfi(range(/0:0,/0:20))"
	p1, err := e.TtsRequest(context.Background(), id, cfiRange, "hello there", "", 0)
	if err != nil {
		t.Fatalf("TtsRequest() error = %v", err)
	}
	p2, err := e.TtsRequest(context.Background(), id, cfiRange, "hello there", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 || calls.Load() != 1 {
		t.Errorf("paths %q/%q, proxy calls = %d", p1, p2, calls.Load())
	}

	if path, ok, _ := e.TtsAudioPath(id, cfiRange); !ok || path != p1 {
		t.Errorf("TtsAudioPath() = %q, %v", path, ok)
	}
	size, err := e.TtsBookCacheSize(id)
	if err != nil || size == 0 {
		t.Errorf("TtsBookCacheSize() = %d, %v", size, err)
	}
	if err := e.TtsClearBookCache(id); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := e.TtsAudioPath(id, cfiRange); ok {
		t.Error("cache survived clear")
	}
}

func TestTtsEnqueuePageSentences(t *testing.T) {
	var calls atomic.Int64
	done := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("AUDIO"))
		done <- struct{}{}
	}))
	defer srv.Close()

	e, rec := testEngine(t, srv.URL)
	text := "This is the first sentence of the paragraph under test. And here comes the second one, slightly longer still."
	id := openBook(t, e, []epubtest.Chapter{{HTML: "<p>" + text + "</p>"}}, epubtest.Options{})
	if _, err := e.ComputeLayout(id, e.DefaultLayoutOptions()); err != nil {
		t.Fatal(err)
	}

	queued, err := e.TtsEnqueuePage(id, 0, 50, 1)
	if err != nil {
		t.Fatalf("TtsEnqueuePage() error = %v", err)
	}
	if queued != 2 {
		t.Fatalf("queued = %d, want 2 sentences", queued)
	}
	for i := 0; i < queued; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for synthesis")
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.named("tts://audioReady")) == queued {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := rec.named("tts://audioReady"); len(got) != queued {
		t.Errorf("audioReady events = %d, want %d", len(got), queued)
	}
}

func TestTtsCancel(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(10)}}, epubtest.Options{})

	// no worker has started since nothing was enqueued; cancel on the
	// empty queue reports zero
	n, err := e.TtsCancel(id, "epubcfi(range(/0:0,/0:5))")
	if err != nil || n != 0 {
		t.Errorf("TtsCancel() = %d, %v", n, err)
	}
	st := e.TtsQueueStatus()
	if st.Pending != 0 || st.Active != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestCoverCommand(t *testing.T) {
	e, _ := testEngine(t, "")
	png := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(10)}}, epubtest.Options{
		ExtraManifest: `<item id="cov" href="cover.png" media-type="image/png" properties="cover-image"/>`,
		ExtraFiles:    map[string][]byte{"OEBPS/cover.png": png},
	})

	res, err := e.Cover(id)
	if err != nil {
		t.Fatalf("Cover() error = %v", err)
	}
	if res.Mime != "image/png" || res.DataBase64 == "" {
		t.Errorf("Cover() = %+v", res)
	}
}

func TestHrefToPageIndex(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{
		{ID: "intro", HTML: epubtest.Repeat(10)},
		{ID: "body", HTML: epubtest.Repeat(20)},
	}, epubtest.Options{})
	if _, err := e.ComputeLayout(id, e.DefaultLayoutOptions()); err != nil {
		t.Fatal(err)
	}

	idx, err := e.HrefToPageIndex(id, "text/body.xhtml#top")
	if err != nil {
		t.Fatalf("HrefToPageIndex() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("page index = %d", idx)
	}

	if _, err := e.HrefToPageIndex(id, "text/nope.xhtml"); err == nil {
		t.Error("HrefToPageIndex(missing) expected error")
	}
}

func TestLocationsStore(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(2500)}}, epubtest.Options{})

	if err := e.SaveLocations(id, ""); err != nil {
		t.Fatalf("SaveLocations() error = %v", err)
	}
	got, err := e.LoadLocations(id, "")
	if err != nil {
		t.Fatalf("LoadLocations() error = %v", err)
	}
	if got.Total != 2 || len(got.BySpine) != 1 || got.BySpine[0] != 2 {
		t.Errorf("payload = %+v", got)
	}
}

func TestResourceCommands(t *testing.T) {
	e, _ := testEngine(t, "")
	id := openBook(t, e, []epubtest.Chapter{{HTML: epubtest.Repeat(10)}}, epubtest.Options{
		ExtraManifest: `<item id="pic" href="img/p.png" media-type="image/png"/>`,
		ExtraFiles:    map[string][]byte{"OEBPS/img/p.png": {1, 2, 3}},
	})

	t.Run("default inlines as data uri", func(t *testing.T) {
		got, err := e.Resource(id, "OEBPS/img/p.png")
		if err != nil {
			t.Fatalf("Resource() error = %v", err)
		}
		if !strings.HasPrefix(got, "data:image/png;base64,") {
			t.Errorf("Resource() = %q", got)
		}
	})

	t.Run("blob strategy with registration", func(t *testing.T) {
		blob := common.ReplacementModeBlobUrl
		strat := e.resourceManager(id).Strategy()
		strat.Images = &blob
		if err := e.SetResourceStrategy(id, strat); err != nil {
			t.Fatal(err)
		}
		if err := e.RegisterBlob(id, "OEBPS/img/p.png", "blob:xyz"); err != nil {
			t.Fatal(err)
		}
		got, err := e.Resource(id, "OEBPS/img/p.png")
		if err != nil {
			t.Fatal(err)
		}
		if got != "blob:xyz" {
			t.Errorf("Resource() = %q", got)
		}
	})

	t.Run("missing resource", func(t *testing.T) {
		if _, err := e.Resource(id, "OEBPS/img/none.png"); err == nil {
			t.Error("Resource(missing) expected error")
		}
	})
}

func TestNavWithUnreferencedNCX(t *testing.T) {
	e, _ := testEngine(t, "")
	ncx := `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/">
  <docTitle><text>T</text></docTitle>
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>One</text></navLabel>
      <content src="text/c0.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`
	id := openBook(t, e, []epubtest.Chapter{{ID: "c0", HTML: epubtest.Repeat(10)}}, epubtest.Options{
		Version:       "2.0",
		ExtraManifest: `<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>`,
		ExtraFiles:    map[string][]byte{"OEBPS/toc.ncx": []byte(ncx)},
	})

	// NCX is referenced through spine/@toc which the fixture does not
	// set, so the fallback path sees an empty tree; the command still
	// answers with empty lists rather than failing.
	nav, err := e.Nav(id)
	if err != nil {
		t.Fatalf("Nav() error = %v", err)
	}
	if nav.PageListSpineIndices == nil && len(nav.PageList) != 0 {
		t.Errorf("nav = %+v", nav)
	}
}
