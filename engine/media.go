package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/multierr"

	"rishi/annotations"
	"rishi/cfi"
	"rishi/config"
	"rishi/content"
	"rishi/epub"
	"rishi/layout"
	"rishi/player"
	"rishi/resources"
	"rishi/themes"
	"rishi/tts"
)

// --- annotations ---

// Annotations lists a book's annotations.
func (e *Engine) Annotations(bookID uint64) ([]annotations.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return nil, err
	}
	return e.annots[bookID].List(), nil
}

// AddAnnotation inserts or replaces by id and autosaves.
func (e *Engine) AddAnnotation(bookID uint64, a annotations.Annotation) (annotations.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return annotations.Annotation{}, err
	}
	return e.annots[bookID].Add(a), nil
}

// UpdateAnnotation replaces by id, failing on unknown ids.
func (e *Engine) UpdateAnnotation(bookID uint64, a annotations.Annotation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	return e.annots[bookID].Update(a)
}

// RemoveAnnotation deletes by id; unknown ids are a no-op.
func (e *Engine) RemoveAnnotation(bookID uint64, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	e.annots[bookID].Remove(id)
	return nil
}

// SaveAnnotations writes the book's annotations to an explicit path.
func (e *Engine) SaveAnnotations(bookID uint64, path string) error {
	e.mu.Lock()
	store, err := e.annotStore(bookID)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return store.SaveTo(path)
}

// LoadAnnotations replaces the book's annotations from a document.
func (e *Engine) LoadAnnotations(bookID uint64, path string) error {
	e.mu.Lock()
	store, err := e.annotStore(bookID)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return store.LoadFrom(path)
}

func (e *Engine) annotStore(bookID uint64) (*annotations.Store, error) {
	if _, err := e.book(bookID); err != nil {
		return nil, err
	}
	return e.annots[bookID], nil
}

// --- themes and fonts ---

// Themes lists registered themes.
func (e *Engine) Themes() []themes.Theme {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.themes.List()
}

// RegisterTheme adds or replaces a theme.
func (e *Engine) RegisterTheme(name, css string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.themes.Register(name, css)
}

// RegisterThemeWithFont adds a theme with font preferences.
func (e *Engine) RegisterThemeWithFont(name, css, fontFamily string, fontWeight int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.themes.RegisterWithFont(name, css, fontFamily, fontWeight)
}

// ApplyTheme selects a book's active theme.
func (e *Engine) ApplyTheme(bookID uint64, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	return e.themes.Apply(bookID, name)
}

// RegisterGlobalFont adds a process-wide font face.
func (e *Engine) RegisterGlobalFont(f themes.FontFace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.themes.RegisterGlobalFont(f)
}

// RegisterFontCSS adds raw global font CSS.
func (e *Engine) RegisterFontCSS(css string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.themes.RegisterFontCSS(css)
}

// RegisterFontCSSForBook adds raw font CSS to one book's overlay.
func (e *Engine) RegisterFontCSSForBook(bookID uint64, css string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	e.themes.RegisterFontCSSForBook(bookID, css)
	return nil
}

// RegisterFontFromResource loads a font resource, base64-encodes it
// into an @font-face block and adds it to the book's overlay.
func (e *Engine) RegisterFontFromResource(bookID uint64, family, resourceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return err
	}
	data, mime, err := book.Doc.ResourceByID(resourceID)
	if err != nil {
		return err
	}
	res := book.Doc.Resources[resourceID]
	face := themes.FontFaceFromResource(family, res.Path, mime, data)
	e.themes.RegisterFontCSSForBook(bookID, face.CSS())
	return nil
}

// FontCSS returns the combined font CSS a book sees.
func (e *Engine) FontCSS(bookID uint64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return "", err
	}
	return e.themes.FontCSSForBook(bookID), nil
}

// --- resources ---

// SetResourceStrategy replaces a book's replacement strategy.
func (e *Engine) SetResourceStrategy(bookID uint64, s resources.Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	e.resourceManager(bookID).SetStrategy(s)
	return nil
}

// RegisterBlob records a host blob URL for a resource path.
func (e *Engine) RegisterBlob(bookID uint64, path, blobURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.book(bookID); err != nil {
		return err
	}
	e.resourceManager(bookID).RegisterBlob(path, blobURL)
	return nil
}

// Resource returns the reference the renderer should use for a
// container path under the book's strategy.
func (e *Engine) Resource(bookID uint64, path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return "", err
	}
	data, err := book.Doc.ResourceByPath(path)
	if err != nil {
		return "", err
	}
	mime, ok := book.Doc.MimeByPath(path)
	if !ok {
		mime = "application/octet-stream"
	}
	return e.resourceManager(bookID).Transform(path, mime, data), nil
}

// HTMLWithInlinedCSS returns a spine item's content document with
// local stylesheets inlined and a base element injected.
func (e *Engine) HTMLWithInlinedCSS(bookID uint64, spineIndex int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return "", err
	}
	return e.inlinedSpineHTML(book, spineIndex)
}

// inlinedSpineHTML prepares one spine item for display. Callers hold
// e.mu.
func (e *Engine) inlinedSpineHTML(book *Book, spineIndex int) (string, error) {
	if spineIndex < 0 || spineIndex >= len(book.Doc.Spine) {
		return "", fmt.Errorf("%w: spine index %d", epub.ErrResourceNotFound, spineIndex)
	}
	idref := book.Doc.Spine[spineIndex].IDRef
	html, _, err := book.Doc.ResourceStrByID(idref)
	if err != nil {
		return "", err
	}
	res := book.Doc.Resources[idref]
	out := resources.InlineCSS([]byte(html), res.Path, func(p string) ([]byte, error) {
		return book.Doc.ResourceByPath(p)
	})
	return string(out), nil
}

// --- player ---

// engineSource adapts a book's doc and plan to the player's Source.
type engineSource struct {
	doc       *epub.Document
	plan      *layout.Plan
	minLength int
}

func (s *engineSource) Paragraphs(pageIndex int) []player.Paragraph {
	return player.ParagraphsForPage(s.doc, s.plan, pageIndex, s.minLength)
}

func (s *engineSource) TotalPages() int { return s.plan.TotalPages }

// CreatePlayer gets or creates the book's player. Layout must be
// computed first.
func (e *Engine) CreatePlayer(bookID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.playerFor(bookID)
	return err
}

func (e *Engine) playerFor(bookID uint64) (*player.Player, error) {
	if p, ok := e.players[bookID]; ok {
		return p, nil
	}
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return nil, err
	}
	p := player.New(&engineSource{doc: book.Doc, plan: plan, minLength: content.DefaultMinParagraphLength})
	e.players[bookID] = p
	return p, nil
}

// PlayerState is the host view of a book's cursor.
type PlayerState struct {
	PageIndex      int
	ParagraphIndex int
	State          string
}

// PlayerStatus reports the cursor position and state.
func (e *Engine) PlayerStatus(bookID uint64) (*PlayerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.playerFor(bookID)
	if err != nil {
		return nil, err
	}
	return &PlayerState{PageIndex: p.PageIndex, ParagraphIndex: p.ParagraphIndex, State: p.State.String()}, nil
}

func (e *Engine) playerEmit(bookID uint64, p *player.Player, para player.Paragraph) {
	e.emitter.Emit(EventPlayerPlay, map[string]any{
		"book":      bookID,
		"page":      p.PageIndex,
		"paragraph": p.ParagraphIndex,
		"text":      para.Text,
		"cfi_range": para.CFIRange,
	})
}

// PlayerPlay starts playback and emits the current paragraph.
func (e *Engine) PlayerPlay(bookID uint64) error {
	return e.playerOp(bookID, func(p *player.Player) (player.Paragraph, bool) { return p.Play() })
}

// PlayerResume continues playback re-emitting the current paragraph.
func (e *Engine) PlayerResume(bookID uint64) error {
	return e.playerOp(bookID, func(p *player.Player) (player.Paragraph, bool) { return p.Resume() })
}

// PlayerNext advances to the next paragraph.
func (e *Engine) PlayerNext(bookID uint64) error {
	return e.playerOp(bookID, func(p *player.Player) (player.Paragraph, bool) { return p.Next() })
}

// PlayerPrev steps back one paragraph.
func (e *Engine) PlayerPrev(bookID uint64) error {
	return e.playerOp(bookID, func(p *player.Player) (player.Paragraph, bool) { return p.Prev() })
}

func (e *Engine) playerOp(bookID uint64, op func(*player.Player) (player.Paragraph, bool)) error {
	e.mu.Lock()
	p, err := e.playerFor(bookID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	para, ok := op(p)
	state := *p
	e.mu.Unlock()

	if ok {
		e.playerEmit(bookID, &state, para)
	}
	return nil
}

// PlayerPause pauses playback.
func (e *Engine) PlayerPause(bookID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.playerFor(bookID)
	if err != nil {
		return err
	}
	p.Pause()
	return nil
}

// PlayerStop stops playback and rewinds the paragraph cursor.
func (e *Engine) PlayerStop(bookID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.playerFor(bookID)
	if err != nil {
		return err
	}
	p.Stop()
	return nil
}

// PlayerSetPage jumps the cursor to a page.
func (e *Engine) PlayerSetPage(bookID uint64, page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.playerFor(bookID)
	if err != nil {
		return err
	}
	p.SetPage(page)
	return nil
}

// Paragraphs returns the playback paragraphs of a page.
func (e *Engine) Paragraphs(bookID uint64, pageIndex, minLength int) ([]player.Paragraph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return nil, err
	}
	return player.ParagraphsForPage(book.Doc, plan, pageIndex, minLength), nil
}

// ParagraphsNext returns the paragraphs of the following page, bounded
// by the last page.
func (e *Engine) ParagraphsNext(bookID uint64, pageIndex, minLength int) ([]player.Paragraph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return nil, err
	}
	return player.ParagraphsForPage(book.Doc, plan, min(pageIndex+1, plan.TotalPages-1), minLength), nil
}

// ParagraphsPrev returns the paragraphs of the preceding page, bounded
// by page zero.
func (e *Engine) ParagraphsPrev(bookID uint64, pageIndex, minLength int) ([]player.Paragraph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		return nil, err
	}
	return player.ParagraphsForPage(book.Doc, plan, max(pageIndex-1, 0), minLength), nil
}

// --- tts ---

func (e *Engine) bookKeyFor(bookID uint64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return "", err
	}
	return book.Key, nil
}

// TtsAudioPath returns the cached audio path for a (book, cfi) pair.
func (e *Engine) TtsAudioPath(bookID uint64, cfiRange string) (string, bool, error) {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return "", false, err
	}
	path, ok := e.ttsCache.Lookup(key, cfiRange)
	return path, ok, nil
}

// TtsRequest synthesizes synchronously, hitting the cache first.
func (e *Engine) TtsRequest(ctx context.Context, bookID uint64, cfiRange, text string, voice string, rate float64) (string, error) {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return "", err
	}
	return e.ttsQueue.Request(ctx, e.ttsTask(key, cfiRange, text, 0, voice, rate))
}

// TtsEnqueue pushes an asynchronous synthesis task. Audio readiness and
// failures arrive as tts:// events.
func (e *Engine) TtsEnqueue(bookID uint64, cfiRange, text string, priority int, voice string, rate float64) error {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return err
	}
	e.ttsQueue.Enqueue(e.ttsTask(key, cfiRange, text, priority, voice, rate))
	return nil
}

// TtsEnqueuePage queues one task per sentence of every paragraph of a
// page. Each sentence gets its own sub-range of the paragraph span so
// chunks stay individually addressable in the cache.
func (e *Engine) TtsEnqueuePage(bookID uint64, pageIndex, minLength, priority int) (int, error) {
	e.mu.Lock()
	book, plan, err := e.bookAndPlan(bookID)
	if err != nil {
		e.mu.Unlock()
		return 0, err
	}
	paras := player.ParagraphsForPage(book.Doc, plan, pageIndex, minLength)
	key := book.Key
	e.mu.Unlock()

	queued := 0
	for _, para := range paras {
		ss, so, _, _, ok := cfi.ParseRangeToOffsets(para.CFIRange)
		if !ok {
			continue
		}
		off := so
		for _, sentence := range content.Sentences(para.Text) {
			n := utf8.RuneCountInString(sentence)
			rangeStr := cfi.WrapRange(cfi.FormatOffset(ss, off), cfi.FormatOffset(ss, off+n))
			e.ttsQueue.Enqueue(e.ttsTask(key, rangeStr, sentence, priority, "", 0))
			off += n + 1
			queued++
		}
	}
	return queued, nil
}

func (e *Engine) ttsTask(bookKey, cfiRange, text string, priority int, voice string, rate float64) tts.Task {
	if voice == "" {
		voice = e.cfg.Tts.Voice
	}
	if rate == 0 {
		rate = e.cfg.Tts.Rate
	}
	return tts.Task{
		Priority: priority,
		BookKey:  bookKey,
		CFIRange: cfiRange,
		Text:     text,
		Voice:    voice,
		Rate:     rate,
	}
}

// TtsCancel drops pending tasks for one (book, cfi) pair.
func (e *Engine) TtsCancel(bookID uint64, cfiRange string) (int, error) {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return 0, err
	}
	return e.ttsQueue.Cancel(key, cfiRange), nil
}

// TtsCancelAll drops every pending task of a book.
func (e *Engine) TtsCancelAll(bookID uint64) (int, error) {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return 0, err
	}
	return e.ttsQueue.CancelAll(key), nil
}

// TtsQueueStatus snapshots the queue.
func (e *Engine) TtsQueueStatus() tts.Status {
	return e.ttsQueue.Status()
}

// TtsClearBookCache purges a book's cached audio.
func (e *Engine) TtsClearBookCache(bookID uint64) error {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return err
	}
	return e.ttsCache.ClearBook(key)
}

// TtsBookCacheSize sums a book's cached audio bytes.
func (e *Engine) TtsBookCacheSize(bookID uint64) (int64, error) {
	key, err := e.bookKeyFor(bookID)
	if err != nil {
		return 0, err
	}
	return e.ttsCache.BookSize(key)
}

// --- locations store ---

// LocationsPayload is the persisted locations summary.
type LocationsPayload struct {
	Total   int   `json:"total"`
	BySpine []int `json:"by_spine"`
}

// SaveLocations computes the book's location checkpoints and persists
// the summary. Empty path uses the configured store location.
func (e *Engine) SaveLocations(bookID uint64, path string) (retErr error) {
	e.mu.Lock()
	book, err := e.book(bookID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	locs := layout.ComputeLocations(book.Doc, e.cfg.Layout.CharsPerLocation)
	if path == "" {
		path = e.cfg.Store.LocationsPath(config.StoreNameValues{BookID: book.Key, Title: book.Doc.Title()})
	}
	e.mu.Unlock()

	data, err := json.MarshalIndent(LocationsPayload{Total: locs.Total, BySpine: locs.BySpine}, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: encode locations: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("engine: locations dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: write locations: %w", err)
	}
	defer func() {
		retErr = multierr.Append(retErr, f.Close())
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("engine: write locations: %w", err)
	}
	return nil
}

// LoadLocations reads a persisted locations summary. Empty path uses
// the configured store location.
func (e *Engine) LoadLocations(bookID uint64, path string) (*LocationsPayload, error) {
	e.mu.Lock()
	book, err := e.book(bookID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if path == "" {
		path = e.cfg.Store.LocationsPath(config.StoreNameValues{BookID: book.Key, Title: book.Doc.Title()})
	}
	e.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read locations: %w", err)
	}
	var out LocationsPayload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("engine: decode locations: %w", err)
	}
	return &out, nil
}

// Locations computes the full checkpoint list for a book.
func (e *Engine) Locations(bookID uint64, charsPerLocation int) (*layout.Locations, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.book(bookID)
	if err != nil {
		return nil, err
	}
	if charsPerLocation <= 0 {
		charsPerLocation = e.cfg.Layout.CharsPerLocation
	}
	return layout.ComputeLocations(book.Doc, charsPerLocation), nil
}
