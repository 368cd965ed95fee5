// Package engine owns the process-wide state of the reading core: the
// registry of opened books and their derived layout plans, annotation
// stores, players, resource managers and themes, plus the TTS queue.
// Every host command goes through an Engine value; there are no hidden
// globals.
package engine

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"rishi/annotations"
	"rishi/config"
	"rishi/epub"
	"rishi/layout"
	"rishi/player"
	"rishi/resources"
	"rishi/themes"
	"rishi/tts"
)

// Emitter receives engine events (rendition, player and tts channels).
type Emitter interface {
	Emit(event string, payload map[string]any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event string, payload map[string]any)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event string, payload map[string]any) { f(event, payload) }

// Event names on the rendition and player channels.
const (
	EventRendered        = "rendition://rendered"
	EventLocationChanged = "rendition://locationChanged"
	EventPlayerPlay      = "player://play"
)

// Book is one opened publication and its stable identity. The numeric
// ID is a session handle; Key derives from the source path and names
// on-disk state so it survives reopening.
type Book struct {
	ID   uint64
	Key  string
	Path string
	Doc  *epub.Document
}

// Engine is the root of all registries. A single exclusive lock guards
// them: per the concurrency model the core is single-threaded from the
// host's perspective, and archive reads are serialized by the books
// lock. The lock is not held across proxy HTTP calls or locations-store
// writes; annotation changes autosave to disk while it is held.
type Engine struct {
	cfg     *config.Config
	log     *zap.Logger
	emitter Emitter

	mu      sync.Mutex
	nextID  uint64
	books   map[uint64]*Book
	plans   map[uint64]*layout.Plan
	annots  map[uint64]*annotations.Store
	players map[uint64]*player.Player
	resmgrs map[uint64]*resources.Manager
	themes  *themes.Registry

	ttsCache *tts.Cache
	ttsQueue *tts.Queue
}

// New creates an engine. cfg nil means embedded defaults; emitter nil
// drops events.
func New(cfg *config.Config, emitter Emitter, log *zap.Logger) *Engine {
	if cfg == nil {
		cfg, _ = config.LoadConfiguration("")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = EmitterFunc(func(string, map[string]any) {})
	}
	e := &Engine{
		cfg:     cfg,
		log:     log.Named("engine"),
		emitter: emitter,
		books:   make(map[uint64]*Book),
		plans:   make(map[uint64]*layout.Plan),
		annots:  make(map[uint64]*annotations.Store),
		players: make(map[uint64]*player.Player),
		resmgrs: make(map[uint64]*resources.Manager),
		themes:  themes.NewRegistry(),
	}
	e.ttsCache = tts.NewCache(cfg.Tts.CacheDirectory)
	client := tts.NewClient(cfg.Tts.ProxyURL, time.Duration(cfg.Tts.TimeoutSeconds)*time.Second)
	e.ttsQueue = tts.NewQueue(e.ttsCache, client, emitter.Emit, log)
	return e
}

// Shutdown stops the TTS worker. Opened books stay usable for tests
// that shut down early.
func (e *Engine) Shutdown() {
	e.ttsQueue.Close()
}

// bookKey derives the stable on-disk identity of a source path.
func bookKey(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:16])
}

// OpenResult is the host's view of a freshly opened book.
type OpenResult struct {
	BookID    uint64
	Key       string
	Title     string
	Spine     []epub.SpineItem
	Resources map[string]epub.ResourceItem
}

// Open parses the publication at path, registers it and loads its
// persisted annotations.
func (e *Engine) Open(path string) (*OpenResult, error) {
	doc, err := epub.Open(path, e.log)
	if err != nil {
		return nil, err
	}

	key := bookKey(path)
	store := annotations.NewStore(e.cfg.Store.AnnotationsPath(key), e.log)
	if err := store.Load(); err != nil {
		e.log.Warn("Unable to load persisted annotations", zap.String("book", key), zap.Error(err))
	}

	e.mu.Lock()
	e.nextID++
	book := &Book{ID: e.nextID, Key: key, Path: path, Doc: doc}
	e.books[book.ID] = book
	e.annots[book.ID] = store
	e.mu.Unlock()

	e.log.Info("Book opened",
		zap.Uint64("id", book.ID),
		zap.String("path", path),
		zap.String("title", doc.Title()),
		zap.Int("spine", len(doc.Spine)))

	return &OpenResult{
		BookID:    book.ID,
		Key:       key,
		Title:     doc.Title(),
		Spine:     append([]epub.SpineItem(nil), doc.Spine...),
		Resources: cloneResources(doc.Resources),
	}, nil
}

// Close drops every registry entry of a book and closes its archive.
func (e *Engine) Close(bookID uint64) error {
	e.mu.Lock()
	book, ok := e.books[bookID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrBookNotFound, bookID)
	}
	delete(e.books, bookID)
	delete(e.plans, bookID)
	delete(e.annots, bookID)
	delete(e.players, bookID)
	delete(e.resmgrs, bookID)
	e.themes.Forget(bookID)
	e.mu.Unlock()

	e.ttsQueue.CancelAll(book.Key)
	return book.Doc.Close()
}

// book returns a registered book. Callers hold e.mu.
func (e *Engine) book(bookID uint64) (*Book, error) {
	book, ok := e.books[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBookNotFound, bookID)
	}
	return book, nil
}

// plan returns a book's computed plan. Callers hold e.mu.
func (e *Engine) plan(bookID uint64) (*layout.Plan, error) {
	plan, ok := e.plans[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: book %d", ErrLayoutNotComputed, bookID)
	}
	return plan, nil
}

// bookAndPlan resolves both under one lock acquisition.
func (e *Engine) bookAndPlan(bookID uint64) (*Book, *layout.Plan, error) {
	book, err := e.book(bookID)
	if err != nil {
		return nil, nil, err
	}
	plan, err := e.plan(bookID)
	if err != nil {
		return nil, nil, err
	}
	return book, plan, nil
}

// resourceManager lazily creates a book's manager. Callers hold e.mu.
func (e *Engine) resourceManager(bookID uint64) *resources.Manager {
	m, ok := e.resmgrs[bookID]
	if !ok {
		m = resources.WithDefault()
		e.resmgrs[bookID] = m
	}
	return m
}

func cloneResources(in map[string]epub.ResourceItem) map[string]epub.ResourceItem {
	out := make(map[string]epub.ResourceItem, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
