// Package themes keeps the process-wide registry of named CSS themes
// and font faces, plus per-book overlays: registered font CSS and the
// active theme selection.
package themes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"rishi/resources"
)

// ErrThemeNotFound indicates an unknown theme name.
var ErrThemeNotFound = errors.New("themes: theme not found")

// Theme is a named stylesheet with optional font preferences.
type Theme struct {
	Name       string
	CSS        string
	FontFamily string
	FontWeight int
}

// FontFace describes one @font-face source.
type FontFace struct {
	Family string
	Src    string
	Weight int
	Style  string
}

// CSS renders the @font-face block.
func (f FontFace) CSS() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@font-face { font-family: '%s'; src: %s;", f.Family, f.Src)
	if f.Weight != 0 {
		fmt.Fprintf(&sb, " font-weight: %d;", f.Weight)
	}
	if f.Style != "" {
		fmt.Fprintf(&sb, " font-style: %s;", f.Style)
	}
	sb.WriteString(" }")
	return sb.String()
}

type themeData struct {
	css        string
	fontFamily string
	fontWeight int
}

// Registry is not self-locking, the engine serializes access.
type Registry struct {
	themes      map[string]themeData
	globalFonts []FontFace
	globalCSS   []string

	bookFontCSS map[uint64][]string
	activeTheme map[uint64]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		themes:      make(map[string]themeData),
		bookFontCSS: make(map[uint64][]string),
		activeTheme: make(map[uint64]string),
	}
}

// List returns all registered themes.
func (r *Registry) List() []Theme {
	out := make([]Theme, 0, len(r.themes))
	for name, t := range r.themes {
		out = append(out, Theme{Name: name, CSS: t.css, FontFamily: t.fontFamily, FontWeight: t.fontWeight})
	}
	return out
}

// Register adds or replaces a theme.
func (r *Registry) Register(name, css string) {
	r.themes[name] = themeData{css: css}
}

// RegisterWithFont adds or replaces a theme carrying font preferences.
func (r *Registry) RegisterWithFont(name, css, fontFamily string, fontWeight int) {
	r.themes[name] = themeData{css: css, fontFamily: fontFamily, fontWeight: fontWeight}
}

// Get returns a theme by name.
func (r *Registry) Get(name string) (Theme, bool) {
	t, ok := r.themes[name]
	if !ok {
		return Theme{}, false
	}
	return Theme{Name: name, CSS: t.css, FontFamily: t.fontFamily, FontWeight: t.fontWeight}, true
}

// RegisterGlobalFont adds a font face shared by every book.
func (r *Registry) RegisterGlobalFont(f FontFace) {
	r.globalFonts = append(r.globalFonts, f)
}

// RegisterFontCSS adds raw font CSS shared by every book.
func (r *Registry) RegisterFontCSS(css string) {
	r.globalCSS = append(r.globalCSS, css)
}

// RegisterFontCSSForBook adds raw font CSS to one book's overlay.
func (r *Registry) RegisterFontCSSForBook(bookID uint64, css string) {
	r.bookFontCSS[bookID] = append(r.bookFontCSS[bookID], css)
}

// Apply selects the active theme for a book.
func (r *Registry) Apply(bookID uint64, name string) error {
	if _, ok := r.themes[name]; !ok {
		return fmt.Errorf("%w: %q", ErrThemeNotFound, name)
	}
	r.activeTheme[bookID] = name
	return nil
}

// ActiveTheme returns the book's selected theme name.
func (r *Registry) ActiveTheme(bookID uint64) (string, bool) {
	name, ok := r.activeTheme[bookID]
	return name, ok
}

// GlobalFontCSS renders every global font face plus raw global CSS.
func (r *Registry) GlobalFontCSS() string {
	parts := make([]string, 0, len(r.globalFonts)+len(r.globalCSS))
	for _, f := range r.globalFonts {
		parts = append(parts, f.CSS())
	}
	parts = append(parts, r.globalCSS...)
	return strings.Join(parts, "\n")
}

// FontCSSForBook returns the combined font CSS a book sees: global
// first, then the book's overlay.
func (r *Registry) FontCSSForBook(bookID uint64) string {
	parts := []string{}
	if g := r.GlobalFontCSS(); g != "" {
		parts = append(parts, g)
	}
	parts = append(parts, r.bookFontCSS[bookID]...)
	return strings.Join(parts, "\n")
}

// ActiveCSS assembles the stylesheet for a book: global font CSS, the
// book's font overlay and the active theme CSS, empty parts elided.
func (r *Registry) ActiveCSS(bookID uint64) string {
	var parts []string
	if fonts := r.FontCSSForBook(bookID); fonts != "" {
		parts = append(parts, fonts)
	}
	if name, ok := r.activeTheme[bookID]; ok {
		if t, ok := r.themes[name]; ok && t.css != "" {
			parts = append(parts, t.css)
		}
	}
	return strings.Join(parts, "\n")
}

// Forget drops a closed book's overlays.
func (r *Registry) Forget(bookID uint64) {
	delete(r.bookFontCSS, bookID)
	delete(r.activeTheme, bookID)
}

// FontFaceFromResource builds a font face whose src is a data URI of
// the resource bytes, with format() derived from path extension, mime
// or the bytes themselves.
func FontFaceFromResource(family, path, mime string, data []byte) FontFace {
	format := fontFormat(path, mime, data)
	src := fmt.Sprintf("url(%s)", resources.DataURI(fontMime(format, mime), data))
	if format != "" {
		src += fmt.Sprintf(" format('%s')", format)
	}
	return FontFace{Family: family, Src: src}
}

func fontFormat(path, mime string, data []byte) string {
	p := strings.ToLower(path)
	m := strings.ToLower(mime)
	switch {
	case strings.HasSuffix(p, ".woff2"), strings.Contains(m, "woff2"):
		return "woff2"
	case strings.HasSuffix(p, ".woff"), strings.Contains(m, "woff"):
		return "woff"
	case strings.HasSuffix(p, ".otf"), strings.Contains(m, "opentype"), strings.Contains(m, "otf"):
		return "opentype"
	case strings.HasSuffix(p, ".ttf"), strings.Contains(m, "truetype"), strings.Contains(m, "ttf"):
		return "truetype"
	}
	// last resort: sniff magic bytes
	if t, err := filetype.Match(data); err == nil {
		switch t {
		case matchers.TypeWoff2:
			return "woff2"
		case matchers.TypeWoff:
			return "woff"
		case matchers.TypeOtf:
			return "opentype"
		case matchers.TypeTtf:
			return "truetype"
		}
	}
	return ""
}

func fontMime(format, mime string) string {
	if mime != "" && mime != "application/octet-stream" {
		return mime
	}
	switch format {
	case "woff2":
		return "font/woff2"
	case "woff":
		return "font/woff"
	case "opentype":
		return "font/otf"
	case "truetype":
		return "font/ttf"
	}
	return "application/octet-stream"
}
