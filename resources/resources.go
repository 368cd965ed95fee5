// Package resources rewrites publication resource references for the
// rendering surface: raw paths, base64 data URIs or host-registered
// blob URLs, selected per mime class, plus stylesheet inlining for
// content documents.
package resources

import (
	"encoding/base64"
	"path"
	"strings"

	"rishi/common"
)

// Strategy selects a replacement mode per mime class. Zero-valued
// overrides fall back to Default.
type Strategy struct {
	Default     common.ReplacementMode
	Images      *common.ReplacementMode
	Fonts       *common.ReplacementMode
	Stylesheets *common.ReplacementMode
	Scripts     *common.ReplacementMode
}

// DefaultStrategy inlines everything as data URIs, the only mode that
// needs no host cooperation.
func DefaultStrategy() Strategy {
	return Strategy{Default: common.ReplacementModeBase64}
}

// ModeForMime classifies mime and returns the effective mode.
// Classification is lowercase prefix/substring matching.
func (s Strategy) ModeForMime(mime string) common.ReplacementMode {
	m := strings.ToLower(mime)

	pick := func(override *common.ReplacementMode) common.ReplacementMode {
		if override != nil {
			return *override
		}
		return s.Default
	}

	switch {
	case strings.HasPrefix(m, "image/"):
		return pick(s.Images)
	case strings.Contains(m, "font"),
		strings.HasSuffix(m, "/woff"),
		strings.HasSuffix(m, "/woff2"),
		strings.HasSuffix(m, "/ttf"),
		strings.HasSuffix(m, "/otf"):
		return pick(s.Fonts)
	case m == "text/css", strings.Contains(m, "stylesheet"):
		return pick(s.Stylesheets)
	case strings.Contains(m, "javascript"), strings.Contains(m, "ecmascript"):
		return pick(s.Scripts)
	}
	return s.Default
}

// DataURI encodes bytes as a data: URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Manager owns one book's replacement strategy and blob registry.
type Manager struct {
	strategy Strategy
	blobs    map[string]string
}

// NewManager creates a manager with the given strategy.
func NewManager(strategy Strategy) *Manager {
	return &Manager{strategy: strategy, blobs: make(map[string]string)}
}

// WithDefault creates a manager with the default strategy.
func WithDefault() *Manager {
	return NewManager(DefaultStrategy())
}

// Strategy returns the active strategy.
func (m *Manager) Strategy() Strategy { return m.strategy }

// SetStrategy replaces the active strategy.
func (m *Manager) SetStrategy(s Strategy) { m.strategy = s }

// RegisterBlob records a host-created blob URL for a resource path.
func (m *Manager) RegisterBlob(path, blobURL string) {
	m.blobs[path] = blobURL
}

// BlobURL returns the registered blob URL for a path.
func (m *Manager) BlobURL(path string) (string, bool) {
	u, ok := m.blobs[path]
	return u, ok
}

// Transform returns the reference the renderer should use for a
// resource: the original path, a data URI, or a registered blob URL
// with data-URI fallback.
func (m *Manager) Transform(path, mime string, data []byte) string {
	switch m.strategy.ModeForMime(mime) {
	case common.ReplacementModeNone:
		return path
	case common.ReplacementModeBlobUrl:
		if u, ok := m.blobs[path]; ok {
			return u
		}
		return DataURI(mime, data)
	default:
		return DataURI(mime, data)
	}
}

// ShouldInline reports whether the mode for mime replaces references
// with embedded content.
func (m *Manager) ShouldInline(mime string) bool {
	mode := m.strategy.ModeForMime(mime)
	return mode == common.ReplacementModeBase64 || mode == common.ReplacementModeBlobUrl
}

// IsExternalURL reports whether a reference leaves the container:
// http/https and protocol-relative URLs are preserved untouched.
func IsExternalURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "//")
}

// ResolveAgainst resolves a relative reference against the directory of
// a container-absolute document path.
func ResolveAgainst(docPath, ref string) string {
	ref = strings.ReplaceAll(ref, `\`, "/")
	if path.IsAbs(ref) {
		return strings.TrimPrefix(path.Clean(ref), "/")
	}
	return path.Clean(path.Join(path.Dir(docPath), ref))
}
