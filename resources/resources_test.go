package resources

import (
	"fmt"
	"strings"
	"testing"

	"rishi/common"
)

func TestModeForMime(t *testing.T) {
	blob := common.ReplacementModeBlobUrl
	none := common.ReplacementModeNone
	s := Strategy{
		Default: common.ReplacementModeBase64,
		Images:  &blob,
		Scripts: &none,
	}

	tests := []struct {
		mime string
		want common.ReplacementMode
	}{
		{"image/png", common.ReplacementModeBlobUrl},
		{"IMAGE/JPEG", common.ReplacementModeBlobUrl},
		{"font/woff2", common.ReplacementModeBase64},
		{"application/font-sfnt", common.ReplacementModeBase64},
		{"application/x-whatever/woff", common.ReplacementModeBase64},
		{"text/css", common.ReplacementModeBase64},
		{"text/x-stylesheet-thing", common.ReplacementModeBase64},
		{"application/javascript", common.ReplacementModeNone},
		{"text/ecmascript", common.ReplacementModeNone},
		{"application/xhtml+xml", common.ReplacementModeBase64},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := s.ModeForMime(tt.mime); got != tt.want {
				t.Errorf("ModeForMime(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	t.Run("none returns original path", func(t *testing.T) {
		m := NewManager(Strategy{Default: common.ReplacementModeNone})
		if got := m.Transform("OEBPS/pic.png", "image/png", []byte{1}); got != "OEBPS/pic.png" {
			t.Errorf("Transform() = %q", got)
		}
	})

	t.Run("base64 data uri", func(t *testing.T) {
		m := WithDefault()
		got := m.Transform("OEBPS/pic.png", "image/png", []byte("abc"))
		if got != "data:image/png;base64,YWJj" {
			t.Errorf("Transform() = %q", got)
		}
	})

	t.Run("blob url with fallback", func(t *testing.T) {
		blob := common.ReplacementModeBlobUrl
		m := NewManager(Strategy{Default: common.ReplacementModeBase64, Images: &blob})
		m.RegisterBlob("OEBPS/a.png", "blob:1234")
		if got := m.Transform("OEBPS/a.png", "image/png", []byte("x")); got != "blob:1234" {
			t.Errorf("registered blob Transform() = %q", got)
		}
		if got := m.Transform("OEBPS/b.png", "image/png", []byte("x")); !strings.HasPrefix(got, "data:image/png;base64,") {
			t.Errorf("unregistered blob Transform() = %q", got)
		}
	})
}

func TestResolveAgainst(t *testing.T) {
	tests := []struct {
		doc, ref, want string
	}{
		{"OEBPS/text/ch1.xhtml", "../styles/main.css", "OEBPS/styles/main.css"},
		{"OEBPS/text/ch1.xhtml", "local.css", "OEBPS/text/local.css"},
		{"ch1.xhtml", "style.css", "style.css"},
		{"OEBPS/ch1.xhtml", "/abs/style.css", "abs/style.css"},
	}
	for _, tt := range tests {
		if got := ResolveAgainst(tt.doc, tt.ref); got != tt.want {
			t.Errorf("ResolveAgainst(%q, %q) = %q, want %q", tt.doc, tt.ref, got, tt.want)
		}
	}
}

func TestInlineCSS(t *testing.T) {
	css := map[string][]byte{
		"OEBPS/styles/main.css": []byte("body { margin: 0 }"),
	}
	lookup := func(p string) ([]byte, error) {
		if data, ok := css[p]; ok {
			return data, nil
		}
		return nil, fmt.Errorf("not found: %s", p)
	}

	t.Run("stylesheet link replaced", func(t *testing.T) {
		doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<html><head><title>x</title><link rel="stylesheet" type="text/css" href="../styles/main.css"/></head><body><p>hi</p></body></html>`)
		out := string(InlineCSS(doc, "OEBPS/text/ch1.xhtml", lookup))

		if strings.Contains(out, "<?xml") {
			t.Error("xml declaration survived")
		}
		if strings.Contains(out, "<link") {
			t.Errorf("link tag survived: %s", out)
		}
		if !strings.Contains(out, "body { margin: 0 }") {
			t.Errorf("css not inlined: %s", out)
		}
		if !strings.Contains(out, `<base href="OEBPS/text/ch1.xhtml"/>`) {
			t.Errorf("base not injected: %s", out)
		}
		if !strings.Contains(out, "<p>hi</p>") {
			t.Errorf("content damaged: %s", out)
		}
	})

	t.Run("external urls preserved", func(t *testing.T) {
		doc := []byte(`<html><head><link rel="stylesheet" href="https://cdn.example.com/a.css"/></head><body/></html>`)
		out := string(InlineCSS(doc, "OEBPS/ch1.xhtml", lookup))
		if !strings.Contains(out, `href="https://cdn.example.com/a.css"`) {
			t.Errorf("external link rewritten: %s", out)
		}
	})

	t.Run("unresolvable stylesheet left alone", func(t *testing.T) {
		doc := []byte(`<html><head><link rel="stylesheet" href="missing.css"/></head><body/></html>`)
		out := string(InlineCSS(doc, "OEBPS/ch1.xhtml", lookup))
		if !strings.Contains(out, `href="missing.css"`) {
			t.Errorf("missing stylesheet link dropped: %s", out)
		}
	})

	t.Run("non-stylesheet links untouched", func(t *testing.T) {
		doc := []byte(`<html><head><link rel="icon" href="fav.png"/></head><body/></html>`)
		out := string(InlineCSS(doc, "OEBPS/ch1.xhtml", lookup))
		if !strings.Contains(out, `rel="icon"`) {
			t.Errorf("icon link damaged: %s", out)
		}
	})
}

func TestIsExternalURL(t *testing.T) {
	for ref, want := range map[string]bool{
		"http://x/a.css":  true,
		"https://x/a.css": true,
		"//cdn/a.css":     true,
		"styles/a.css":    false,
		"/styles/a.css":   false,
	} {
		if got := IsExternalURL(ref); got != want {
			t.Errorf("IsExternalURL(%q) = %v", ref, got)
		}
	}
}
