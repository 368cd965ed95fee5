package resources

import (
	"bytes"
	"regexp"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/html"
)

// CSSLookup fetches stylesheet bytes by container-absolute path.
type CSSLookup func(path string) ([]byte, error)

// piPattern matches XML declarations and processing instructions, both
// stripped before the document reaches the renderer.
var piPattern = regexp.MustCompile(`<\?[^?]*(\?+[^>?][^?]*)*\?+>`)

// InlineCSS rewrites a content document for delivery: every local
// <link rel="stylesheet"> is replaced by a <style> element holding the
// target's bytes, a <base> pointing at the document's own container
// path is injected into <head>, and XML declarations/processing
// instructions are removed. External stylesheet URLs are preserved.
func InlineCSS(doc []byte, docPath string, lookup CSSLookup) []byte {
	doc = piPattern.ReplaceAll(doc, nil)

	var out bytes.Buffer
	out.Grow(len(doc) + 256)

	lexer := html.NewLexer(parse.NewInput(bytes.NewReader(doc)))

	// pending <link> tag capture: raw bytes replayed when the tag turns
	// out not to be an inlinable stylesheet
	var pending bytes.Buffer
	var pendingAttrs map[string]string
	capturing := false
	injectBase := false

	flushPending := func() {
		out.Write(pending.Bytes())
		pending.Reset()
		pendingAttrs = nil
		capturing = false
	}

	for {
		tt, data := lexer.Next()
		if tt == html.ErrorToken {
			if capturing {
				flushPending()
			}
			out.Write(data)
			return out.Bytes()
		}

		switch tt {
		case html.StartTagToken:
			if capturing {
				flushPending()
			}
			name := string(bytes.ToLower(lexer.Text()))
			switch name {
			case "link":
				capturing = true
				pendingAttrs = make(map[string]string)
				pending.Write(data)
				continue
			case "head":
				injectBase = true
			}
			out.Write(data)

		case html.AttributeToken:
			if capturing {
				pending.Write(data)
				key := string(bytes.ToLower(lexer.Text()))
				pendingAttrs[key] = string(unquote(lexer.AttrVal()))
				continue
			}
			out.Write(data)

		case html.StartTagCloseToken, html.StartTagVoidToken:
			if capturing {
				pending.Write(data)
				if css, ok := resolveStylesheet(pendingAttrs, docPath, lookup); ok {
					out.WriteString("<style type=\"text/css\">\n")
					out.Write(css)
					out.WriteString("\n</style>")
					pending.Reset()
					pendingAttrs = nil
					capturing = false
				} else {
					flushPending()
				}
				continue
			}
			out.Write(data)
			if injectBase {
				out.WriteString(`<base href="` + docPath + `"/>`)
				injectBase = false
			}

		default:
			if capturing {
				flushPending()
			}
			out.Write(data)
		}
	}
}

func resolveStylesheet(attrs map[string]string, docPath string, lookup CSSLookup) ([]byte, bool) {
	if attrs == nil || lookup == nil {
		return nil, false
	}
	rel, href := attrs["rel"], attrs["href"]
	if !bytes.Contains(bytes.ToLower([]byte(rel)), []byte("stylesheet")) || href == "" {
		return nil, false
	}
	if IsExternalURL(href) {
		return nil, false
	}
	css, err := lookup(ResolveAgainst(docPath, href))
	if err != nil {
		return nil, false
	}
	return css, true
}

func unquote(v []byte) []byte {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
