// Package epubtest builds minimal in-memory publications for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"rishi/epub"
)

// Chapter is one spine item of a built publication.
type Chapter struct {
	// ID defaults to chN.
	ID string
	// HTML is the body served for the chapter. Non-HTML chapters set
	// Mime explicitly.
	HTML string
	Mime string
}

// Options tweak the generated package document.
type Options struct {
	Version         string // defaults to 3.0
	RenditionLayout string
	Direction       string
	ExtraManifest   string
	ExtraFiles      map[string][]byte
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// BuildZip assembles the container bytes.
func BuildZip(t *testing.T, chapters []Chapter, opts Options) []byte {
	t.Helper()

	version := opts.Version
	if version == "" {
		version = "3.0"
	}

	var manifest, spine strings.Builder
	files := map[string][]byte{
		"mimetype":               []byte("application/epub+zip"),
		"META-INF/container.xml": []byte(containerXML),
	}
	for i, ch := range chapters {
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("ch%d", i)
		}
		mime := ch.Mime
		if mime == "" {
			mime = "application/xhtml+xml"
		}
		href := fmt.Sprintf("text/%s.xhtml", id)
		fmt.Fprintf(&manifest, `<item id=%q href=%q media-type=%q/>`+"\n", id, href, mime)
		fmt.Fprintf(&spine, `<itemref idref=%q/>`+"\n", id)
		files["OEBPS/"+href] = []byte(ch.HTML)
	}

	var meta strings.Builder
	meta.WriteString(`<dc:identifier id="uid">urn:uuid:test</dc:identifier><dc:title>Fixture</dc:title>`)
	if opts.RenditionLayout != "" {
		fmt.Fprintf(&meta, `<meta property="rendition:layout">%s</meta>`, opts.RenditionLayout)
	}
	dirAttr := ""
	if opts.Direction != "" {
		dirAttr = fmt.Sprintf(" page-progression-direction=%q", opts.Direction)
	}

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/" version=%q unique-identifier="uid">
  <metadata>%s</metadata>
  <manifest>%s%s</manifest>
  <spine%s>%s</spine>
</package>`, version, meta.String(), manifest.String(), opts.ExtraManifest, dirAttr, spine.String())
	files["OEBPS/content.opf"] = []byte(opf)

	for name, data := range opts.ExtraFiles {
		files[name] = data
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Build opens the assembled publication.
func Build(t *testing.T, chapters []Chapter, opts Options) *epub.Document {
	t.Helper()
	data := BuildZip(t, chapters, opts)
	doc, err := epub.FromReaderAt(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		t.Fatalf("epubtest: open fixture: %v", err)
	}
	return doc
}

// Repeat returns HTML whose stripped text is exactly n characters.
func Repeat(n int) string {
	return "<p>" + strings.Repeat("a", n) + "</p>"
}
