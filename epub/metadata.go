package epub

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"

	"rishi/xmlutils"
)

// fillMetadata walks the metadata element turning Dublin Core children
// into items and meta expressions into items or refinements. EPUB2
// stores refinement-like data in OPF-namespace attributes of the DC
// elements themselves, those are lifted into refinements too.
func (d *Document) fillMetadata(elem *etree.Element) {
	// refinements keyed by the id they refine, attached after the walk
	refinements := make(map[string][]Refinement)

	for _, item := range elem.ChildElements() {
		ns := xmlutils.NamespaceURI(item)
		switch {
		case ns == nsDC:
			m := MetadataItem{Property: item.Tag, Value: xmlutils.Text(item)}
			m.ID, _ = xmlutils.AttrLocal(item, "id")
			m.Lang, _ = xmlutils.AttrLocal(item, "lang")
			if !d.IsVersion3() {
				for _, attr := range item.Attr {
					if attr.Space == "" || attr.Space == "xmlns" {
						continue
					}
					if xmlutils.ResolvePrefix(item, attr.Space) != nsOPF {
						continue
					}
					m.Refined = append(m.Refined, Refinement{Property: attr.Key, Value: attr.Value})
				}
			}
			d.Metadata = append(d.Metadata, m)

		case ns == nsOPF && strings.EqualFold(item.Tag, "meta"):
			if property, ok := xmlutils.AttrLocal(item, "property"); ok {
				value := xmlutils.Text(item)
				lang, _ := xmlutils.AttrLocal(item, "lang")
				if refines, ok := xmlutils.AttrLocal(item, "refines"); ok {
					target := strings.TrimPrefix(refines, "#")
					scheme, _ := xmlutils.AttrLocal(item, "scheme")
					refinements[target] = append(refinements[target], Refinement{
						Property: property,
						Value:    value,
						Lang:     lang,
						Scheme:   scheme,
					})
					continue
				}
				m := MetadataItem{Property: property, Value: value, Lang: lang}
				m.ID, _ = xmlutils.AttrLocal(item, "id")
				d.Metadata = append(d.Metadata, m)
				continue
			}
			// Legacy XHTML1.1 name/content pair.
			if name, ok := xmlutils.AttrLocal(item, "name"); ok {
				if value, ok := xmlutils.AttrLocal(item, "content"); ok {
					d.Metadata = append(d.Metadata, MetadataItem{Property: name, Value: value})
				}
			}
		}
	}

	for i := range d.Metadata {
		if d.Metadata[i].ID == "" {
			continue
		}
		if refs, ok := refinements[d.Metadata[i].ID]; ok {
			d.Metadata[i].Refined = append(d.Metadata[i].Refined, refs...)
			delete(refinements, d.Metadata[i].ID)
		}
	}
}

// docMimes covers document types the magic-byte matcher cannot know.
var docMimes = map[string]string{
	".xhtml": "application/xhtml+xml",
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".ncx":   "application/x-dtbncx+xml",
	".opf":   "application/oebps-package+xml",
	".svg":   "image/svg+xml",
	".js":    "text/javascript",
	".txt":   "text/plain",
	".xml":   "application/xml",
}

// sniffMime guesses a media type for manifest items that omit one.
func sniffMime(href string) string {
	href, _, _ = strings.Cut(href, "#")
	dot := strings.LastIndexByte(href, '.')
	if dot < 0 {
		return "application/octet-stream"
	}
	ext := strings.ToLower(href[dot:])
	if mime, ok := docMimes[ext]; ok {
		return mime
	}
	if t := filetype.GetType(strings.TrimPrefix(ext, ".")); t != filetype.Unknown {
		return t.MIME.Value
	}
	return "application/octet-stream"
}
