package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NavItem is one entry of an EPUB3 navigation list.
type NavItem struct {
	Label    string
	Href     string
	Children []NavItem
}

// NavData is the parsed EPUB3 navigation document.
type NavData struct {
	TOC       []NavItem
	PageList  []NavItem
	Landmarks []NavItem
}

// NavID returns the manifest id of the EPUB3 navigation document.
// The concept does not exist before version 3.
func (d *Document) NavID() (string, bool) {
	if !d.IsVersion3() {
		return "", false
	}
	for id, res := range d.Resources {
		if res.HasProperty("nav") {
			return id, true
		}
	}
	return "", false
}

// NavData parses the EPUB3 navigation document when the publication has
// one. Nav documents are XHTML in the wild but rarely well-formed XML,
// so they go through the lenient HTML parser.
func (d *Document) NavData() (*NavData, bool) {
	id, ok := d.NavID()
	if !ok {
		return nil, false
	}
	data, _, err := d.ResourceByID(id)
	if err != nil {
		return nil, false
	}
	nav, err := parseNavDocument(data)
	if err != nil {
		return nil, false
	}
	return nav, true
}

func parseNavDocument(data []byte) (*NavData, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &NavData{
		TOC:       collectNavList(findNavOfType(root, "toc")),
		PageList:  collectNavList(findNavOfType(root, "page-list")),
		Landmarks: collectNavList(findNavOfType(root, "landmarks")),
	}, nil
}

// findNavOfType locates <nav epub:type="..."> carrying the wanted token.
func findNavOfType(n *html.Node, navType string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
		for _, a := range n.Attr {
			if !strings.EqualFold(a.Key, "epub:type") && !(a.Namespace != "" && a.Key == "type") {
				continue
			}
			for _, tok := range strings.Fields(a.Val) {
				if strings.EqualFold(tok, navType) {
					return n
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNavOfType(c, navType); found != nil {
			return found
		}
	}
	return nil
}

// collectNavList reads the first <ol> under the nav block into items.
func collectNavList(nav *html.Node) []NavItem {
	if nav == nil {
		return nil
	}
	ol := findElement(nav, atom.Ol)
	if ol == nil {
		return nil
	}
	return collectNavItems(ol)
}

// collectNavItems expects <ol><li><a href>label</a>[<ol>children]</li></ol>.
func collectNavItems(ol *html.Node) []NavItem {
	var items []NavItem
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		var item NavItem
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.A:
				item.Href = attrValue(c, "href")
				item.Label = strings.TrimSpace(nodeText(c))
			case atom.Span:
				if item.Label == "" {
					item.Label = strings.TrimSpace(nodeText(c))
				}
			case atom.Ol:
				item.Children = collectNavItems(c)
			}
		}
		if item.Href != "" {
			items = append(items, item)
		}
	}
	return items
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
