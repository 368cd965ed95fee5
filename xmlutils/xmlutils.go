// Package xmlutils builds the small set of lookups the package and
// navigation parsers need on top of etree: local-name search that
// ignores prefixes, namespace resolution through xmlns declarations and
// an attribute-rewriting traversal.
package xmlutils

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Parse reads an XML document preserving namespaces and comments.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("xml parse: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("xml parse: document has no root element")
	}
	return doc, nil
}

// FindLocal returns the first descendant element with the given local
// name regardless of namespace prefix, in document order. The element
// itself is considered.
func FindLocal(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == local {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := FindLocal(child, local); found != nil {
			return found
		}
	}
	return nil
}

// FindAllLocal returns every descendant element with the given local
// name in document order.
func FindAllLocal(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	if el == nil {
		return out
	}
	if el.Tag == local {
		out = append(out, el)
	}
	for _, child := range el.ChildElements() {
		out = append(out, FindAllLocal(child, local)...)
	}
	return out
}

// AttrLocal returns the first attribute with the given local name, any
// namespace prefix accepted.
func AttrLocal(el *etree.Element, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Key == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrNS returns the attribute with the given local name whose prefix
// resolves to the namespace URI ns.
func AttrNS(el *etree.Element, local, ns string) (string, bool) {
	for _, a := range el.Attr {
		if a.Key != local || a.Space == "" {
			continue
		}
		if ResolvePrefix(el, a.Space) == ns {
			return a.Value, true
		}
	}
	return "", false
}

// NamespaceURI resolves the namespace URI the element's own prefix (or
// default namespace) is bound to, walking xmlns declarations up the
// tree. Empty string means no namespace.
func NamespaceURI(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return ResolvePrefix(el, el.Space)
}

// ResolvePrefix resolves prefix to a namespace URI in the scope of el.
// An empty prefix resolves the default namespace.
func ResolvePrefix(el *etree.Element, prefix string) string {
	for cur := el; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if prefix == "" {
				if a.Space == "" && a.Key == "xmlns" {
					return a.Value
				}
			} else if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// Text returns the concatenated character data of the element's direct
// text children with whitespace-only runs collapsed away.
func Text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var sb strings.Builder
	for _, child := range el.Child {
		if cd, ok := child.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

// DeepText returns the concatenated character data of the element and
// all its descendants, trimmed. Used for labels whose text hides in
// nested spans.
func DeepText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.Child {
			switch n := child.(type) {
			case *etree.CharData:
				sb.WriteString(n.Data)
			case *etree.Element:
				walk(n)
			}
		}
	}
	walk(el)
	return strings.TrimSpace(sb.String())
}

// RewriteFunc receives element tag, attribute local name and current
// value and returns the replacement value.
type RewriteFunc func(tag, attr, value string) string

// ReplaceAttrs walks the document and rewrites every attribute through
// fn. Tags and attribute names are compared by local name.
func ReplaceAttrs(doc *etree.Document, fn RewriteFunc) {
	root := doc.Root()
	if root == nil {
		return
	}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for i, a := range el.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				continue
			}
			el.Attr[i].Value = fn(el.Tag, a.Key, a.Value)
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(root)
}
