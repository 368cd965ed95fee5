package epub

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"

	"rishi/xmlutils"
)

// NavPoint is one entry of the NCX navigation map. Content is a
// container-absolute path, possibly carrying a fragment.
type NavPoint struct {
	Label        string
	Content      string
	Children     []NavPoint
	PlayOrder    int
	HasPlayOrder bool
}

func (d *Document) fillTOC(id string) error {
	res, ok := d.Resources[id]
	if !ok {
		return fmt.Errorf("%w: ncx id %q", ErrResourceNotFound, id)
	}
	data, err := d.arc.ReadEntry(res.Path)
	if err != nil {
		return err
	}
	ncx, err := xmlutils.Parse(data)
	if err != nil {
		return err
	}
	root := ncx.Root()

	if dt := xmlutils.FindLocal(root, "docTitle"); dt != nil {
		if text := xmlutils.FindLocal(dt, "text"); text != nil && text != dt {
			d.TocTitle = xmlutils.Text(text)
		}
	}

	navMap := xmlutils.FindLocal(root, "navMap")
	if navMap == nil {
		return fmt.Errorf("%w: ncx has no navMap", ErrInvalidEpub)
	}
	d.TOC = d.collectNavPoints(navMap)
	sortNavPoints(d.TOC)
	return nil
}

func (d *Document) collectNavPoints(parent *etree.Element) []NavPoint {
	var points []NavPoint
	for _, item := range parent.ChildElements() {
		if item.Tag != "navPoint" {
			continue
		}
		np := NavPoint{}
		if po, ok := xmlutils.AttrLocal(item, "playOrder"); ok {
			if n, err := parseUint(po); err == nil {
				np.PlayOrder = n
				np.HasPlayOrder = true
			}
		}
		if label := childByTag(item, "navLabel"); label != nil {
			np.Label = xmlutils.DeepText(label)
		}
		if c := childByTag(item, "content"); c != nil {
			if src, ok := xmlutils.AttrLocal(c, "src"); ok {
				np.Content = d.joinNCXSrc(src)
			}
		}
		if np.Label == "" || np.Content == "" {
			continue
		}
		np.Children = d.collectNavPoints(item)
		points = append(points, np)
	}
	sortNavPoints(points)
	return points
}

// joinNCXSrc resolves an NCX src keeping its fragment intact.
func (d *Document) joinNCXSrc(src string) string {
	p, frag, has := splitFragment(src)
	p = d.ResolveHref(p)
	if has {
		return p + "#" + frag
	}
	return p
}

// sortNavPoints orders by playOrder ascending; entries without
// playOrder sort after those with one, keeping document order among
// themselves.
func sortNavPoints(points []NavPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.HasPlayOrder != b.HasPlayOrder {
			return a.HasPlayOrder
		}
		if !a.HasPlayOrder {
			return false
		}
		return a.PlayOrder < b.PlayOrder
	})
}

func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func splitFragment(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '#' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func parseUint(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}
