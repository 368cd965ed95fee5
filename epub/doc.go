// Package epub opens EPUB 2.0/3.0 publications and exposes their
// package document: spine, resources, metadata, navigation, guides and
// rendition properties.
//
// The policy follows real-world archives rather than the letter of the
// specs: files mixing EPUB2 and EPUB3 features are accepted, anything
// optional that is missing parses as empty, and only a missing
// container, package, manifest or spine fails the open.
package epub

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"rishi/archive"
	"rishi/xmlutils"
)

// ErrInvalidEpub indicates a structural failure: missing container,
// package document, manifest or spine.
var ErrInvalidEpub = errors.New("epub: invalid publication")

// ErrResourceNotFound indicates a manifest id or container path that
// does not resolve.
var ErrResourceNotFound = errors.New("epub: resource not found")

// Namespace URIs the parser distinguishes.
const (
	nsOPF = "http://www.idpf.org/2007/opf"
	nsDC  = "http://purl.org/dc/elements/1.1/"
)

// Known version tags. Anything else is preserved verbatim.
const (
	Version2 = "2.0"
	Version3 = "3.0"
)

// SpineItem is one itemref in reading order.
type SpineItem struct {
	IDRef      string
	ID         string
	Properties string
	Linear     bool
}

// ResourceItem is one manifest item. Path is container-absolute with
// forward slashes.
type ResourceItem struct {
	Path       string
	Mime       string
	Properties string
}

// HasProperty reports whether the space-separated properties attribute
// carries the given token.
func (r ResourceItem) HasProperty(token string) bool {
	for _, p := range strings.Fields(r.Properties) {
		if p == token {
			return true
		}
	}
	return false
}

// Refinement is an EPUB3 metadata subexpression attached to a primary
// item via refines="#id". For EPUB2 it approximates OPF-namespace
// attributes on Dublin Core elements.
type Refinement struct {
	Property string
	Value    string
	Lang     string
	Scheme   string
}

// MetadataItem is one Dublin Core element or primary meta expression.
type MetadataItem struct {
	ID       string
	Property string
	Value    string
	Lang     string
	Refined  []Refinement
}

// Refinement returns the first refinement with the given property.
func (m *MetadataItem) Refinement(property string) (Refinement, bool) {
	for _, r := range m.Refined {
		if r.Property == property {
			return r, true
		}
	}
	return Refinement{}, false
}

// GuideRef is one EPUB2 guide reference.
type GuideRef struct {
	Type  string
	Title string
	Href  string
}

// Binding maps a foreign media type to its handler resource (EPUB3).
type Binding struct {
	MediaType string
	Handler   string
}

// CollectionLink is one link inside an EPUB3 collection.
type CollectionLink struct {
	Href string
	Rel  string
}

// Collection is an EPUB3 package collection. Nested collections are not
// traversed.
type Collection struct {
	Role  string
	Links []CollectionLink
}

// Document is an opened publication. Spine order is authoritative;
// resources are keyed by manifest id.
type Document struct {
	arc *archive.Reader
	log *zap.Logger

	// current spine position for the chapter cursor
	current int

	Version   string
	Spine     []SpineItem
	Resources map[string]ResourceItem
	Metadata  []MetadataItem

	// TOC is the NavPoint tree from the NCX, ordered by playOrder.
	TOC      []NavPoint
	TocTitle string

	RootFile string
	RootBase string

	UniqueIdentifier         string
	PageProgressionDirection string

	Guides []GuideRef

	RenditionLayout      string
	RenditionFlow        string
	RenditionOrientation string
	RenditionSpread      string

	Bindings    []Binding
	Collections []Collection
}

// Open opens the publication at path.
func Open(name string, log *zap.Logger) (*Document, error) {
	arc, err := archive.Open(name)
	if err != nil {
		return nil, err
	}
	doc, err := fromArchive(arc, log)
	if err != nil {
		arc.Close()
		return nil, err
	}
	return doc, nil
}

// FromReaderAt opens a publication from an in-memory container.
func FromReaderAt(ra io.ReaderAt, size int64, log *zap.Logger) (*Document, error) {
	arc, err := archive.FromReaderAt(ra, size)
	if err != nil {
		return nil, err
	}
	return fromArchive(arc, log)
}

func fromArchive(arc *archive.Reader, log *zap.Logger) (*Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	doc := &Document{
		arc:       arc,
		log:       log.Named("epub"),
		Resources: make(map[string]ResourceItem),
	}

	container, err := arc.Container()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEpub, err)
	}
	rootFile, err := rootFilePath(container)
	if err != nil {
		return nil, err
	}
	doc.RootFile = rootFile
	doc.RootBase = path.Dir(rootFile)
	if doc.RootBase == "." {
		doc.RootBase = ""
	}

	if err := doc.fillFromPackage(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Close releases the underlying container.
func (d *Document) Close() error {
	return d.arc.Close()
}

// Archive exposes the container for raw entry access.
func (d *Document) Archive() *archive.Reader {
	return d.arc
}

// IsVersion3 reports whether the package declares a 3.x version.
func (d *Document) IsVersion3() bool {
	return strings.HasPrefix(d.Version, "3")
}

// FixedLayout reports whether the publication is pre-paginated.
func (d *Document) FixedLayout() bool {
	return strings.EqualFold(d.RenditionLayout, "pre-paginated")
}

// Mdata returns the first metadata item with the given property.
func (d *Document) Mdata(property string) (*MetadataItem, bool) {
	for i := range d.Metadata {
		if d.Metadata[i].Property == property {
			return &d.Metadata[i], true
		}
	}
	return nil, false
}

// Title returns the primary title, empty when the publication has none.
func (d *Document) Title() string {
	if m, ok := d.Mdata("title"); ok {
		return m.Value
	}
	return ""
}

// ReleaseIdentifier returns <unique-identifier>@<dcterms:modified> when
// both parts are present.
func (d *Document) ReleaseIdentifier() string {
	m, ok := d.Mdata("dcterms:modified")
	if !ok || d.UniqueIdentifier == "" {
		return ""
	}
	return d.UniqueIdentifier + "@" + m.Value
}

// ResolveHref resolves a package-relative href (fragment allowed but
// stripped) into a container-absolute path.
func (d *Document) ResolveHref(href string) string {
	href, _, _ = strings.Cut(href, "#")
	href = strings.ReplaceAll(href, `\`, "/")
	if d.RootBase == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(d.RootBase, href))
}

// ResourceByID returns bytes and mime for a manifest id.
func (d *Document) ResourceByID(id string) ([]byte, string, error) {
	res, ok := d.Resources[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: id %q", ErrResourceNotFound, id)
	}
	data, err := d.arc.ReadEntry(res.Path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: id %q: %v", ErrResourceNotFound, id, err)
	}
	return data, res.Mime, nil
}

// ResourceStrByID returns UTF-8 content and mime for a manifest id.
func (d *Document) ResourceStrByID(id string) (string, string, error) {
	data, mime, err := d.ResourceByID(id)
	if err != nil {
		return "", "", err
	}
	return string(data), mime, nil
}

// ResourceByPath returns entry bytes by container-absolute path.
func (d *Document) ResourceByPath(p string) ([]byte, error) {
	data, err := d.arc.ReadEntry(p)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %v", ErrResourceNotFound, p, err)
	}
	return data, nil
}

// MimeByPath returns the manifest mime of the resource at the given
// container-absolute path.
func (d *Document) MimeByPath(p string) (string, bool) {
	for _, r := range d.Resources {
		if r.Path == p {
			return r.Mime, true
		}
	}
	return "", false
}

// SpineIndexOfID returns the spine position of a manifest id.
func (d *Document) SpineIndexOfID(id string) (int, bool) {
	for i, item := range d.Spine {
		if item.IDRef == id {
			return i, true
		}
	}
	return 0, false
}

// HrefToSpineIndex resolves a content href (fragments allowed) to a
// spine position.
func (d *Document) HrefToSpineIndex(href string) (int, bool) {
	target := d.ResolveHref(href)
	for id, res := range d.Resources {
		if res.Path == target {
			return d.SpineIndexOfID(id)
		}
	}
	return 0, false
}

// SpineContent returns content and mime for a spine position.
func (d *Document) SpineContent(i int) (string, string, error) {
	if i < 0 || i >= len(d.Spine) {
		return "", "", fmt.Errorf("%w: spine index %d", ErrResourceNotFound, i)
	}
	return d.ResourceStrByID(d.Spine[i].IDRef)
}

// Chapter cursor over the spine, kept for hosts that page through the
// publication without a layout plan.

// CurrentChapter returns the cursor position.
func (d *Document) CurrentChapter() int { return d.current }

// SetCurrentChapter moves the cursor, reporting false when out of
// bounds.
func (d *Document) SetCurrentChapter(n int) bool {
	if n < 0 || n >= len(d.Spine) {
		return false
	}
	d.current = n
	return true
}

// GoNext advances the cursor, reporting false at the last chapter.
func (d *Document) GoNext() bool {
	if d.current+1 >= len(d.Spine) {
		return false
	}
	d.current++
	return true
}

// GoPrev rewinds the cursor, reporting false at the first chapter.
func (d *Document) GoPrev() bool {
	if d.current < 1 {
		return false
	}
	d.current--
	return true
}

func rootFilePath(container []byte) (string, error) {
	doc, err := xmlutils.Parse(container)
	if err != nil {
		return "", fmt.Errorf("%w: container: %v", ErrInvalidEpub, err)
	}
	rootfile := xmlutils.FindLocal(doc.Root(), "rootfile")
	if rootfile == nil {
		return "", fmt.Errorf("%w: container has no rootfile", ErrInvalidEpub)
	}
	fullPath, ok := xmlutils.AttrLocal(rootfile, "full-path")
	if !ok || fullPath == "" {
		return "", fmt.Errorf("%w: rootfile has no full-path", ErrInvalidEpub)
	}
	return strings.ReplaceAll(fullPath, `\`, "/"), nil
}

func (d *Document) fillFromPackage() error {
	pkgBytes, err := d.arc.ReadEntry(d.RootFile)
	if err != nil {
		return fmt.Errorf("%w: package document: %v", ErrInvalidEpub, err)
	}
	pkg, err := xmlutils.Parse(pkgBytes)
	if err != nil {
		return fmt.Errorf("%w: package document: %v", ErrInvalidEpub, err)
	}
	root := pkg.Root()

	if v, ok := xmlutils.AttrLocal(root, "version"); ok && v != "" {
		d.Version = v
	} else {
		d.Version = "unknown"
	}
	uidID, _ := xmlutils.AttrLocal(root, "unique-identifier")

	// Resources must be filled before spine and navigation, both
	// resolve manifest ids.
	manifest := xmlutils.FindLocal(root, "manifest")
	if manifest == nil {
		return fmt.Errorf("%w: package has no manifest", ErrInvalidEpub)
	}
	for _, item := range manifest.ChildElements() {
		if item.Tag != "item" {
			continue
		}
		if err := d.insertResource(item); err != nil {
			d.log.Debug("Skipping manifest item", zap.Error(err))
		}
	}

	spine := xmlutils.FindLocal(root, "spine")
	if spine == nil {
		return fmt.Errorf("%w: package has no spine", ErrInvalidEpub)
	}
	for _, itemref := range spine.ChildElements() {
		if itemref.Tag != "itemref" {
			continue
		}
		d.insertSpine(itemref)
	}

	if tocID, ok := xmlutils.AttrLocal(spine, "toc"); ok && tocID != "" {
		if err := d.fillTOC(tocID); err != nil {
			d.log.Debug("Unable to read NCX", zap.String("id", tocID), zap.Error(err))
		}
	}

	if metadata := xmlutils.FindLocal(root, "metadata"); metadata != nil {
		d.fillMetadata(metadata)
	}

	d.fillPackagingExtras(root, spine)

	if guide := xmlutils.FindLocal(root, "guide"); guide != nil {
		for _, ref := range guide.ChildElements() {
			if ref.Tag != "reference" {
				continue
			}
			g := GuideRef{}
			g.Type, _ = xmlutils.AttrLocal(ref, "type")
			g.Title, _ = xmlutils.AttrLocal(ref, "title")
			g.Href, _ = xmlutils.AttrLocal(ref, "href")
			d.Guides = append(d.Guides, g)
		}
	}

	d.UniqueIdentifier = d.findUniqueIdentifier(uidID)
	return nil
}

func (d *Document) insertResource(item *etree.Element) error {
	id, ok := xmlutils.AttrLocal(item, "id")
	if !ok {
		return fmt.Errorf("manifest item without id")
	}
	href, ok := xmlutils.AttrLocal(item, "href")
	if !ok {
		return fmt.Errorf("manifest item %q without href", id)
	}
	mime, ok := xmlutils.AttrLocal(item, "media-type")
	if !ok || mime == "" {
		mime = sniffMime(href)
	}
	properties, _ := xmlutils.AttrLocal(item, "properties")

	d.Resources[id] = ResourceItem{
		Path:       d.ResolveHref(href),
		Mime:       mime,
		Properties: properties,
	}
	return nil
}

func (d *Document) insertSpine(itemref *etree.Element) {
	idref, ok := xmlutils.AttrLocal(itemref, "idref")
	if !ok || idref == "" {
		return
	}
	item := SpineItem{IDRef: idref, Linear: true}
	item.ID, _ = xmlutils.AttrLocal(itemref, "id")
	item.Properties, _ = xmlutils.AttrLocal(itemref, "properties")
	if linear, ok := xmlutils.AttrLocal(itemref, "linear"); ok {
		item.Linear = linear == "yes"
	}
	d.Spine = append(d.Spine, item)
}

func (d *Document) fillPackagingExtras(root, spine *etree.Element) {
	if ppd, ok := xmlutils.AttrLocal(spine, "page-progression-direction"); ok {
		d.PageProgressionDirection = ppd
	}

	if metadata := xmlutils.FindLocal(root, "metadata"); metadata != nil {
		for _, item := range metadata.ChildElements() {
			if item.Tag != "meta" {
				continue
			}
			prop, ok := xmlutils.AttrLocal(item, "property")
			if !ok {
				continue
			}
			switch prop {
			case "rendition:layout":
				d.RenditionLayout = xmlutils.Text(item)
			case "rendition:flow":
				d.RenditionFlow = xmlutils.Text(item)
			case "rendition:orientation":
				d.RenditionOrientation = xmlutils.Text(item)
			case "rendition:spread":
				d.RenditionSpread = xmlutils.Text(item)
			}
		}
	}

	if bindings := xmlutils.FindLocal(root, "bindings"); bindings != nil {
		for _, mt := range bindings.ChildElements() {
			if mt.Tag != "mediaType" {
				continue
			}
			mediaType, _ := xmlutils.AttrLocal(mt, "media-type")
			handler, _ := xmlutils.AttrLocal(mt, "handler")
			if mediaType != "" && handler != "" {
				d.Bindings = append(d.Bindings, Binding{MediaType: mediaType, Handler: handler})
			}
		}
	}

	for _, node := range root.ChildElements() {
		if node.Tag != "collection" {
			continue
		}
		col := Collection{}
		col.Role, _ = xmlutils.AttrLocal(node, "role")
		for _, l := range node.ChildElements() {
			if l.Tag != "link" {
				continue
			}
			link := CollectionLink{}
			link.Href, _ = xmlutils.AttrLocal(l, "href")
			link.Rel, _ = xmlutils.AttrLocal(l, "rel")
			col.Links = append(col.Links, link)
		}
		d.Collections = append(d.Collections, col)
	}
}

func (d *Document) findUniqueIdentifier(uidID string) string {
	if uidID != "" {
		for _, m := range d.Metadata {
			if m.Property == "identifier" && m.ID == uidID {
				return m.Value
			}
		}
	}
	for _, m := range d.Metadata {
		if m.Property == "identifier" {
			return m.Value
		}
	}
	return ""
}
