// Package archive provides random access to EPUB (OCF) zip containers.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/maruel/natural"
)

// ContainerFile is the well-known OCF path pointing at the package document.
const ContainerFile = "META-INF/container.xml"

var (
	// ErrBadArchive indicates the file is not a readable zip container.
	ErrBadArchive = errors.New("archive: bad container")

	// ErrEntryMissing indicates the requested path does not exist in the container.
	ErrEntryMissing = errors.New("archive: entry missing")

	// ErrNotText indicates an entry requested as text is not valid UTF-8.
	ErrNotText = errors.New("archive: entry is not valid UTF-8")
)

// Reader gives random access to named entries of an EPUB container.
// Entry paths are container-absolute and always use forward slashes,
// callers translate OS separators before lookup.
type Reader struct {
	path    string
	zr      *zip.Reader
	closer  io.Closer
	entries map[string]*zip.File
}

// Open opens the container at path.
func Open(name string) (*Reader, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, name, err)
	}
	r, err := newReader(&rc.Reader, rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	r.path = name
	return r, nil
}

// FromReaderAt opens a container from an in-memory or mmapped source.
func FromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	return newReader(zr, nil)
}

func newReader(zr *zip.Reader, closer io.Closer) (*Reader, error) {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return nil, fmt.Errorf("%w: zip entry %q: unsafe path (absolute or contains path traversal)", ErrBadArchive, name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		entries[name] = f
	}
	return &Reader{zr: zr, closer: closer, entries: entries}, nil
}

// Path returns the file system location of the container, empty when the
// container was opened from a reader.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the underlying file when there is one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// List returns all entry paths in natural order.
func (r *Reader) List() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// Has reports whether the container holds an entry at path.
func (r *Reader) Has(name string) bool {
	_, ok := r.entries[normalize(name)]
	return ok
}

// ReadEntry returns entry bytes by container-absolute path.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	f, ok := r.entries[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryMissing, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open entry %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read entry %s: %w", name, err)
	}
	return data, nil
}

// ReadEntryText returns entry content decoded as UTF-8 text.
func (r *Reader) ReadEntryText(name string) (string, error) {
	data, err := r.ReadEntry(name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotText, name)
	}
	return string(data), nil
}

// Container returns the bytes of META-INF/container.xml.
func (r *Reader) Container() ([]byte, error) {
	return r.ReadEntry(ContainerFile)
}

// WalkFunc is the type of the function called for each entry visited by
// Walk. If an error is returned, processing stops.
type WalkFunc func(name string, data []byte) error

// Walk visits all entries whose path starts with prefix, in natural
// order, calling walkFn with the entry content.
func (r *Reader) Walk(prefix string, walkFn WalkFunc) error {
	for _, name := range r.List() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		data, err := r.ReadEntry(name)
		if err != nil {
			return err
		}
		if err := walkFn(name, data); err != nil {
			return err
		}
	}
	return nil
}

func normalize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimPrefix(path.Clean(name), "/")
}

// isSafePath returns false for paths that could escape an extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
