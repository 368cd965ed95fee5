// Package annotations keeps one book's ordered annotation list with
// add-or-replace semantics and best-effort autosave to a JSON document.
package annotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rishi/common"
)

// ErrNotFound indicates an update for an id the store does not hold.
var ErrNotFound = errors.New("annotations: not found")

// Annotation is one user mark addressed by a CFI range. Ids are unique
// within a book.
type Annotation struct {
	ID       string                `json:"id"`
	Kind     common.AnnotationKind `json:"kind"`
	CFIRange string                `json:"cfi_range"`
	Color    string                `json:"color,omitempty"`
	Note     string                `json:"note,omitempty"`
}

type payload struct {
	Annotations []Annotation `json:"annotations"`
}

// Store is one book's annotation list. It is not self-locking, the
// engine serializes access.
type Store struct {
	path  string
	log   *zap.Logger
	items []Annotation
}

// NewStore creates a store autosaving to path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.Named("annotations")}
}

// Path returns the autosave location.
func (s *Store) Path() string { return s.path }

// Load reads the autosave file. A missing file leaves the store empty.
func (s *Store) Load() error {
	err := s.LoadFrom(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// LoadFrom replaces the store content with the document at path.
func (s *Store) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("annotations: read %s: %w", path, err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("annotations: decode %s: %w", path, err)
	}
	s.items = p.Annotations
	return nil
}

// SaveTo writes the store as { "annotations": [...] } to path.
func (s *Store) SaveTo(path string) error {
	data, err := json.MarshalIndent(payload{Annotations: s.list()}, "", "  ")
	if err != nil {
		return fmt.Errorf("annotations: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("annotations: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("annotations: write %s: %w", path, err)
	}
	return nil
}

// List returns a snapshot copy.
func (s *Store) List() []Annotation {
	return s.list()
}

func (s *Store) list() []Annotation {
	out := make([]Annotation, len(s.items))
	copy(out, s.items)
	return out
}

// Add inserts or replaces by id. An empty id gets a generated one.
// Returns the stored annotation.
func (s *Store) Add(a Annotation) Annotation {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	replaced := false
	for i := range s.items {
		if s.items[i].ID == a.ID {
			s.items[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		s.items = append(s.items, a)
	}
	s.autosave()
	return a
}

// Update replaces by id and fails when the id is unknown.
func (s *Store) Update(a Annotation) error {
	for i := range s.items {
		if s.items[i].ID == a.ID {
			s.items[i] = a
			s.autosave()
			return nil
		}
	}
	return fmt.Errorf("%w: id %q", ErrNotFound, a.ID)
}

// Remove deletes by id. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.autosave()
			return
		}
	}
}

// autosave is best-effort: the in-memory store stays authoritative
// until the next explicit save.
func (s *Store) autosave() {
	if s.path == "" {
		return
	}
	if err := s.SaveTo(s.path); err != nil {
		s.log.Warn("Annotation autosave failed", zap.String("path", s.path), zap.Error(err))
	}
}
