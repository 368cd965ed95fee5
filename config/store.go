package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
)

// StoreNameValues holds the variables available to the locations
// file-name template.
type StoreNameValues struct {
	BookID string
	Title  string
}

const defaultLocationsTemplate = "{{ .BookID }}_locations.json"

// LocationsPath expands the configured file-name template and joins it
// with the store directory. Expansion failures fall back to the default
// naming scheme.
func (c *StoreConfig) LocationsPath(values StoreNameValues) string {
	tmplText := c.LocationsNameTemplate
	if tmplText == "" {
		tmplText = defaultLocationsTemplate
	}

	name, err := expandStoreName(tmplText, values)
	if err != nil || name == "" {
		name = values.BookID + "_locations.json"
	}
	return filepath.Join(c.StoreDir(), CleanFileName(name))
}

// AnnotationsPath is the fixed autosave location for a book.
func (c *StoreConfig) AnnotationsPath(bookID string) string {
	return filepath.Join(c.StoreDir(), CleanFileName(bookID+"_annotations.json"))
}

func expandStoreName(tmplText string, values StoreNameValues) (string, error) {
	funcs := sprig.FuncMap()
	funcs["slug"] = slug.Make

	tmpl, err := template.New("storename").Funcs(funcs).Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("unable to parse store name template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("unable to expand store name template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
