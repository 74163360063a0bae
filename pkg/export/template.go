// Package export turns a completed extraction run into a template document
// that can be saved and loaded again.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/design-extractor/pkg/analyzer"
	"github.com/menta2k/design-extractor/pkg/pipeline"
	"github.com/menta2k/design-extractor/pkg/types"
)

// Version of the template document format
const Version = "1"

// ErrRunNotCompleted is returned when exporting a run that has no elements
var ErrRunNotCompleted = errors.New("run has not completed")

// Template is the exported form of a run
type Template struct {
	Version     string             `json:"version"`
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Source      string             `json:"source,omitempty"`
	Image       analyzer.ImageInfo `json:"image"`
	Elements    []types.Element    `json:"elements"`
	Hints       *types.DesignHints `json:"hints,omitempty"`
}

// NewTemplate builds a template from a completed run. source names where
// the image came from and may be empty.
func NewTemplate(run pipeline.Run, source string) (*Template, error) {
	if run.Status != pipeline.StatusCompleted {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotCompleted, run.ID, run.Status)
	}
	elements := run.Elements
	if elements == nil {
		elements = []types.Element{}
	}
	return &Template{
		Version:     Version,
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Image:       run.Info,
		Elements:    elements,
	}, nil
}

// WithHints attaches model suggestions to the template
func (t *Template) WithHints(hints *types.DesignHints) *Template {
	t.Hints = hints
	return t
}

// Count returns the number of elements of the given kind
func (t *Template) Count(kind types.ElementKind) int {
	n := 0
	for _, e := range t.Elements {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// JSON returns the indented JSON document
func (t *Template) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return data, nil
}

// WriteFile saves the template, creating the parent directory if needed
func (t *Template) WriteFile(filename string) error {
	data, err := t.JSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// Load reads a template written by WriteFile
func Load(filename string) (*Template, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	for _, e := range t.Elements {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
	}
	return &t, nil
}
