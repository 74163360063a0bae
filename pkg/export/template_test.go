package export

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/menta2k/design-extractor/pkg/analyzer"
	"github.com/menta2k/design-extractor/pkg/pipeline"
	"github.com/menta2k/design-extractor/pkg/types"
)

func completedRun() pipeline.Run {
	return pipeline.Run{
		ID:     "run-1",
		Status: pipeline.StatusCompleted,
		Info:   analyzer.ImageInfo{Width: 100, Height: 50, Format: "png"},
		Elements: []types.Element{
			types.NewColorElement("Background White", "#ffffff", types.ColorPayload{Hex: "#ffffff", Role: types.RoleBackground}),
			types.NewPaletteElement("Color Palette", "1 colors", types.PalettePayload{
				Swatches: []types.Swatch{{Hex: "#ffffff", Name: "White", Coverage: 1}},
			}),
		},
	}
}

func TestNewTemplate(t *testing.T) {
	tmpl, err := NewTemplate(completedRun(), "upload.png")
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	if tmpl.Version != Version || tmpl.RunID != "run-1" || tmpl.Source != "upload.png" {
		t.Errorf("Unexpected template header %+v", tmpl)
	}
	if tmpl.Count(types.KindColor) != 1 || tmpl.Count(types.KindPalette) != 1 {
		t.Errorf("Unexpected element counts in %+v", tmpl.Elements)
	}
}

func TestNewTemplateRequiresCompletedRun(t *testing.T) {
	run := pipeline.Run{ID: "run-2", Status: pipeline.StatusFailed, Err: types.ErrTimeout}
	if _, err := NewTemplate(run, ""); !errors.Is(err, ErrRunNotCompleted) {
		t.Errorf("Expected ErrRunNotCompleted, got %v", err)
	}
}

func TestTemplateJSONKeys(t *testing.T) {
	tmpl, err := NewTemplate(completedRun(), "")
	if err != nil {
		t.Fatal(err)
	}
	data, err := tmpl.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	for _, key := range []string{"version", "run_id", "generated_at", "image", "elements"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("Missing key %q", key)
		}
	}
	if _, ok := doc["source"]; ok {
		t.Error("Empty source should be omitted")
	}

	elements := doc["elements"].([]any)
	first := elements[0].(map[string]any)
	if first["type"] != "color" || first["name"] != "Background White" || first["details"] != "#ffffff" {
		t.Errorf("Unexpected element encoding %v", first)
	}
}

func TestWriteAndLoad(t *testing.T) {
	tmpl, err := NewTemplate(completedRun(), "upload.png")
	if err != nil {
		t.Fatal(err)
	}
	tmpl.WithHints(&types.DesignHints{FontFamilies: []string{"Inter"}, Style: "minimal"})

	path := filepath.Join(t.TempDir(), "nested", "template.json")
	if err := tmpl.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RunID != tmpl.RunID || len(loaded.Elements) != len(tmpl.Elements) {
		t.Errorf("Loaded template differs: %+v", loaded)
	}
	if loaded.Elements[1].Palette == nil || loaded.Elements[1].Palette.Swatches[0].Name != "White" {
		t.Errorf("Palette payload lost: %+v", loaded.Elements[1])
	}
	if loaded.Hints == nil || loaded.Hints.Style != "minimal" {
		t.Errorf("Hints lost: %+v", loaded.Hints)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
