package types

import (
	"encoding/json"
	"fmt"
)

// ElementKind tags the variant carried by an Element
type ElementKind string

const (
	KindFont    ElementKind = "font"
	KindColor   ElementKind = "color"
	KindShape   ElementKind = "shape"
	KindEffect  ElementKind = "effect"
	KindText    ElementKind = "text"
	KindPalette ElementKind = "palette"
)

// ColorRole describes why a single color was reported
type ColorRole string

const (
	RoleBackground ColorRole = "background"
	RolePrimary    ColorRole = "primary"
	RoleAccent     ColorRole = "accent"
)

// FontPayload describes one estimated type style
type FontPayload struct {
	SizePx int        `json:"size_px"`
	Weight FontWeight `json:"weight"`
	Lines  int        `json:"lines"`
	Family string     `json:"family,omitempty"`
}

// ColorPayload carries a single color value
type ColorPayload struct {
	Hex  string    `json:"color"`
	Role ColorRole `json:"role"`
}

// ShapePayload carries a detected graphical region
type ShapePayload struct {
	Region Region `json:"region"`
	Class  string `json:"class"`
}

// EffectPayload carries an inferred visual effect
type EffectPayload struct {
	Effect Effect `json:"effect"`
}

// TextPayload carries a detected text line
type TextPayload struct {
	Line TextRegion `json:"line"`
}

// PalettePayload carries the ordered palette swatches
type PalettePayload struct {
	Swatches []Swatch `json:"swatches"`
}

// Element is one extracted design element. Exactly one payload is set and it
// always matches Kind; use the New*Element constructors to build values.
type Element struct {
	Kind    ElementKind
	Name    string
	Details string

	Font    *FontPayload
	Color   *ColorPayload
	Shape   *ShapePayload
	Effect  *EffectPayload
	Text    *TextPayload
	Palette *PalettePayload
}

func NewFontElement(name, details string, p FontPayload) Element {
	return Element{Kind: KindFont, Name: name, Details: details, Font: &p}
}

func NewColorElement(name, details string, p ColorPayload) Element {
	return Element{Kind: KindColor, Name: name, Details: details, Color: &p}
}

func NewShapeElement(name, details string, p ShapePayload) Element {
	return Element{Kind: KindShape, Name: name, Details: details, Shape: &p}
}

func NewEffectElement(name, details string, p EffectPayload) Element {
	return Element{Kind: KindEffect, Name: name, Details: details, Effect: &p}
}

func NewTextElement(name, details string, p TextPayload) Element {
	return Element{Kind: KindText, Name: name, Details: details, Text: &p}
}

func NewPaletteElement(name, details string, p PalettePayload) Element {
	swatches := make([]Swatch, len(p.Swatches))
	copy(swatches, p.Swatches)
	return Element{Kind: KindPalette, Name: name, Details: details, Palette: &PalettePayload{Swatches: swatches}}
}

// Value returns the payload that matches the element's kind
func (e Element) Value() any {
	switch e.Kind {
	case KindFont:
		return e.Font
	case KindColor:
		return e.Color
	case KindShape:
		return e.Shape
	case KindEffect:
		return e.Effect
	case KindText:
		return e.Text
	case KindPalette:
		return e.Palette
	}
	return nil
}

// Validate checks that exactly the payload named by Kind is populated
func (e Element) Validate() error {
	set := map[ElementKind]bool{
		KindFont:    e.Font != nil,
		KindColor:   e.Color != nil,
		KindShape:   e.Shape != nil,
		KindEffect:  e.Effect != nil,
		KindText:    e.Text != nil,
		KindPalette: e.Palette != nil,
	}
	if _, known := set[e.Kind]; !known {
		return fmt.Errorf("element %q: unknown kind %q", e.Name, e.Kind)
	}
	for kind, present := range set {
		if kind == e.Kind && !present {
			return fmt.Errorf("element %q: missing %s payload", e.Name, kind)
		}
		if kind != e.Kind && present {
			return fmt.Errorf("element %q: %s payload on %s element", e.Name, kind, e.Kind)
		}
	}
	return nil
}

type elementJSON struct {
	Kind    ElementKind     `json:"type"`
	Name    string          `json:"name"`
	Details string          `json:"details"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON renders {type, name, details, value}
func (e Element) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	value, err := json.Marshal(e.Value())
	if err != nil {
		return nil, err
	}
	return json.Marshal(elementJSON{Kind: e.Kind, Name: e.Name, Details: e.Details, Value: value})
}

// UnmarshalJSON decodes the payload according to the type tag
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Element{Kind: raw.Kind, Name: raw.Name, Details: raw.Details}
	var target any
	switch raw.Kind {
	case KindFont:
		out.Font = &FontPayload{}
		target = out.Font
	case KindColor:
		out.Color = &ColorPayload{}
		target = out.Color
	case KindShape:
		out.Shape = &ShapePayload{}
		target = out.Shape
	case KindEffect:
		out.Effect = &EffectPayload{}
		target = out.Effect
	case KindText:
		out.Text = &TextPayload{}
		target = out.Text
	case KindPalette:
		out.Palette = &PalettePayload{}
		target = out.Palette
	default:
		return fmt.Errorf("unknown element type %q", raw.Kind)
	}
	if len(raw.Value) > 0 {
		if err := json.Unmarshal(raw.Value, target); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Kind, err)
		}
	}
	*e = out
	return nil
}
