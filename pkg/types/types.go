package types

// Swatch is a representative palette color with a human readable name
type Swatch struct {
	Hex      string  `json:"color"`
	Name     string  `json:"name"`
	Coverage float64 `json:"coverage"`
}

// FontWeight is the coarse stroke weight classification of a text line
type FontWeight string

const (
	WeightRegular FontWeight = "regular"
	WeightBold    FontWeight = "bold"
)

// TextRegion is a best-effort guess at a single line of text
type TextRegion struct {
	Box           Region     `json:"box"`
	FontSizePx    float64    `json:"font_size_px"`
	Weight        FontWeight `json:"weight"`
	StrokeWidthPx float64    `json:"stroke_width_px"`
	GlyphCount    int        `json:"glyph_count"`
	Color         string     `json:"color,omitempty"`
	Text          string     `json:"text,omitempty"`
}

// EffectKind classifies the dominant visual effect around a shape
type EffectKind string

const (
	EffectNone         EffectKind = "none"
	EffectDropShadow   EffectKind = "drop-shadow"
	EffectGlow         EffectKind = "glow"
	EffectGradientFill EffectKind = "gradient-fill"
)

// Effect is the result of effect inference for one region
type Effect struct {
	Kind         EffectKind `json:"kind"`
	Region       Region     `json:"region"`
	BlurRadiusPx float64    `json:"blur_radius_px,omitempty"`
	Opacity      float64    `json:"opacity,omitempty"`
	OffsetX      float64    `json:"offset_x,omitempty"`
	OffsetY      float64    `json:"offset_y,omitempty"`
	Strength     float64    `json:"strength"`
	AngleDeg     float64    `json:"angle_deg,omitempty"`
	From         string     `json:"from,omitempty"`
	To           string     `json:"to,omitempty"`
	Color        string     `json:"color,omitempty"`
}

// DesignHints holds the optional suggestions returned by a vision model
type DesignHints struct {
	FontFamilies []string `json:"font_families"`
	Style        string   `json:"style"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
}
