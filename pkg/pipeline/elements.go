package pipeline

import (
	"cmp"
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/menta2k/design-extractor/pkg/palette"
	"github.com/menta2k/design-extractor/pkg/types"
	"github.com/menta2k/design-extractor/pkg/vision"
)

// Result is the combined stage output of a run, measured in source pixels
type Result struct {
	Width      int
	Height     int
	Background color.NRGBA
	Swatches   []types.Swatch
	Shapes     []types.Region
	Lines      []types.TextRegion
	Effects    []types.Effect
}

// distinctColor is the smallest channel distance at which two colors are
// reported separately
const distinctColor = 0.08

// Synthesize turns stage output into the ordered element list: fonts,
// colors, shapes, effects, palette, text
func Synthesize(res Result) []types.Element {
	var elements []types.Element
	elements = append(elements, fontElements(res.Lines)...)
	elements = append(elements, colorElements(res.Background, res.Swatches)...)
	elements = append(elements, shapeElements(res.Shapes, res.Width, res.Height)...)
	elements = append(elements, effectElements(res.Effects)...)
	if len(res.Swatches) > 0 {
		elements = append(elements, types.NewPaletteElement("Color Palette",
			fmt.Sprintf("%d colors", len(res.Swatches)),
			types.PalettePayload{Swatches: res.Swatches}))
	}
	elements = append(elements, textElements(res.Lines)...)
	return elements
}

type fontStyle struct {
	size   int
	weight types.FontWeight
	lines  int
}

func fontElements(lines []types.TextRegion) []types.Element {
	var styles []fontStyle
	for _, l := range lines {
		size := int(math.Round(l.FontSizePx))
		i := slices.IndexFunc(styles, func(s fontStyle) bool {
			return s.size == size && s.weight == l.Weight
		})
		if i < 0 {
			styles = append(styles, fontStyle{size: size, weight: l.Weight})
			i = len(styles) - 1
		}
		styles[i].lines++
	}
	slices.SortStableFunc(styles, func(a, b fontStyle) int {
		if c := cmp.Compare(b.size, a.size); c != 0 {
			return c
		}
		return cmp.Compare(a.weight, b.weight)
	})

	elements := make([]types.Element, 0, len(styles))
	for i, s := range styles {
		name := "Body Text"
		switch {
		case len(styles) == 1:
		case i == 0:
			name = "Heading"
		case i == 1 && len(styles) > 2:
			name = "Subheading"
		}
		details := fmt.Sprintf("%dpx, %s", s.size, capitalize(string(s.weight)))
		elements = append(elements, types.NewFontElement(name, details, types.FontPayload{
			SizePx: s.size,
			Weight: s.weight,
			Lines:  s.lines,
		}))
	}
	return elements
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseHex(hex string) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// colorElements reports the background, the most common other swatch as
// primary and the most saturated remaining swatch as accent
func colorElements(bg color.NRGBA, swatches []types.Swatch) []types.Element {
	bgHex := vision.HexColor(bg)
	bgName := palette.NearestName(colorful.Color{
		R: float64(bg.R) / 255,
		G: float64(bg.G) / 255,
		B: float64(bg.B) / 255,
	})
	elements := []types.Element{
		types.NewColorElement("Background "+bgName, bgHex, types.ColorPayload{Hex: bgHex, Role: types.RoleBackground}),
	}
	reported := []color.NRGBA{bg}
	distinct := func(c color.NRGBA) bool {
		for _, r := range reported {
			if vision.ColorDistance(c, r) < distinctColor {
				return false
			}
		}
		return true
	}

	// Swatches arrive ordered by coverage
	var rest []types.Swatch
	for _, s := range swatches {
		if !distinct(parseHex(s.Hex)) {
			continue
		}
		if len(reported) == 1 {
			elements = append(elements, types.NewColorElement("Primary "+s.Name, s.Hex,
				types.ColorPayload{Hex: s.Hex, Role: types.RolePrimary}))
			reported = append(reported, parseHex(s.Hex))
			continue
		}
		rest = append(rest, s)
	}

	best, bestSat := -1, 0.0
	for i, s := range rest {
		c, err := colorful.Hex(s.Hex)
		if err != nil {
			continue
		}
		_, sat, _ := c.Hsv()
		if sat > bestSat {
			best, bestSat = i, sat
		}
	}
	if best >= 0 {
		s := rest[best]
		elements = append(elements, types.NewColorElement("Accent "+s.Name, s.Hex,
			types.ColorPayload{Hex: s.Hex, Role: types.RoleAccent}))
	}
	return elements
}

// Shape classes
const (
	ClassPanel = "panel"
	ClassIcon  = "icon"
	ClassBar   = "bar"
	ClassShape = "shape"
)

// Classify names a region by its geometry relative to the image
func Classify(r types.Region, width, height int) string {
	if r.Width <= 0 || r.Height <= 0 || width <= 0 || height <= 0 {
		return ClassShape
	}
	aspect := float64(r.Width) / float64(r.Height)
	coverage := float64(r.Area()) / float64(width*height)
	longest := float64(max(width, height))
	switch {
	case aspect >= 4 || aspect <= 0.25:
		return ClassBar
	case coverage >= 0.1:
		return ClassPanel
	case float64(max(r.Width, r.Height)) <= 0.15*longest && aspect >= 0.5 && aspect <= 2:
		return ClassIcon
	}
	return ClassShape
}

func shapeElements(shapes []types.Region, width, height int) []types.Element {
	counts := map[string]int{}
	elements := make([]types.Element, 0, len(shapes))
	for _, s := range shapes {
		class := Classify(s, width, height)
		counts[class]++
		name := fmt.Sprintf("%s %d", capitalize(class), counts[class])
		details := fmt.Sprintf("%dx%d at (%d, %d)", s.Width, s.Height, s.X, s.Y)
		if s.Fill != "" {
			details += ", fill " + s.Fill
		}
		details += fmt.Sprintf(", %.0f%% confidence", s.Confidence*100)
		elements = append(elements, types.NewShapeElement(name, details, types.ShapePayload{Region: s, Class: class}))
	}
	return elements
}

func effectElements(found []types.Effect) []types.Element {
	elements := make([]types.Element, 0, len(found))
	for _, e := range found {
		var name, details string
		switch e.Kind {
		case types.EffectDropShadow:
			name = "Drop Shadow"
			details = fmt.Sprintf("%.0fpx blur, %.0f%% opacity", e.BlurRadiusPx, e.Opacity*100)
		case types.EffectGlow:
			name = "Glow"
			details = fmt.Sprintf("%.0fpx blur, %.0f%% strength", e.BlurRadiusPx, e.Strength*100)
		case types.EffectGradientFill:
			name = "Gradient Fill"
			details = fmt.Sprintf("Linear %.0f°, %s → %s", e.AngleDeg, e.From, e.To)
		default:
			continue
		}
		elements = append(elements, types.NewEffectElement(name, details, types.EffectPayload{Effect: e}))
	}
	return elements
}

func textElements(lines []types.TextRegion) []types.Element {
	elements := make([]types.Element, 0, len(lines))
	for i, l := range lines {
		details := l.Text
		if details == "" {
			details = fmt.Sprintf("%.0fpx %s, %d glyphs", l.FontSizePx, capitalize(string(l.Weight)), l.GlyphCount)
		}
		elements = append(elements, types.NewTextElement(fmt.Sprintf("Text Line %d", i+1), details,
			types.TextPayload{Line: l}))
	}
	return elements
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
