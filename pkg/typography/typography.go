// Package typography finds probable lines of text in a raster and estimates
// their font size and weight. The estimates are heuristic and never identify
// a typeface.
package typography

import (
	"cmp"
	"context"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/design-extractor/pkg/types"
	"github.com/menta2k/design-extractor/pkg/vision"
)

// Recognizer turns a cropped text line into a string
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Config holds glyph and line grouping thresholds
type Config struct {
	ForegroundThreshold float64
	MinGlyphHeight      int
	MaxGlyphHeightRatio float64
	MaxGlyphAspect      float64
	MinGlyphFill        float64
	MinGlyphsPerLine    int
	LineGapFactor       float64
	BoldStrokeRatio     float64
	ShapeOverlap        float64
	ShapeInset          int
}

// DefaultConfig returns the default typography configuration
func DefaultConfig() Config {
	return Config{
		ForegroundThreshold: 0.2,
		MinGlyphHeight:      5,
		MaxGlyphHeightRatio: 0.25,
		MaxGlyphAspect:      3,
		MinGlyphFill:        0.1,
		MinGlyphsPerLine:    2,
		LineGapFactor:       1.5,
		BoldStrokeRatio:     0.14,
		ShapeOverlap:        0.5,
		ShapeInset:          2,
	}
}

// Detector groups glyph-like components into text lines
type Detector struct {
	config     Config
	recognizer Recognizer
}

// New creates a Detector with default configuration
func New() *Detector {
	return &Detector{config: DefaultConfig()}
}

// NewWithConfig creates a Detector with custom configuration
func NewWithConfig(config Config) *Detector {
	return &Detector{config: config}
}

// WithRecognizer attaches an optional text recognizer. Recognition errors
// leave the line's text empty.
func (d *Detector) WithRecognizer(rec Recognizer) *Detector {
	d.recognizer = rec
	return d
}

type glyph struct {
	box    image.Rectangle
	id     int
	labels *vision.Labels
	source *types.Raster
}

type line struct {
	box    image.Rectangle
	glyphs []glyph
}

// Detect returns text lines in reading order. Glyphs lying inside one of the
// given shapes are only considered when they stand out from that shape's own
// fill, so labels on buttons and panels are found while the shapes' edges
// are not mistaken for text. Once ctx ends the remaining lines are returned
// without recognized text.
func (d *Detector) Detect(ctx context.Context, r *types.Raster, shapes []types.Region) []types.TextRegion {
	if r.Empty() {
		return []types.TextRegion{}
	}

	bg := vision.EstimateBackground(r)
	mask := vision.ForegroundMask(r, bg, d.config.ForegroundThreshold)
	comps, labels := vision.Components(mask)

	var glyphs []glyph
	for _, c := range comps {
		if !d.isGlyph(c, r.Height) || d.insideShape(c.Box, shapes) {
			continue
		}
		glyphs = append(glyphs, glyph{box: c.Box, id: c.ID, labels: labels, source: r})
	}

	for _, s := range shapes {
		glyphs = append(glyphs, d.shapeGlyphs(r, s)...)
	}

	lines := d.groupLines(glyphs)

	out := make([]types.TextRegion, 0, len(lines))
	for _, l := range lines {
		out = append(out, d.describe(ctx, r, l))
	}
	slices.SortStableFunc(out, func(a, b types.TextRegion) int {
		if c := cmp.Compare(a.Box.Y, b.Box.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.Box.X, b.Box.X)
	})
	return out
}

func (d *Detector) isGlyph(c vision.Component, imageHeight int) bool {
	h, w := c.Box.Dy(), c.Box.Dx()
	if h < d.config.MinGlyphHeight {
		return false
	}
	if float64(h) > d.config.MaxGlyphHeightRatio*float64(imageHeight) {
		return false
	}
	if float64(w) > d.config.MaxGlyphAspect*float64(h) {
		return false
	}
	return c.Fill() >= d.config.MinGlyphFill
}

func (d *Detector) insideShape(box image.Rectangle, shapes []types.Region) bool {
	gr := types.Region{X: box.Min.X, Y: box.Min.Y, Width: box.Dx(), Height: box.Dy()}
	for _, s := range shapes {
		if gr.OverlapRatio(s) >= d.config.ShapeOverlap {
			return true
		}
	}
	return false
}

// shapeGlyphs re-scans a shape's interior against its own fill color
func (d *Detector) shapeGlyphs(r *types.Raster, s types.Region) []glyph {
	inset := d.config.ShapeInset
	interior := s.Rect().Inset(inset).Intersect(r.Bounds())
	if interior.Empty() {
		return nil
	}

	fill := vision.DominantColor(r, interior)
	mask := vision.DiffMask(r, interior, fill, d.config.ForegroundThreshold)
	comps, labels := vision.Components(mask)

	var glyphs []glyph
	for _, c := range comps {
		// Components touching the inset border are usually the shape's own
		// outline or a nested graphic, not text
		if c.Box.Min.X <= interior.Min.X || c.Box.Min.Y <= interior.Min.Y ||
			c.Box.Max.X >= interior.Max.X || c.Box.Max.Y >= interior.Max.Y {
			continue
		}
		if !d.isGlyph(c, r.Height) {
			continue
		}
		glyphs = append(glyphs, glyph{box: c.Box, id: c.ID, labels: labels, source: r})
	}
	return glyphs
}

// groupLines chains glyphs left to right into lines. A glyph joins a line
// when it overlaps the line vertically and the horizontal gap is at most
// LineGapFactor times the line's median glyph height.
func (d *Detector) groupLines(glyphs []glyph) []line {
	slices.SortStableFunc(glyphs, func(a, b glyph) int {
		if c := cmp.Compare(a.box.Min.X, b.box.Min.X); c != 0 {
			return c
		}
		return cmp.Compare(a.box.Min.Y, b.box.Min.Y)
	})

	var lines []line
	for _, g := range glyphs {
		best, bestOverlap := -1, 0.0
		for i, l := range lines {
			overlap := verticalOverlap(g.box, l.box)
			if overlap < 0.5 {
				continue
			}
			gap := g.box.Min.X - l.box.Max.X
			if float64(gap) > d.config.LineGapFactor*medianHeight(l.glyphs) {
				continue
			}
			if overlap > bestOverlap {
				best, bestOverlap = i, overlap
			}
		}
		if best < 0 {
			lines = append(lines, line{box: g.box, glyphs: []glyph{g}})
			continue
		}
		lines[best].box = lines[best].box.Union(g.box)
		lines[best].glyphs = append(lines[best].glyphs, g)
	}

	minGlyphs := max(1, d.config.MinGlyphsPerLine)
	kept := lines[:0]
	for _, l := range lines {
		if len(l.glyphs) >= minGlyphs {
			kept = append(kept, l)
		}
	}
	return kept
}

// verticalOverlap returns the shared height divided by the smaller height
func verticalOverlap(a, b image.Rectangle) float64 {
	shared := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
	if shared <= 0 {
		return 0
	}
	return float64(shared) / float64(min(a.Dy(), b.Dy()))
}

func medianHeight(glyphs []glyph) float64 {
	heights := make([]float64, len(glyphs))
	for i, g := range glyphs {
		heights[i] = float64(g.box.Dy())
	}
	return median(heights)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func (d *Detector) describe(ctx context.Context, r *types.Raster, l line) types.TextRegion {
	var runs []float64
	var sumR, sumG, sumB, n float64
	for _, g := range l.glyphs {
		for y := g.box.Min.Y; y < g.box.Max.Y; y++ {
			run := 0
			for x := g.box.Min.X; x <= g.box.Max.X; x++ {
				if x < g.box.Max.X && g.labels.At(x, y) == g.id {
					run++
					c := vision.Flatten(r.At(x, y))
					sumR += float64(c.R)
					sumG += float64(c.G)
					sumB += float64(c.B)
					n++
					continue
				}
				if run > 0 {
					runs = append(runs, float64(run))
					run = 0
				}
			}
		}
	}

	size := float64(l.box.Dy())
	stroke := median(runs)
	weight := types.WeightRegular
	if size > 0 && stroke/size >= d.config.BoldStrokeRatio {
		weight = types.WeightBold
	}

	tr := types.TextRegion{
		Box: types.Region{
			X:          l.box.Min.X,
			Y:          l.box.Min.Y,
			Width:      l.box.Dx(),
			Height:     l.box.Dy(),
			Confidence: lineConfidence(l),
		},
		FontSizePx:    size,
		Weight:        weight,
		StrokeWidthPx: stroke,
		GlyphCount:    len(l.glyphs),
	}
	if n > 0 {
		tr.Color = vision.HexColor(color.NRGBA{
			R: uint8(math.Round(sumR / n)),
			G: uint8(math.Round(sumG / n)),
			B: uint8(math.Round(sumB / n)),
			A: 255,
		})
	}

	if d.recognizer != nil && ctx.Err() == nil {
		crop := r.SubImage(l.box.Inset(-2))
		if text, err := d.recognizer.Recognize(crop); err == nil {
			tr.Text = strings.TrimSpace(text)
		}
	}
	return tr
}

// lineConfidence grows with glyph count and with how consistent the glyph
// heights are
func lineConfidence(l line) float64 {
	heights := make([]float64, len(l.glyphs))
	for i, g := range l.glyphs {
		heights[i] = float64(g.box.Dy())
	}
	mean, std := stat.MeanStdDev(heights, nil)
	consistency := 1.0
	if mean > 0 && !math.IsNaN(std) {
		consistency = math.Max(0, 1-std/mean)
	}
	count := math.Min(1, float64(len(l.glyphs))/6)
	return math.Round((0.5*count+0.5*consistency)*1000) / 1000
}
