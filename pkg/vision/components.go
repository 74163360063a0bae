package vision

import (
	"cmp"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/menta2k/design-extractor/pkg/types"
)

// Flatten composites c over white and returns an opaque color
func Flatten(c color.NRGBA) color.NRGBA {
	return types.Flatten(c)
}

// ColorDistance returns the largest per-channel difference of the flattened
// colors, scaled to [0,1]
func ColorDistance(a, b color.NRGBA) float64 {
	a, b = Flatten(a), Flatten(b)
	d := max(absDiff(a.R, b.R), absDiff(a.G, b.G), absDiff(a.B, b.B))
	return float64(d) / 255
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// HexColor formats c as a lowercase #rrggbb string
func HexColor(c color.NRGBA) string {
	c = Flatten(c)
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
}

// colorHistogram buckets colors by their top four bits per channel and keeps
// exact sums so a bucket can report its mean color
type colorHistogram struct {
	bins map[uint32]*bin
}

type bin struct {
	key     uint32
	count   int
	r, g, b int
}

func newColorHistogram() *colorHistogram {
	return &colorHistogram{bins: make(map[uint32]*bin)}
}

func (h *colorHistogram) add(c color.NRGBA) {
	c = Flatten(c)
	key := uint32(c.R&0xf0)<<16 | uint32(c.G&0xf0)<<8 | uint32(c.B&0xf0)
	b, ok := h.bins[key]
	if !ok {
		b = &bin{key: key}
		h.bins[key] = b
	}
	b.count++
	b.r += int(c.R)
	b.g += int(c.G)
	b.b += int(c.B)
}

// top returns up to n bins ordered by count, ties broken by key
func (h *colorHistogram) top(n int) []bin {
	out := make([]bin, 0, len(h.bins))
	for _, b := range h.bins {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b bin) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (b bin) mean() color.NRGBA {
	n := float64(b.count)
	return color.NRGBA{
		R: uint8(math.Round(float64(b.r) / n)),
		G: uint8(math.Round(float64(b.g) / n)),
		B: uint8(math.Round(float64(b.b) / n)),
		A: 255,
	}
}

// DominantColors returns up to n frequent colors inside region, most common
// first. Colors are the mean of each quantized bucket.
func DominantColors(r *types.Raster, region image.Rectangle, n int) []color.NRGBA {
	region = region.Intersect(r.Bounds())
	h := newColorHistogram()
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			h.add(r.At(x, y))
		}
	}
	var colors []color.NRGBA
	for _, b := range h.top(n) {
		colors = append(colors, b.mean())
	}
	return colors
}

// DominantColor returns the most frequent color inside region, or opaque
// white when region is empty
func DominantColor(r *types.Raster, region image.Rectangle) color.NRGBA {
	colors := DominantColors(r, region, 1)
	if len(colors) == 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return colors[0]
}

// EstimateBackground returns the dominant color of the raster's outer
// border, which is where flat design backgrounds show through
func EstimateBackground(r *types.Raster) color.NRGBA {
	if r.Empty() {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	band := max(1, min(r.Width, r.Height)/50)
	h := newColorHistogram()
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if x >= band && x < r.Width-band && y >= band && y < r.Height-band {
				x = r.Width - band - 1
				continue
			}
			h.add(r.At(x, y))
		}
	}
	return h.top(1)[0].mean()
}

// GradientField holds normalized Sobel gradient magnitudes
type GradientField struct {
	Width  int
	Height int
	mag    []float64
}

// At returns the magnitude at (x, y) in [0,1]; out of range is 0
func (g *GradientField) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.mag[y*g.Width+x]
}

// GradientMap computes Sobel gradients on each color channel and keeps the
// strongest per pixel. Borders are replicated.
func GradientMap(r *types.Raster) *GradientField {
	g := &GradientField{Width: r.Width, Height: r.Height, mag: make([]float64, r.Width*r.Height)}
	if r.Empty() {
		return g
	}

	channels := make([][]float64, 3)
	for c := range channels {
		channels[c] = make([]float64, r.Width*r.Height)
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p := Flatten(r.At(x, y))
			i := y*r.Width + x
			channels[0][i] = float64(p.R) / 255
			channels[1][i] = float64(p.G) / 255
			channels[2][i] = float64(p.B) / 255
		}
	}

	clampX := func(x int) int { return min(max(x, 0), r.Width-1) }
	clampY := func(y int) int { return min(max(y, 0), r.Height-1) }

	for y := 0; y < r.Height; y++ {
		y0, y2 := clampY(y-1), clampY(y+1)
		for x := 0; x < r.Width; x++ {
			x0, x2 := clampX(x-1), clampX(x+1)
			best := 0.0
			for _, ch := range channels {
				at := func(xx, yy int) float64 { return ch[yy*r.Width+xx] }
				gx := (at(x2, y0) + 2*at(x2, y) + at(x2, y2)) - (at(x0, y0) + 2*at(x0, y) + at(x0, y2))
				gy := (at(x0, y2) + 2*at(x, y2) + at(x2, y2)) - (at(x0, y0) + 2*at(x, y0) + at(x2, y0))
				best = max(best, math.Hypot(gx, gy)/4)
			}
			g.mag[y*r.Width+x] = min(best, 1)
		}
	}
	return g
}

// Mask is a binary image
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

// NewMask creates an all-false mask
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, bits: make([]bool, width*height)}
}

// At reports whether (x, y) is set; out of range is false
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Set marks (x, y)
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.bits[y*m.Width+x] = v
}

// Count returns the number of set pixels
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// DiffMask marks pixels inside rect whose color differs from ref by more
// than threshold
func DiffMask(r *types.Raster, rect image.Rectangle, ref color.NRGBA, threshold float64) *Mask {
	m := NewMask(r.Width, r.Height)
	rect = rect.Intersect(r.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ColorDistance(r.At(x, y), ref) > threshold {
				m.bits[y*m.Width+x] = true
			}
		}
	}
	return m
}

// ForegroundMask marks every pixel that differs from the background
func ForegroundMask(r *types.Raster, bg color.NRGBA, threshold float64) *Mask {
	return DiffMask(r, r.Bounds(), bg, threshold)
}

// Component is a 4-connected group of set mask pixels
type Component struct {
	ID   int
	Box  image.Rectangle
	Area int
}

// Fill returns the fraction of the bounding box covered by the component
func (c Component) Fill() float64 {
	boxArea := c.Box.Dx() * c.Box.Dy()
	if boxArea == 0 {
		return 0
	}
	return float64(c.Area) / float64(boxArea)
}

// Labels maps each pixel to its component ID; 0 means unlabelled
type Labels struct {
	Width  int
	Height int
	ids    []int32
}

// At returns the component ID at (x, y)
func (l *Labels) At(x, y int) int {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return int(l.ids[y*l.Width+x])
}

// Components labels the 4-connected groups of m in raster scan order
func Components(m *Mask) ([]Component, *Labels) {
	labels := &Labels{Width: m.Width, Height: m.Height, ids: make([]int32, m.Width*m.Height)}
	var comps []Component
	var stack []int

	for start, set := range m.bits {
		if !set || labels.ids[start] != 0 {
			continue
		}
		id := int32(len(comps) + 1)
		comp := Component{ID: int(id)}
		sx, sy := start%m.Width, start/m.Width
		comp.Box = image.Rect(sx, sy, sx+1, sy+1)

		labels.ids[start] = id
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%m.Width, i/m.Width
			comp.Area++
			comp.Box = comp.Box.Union(image.Rect(x, y, x+1, y+1))

			neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
			for _, n := range neighbors {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
					continue
				}
				j := ny*m.Width + nx
				if m.bits[j] && labels.ids[j] == 0 {
					labels.ids[j] = id
					stack = append(stack, j)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps, labels
}
