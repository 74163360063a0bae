package effects

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/design-extractor/pkg/types"
	"github.com/menta2k/design-extractor/pkg/vision"
)

// Config holds effect inference thresholds
type Config struct {
	MaxRadius        int
	SignalThreshold  float64
	FalloffCutoff    float64
	CoreTolerance    float64
	TintThreshold    float64
	MinGradientR2    float64
	MinGradientRange float64
	MaxPlaneSamples  int
	Inset            int
}

// DefaultConfig returns the default effect configuration
func DefaultConfig() Config {
	return Config{
		MaxRadius:        24,
		SignalThreshold:  0.05,
		FalloffCutoff:    0.1,
		CoreTolerance:    0.1,
		TintThreshold:    0.04,
		MinGradientR2:    0.85,
		MinGradientRange: 0.12,
		MaxPlaneSamples:  4096,
		Inset:            2,
	}
}

// Inferencer classifies the dominant visual effect around a shape
type Inferencer struct {
	config Config
}

// New creates an Inferencer with default configuration
func New() *Inferencer {
	return &Inferencer{config: DefaultConfig()}
}

// NewWithConfig creates an Inferencer with custom configuration
func NewWithConfig(config Config) *Inferencer {
	return &Inferencer{config: config}
}

// Infer classifies region as a gradient fill, a drop shadow, a glow or none.
// bg is the surrounding background color. Infer never fails; weak or absent
// signals yield EffectNone.
func (in *Inferencer) Infer(r *types.Raster, region types.Region, bg color.NRGBA) types.Effect {
	none := types.Effect{Kind: types.EffectNone, Region: region}
	if r.Empty() || region.Width <= 0 || region.Height <= 0 {
		return none
	}

	if e, ok := in.gradient(r, region); ok {
		return e
	}
	if e, ok := in.outer(r, region, bg); ok {
		return e
	}
	return none
}

// Infer runs the default inferencer
func Infer(r *types.Raster, region types.Region, bg color.NRGBA) types.Effect {
	return New().Infer(r, region, bg)
}

// chroma is the spread between the strongest and weakest channel in [0,1].
// Shadows over neutral backgrounds stay neutral; tinted glows do not.
func chroma(c color.NRGBA) float64 {
	c = vision.Flatten(c)
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	return float64(hi-lo) / 255
}

func luma(c color.NRGBA) float64 {
	c = vision.Flatten(c)
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// core returns the bounding box of the pixels in region that match its
// dominant fill. Segmented regions include the darker part of a soft shadow;
// measuring from the core keeps that part in the profile.
func (in *Inferencer) core(r *types.Raster, region types.Region) image.Rectangle {
	rect := region.Rect().Intersect(r.Bounds())
	fill := vision.DominantColor(r, rect)
	box := image.Rectangle{}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if vision.ColorDistance(r.At(x, y), fill) <= in.config.CoreTolerance {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	if box.Empty() {
		return rect
	}
	return box
}

// side identifies one edge of the core box
type side int

const (
	top side = iota
	bottom
	left
	right
)

// ring returns the mean color of the line of pixels at distance d outside
// the given side, and false when that line lies outside the raster
func ring(r *types.Raster, box image.Rectangle, s side, d int) (color.NRGBA, bool) {
	var x0, y0, x1, y1 int
	switch s {
	case top:
		x0, x1, y0, y1 = box.Min.X, box.Max.X, box.Min.Y-d, box.Min.Y-d+1
	case bottom:
		x0, x1, y0, y1 = box.Min.X, box.Max.X, box.Max.Y+d-1, box.Max.Y+d
	case left:
		x0, x1, y0, y1 = box.Min.X-d, box.Min.X-d+1, box.Min.Y, box.Max.Y
	case right:
		x0, x1, y0, y1 = box.Max.X+d-1, box.Max.X+d, box.Min.Y, box.Max.Y
	}
	line := image.Rect(x0, y0, x1, y1).Intersect(r.Bounds())
	if line.Empty() {
		return color.NRGBA{}, false
	}
	var sr, sg, sb, n float64
	for y := line.Min.Y; y < line.Max.Y; y++ {
		for x := line.Min.X; x < line.Max.X; x++ {
			c := vision.Flatten(r.At(x, y))
			sr += float64(c.R)
			sg += float64(c.G)
			sb += float64(c.B)
			n++
		}
	}
	return color.NRGBA{
		R: uint8(math.Round(sr / n)),
		G: uint8(math.Round(sg / n)),
		B: uint8(math.Round(sb / n)),
		A: 255,
	}, true
}

// profile is the falloff of one side: dark[d-1] is the shadow opacity at
// distance d, light[d-1] the glow strength
type profile struct {
	valid  bool
	dark   []float64
	light  []float64
	colors []color.NRGBA
}

func (in *Inferencer) sideProfile(r *types.Raster, box image.Rectangle, s side, bg color.NRGBA) profile {
	p := profile{}
	bgLum := luma(bg)
	for d := 1; d <= in.config.MaxRadius; d++ {
		c, ok := ring(r, box, s, d)
		if !ok {
			break
		}
		p.valid = true
		lum := luma(c)
		dark, light := 0.0, 0.0
		switch {
		case chroma(c)-chroma(bg) > in.config.TintThreshold:
			light = vision.ColorDistance(c, bg)
		case bgLum > 0 && lum < bgLum:
			dark = (bgLum - lum) / bgLum
		default:
			light = vision.ColorDistance(c, bg)
		}
		p.dark = append(p.dark, dark)
		p.light = append(p.light, light)
		p.colors = append(p.colors, c)
	}
	return p
}

// truncate cuts a falloff where it rises again after having decayed, which
// is where a neighbouring element begins
func truncate(values []float64) []float64 {
	peak, low := math.Inf(-1), math.Inf(1)
	for i, v := range values {
		if peak-low > 0.05 && v > low+0.05 {
			return values[:i]
		}
		if v > peak {
			peak, low = v, v
			continue
		}
		low = math.Min(low, v)
	}
	return values
}

// falloff measures peak value and the distance at which values drop below
// cutoff of the peak. The exponential decay fitted to the tail refines the
// distance when enough points are available.
func falloff(values []float64, cutoff float64) (peak, radius float64) {
	values = truncate(values)
	if len(values) == 0 {
		return 0, 0
	}
	peakIdx := 0
	for i, v := range values {
		if v > values[peakIdx] {
			peakIdx = i
		}
	}
	peak = values[peakIdx]
	if peak <= 0 {
		return 0, 0
	}

	end := len(values)
	for i := peakIdx; i < len(values); i++ {
		if values[i] < cutoff*peak {
			end = i
			break
		}
	}
	radius = float64(end)

	var xs, ys []float64
	for i := peakIdx; i < end; i++ {
		if values[i] > 0 {
			xs = append(xs, float64(i+1))
			ys = append(ys, math.Log(values[i]))
		}
	}
	if len(xs) >= 3 {
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		if beta < 0 {
			fitted := (math.Log(cutoff*peak) - alpha) / beta
			if fitted > 0 && !math.IsInf(fitted, 0) && !math.IsNaN(fitted) {
				radius = math.Min(float64(len(values)), (radius+fitted)/2)
			}
		}
	}
	return peak, radius
}

func (in *Inferencer) outer(r *types.Raster, region types.Region, bg color.NRGBA) (types.Effect, bool) {
	box := in.core(r, region)

	var profiles [4]profile
	for s := top; s <= right; s++ {
		profiles[s] = in.sideProfile(r, box, s, bg)
	}

	var darkPeak, lightPeak float64
	var darkRadius, lightRadius [4]float64
	sides := 0
	for s, p := range profiles {
		if !p.valid {
			continue
		}
		sides++
		pk, rad := falloff(p.dark, in.config.FalloffCutoff)
		darkPeak = math.Max(darkPeak, pk)
		darkRadius[s] = rad
		pk, rad = falloff(p.light, in.config.FalloffCutoff)
		lightPeak = math.Max(lightPeak, pk)
		lightRadius[s] = rad
	}
	if sides == 0 || math.Max(darkPeak, lightPeak) < in.config.SignalThreshold {
		return types.Effect{}, false
	}

	kind := types.EffectDropShadow
	peak := darkPeak
	radii := darkRadius
	values := func(p profile) []float64 { return p.dark }
	if lightPeak > darkPeak {
		kind = types.EffectGlow
		peak = lightPeak
		radii = lightRadius
		values = func(p profile) []float64 { return p.light }
	}

	blur := 0.0
	for _, rad := range radii {
		blur = math.Max(blur, rad)
	}

	// Color at the strongest point across all sides
	var tint color.NRGBA
	best := -1.0
	for _, p := range profiles {
		for i, v := range values(p) {
			if v > best {
				best = v
				tint = p.colors[i]
			}
		}
	}

	e := types.Effect{
		Kind:         kind,
		Region:       region,
		BlurRadiusPx: round1(blur),
		Opacity:      round2(math.Min(1, peak)),
		OffsetX:      round1((radii[right] - radii[left]) / 2),
		OffsetY:      round1((radii[bottom] - radii[top]) / 2),
		Strength:     round2(math.Min(1, peak)),
		Color:        vision.HexColor(tint),
	}
	return e, true
}

// gradient fits a plane per color channel to the region interior with least
// squares. A good fit with enough spread between the ends is a gradient fill.
func (in *Inferencer) gradient(r *types.Raster, region types.Region) (types.Effect, bool) {
	rect := region.Rect().Inset(in.config.Inset).Intersect(r.Bounds())
	if rect.Dx() < 3 || rect.Dy() < 3 {
		return types.Effect{}, false
	}

	step := 1
	if maxSamples := in.config.MaxPlaneSamples; maxSamples > 0 {
		for (rect.Dx()/step)*(rect.Dy()/step) > maxSamples {
			step++
		}
	}

	cx := float64(rect.Min.X+rect.Max.X) / 2
	cy := float64(rect.Min.Y+rect.Max.Y) / 2
	var rows []float64
	var vals []float64
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y += step {
		for x := rect.Min.X; x < rect.Max.X; x += step {
			c := vision.Flatten(r.At(x, y))
			rows = append(rows, float64(x)-cx, float64(y)-cy, 1)
			vals = append(vals, float64(c.R), float64(c.G), float64(c.B))
			n++
		}
	}

	a := mat.NewDense(n, 3, rows)
	b := mat.NewDense(n, 3, vals)
	var coef mat.Dense
	if err := coef.Solve(a, b); err != nil {
		return types.Effect{}, false
	}

	var est mat.Dense
	est.Mul(a, &coef)
	var ssRes, ssTot float64
	for ch := 0; ch < 3; ch++ {
		column := mat.Col(nil, ch, b)
		mean := stat.Mean(column, nil)
		for i, v := range column {
			ssRes += (v - est.At(i, ch)) * (v - est.At(i, ch))
			ssTot += (v - mean) * (v - mean)
		}
	}
	if ssTot == 0 || 1-ssRes/ssTot < in.config.MinGradientR2 {
		return types.Effect{}, false
	}

	// Direction of the channel that changes the most
	vx, vy := 0.0, 0.0
	for ch := 0; ch < 3; ch++ {
		gx, gy := coef.At(0, ch), coef.At(1, ch)
		if math.Hypot(gx, gy) > math.Hypot(vx, vy) {
			vx, vy = gx, gy
		}
	}
	if vx == 0 && vy == 0 {
		return types.Effect{}, false
	}

	// Evaluate the planes at the region corners furthest back and forward
	// along the gradient direction
	corners := [][2]float64{
		{float64(rect.Min.X) - cx, float64(rect.Min.Y) - cy},
		{float64(rect.Max.X-1) - cx, float64(rect.Min.Y) - cy},
		{float64(rect.Min.X) - cx, float64(rect.Max.Y-1) - cy},
		{float64(rect.Max.X-1) - cx, float64(rect.Max.Y-1) - cy},
	}
	start, end := corners[0], corners[0]
	for _, c := range corners[1:] {
		p := c[0]*vx + c[1]*vy
		if p < start[0]*vx+start[1]*vy {
			start = c
		}
		if p > end[0]*vx+end[1]*vy {
			end = c
		}
	}
	at := func(p [2]float64) color.NRGBA {
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			v := coef.At(0, i)*p[0] + coef.At(1, i)*p[1] + coef.At(2, i)
			ch[i] = uint8(math.Round(math.Min(255, math.Max(0, v))))
		}
		return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}
	}
	from, to := at(start), at(end)

	spread := vision.ColorDistance(from, to)
	if spread < in.config.MinGradientRange {
		return types.Effect{}, false
	}

	// 0° points up and angles grow clockwise, as in CSS linear-gradient
	angle := math.Atan2(vx, -vy) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}

	return types.Effect{
		Kind:     types.EffectGradientFill,
		Region:   region,
		Strength: round2(spread),
		AngleDeg: math.Round(angle),
		From:     vision.HexColor(from),
		To:       vision.HexColor(to),
	}, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
