package effects

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/design-extractor/pkg/types"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

func fill(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// distance returns the Chebyshev distance from (x, y) to rect, 0 inside
func distance(x, y int, rect image.Rectangle) int {
	dx := max(rect.Min.X-x, 0, x-(rect.Max.X-1))
	dy := max(rect.Min.Y-y, 0, y-(rect.Max.Y-1))
	return max(dx, dy)
}

func blend(over, under color.NRGBA, a float64) color.NRGBA {
	mix := func(o, u uint8) uint8 {
		return uint8(math.Round(float64(o)*a + float64(u)*(1-a)))
	}
	return color.NRGBA{mix(over.R, under.R), mix(over.G, under.G), mix(over.B, under.B), 255}
}

// createHaloImage paints a falloff of color c around halo on bg, then the
// shape rectangle on top
func createHaloImage(bg, c, shapeColor color.NRGBA, shape, halo image.Rectangle, peak float64, radius int) *types.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			d := distance(x, y, halo)
			a := 0.0
			if d == 0 {
				a = peak
			} else if d < radius {
				a = peak * (1 - float64(d)/float64(radius))
			}
			img.SetNRGBA(x, y, blend(c, bg, a))
		}
	}
	fill(img, shape, shapeColor)
	return types.NewRaster(img, "png")
}

func regionOf(rect image.Rectangle) types.Region {
	return types.Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy(), Confidence: 1}
}

func TestNoEffect(t *testing.T) {
	shape := image.Rect(60, 60, 140, 140)
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	fill(img, img.Bounds(), white)
	fill(img, shape, blue)

	e := Infer(types.NewRaster(img, "png"), regionOf(shape), white)
	if e.Kind != types.EffectNone {
		t.Errorf("Expected no effect, got %+v", e)
	}
	if e.Region != regionOf(shape) {
		t.Errorf("Effect should carry its region, got %+v", e.Region)
	}
}

func TestDropShadow(t *testing.T) {
	shape := image.Rect(60, 60, 140, 140)
	raster := createHaloImage(white, black, blue, shape, shape.Add(image.Pt(4, 4)), 0.4, 10)

	e := Infer(raster, regionOf(shape), white)
	if e.Kind != types.EffectDropShadow {
		t.Fatalf("Expected drop shadow, got %+v", e)
	}
	if e.Opacity < 0.3 || e.Opacity > 0.45 {
		t.Errorf("Expected opacity near 0.4, got %f", e.Opacity)
	}
	if e.OffsetX <= 0 || e.OffsetY <= 0 {
		t.Errorf("Expected shadow offset down and right, got (%f, %f)", e.OffsetX, e.OffsetY)
	}
	if e.BlurRadiusPx < 5 || e.BlurRadiusPx > 24 {
		t.Errorf("Unexpected blur radius %f", e.BlurRadiusPx)
	}
}

func TestGlowOnDarkBackground(t *testing.T) {
	shape := image.Rect(60, 60, 140, 140)
	raster := createHaloImage(black, white, white, shape, shape, 0.6, 8)

	e := Infer(raster, regionOf(shape), black)
	if e.Kind != types.EffectGlow {
		t.Fatalf("Expected glow, got %+v", e)
	}
	if e.Strength < 0.4 || e.Strength > 0.6 {
		t.Errorf("Expected strength near 0.5, got %f", e.Strength)
	}
	if math.Abs(e.OffsetX) > 1 || math.Abs(e.OffsetY) > 1 {
		t.Errorf("Expected centered glow, got offset (%f, %f)", e.OffsetX, e.OffsetY)
	}
	if e.BlurRadiusPx < 3 {
		t.Errorf("Expected visible blur, got %f", e.BlurRadiusPx)
	}
}

func TestTintedGlowOnLightBackground(t *testing.T) {
	shape := image.Rect(60, 60, 140, 140)
	raster := createHaloImage(white, blue, blue, shape, shape, 0.5, 8)

	e := Infer(raster, regionOf(shape), white)
	if e.Kind != types.EffectGlow {
		t.Fatalf("Expected tinted glow, got %+v", e)
	}
}

func TestHorizontalGradient(t *testing.T) {
	shape := image.Rect(20, 20, 180, 100)
	img := image.NewNRGBA(image.Rect(0, 0, 200, 120))
	fill(img, img.Bounds(), white)
	for y := shape.Min.Y; y < shape.Max.Y; y++ {
		for x := shape.Min.X; x < shape.Max.X; x++ {
			v := uint8(200 * (x - shape.Min.X) / shape.Dx())
			img.SetNRGBA(x, y, color.NRGBA{v, v, 255, 255})
		}
	}

	e := Infer(types.NewRaster(img, "png"), regionOf(shape), white)
	if e.Kind != types.EffectGradientFill {
		t.Fatalf("Expected gradient fill, got %+v", e)
	}
	if e.AngleDeg != 90 {
		t.Errorf("Expected 90°, got %f", e.AngleDeg)
	}
	if e.Strength < 0.5 {
		t.Errorf("Expected strong gradient, got %f", e.Strength)
	}
	if e.From == e.To {
		t.Errorf("Gradient ends should differ: %s → %s", e.From, e.To)
	}
}

func TestVerticalGradient(t *testing.T) {
	shape := image.Rect(40, 10, 160, 190)
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	fill(img, img.Bounds(), white)
	for y := shape.Min.Y; y < shape.Max.Y; y++ {
		v := uint8(30 + 180*(y-shape.Min.Y)/shape.Dy())
		for x := shape.Min.X; x < shape.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{v, 0, 0, 255})
		}
	}

	e := Infer(types.NewRaster(img, "png"), regionOf(shape), white)
	if e.Kind != types.EffectGradientFill {
		t.Fatalf("Expected gradient fill, got %+v", e)
	}
	if e.AngleDeg != 180 {
		t.Errorf("Expected 180°, got %f", e.AngleDeg)
	}
}

func TestDegenerateInput(t *testing.T) {
	if e := Infer(nil, types.Region{Width: 10, Height: 10}, white); e.Kind != types.EffectNone {
		t.Errorf("Expected none for nil raster, got %+v", e)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	if e := Infer(types.NewRaster(img, "png"), types.Region{}, white); e.Kind != types.EffectNone {
		t.Errorf("Expected none for empty region, got %+v", e)
	}
}

func TestFalloff(t *testing.T) {
	peak, radius := falloff([]float64{0.4, 0.2, 0.1, 0.05, 0.02, 0.01}, 0.1)
	if peak != 0.4 {
		t.Errorf("Expected peak 0.4, got %f", peak)
	}
	if radius < 3 || radius > 6 {
		t.Errorf("Expected radius between 3 and 6, got %f", radius)
	}

	// A rise after the decay belongs to a neighbouring element
	peak, radius = falloff([]float64{0.3, 0.1, 0.0, 0.5, 0.5}, 0.1)
	if peak != 0.3 || radius > 3 {
		t.Errorf("Expected truncated profile, got peak %f radius %f", peak, radius)
	}
}
