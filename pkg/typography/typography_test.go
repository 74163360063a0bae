package typography

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/design-extractor/pkg/types"
)

// createTestImage paints vertical bars standing in for glyphs. Each bar is
// barWidth wide and barHeight tall, starting at the given x positions.
func createTestImage(width, height int, bg, ink color.Color, xs []int, y, barWidth, barHeight int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			img.Set(px, py, bg)
		}
	}
	paintBars(img, ink, xs, y, barWidth, barHeight)
	return img
}

func paintBars(img *image.RGBA, ink color.Color, xs []int, y, barWidth, barHeight int) {
	for _, x := range xs {
		for py := y; py < y+barHeight; py++ {
			for px := x; px < x+barWidth; px++ {
				img.Set(px, py, ink)
			}
		}
	}
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func TestSolidImageHasNoText(t *testing.T) {
	img := createTestImage(100, 100, blue, blue, nil, 0, 0, 0)

	lines := New().Detect(context.Background(), types.NewRaster(img, "png"), nil)
	if lines == nil || len(lines) != 0 {
		t.Errorf("Expected empty result, got %+v", lines)
	}
}

func TestDetectRegularLine(t *testing.T) {
	img := createTestImage(200, 100, white, black, []int{20, 30, 40, 50, 60}, 40, 2, 20)

	lines := New().Detect(context.Background(), types.NewRaster(img, "png"), nil)
	if len(lines) != 1 {
		t.Fatalf("Expected one line, got %+v", lines)
	}

	l := lines[0]
	if l.GlyphCount != 5 {
		t.Errorf("Expected 5 glyphs, got %d", l.GlyphCount)
	}
	if l.FontSizePx != 20 {
		t.Errorf("Expected font size 20, got %f", l.FontSizePx)
	}
	if l.StrokeWidthPx != 2 {
		t.Errorf("Expected stroke width 2, got %f", l.StrokeWidthPx)
	}
	if l.Weight != types.WeightRegular {
		t.Errorf("Expected regular weight, got %s", l.Weight)
	}
	if l.Box.X != 20 || l.Box.Y != 40 || l.Box.Width != 42 || l.Box.Height != 20 {
		t.Errorf("Unexpected line box %+v", l.Box)
	}
	if l.Color != "#000000" {
		t.Errorf("Expected black text, got %s", l.Color)
	}
	if l.Box.Confidence <= 0 || l.Box.Confidence > 1 {
		t.Errorf("Confidence out of range: %f", l.Box.Confidence)
	}
}

func TestDetectBoldLine(t *testing.T) {
	img := createTestImage(200, 100, white, black, []int{20, 32, 44, 56}, 40, 5, 20)

	lines := New().Detect(context.Background(), types.NewRaster(img, "png"), nil)
	if len(lines) != 1 {
		t.Fatalf("Expected one line, got %+v", lines)
	}
	if lines[0].Weight != types.WeightBold {
		t.Errorf("Expected bold weight, got %s (stroke %f)", lines[0].Weight, lines[0].StrokeWidthPx)
	}
}

func TestTwoLinesInReadingOrder(t *testing.T) {
	img := createTestImage(200, 120, white, black, []int{20, 30, 40}, 70, 2, 12)
	paintBars(img, black, []int{20, 34, 48, 62}, 20, 3, 20)

	lines := New().Detect(context.Background(), types.NewRaster(img, "png"), nil)
	if len(lines) != 2 {
		t.Fatalf("Expected two lines, got %+v", lines)
	}
	if lines[0].Box.Y != 20 || lines[1].Box.Y != 70 {
		t.Errorf("Lines not in reading order: %+v", lines)
	}
	if lines[0].FontSizePx <= lines[1].FontSizePx {
		t.Errorf("Expected first line to be larger: %f vs %f", lines[0].FontSizePx, lines[1].FontSizePx)
	}
}

func TestLoneGlyphIsNotALine(t *testing.T) {
	img := createTestImage(200, 100, white, black, []int{20, 150}, 40, 2, 20)

	if lines := New().Detect(context.Background(), types.NewRaster(img, "png"), nil); len(lines) != 0 {
		t.Errorf("Expected no lines for distant glyphs, got %+v", lines)
	}
}

func TestTextOnPanel(t *testing.T) {
	img := createTestImage(200, 100, white, white, nil, 0, 0, 0)
	panel := image.Rect(20, 20, 180, 80)
	for y := panel.Min.Y; y < panel.Max.Y; y++ {
		for x := panel.Min.X; x < panel.Max.X; x++ {
			img.Set(x, y, blue)
		}
	}
	paintBars(img, white, []int{40, 50, 60, 70}, 40, 2, 20)

	shapes := []types.Region{{X: 20, Y: 20, Width: 160, Height: 60, Confidence: 0.9, Fill: "#0000ff"}}
	lines := New().Detect(context.Background(), types.NewRaster(img, "png"), shapes)
	if len(lines) != 1 {
		t.Fatalf("Expected one line on the panel, got %+v", lines)
	}
	if lines[0].Color != "#ffffff" || lines[0].GlyphCount != 4 {
		t.Errorf("Unexpected line %+v", lines[0])
	}
}

func TestInsideShape(t *testing.T) {
	d := New()
	shapes := []types.Region{{X: 0, Y: 0, Width: 50, Height: 50}}

	if !d.insideShape(image.Rect(10, 10, 20, 20), shapes) {
		t.Error("Glyph fully inside shape should be excluded")
	}
	if d.insideShape(image.Rect(60, 60, 70, 70), shapes) {
		t.Error("Glyph outside shape should be kept")
	}
}

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) Recognize(img image.Image) (string, error) {
	return f.text, f.err
}

func TestRecognizer(t *testing.T) {
	img := createTestImage(200, 100, white, black, []int{20, 30, 40}, 40, 2, 20)
	raster := types.NewRaster(img, "png")

	lines := New().WithRecognizer(fakeRecognizer{text: "  Hello\n"}).Detect(context.Background(), raster, nil)
	if len(lines) != 1 || lines[0].Text != "Hello" {
		t.Errorf("Expected recognized text, got %+v", lines)
	}

	lines = New().WithRecognizer(fakeRecognizer{err: errors.New("ocr unavailable")}).Detect(context.Background(), raster, nil)
	if len(lines) != 1 || lines[0].Text != "" {
		t.Errorf("Recognizer errors should leave text empty, got %+v", lines)
	}
}

// cancellingRecognizer cancels its context on the first call
type cancellingRecognizer struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingRecognizer) Recognize(img image.Image) (string, error) {
	c.calls++
	c.cancel()
	return "Title", nil
}

func TestRecognizerStopsWhenCancelled(t *testing.T) {
	img := createTestImage(200, 120, white, black, []int{20, 30, 40}, 70, 2, 12)
	paintBars(img, black, []int{20, 34, 48, 62}, 20, 3, 20)
	raster := types.NewRaster(img, "png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &cancellingRecognizer{cancel: cancel}

	lines := New().WithRecognizer(rec).Detect(ctx, raster, nil)
	if len(lines) != 2 {
		t.Fatalf("Expected both lines to be measured, got %+v", lines)
	}
	if rec.calls != 1 {
		t.Errorf("Expected recognition to stop after cancellation, got %d calls", rec.calls)
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	rec = &cancellingRecognizer{cancel: cancel}
	lines = New().WithRecognizer(rec).Detect(ctx, raster, nil)
	if rec.calls != 0 {
		t.Errorf("Cancelled context should skip recognition, got %d calls", rec.calls)
	}
	for _, l := range lines {
		if l.Text != "" {
			t.Errorf("Expected no text after cancellation, got %q", l.Text)
		}
	}
}

func TestMedian(t *testing.T) {
	if m := median([]float64{5, 1, 3}); m != 3 {
		t.Errorf("Expected median 3, got %f", m)
	}
	if m := median(nil); m != 0 {
		t.Errorf("Expected 0 for empty input, got %f", m)
	}
}
