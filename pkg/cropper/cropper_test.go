package cropper

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/design-extractor/pkg/types"
)

// createTestImage creates a gray image with a white block in the middle
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= width/3 && x < 2*width/3 && y >= height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	cropper := New()
	if cropper == nil {
		t.Fatal("New() returned nil")
	}
	if !cropper.config.IncludeEffects {
		t.Error("Expected IncludeEffects to be true by default")
	}
	if cropper.config.MaxSize != 0 {
		t.Error("Expected source resolution by default")
	}
}

func TestNewWithConfig(t *testing.T) {
	cropper := NewWithConfig(CropConfig{PaddingRatio: 0.2, MaxSize: 64})
	if cropper.config.PaddingRatio != 0.2 || cropper.config.MaxSize != 64 {
		t.Errorf("Config not applied: %+v", cropper.config)
	}
}

func TestCropRegion(t *testing.T) {
	cropper := NewWithConfig(CropConfig{})
	img := createTestImage(300, 300)

	cropped, rect, err := cropper.CropRegion(img, types.Region{X: 100, Y: 100, Width: 100, Height: 100}, 10)
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if rect != image.Rect(90, 90, 210, 210) {
		t.Errorf("Unexpected crop rectangle %v", rect)
	}
	if b := cropped.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Errorf("Expected 120x120 crop, got %dx%d", b.Dx(), b.Dy())
	}

	r, g, b, _ := cropped.At(60, 60).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Error("Crop center should be the white block")
	}
}

func TestCropRegionClipped(t *testing.T) {
	cropper := New()
	img := createTestImage(100, 100)

	_, rect, err := cropper.CropRegion(img, types.Region{X: 90, Y: 90, Width: 30, Height: 30}, 5)
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if rect != image.Rect(85, 85, 100, 100) {
		t.Errorf("Expected crop clipped to the image, got %v", rect)
	}

	_, _, err = cropper.CropRegion(img, types.Region{X: 200, Y: 200, Width: 10, Height: 10}, 0)
	if !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("Expected ErrEmptyCrop, got %v", err)
	}
}

func TestCropRegionMaxSize(t *testing.T) {
	cropper := NewWithConfig(CropConfig{MaxSize: 50})
	img := createTestImage(400, 200)

	cropped, _, err := cropper.CropRegion(img, types.Region{X: 0, Y: 0, Width: 400, Height: 200}, 0)
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if b := cropped.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("Expected 50x25 asset, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCropElements(t *testing.T) {
	raster := types.NewRaster(createTestImage(300, 300), "png")
	shape := types.Region{X: 100, Y: 100, Width: 100, Height: 100, Confidence: 0.9}
	elements := []types.Element{
		types.NewColorElement("Background Gray", "#404040", types.ColorPayload{Hex: "#404040", Role: types.RoleBackground}),
		types.NewShapeElement("Panel 1", "", types.ShapePayload{Region: shape, Class: "panel"}),
		types.NewEffectElement("Drop Shadow", "", types.EffectPayload{Effect: types.Effect{
			Kind: types.EffectDropShadow, Region: shape, BlurRadiusPx: 12, OffsetY: 4,
		}}),
		types.NewTextElement("Text Line 1", "", types.TextPayload{Line: types.TextRegion{
			Box: types.Region{X: 20, Y: 20, Width: 60, Height: 20},
		}}),
	}

	assets, err := NewWithConfig(CropConfig{PaddingRatio: 0.05, IncludeEffects: true}).CropElements(raster, elements)
	if err != nil {
		t.Fatalf("CropElements failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("Expected shape and text assets, got %d", len(assets))
	}

	if assets[0].Kind != types.KindShape || assets[0].Bounds != image.Rect(84, 84, 216, 216) {
		t.Errorf("Shape crop should include the shadow reach, got %v", assets[0].Bounds)
	}
	if assets[1].Kind != types.KindText || assets[1].Bounds != image.Rect(17, 17, 83, 43) {
		t.Errorf("Unexpected text crop %v", assets[1].Bounds)
	}
}

func TestCropElementsEmptyRaster(t *testing.T) {
	if _, err := New().CropElements(nil, nil); !errors.Is(err, types.ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
}

func TestAssetFilename(t *testing.T) {
	tests := []struct {
		asset Asset
		index int
		ext   string
		want  string
	}{
		{Asset{Name: "Panel 1", Kind: types.KindShape}, 3, "png", "003_panel_1.png"},
		{Asset{Name: "Text Line 12", Kind: types.KindText}, 12, ".WEBP", "012_text_line_12.webp"},
		{Asset{Name: "???", Kind: types.KindShape}, 1, "jpg", "001_shape.jpg"},
	}
	for _, tt := range tests {
		if got := tt.asset.Filename(tt.index, tt.ext); got != tt.want {
			t.Errorf("Filename() = %s, want %s", got, tt.want)
		}
	}
}

func BenchmarkCropElements(b *testing.B) {
	raster := types.NewRaster(createTestImage(1920, 1080), "png")
	elements := []types.Element{
		types.NewShapeElement("Panel 1", "", types.ShapePayload{Region: types.Region{X: 640, Y: 360, Width: 640, Height: 360}}),
	}
	cropper := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cropper.CropElements(raster, elements)
	}
}
