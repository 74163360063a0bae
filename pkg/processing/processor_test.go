package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/design-extractor/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadSourceFile(t *testing.T) {
	data := encodePNG(t, createTestImage(10, 10))
	path := filepath.Join(t.TempDir(), "logo.PNG")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, mime, err := NewProcessor(0).ReadSource(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("File content differs")
	}
	if mime != "image/png" {
		t.Errorf("Expected image/png, got %q", mime)
	}
}

func TestReadSourceLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	if err := os.WriteFile(path, make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}

	got, _, err := NewProcessor(100).ReadSource(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if len(got) != 101 {
		t.Errorf("Expected read to stop one byte past the limit, got %d bytes", len(got))
	}
}

func TestReadSourceMissingFile(t *testing.T) {
	if _, _, err := NewProcessor(0).ReadSource(context.Background(), filepath.Join(t.TempDir(), "none.png")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadSourceURL(t *testing.T) {
	data := encodePNG(t, createTestImage(10, 10))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor(0)
	got, mime, err := p.ReadSource(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(got, data) {
		t.Errorf("Unexpected download: %q, %d bytes", mime, len(got))
	}

	if _, _, err := p.ReadSource(context.Background(), srv.URL+"/page"); err == nil || !strings.Contains(err.Error(), "does not point to an image") {
		t.Errorf("Expected content type error, got %v", err)
	}
	if _, _, err := p.ReadSource(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor(0)
	encoded, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Invalid png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSaveImage(t *testing.T) {
	p := NewProcessor(0)
	dir := t.TempDir()
	img := createTestImage(32, 16)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(img, path, format, 90, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s file", format)
		}
	}

	saved, err := imaging.Open(filepath.Join(dir, "out.png"))
	if err != nil {
		t.Fatal(err)
	}
	if b := saved.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("Saved png has wrong size %v", b)
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor(0)
	img := createTestImage(200, 200)
	shape := types.Region{X: 50, Y: 50, Width: 100, Height: 100}
	elements := []types.Element{
		types.NewShapeElement("Panel 1", "", types.ShapePayload{Region: shape}),
		types.NewTextElement("Text Line 1", "", types.TextPayload{Line: types.TextRegion{
			Box: types.Region{X: 10, Y: 10, Width: 30, Height: 10},
		}}),
		types.NewEffectElement("Glow", "", types.EffectPayload{Effect: types.Effect{
			Kind: types.EffectGlow, Region: shape, BlurRadiusPx: 10,
		}}),
	}

	overlay := p.CreateDebugOverlay(img, elements)

	if got := color.NRGBAModel.Convert(overlay.At(50, 100)).(color.NRGBA); got != shapeColor {
		t.Errorf("Expected shape border at (50,100), got %v", got)
	}
	if got := color.NRGBAModel.Convert(overlay.At(20, 10)).(color.NRGBA); got != textColor {
		t.Errorf("Expected text border at (20,10), got %v", got)
	}
	if got := color.NRGBAModel.Convert(overlay.At(40, 100)).(color.NRGBA); got != effectColor {
		t.Errorf("Expected effect border at (40,100), got %v", got)
	}
	if got := color.NRGBAModel.Convert(overlay.At(100, 100)).(color.NRGBA); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("Interior should be untouched, got %v", got)
	}
	if img.NRGBAAt(50, 100) != (color.NRGBA{255, 255, 255, 255}) {
		t.Error("Source image should not be modified")
	}
}
