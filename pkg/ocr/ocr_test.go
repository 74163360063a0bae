//go:build ocr

package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/design-extractor/pkg/typography"
)

var _ typography.Recognizer = (*Client)(nil)

// createLineImage creates a white strip with one dark block
func createLineImage(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= 10 && x < 50 && y >= 4 && y < height-4 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer client.Close()
}

func TestRecognize(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer client.Close()

	// The image holds no glyphs; only check that recognition runs
	if _, err := client.Recognize(createLineImage(120, 16)); err != nil {
		t.Errorf("Recognize failed: %v", err)
	}
}

func TestRecognizeInvalidData(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer client.Close()

	if _, err := client.RecognizeImage([]byte("not an image")); err == nil {
		t.Error("Expected error for invalid image data")
	}
}

func TestCloseOnNilClient(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client should not error: %v", err)
	}
}
