package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/webp"

	"github.com/menta2k/design-extractor/internal/utils"
	"github.com/menta2k/design-extractor/pkg/types"
)

// Recognized encodings
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatGIF  = "gif"
)

// Decoder turns encoded image bytes into a types.Raster
type Decoder struct {
	config Config
}

// Config holds configuration for the image decoder
type Config struct {
	MaxBytes         int64
	MaxPixels        int
	SupportedFormats []string
	MinImageSize     int
}

// DefaultConfig returns the upload limits: 10 MB, PNG and JPEG only
func DefaultConfig() Config {
	return Config{
		MaxBytes:         10 << 20,
		MaxPixels:        50_000_000,
		SupportedFormats: []string{FormatPNG, FormatJPEG},
		MinImageSize:     1,
	}
}

// New creates a new Decoder with default configuration
func New() *Decoder {
	return &Decoder{config: DefaultConfig()}
}

// NewWithConfig creates a new Decoder with custom configuration
func NewWithConfig(config Config) *Decoder {
	return &Decoder{config: config}
}

// Decode checks data against the size limit and format allow-list, then
// decodes it. mimeType is the type declared by the uploader and may be empty.
// Rejections happen before any decoding is attempted.
func (d *Decoder) Decode(data []byte, mimeType string) (*types.Raster, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", types.ErrEmptyImage)
	}
	if d.config.MaxBytes > 0 && int64(len(data)) > d.config.MaxBytes {
		return nil, fmt.Errorf("%w: %s (limit %s)", types.ErrSizeLimitExceeded,
			utils.FormatFileSize(int64(len(data))), utils.FormatFileSize(d.config.MaxBytes))
	}

	format, err := d.checkFormat(data, mimeType)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeConfig(format, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt %s data: %v", types.ErrUnsupportedFormat, format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", types.ErrEmptyImage, cfg.Width, cfg.Height)
	}
	if d.config.MaxPixels > 0 && cfg.Width*cfg.Height > d.config.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels (limit %d)", types.ErrSizeLimitExceeded,
			cfg.Width, cfg.Height, d.config.MaxPixels)
	}

	img, err := decodeImage(format, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", types.ErrUnsupportedFormat, format, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", types.ErrEmptyImage, bounds.Dx(), bounds.Dy())
	}

	return types.NewRaster(img, format), nil
}

// DecodeReader reads at most MaxBytes+1 bytes from reader and decodes them
func (d *Decoder) DecodeReader(reader io.Reader, mimeType string) (*types.Raster, error) {
	src := reader
	if d.config.MaxBytes > 0 {
		src = io.LimitReader(reader, d.config.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return d.Decode(data, mimeType)
}

// LoadImage loads and decodes an image file. The declared type is derived
// from the file extension.
func (d *Decoder) LoadImage(filepath string) (*types.Raster, error) {
	info, err := os.Stat(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	if d.config.MaxBytes > 0 && info.Size() > d.config.MaxBytes {
		return nil, fmt.Errorf("%w: %s (limit %s)", types.ErrSizeLimitExceeded,
			utils.FormatFileSize(info.Size()), utils.FormatFileSize(d.config.MaxBytes))
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return d.Decode(data, MIMEFromExtension(utils.GetFileExtension(filepath)))
}

func (d *Decoder) checkFormat(data []byte, mimeType string) (string, error) {
	declared := ""
	if mimeType != "" {
		declared = FormatFromMIME(mimeType)
		if declared == "" || !d.IsFormatSupported(declared) {
			return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, mimeType)
		}
	}

	sniffed, ok := DetectFormat(data)
	if !ok {
		return "", fmt.Errorf("%w: unrecognized content", types.ErrUnsupportedFormat)
	}
	if !d.IsFormatSupported(sniffed) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, sniffed)
	}
	if declared != "" && declared != sniffed {
		return "", fmt.Errorf("%w: declared %s but content is %s", types.ErrUnsupportedFormat, declared, sniffed)
	}
	return sniffed, nil
}

// DetectFormat identifies the encoding from its magic bytes
func DetectFormat(data []byte) (string, bool) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, true
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG, true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	case len(data) >= 6 && (string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a"):
		return FormatGIF, true
	}
	return "", false
}

// FormatFromMIME maps a MIME type to a format name, or "" when unknown
func FormatFromMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "image/png":
		return FormatPNG
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/webp":
		return FormatWebP
	case "image/gif":
		return FormatGIF
	}
	return ""
}

// MIMEFromExtension maps a file extension (without dot) to a MIME type
func MIMEFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	}
	return ""
}

func decodeConfig(format string, r io.Reader) (image.Config, error) {
	switch format {
	case FormatPNG:
		return png.DecodeConfig(r)
	case FormatJPEG:
		return jpeg.DecodeConfig(r)
	case FormatWebP:
		return webp.DecodeConfig(r)
	}
	return image.Config{}, fmt.Errorf("no decoder for %s", format)
}

func decodeImage(format string, r io.Reader) (image.Image, error) {
	switch format {
	case FormatPNG:
		return png.Decode(r)
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	}
	return nil, fmt.Errorf("no decoder for %s", format)
}

// GetImageInfo returns basic information about a raster
func (d *Decoder) GetImageInfo(r *types.Raster) ImageInfo {
	info := ImageInfo{
		Width:  r.Width,
		Height: r.Height,
		Area:   r.Width * r.Height,
		Format: r.Format,
	}
	if r.Height > 0 {
		info.AspectRatio = float64(r.Width) / float64(r.Height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Format      string  `json:"format"`
}

// IsFormatSupported reports whether format is on the allow-list
func (d *Decoder) IsFormatSupported(format string) bool {
	if strings.EqualFold(format, "jpg") {
		format = FormatJPEG
	}
	for _, supported := range d.config.SupportedFormats {
		if strings.EqualFold(supported, "jpg") {
			supported = FormatJPEG
		}
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if a raster meets minimum requirements
func (d *Decoder) ValidateImage(r *types.Raster) error {
	if r.Empty() {
		return types.ErrEmptyImage
	}
	if r.Width < d.config.MinImageSize || r.Height < d.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			r.Width, r.Height, d.config.MinImageSize)
	}
	return nil
}
