package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/design-extractor/pkg/types"
)

// ErrEmptyCrop is returned when a region does not intersect the image
var ErrEmptyCrop = errors.New("empty crop rectangle")

// AssetCropper cuts extracted elements out of the source image so they can
// be downloaded individually
type AssetCropper struct {
	config CropConfig
}

// CropConfig holds configuration for asset cropping
type CropConfig struct {
	PaddingRatio   float64
	IncludeEffects bool
	MaxSize        int
	MinSize        int
}

// DefaultConfig returns the default crop configuration
func DefaultConfig() CropConfig {
	return CropConfig{
		PaddingRatio:   0.05,
		IncludeEffects: true,
		MaxSize:        0,
		MinSize:        4,
	}
}

// New creates a new AssetCropper with default configuration
func New() *AssetCropper {
	return &AssetCropper{config: DefaultConfig()}
}

// NewWithConfig creates a new AssetCropper with custom configuration
func NewWithConfig(config CropConfig) *AssetCropper {
	return &AssetCropper{config: config}
}

// Asset is one cropped element
type Asset struct {
	Name   string            `json:"name"`
	Kind   types.ElementKind `json:"kind"`
	Bounds image.Rectangle   `json:"bounds"`
	Image  image.Image       `json:"-"`
}

// Filename returns a file name for the asset with the given index and
// extension, e.g. 003_panel_1.png
func (a Asset) Filename(index int, ext string) string {
	name := strings.ToLower(strings.Join(strings.Fields(a.Name), "_"))
	name = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return -1
	}, name)
	if name == "" {
		name = string(a.Kind)
	}
	return fmt.Sprintf("%03d_%s.%s", index, name, strings.TrimPrefix(strings.ToLower(ext), "."))
}

// CropRegion crops region grown by margin pixels on every side, clipped to
// the image
func (c *AssetCropper) CropRegion(src image.Image, region types.Region, margin int) (image.Image, image.Rectangle, error) {
	rect := region.Rect().Inset(-margin).Intersect(src.Bounds())
	if rect.Empty() || rect.Dx() < c.config.MinSize || rect.Dy() < c.config.MinSize {
		return nil, image.Rectangle{}, fmt.Errorf("%w: %v", ErrEmptyCrop, region.Rect())
	}

	var cropped image.Image = imaging.Crop(src, rect)
	if c.config.MaxSize > 0 && (rect.Dx() > c.config.MaxSize || rect.Dy() > c.config.MaxSize) {
		cropped = imaging.Fit(cropped, c.config.MaxSize, c.config.MaxSize, imaging.Lanczos)
	}
	return cropped, rect, nil
}

// CropElements crops every shape and text element of a completed run. Shapes
// that carry an effect are cropped wide enough to include the blur.
func (c *AssetCropper) CropElements(r *types.Raster, elements []types.Element) ([]Asset, error) {
	if r.Empty() {
		return nil, types.ErrEmptyImage
	}
	src := r.Image()

	var assets []Asset
	for _, e := range elements {
		var region types.Region
		switch e.Kind {
		case types.KindShape:
			region = e.Shape.Region
		case types.KindText:
			region = e.Text.Line.Box
		default:
			continue
		}

		margin := c.padding(region)
		if e.Kind == types.KindShape && c.config.IncludeEffects {
			margin = max(margin, effectMargin(region, elements))
		}

		img, rect, err := c.CropRegion(src, region, margin)
		if err != nil {
			if errors.Is(err, ErrEmptyCrop) {
				continue
			}
			return nil, fmt.Errorf("failed to crop %s: %w", e.Name, err)
		}
		assets = append(assets, Asset{Name: e.Name, Kind: e.Kind, Bounds: rect, Image: img})
	}
	return assets, nil
}

func (c *AssetCropper) padding(region types.Region) int {
	return int(math.Round(float64(max(region.Width, region.Height)) * c.config.PaddingRatio))
}

// effectMargin returns how far an outer effect on region reaches beyond it
func effectMargin(region types.Region, elements []types.Element) int {
	margin := 0
	for _, e := range elements {
		if e.Kind != types.KindEffect || e.Effect.Effect.Region != region {
			continue
		}
		fx := e.Effect.Effect
		if fx.Kind != types.EffectDropShadow && fx.Kind != types.EffectGlow {
			continue
		}
		reach := fx.BlurRadiusPx + math.Max(math.Abs(fx.OffsetX), math.Abs(fx.OffsetY))
		margin = max(margin, int(math.Ceil(reach)))
	}
	return margin
}
