package vision

import (
	"cmp"
	"math"
	"slices"

	"github.com/menta2k/design-extractor/pkg/types"
)

// ShapeDetector finds discrete graphical regions such as panels, icons and
// logos in a raster
type ShapeDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for shape detection
type DetectionConfig struct {
	EdgeThreshold       float64
	ForegroundThreshold float64
	ConfidenceThreshold float64
	MinRegionRatio      float64
	OverlapTolerance    float64
	MaxRegions          int
	ClosureWeight       float64
	FillWeight          float64
	SizeWeight          float64
}

// DefaultConfig returns the default detection configuration
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		EdgeThreshold:       0.08,
		ForegroundThreshold: 0.12,
		ConfidenceThreshold: 0.65,
		MinRegionRatio:      0.004,
		OverlapTolerance:    0.1,
		MaxRegions:          32,
		ClosureWeight:       0.45,
		FillWeight:          0.35,
		SizeWeight:          0.2,
	}
}

// New creates a new ShapeDetector with default configuration
func New() *ShapeDetector {
	return &ShapeDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new ShapeDetector with custom configuration
func NewWithConfig(config DetectionConfig) *ShapeDetector {
	return &ShapeDetector{config: config}
}

// Config returns the detector configuration
func (d *ShapeDetector) Config() DetectionConfig {
	return d.config
}

// DetectShapes returns candidate shape regions in reading order. No two
// returned regions overlap by more than OverlapTolerance. An image without
// qualifying shapes yields an empty slice.
func (d *ShapeDetector) DetectShapes(r *types.Raster) []types.Region {
	if r.Empty() {
		return []types.Region{}
	}

	bg := EstimateBackground(r)
	grad := GradientMap(r)
	mask := ForegroundMask(r, bg, d.config.ForegroundThreshold)
	comps, labels := Components(mask)

	imageArea := float64(r.Width * r.Height)
	minArea := d.config.MinRegionRatio * imageArea

	var regions []types.Region
	for _, c := range comps {
		boxArea := float64(c.Box.Dx() * c.Box.Dy())
		if boxArea < minArea || c.Box.Dx() < 2 || c.Box.Dy() < 2 {
			continue
		}
		confidence := d.scoreComponent(c, labels, grad, imageArea)
		if confidence <= d.config.ConfidenceThreshold {
			continue
		}
		regions = append(regions, types.Region{
			X:          c.Box.Min.X,
			Y:          c.Box.Min.Y,
			Width:      c.Box.Dx(),
			Height:     c.Box.Dy(),
			Confidence: confidence,
		})
	}

	regions = MergeOverlapping(regions, d.config.OverlapTolerance)

	// Keep the most confident regions, then report them top-to-bottom
	slices.SortStableFunc(regions, func(a, b types.Region) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if d.config.MaxRegions > 0 && len(regions) > d.config.MaxRegions {
		regions = regions[:d.config.MaxRegions]
	}
	SortReadingOrder(regions)

	for i := range regions {
		regions[i].Fill = HexColor(DominantColor(r, regions[i].Rect()))
	}
	if regions == nil {
		regions = []types.Region{}
	}
	return regions
}

// scoreComponent combines contour closure, fill ratio and relative size into
// a confidence in [0,1]
func (d *ShapeDetector) scoreComponent(c Component, labels *Labels, grad *GradientField, imageArea float64) float64 {
	boundary, closed := 0, 0
	for y := c.Box.Min.Y; y < c.Box.Max.Y; y++ {
		for x := c.Box.Min.X; x < c.Box.Max.X; x++ {
			if labels.At(x, y) != c.ID {
				continue
			}
			edge := false
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if labels.At(n[0], n[1]) != c.ID {
					edge = true
					break
				}
			}
			if !edge {
				continue
			}
			boundary++
			if grad.At(x, y) > d.config.EdgeThreshold {
				closed++
			}
		}
	}
	if boundary == 0 {
		return 0
	}

	closure := float64(closed) / float64(boundary)
	fill := c.Fill()
	boxArea := float64(c.Box.Dx() * c.Box.Dy())
	size := math.Min(1, math.Sqrt(boxArea/imageArea)/0.25)

	total := d.config.ClosureWeight + d.config.FillWeight + d.config.SizeWeight
	if total <= 0 {
		return 0
	}
	score := (d.config.ClosureWeight*closure + d.config.FillWeight*fill + d.config.SizeWeight*size) / total
	return math.Round(math.Min(1, math.Max(0, score))*1000) / 1000
}

// MergeOverlapping unions regions until no pair overlaps by more than
// tolerance (intersection over the smaller area)
func MergeOverlapping(regions []types.Region, tolerance float64) []types.Region {
	out := slices.Clone(regions)
	for {
		merged := false
		for i := 0; i < len(out) && !merged; i++ {
			for j := i + 1; j < len(out); j++ {
				if out[i].OverlapRatio(out[j]) > tolerance {
					out[i] = out[i].Union(out[j])
					out = slices.Delete(out, j, j+1)
					merged = true
					break
				}
			}
		}
		if !merged {
			return out
		}
	}
}

// SortReadingOrder orders regions top-to-bottom, then left-to-right
func SortReadingOrder(regions []types.Region) {
	slices.SortStableFunc(regions, func(a, b types.Region) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
}
