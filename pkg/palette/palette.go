package palette

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"math/rand"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"

	"github.com/menta2k/design-extractor/pkg/types"
)

// Method selects the clustering strategy
type Method string

const (
	MethodKMeans   Method = "kmeans"
	MethodDominant Method = "dominant"
)

// Swatch count bounds
const (
	DefaultK = 6
	MinK     = 1
	MaxK     = 16
)

// Config holds palette extraction parameters
type Config struct {
	K             int
	Method        Method
	MaxSamples    int
	MaxIterations int
	// MergeDistance is the Lab distance (go-colorful units, 0.01 ≈ 1 ΔE)
	// below which two cluster centers are reported as one swatch.
	MergeDistance float64
	MinAlpha      uint8
}

// DefaultConfig returns the default palette configuration
func DefaultConfig() Config {
	return Config{
		K:             DefaultK,
		Method:        MethodKMeans,
		MaxSamples:    12000,
		MaxIterations: 24,
		MergeDistance: 0.05,
		MinAlpha:      8,
	}
}

// Extractor clusters raster colors into named swatches
type Extractor struct {
	config Config
}

// New creates an Extractor with default configuration
func New() *Extractor {
	return &Extractor{config: DefaultConfig()}
}

// NewWithConfig creates an Extractor with custom configuration
func NewWithConfig(config Config) *Extractor {
	return &Extractor{config: config}
}

// ClampK bounds a requested swatch count to [MinK, MaxK]. Zero or negative
// values select DefaultK.
func ClampK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return min(max(k, MinK), MaxK)
}

// Extract returns at most k swatches ordered by descending coverage. k <= 0
// uses the configured count. The kmeans method returns identical output for
// identical input.
func (e *Extractor) Extract(r *types.Raster, k int) ([]types.Swatch, error) {
	if r.Empty() || r.PixelCount() == 0 {
		return nil, fmt.Errorf("palette: %w", types.ErrEmptyImage)
	}
	if k <= 0 {
		k = e.config.K
	}
	k = ClampK(k)

	var swatches []types.Swatch
	switch e.config.Method {
	case MethodDominant:
		swatches = e.dominant(r, k)
	case MethodKMeans, "":
		swatches = e.kmeans(r, k)
	default:
		return nil, fmt.Errorf("palette: unknown method %q", e.config.Method)
	}

	sortSwatches(swatches)
	if len(swatches) > k {
		swatches = swatches[:k]
	}
	return swatches, nil
}

// Extract runs the default extractor
func Extract(r *types.Raster, k int) ([]types.Swatch, error) {
	return New().Extract(r, k)
}

// sample is one pixel observation, flattened over white. Clustering happens
// in Lab; the RGB is kept so swatches can report the mean of their members.
type sample struct {
	lab     clusters.Coordinates
	r, g, b float64
}

func (s sample) Coordinates() clusters.Coordinates {
	return s.lab
}

func (s sample) Distance(point clusters.Coordinates) float64 {
	return s.lab.Distance(point)
}

func (e *Extractor) samples(r *types.Raster) (clusters.Observations, int64) {
	maxSamples := e.config.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultConfig().MaxSamples
	}
	step := 1
	if n := r.Width * r.Height; n > maxSamples {
		step = int(math.Sqrt(float64(n)/float64(maxSamples))) + 1
	}

	h := fnv.New64a()
	dataset := make(clusters.Observations, 0, min(r.Width*r.Height, maxSamples))
	for y := 0; y < r.Height; y += step {
		for x := 0; x < r.Width; x += step {
			c := r.At(x, y)
			if c.A < e.config.MinAlpha {
				continue
			}
			c = types.Flatten(c)
			h.Write([]byte{c.R, c.G, c.B})
			col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
			l, a, b := col.Lab()
			dataset = append(dataset, sample{
				lab: clusters.Coordinates{l, a, b},
				r:   float64(c.R),
				g:   float64(c.G),
				b:   float64(c.B),
			})
		}
	}
	return dataset, int64(h.Sum64())
}

func (e *Extractor) kmeans(r *types.Raster, k int) []types.Swatch {
	dataset, seed := e.samples(r)
	if len(dataset) == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	cc := seedCenters(dataset, k, rng)

	maxIter := e.config.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultConfig().MaxIterations
	}
	assigned := make([]int, len(dataset))
	for i := range assigned {
		assigned[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := 0
		cc.Reset()
		for i, p := range dataset {
			ci := cc.Nearest(p)
			if assigned[i] != ci {
				assigned[i] = ci
				changed++
			}
			cc[ci].Append(p)
		}
		if changed == 0 {
			break
		}
		cc.Recenter()
	}

	groups := make([]group, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 {
			continue
		}
		var g group
		for _, o := range c.Observations {
			s := o.(sample)
			g.r += s.r
			g.g += s.g
			g.b += s.b
		}
		g.count = float64(len(c.Observations))
		groups = append(groups, g)
	}

	groups = mergeGroups(groups, e.config.MergeDistance)
	return toSwatches(groups, float64(len(dataset)))
}

// seedCenters picks up to k initial centers with k-means++. Seeding stops
// early when every remaining sample coincides with a chosen center.
func seedCenters(dataset clusters.Observations, k int, rng *rand.Rand) clusters.Clusters {
	first := dataset[rng.Intn(len(dataset))].Coordinates()
	cc := clusters.Clusters{{Center: slices.Clone(first)}}

	dist := make([]float64, len(dataset))
	for len(cc) < k {
		total := 0.0
		for i, p := range dataset {
			d := p.Distance(cc[cc.Nearest(p)].Center)
			dist[i] = d
			total += d
		}
		if total == 0 {
			break
		}

		target := rng.Float64() * total
		pick := len(dataset) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 && d > 0 {
				pick = i
				break
			}
		}
		cc = append(cc, clusters.Cluster{Center: slices.Clone(dataset[pick].Coordinates())})
	}
	return cc
}

// group accumulates summed RGB for the members of one cluster
type group struct {
	r, g, b float64
	count   float64
}

func (g group) color() colorful.Color {
	return colorful.Color{
		R: g.r / g.count / 255,
		G: g.g / g.count / 255,
		B: g.b / g.count / 255,
	}.Clamped()
}

// mergeGroups folds clusters whose mean colors lie within threshold of a
// larger cluster into it.
func mergeGroups(groups []group, threshold float64) []group {
	slices.SortStableFunc(groups, func(a, b group) int {
		return cmp.Compare(b.count, a.count)
	})
	if threshold <= 0 {
		return groups
	}

	merged := make([]group, 0, len(groups))
	for _, g := range groups {
		folded := false
		for i := range merged {
			if merged[i].color().DistanceLab(g.color()) < threshold {
				merged[i].r += g.r
				merged[i].g += g.g
				merged[i].b += g.b
				merged[i].count += g.count
				folded = true
				break
			}
		}
		if !folded {
			merged = append(merged, g)
		}
	}
	return merged
}

func toSwatches(groups []group, total float64) []types.Swatch {
	swatches := make([]types.Swatch, 0, len(groups))
	for _, g := range groups {
		col := g.color()
		swatches = append(swatches, types.Swatch{
			Hex:      col.Hex(),
			Name:     NearestName(col),
			Coverage: roundCoverage(g.count / total),
		})
	}
	return swatches
}

func (e *Extractor) dominant(r *types.Raster, k int) []types.Swatch {
	found := dominantcolor.FindWeight(e.flattened(r), k)
	swatches := make([]types.Swatch, 0, len(found))
	for _, c := range found {
		col, ok := colorful.MakeColor(c.RGBA)
		if !ok {
			continue
		}
		col = col.Clamped()
		swatches = append(swatches, types.Swatch{
			Hex:      col.Hex(),
			Name:     NearestName(col),
			Coverage: roundCoverage(c.Weight),
		})
	}
	return swatches
}

// flattened returns r composited over white. Pixels under MinAlpha become
// fully transparent so dominantcolor skips them.
func (e *Extractor) flattened(r *types.Raster) *image.NRGBA {
	img := r.Image()
	for i := 0; i < len(img.Pix); i += 4 {
		c := color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
		if c.A < e.config.MinAlpha {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
			continue
		}
		c = types.Flatten(c)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func roundCoverage(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// sortSwatches orders by descending coverage, then by hex
func sortSwatches(swatches []types.Swatch) {
	slices.SortStableFunc(swatches, func(a, b types.Swatch) int {
		if c := cmp.Compare(b.Coverage, a.Coverage); c != 0 {
			return c
		}
		return cmp.Compare(a.Hex, b.Hex)
	})
}
