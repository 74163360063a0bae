package types

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Raster is a decoded pixel grid. Samples are stored row-major as
// non-premultiplied R, G, B, A bytes. A Raster is never modified after
// construction; every accessor that hands out pixel memory returns a copy.
type Raster struct {
	Width  int
	Height int
	Format string
	pix    []uint8
}

// NewRaster copies img into a new Raster
func NewRaster(img image.Image, format string) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r := &Raster{Width: w, Height: h, Format: format, pix: make([]uint8, 4*w*h)}

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			off := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
			copy(r.pix[y*w*4:(y+1)*w*4], src.Pix[off:off+w*4])
		}
		return r
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r.pix[i+0] = c.R
			r.pix[i+1] = c.G
			r.pix[i+2] = c.B
			r.pix[i+3] = c.A
			i += 4
		}
	}
	return r
}

// PixelCount returns the number of pixels held in the sample buffer
func (r *Raster) PixelCount() int {
	if r == nil {
		return 0
	}
	return len(r.pix) / 4
}

// Empty reports whether the raster holds no pixels
func (r *Raster) Empty() bool {
	return r == nil || r.Width <= 0 || r.Height <= 0 || len(r.pix) == 0
}

// Bounds returns the raster rectangle anchored at the origin
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// At returns the sample at (x, y). Out of range coordinates yield transparent black.
func (r *Raster) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.NRGBA{}
	}
	i := (y*r.Width + x) * 4
	return color.NRGBA{R: r.pix[i], G: r.pix[i+1], B: r.pix[i+2], A: r.pix[i+3]}
}

// Luminance returns the Rec. 601 luma of (x, y) in [0,1], composited over white
func (r *Raster) Luminance(x, y int) float64 {
	c := r.At(x, y)
	return luma(c)
}

// Flatten composites c over white and returns an opaque color. Every stage
// judges translucent pixels by this color.
func Flatten(c color.NRGBA) color.NRGBA {
	if c.A == 255 {
		return c
	}
	a := float64(c.A) / 255
	blend := func(v uint8) uint8 {
		return uint8(math.Round(float64(v)*a + 255*(1-a)))
	}
	return color.NRGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 255}
}

func luma(c color.NRGBA) float64 {
	a := float64(c.A) / 255
	rf := (float64(c.R)*a + 255*(1-a)) / 255
	gf := (float64(c.G)*a + 255*(1-a)) / 255
	bf := (float64(c.B)*a + 255*(1-a)) / 255
	return 0.299*rf + 0.587*gf + 0.114*bf
}

// Image returns a copy of the raster as an *image.NRGBA
func (r *Raster) Image() *image.NRGBA {
	img := image.NewNRGBA(r.Bounds())
	copy(img.Pix, r.pix)
	return img
}

// SubImage returns a copy of the pixels inside rect, clipped to the raster
func (r *Raster) SubImage(rect image.Rectangle) *image.NRGBA {
	rect = rect.Intersect(r.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		src := ((rect.Min.Y+y)*r.Width + rect.Min.X) * 4
		copy(out.Pix[y*out.Stride:y*out.Stride+rect.Dx()*4], r.pix[src:src+rect.Dx()*4])
	}
	return out
}

// Fit returns a raster whose longer side is at most maxDim, along with the
// factor that maps its coordinates back onto r. The receiver is returned
// unchanged with scale 1 when it already fits or maxDim <= 0.
func (r *Raster) Fit(maxDim int) (*Raster, float64) {
	if maxDim <= 0 || (r.Width <= maxDim && r.Height <= maxDim) {
		return r, 1
	}
	fitted := imaging.Fit(r.Image(), maxDim, maxDim, imaging.Box)
	out := NewRaster(fitted, r.Format)
	scale := math.Max(float64(r.Width)/float64(out.Width), float64(r.Height)/float64(out.Height))
	return out, scale
}
