package types

import (
	"image"
	"math"
)

// Region represents a rectangular area of a raster in pixel coordinates
type Region struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	Fill       string  `json:"fill,omitempty"`
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Contains reports whether (x, y) lies inside the region
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// IntersectionArea returns the number of pixels shared by r and other
func (r Region) IntersectionArea(other Region) int {
	in := r.Rect().Intersect(other.Rect())
	if in.Empty() {
		return 0
	}
	return in.Dx() * in.Dy()
}

// OverlapRatio returns the shared area divided by the smaller region's area.
// The result is in [0,1]; a region fully inside another yields 1.
func (r Region) OverlapRatio(other Region) float64 {
	minArea := min(r.Area(), other.Area())
	if minArea <= 0 {
		return 0
	}
	return float64(r.IntersectionArea(other)) / float64(minArea)
}

// Union returns the smallest region covering both r and other. Confidence is
// the higher of the two; the fill of the larger region is kept.
func (r Region) Union(other Region) Region {
	u := r.Rect().Union(other.Rect())
	fill := r.Fill
	if other.Area() > r.Area() {
		fill = other.Fill
	}
	return Region{
		X:          u.Min.X,
		Y:          u.Min.Y,
		Width:      u.Dx(),
		Height:     u.Dy(),
		Confidence: math.Max(r.Confidence, other.Confidence),
		Fill:       fill,
	}
}

// Scale maps a region measured on a downscaled raster back to source pixels
func (r Region) Scale(f float64) Region {
	if f == 1 {
		return r
	}
	out := r
	out.X = int(math.Round(float64(r.X) * f))
	out.Y = int(math.Round(float64(r.Y) * f))
	out.Width = int(math.Round(float64(r.Width) * f))
	out.Height = int(math.Round(float64(r.Height) * f))
	return out
}
