package raster

import (
	"fmt"
	"math"
	"strings"
)

// Resampling is the method used to compute the value of a reprojected pixel
type Resampling int

const (
	Nearest Resampling = iota
	Bilinear
)

// ParseResampling returns the Resampling from its name (nearest, bilinear)
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(s) {
	case "", "near", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	}
	return Nearest, fmt.Errorf("unknown resampling method: %s", s)
}

func (r Resampling) String() string {
	if r == Bilinear {
		return "bilinear"
	}
	return "nearest"
}

// CoordTransformer converts coordinates in place (geometry.Transformer)
type CoordTransformer interface {
	Transform(xs, ys []float64) error
}

// Reproject resamples src on the grid.
// trn transforms coordinates from the CRS of the grid to the CRS of src.
// Pixels of the grid that are outside src are nodata. Nodata pixels of src are never blended with valid ones:
// if one of the neighbours needed by the bilinear interpolation is nodata, the nearest pixel is used.
func Reproject(src *Buffer, grid Grid, trn CoordTransformer, method Resampling) (*Buffer, error) {
	inv, err := src.Transform.Invert()
	if err != nil {
		return nil, fmt.Errorf("Reproject.%w", err)
	}
	dst := NewBuffer(grid, src.Bands, src.NoData)

	xs := make([]float64, grid.Width)
	ys := make([]float64, grid.Width)
	for j := 0; j < grid.Height; j++ {
		for i := 0; i < grid.Width; i++ {
			xs[i], ys[i] = grid.PixelCenter(i, j)
		}
		if err := trn.Transform(xs, ys); err != nil {
			return nil, fmt.Errorf("Reproject.%w", err)
		}
		for i := 0; i < grid.Width; i++ {
			px, py := inv.Apply(xs[i], ys[i])
			if method == Bilinear && src.bilinear(dst, i, j, px, py) {
				continue
			}
			src.nearest(dst, i, j, px, py)
		}
	}
	return dst, nil
}

func (src *Buffer) inside(i, j int) bool {
	return i >= 0 && j >= 0 && i < src.Width && j < src.Height
}

// nearest copies the pixel of src containing (px, py) into the pixel (i, j) of dst
func (src *Buffer) nearest(dst *Buffer, i, j int, px, py float64) {
	si, sj := int(math.Floor(px)), int(math.Floor(py))
	if !src.inside(si, sj) {
		return
	}
	for b := 0; b < src.Bands; b++ {
		dst.Set(b, i, j, src.At(b, si, sj))
	}
}

// bilinear interpolates the four pixels of src around (px, py) into the pixel (i, j) of dst
// It returns false if one of them is outside src or nodata.
func (src *Buffer) bilinear(dst *Buffer, i, j int, px, py float64) bool {
	fx, fy := px-0.5, py-0.5
	i0, j0 := int(math.Floor(fx)), int(math.Floor(fy))
	if !src.inside(i0, j0) || !src.inside(i0+1, j0+1) {
		return false
	}
	if !src.Valid(i0, j0) || !src.Valid(i0+1, j0) || !src.Valid(i0, j0+1) || !src.Valid(i0+1, j0+1) {
		return false
	}
	wx, wy := fx-float64(i0), fy-float64(j0)
	for b := 0; b < src.Bands; b++ {
		v := (1-wx)*(1-wy)*src.At(b, i0, j0) + wx*(1-wy)*src.At(b, i0+1, j0) +
			(1-wx)*wy*src.At(b, i0, j0+1) + wx*wy*src.At(b, i0+1, j0+1)
		dst.Set(b, i, j, v)
	}
	return true
}

type identity struct{}

func (identity) Transform(xs, ys []float64) error { return nil }

// Identity is the CoordTransformer to use when the grid and the source share the same CRS
var Identity CoordTransformer = identity{}
