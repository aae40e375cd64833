package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/s2-truecolor/service/geometry"
)

// GeoTransform is the affine transformation from pixel/line to georeferenced coordinates (GDAL convention)
// x = gt[0] + px*gt[1] + py*gt[2]
// y = gt[3] + px*gt[4] + py*gt[5]
type GeoTransform [6]float64

// Apply returns the georeferenced coordinates of the pixel position (px, py)
func (gt GeoTransform) Apply(px, py float64) (float64, float64) {
	return gt[0] + px*gt[1] + py*gt[2], gt[3] + px*gt[4] + py*gt[5]
}

// Invert returns the transformation from georeferenced coordinates to pixel/line
func (gt GeoTransform) Invert() (GeoTransform, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if math.Abs(det) < 1e-15 {
		return GeoTransform{}, fmt.Errorf("Invert: geotransform %v is not invertible", gt)
	}
	inv := 1 / det
	return GeoTransform{
		(gt[2]*gt[3] - gt[0]*gt[5]) * inv,
		gt[5] * inv,
		-gt[2] * inv,
		(-gt[1]*gt[3] + gt[0]*gt[4]) * inv,
		-gt[4] * inv,
		gt[1] * inv,
	}, nil
}

// Grid is the georeferenced frame of a raster
type Grid struct {
	EPSG      int
	Transform GeoTransform
	Width     int
	Height    int
}

// gridTolerance avoids an extra column or row due to the rounding errors of the bounds (in pixels)
const gridTolerance = 1e-6

// GridFromBounds returns the north-up grid of resolution res covering the bounds, with its origin at the top-left corner
func GridFromBounds(b geometry.Bounds, epsg int, res float64) (Grid, error) {
	if res <= 0 {
		return Grid{}, fmt.Errorf("GridFromBounds: resolution must be positive")
	}
	w := int(math.Ceil(b.Width()/res - gridTolerance))
	h := int(math.Ceil(b.Height()/res - gridTolerance))
	if w <= 0 || h <= 0 {
		return Grid{}, fmt.Errorf("GridFromBounds: empty grid (%vx%v)", b.Width(), b.Height())
	}
	return Grid{
		EPSG:      epsg,
		Transform: GeoTransform{b.MinX, res, 0, b.MaxY, 0, -res},
		Width:     w,
		Height:    h,
	}, nil
}

// Resolution returns the size of a pixel along x and y
func (g Grid) Resolution() (float64, float64) {
	return math.Hypot(g.Transform[1], g.Transform[4]), math.Hypot(g.Transform[2], g.Transform[5])
}

// Bounds returns the bounding box of the grid
func (g Grid) Bounds() geometry.Bounds {
	b := geometry.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range [][2]float64{{0, 0}, {float64(g.Width), 0}, {0, float64(g.Height)}, {float64(g.Width), float64(g.Height)}} {
		x, y := g.Transform.Apply(c[0], c[1])
		b = b.Extend(geometry.Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y})
	}
	return b
}

// PixelCenter returns the georeferenced coordinates of the center of the pixel (i, j)
func (g Grid) PixelCenter(i, j int) (float64, float64) {
	return g.Transform.Apply(float64(i)+0.5, float64(j)+0.5)
}

// Equals returns true if both grids are the same
func (g Grid) Equals(o Grid) bool {
	return g.EPSG == o.EPSG && g.Width == o.Width && g.Height == o.Height && g.Transform == o.Transform
}
