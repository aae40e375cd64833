package geometry

import (
	"fmt"
	"math"
	"strconv"

	"github.com/airbusgeo/godal"
)

// WGS84 is the EPSG code of the geographic CRS used by the catalogs
const WGS84 = 4326

// Transformer converts coordinates in place from a CRS to another
type Transformer interface {
	Transform(xs, ys []float64) error
	Close()
}

type identity struct{}

func (identity) Transform(xs, ys []float64) error { return nil }
func (identity) Close()                           {}

// Identity returns a Transformer that does nothing
func Identity() Transformer {
	return identity{}
}

type gdalTransformer struct {
	src, dst *godal.SpatialRef
	trn      *godal.Transform
}

// NewTransformer returns a Transformer from srcEPSG to dstEPSG (x=longitude, y=latitude for geographic CRS)
// The Transformer is not safe for concurrent use and must be closed.
func NewTransformer(srcEPSG, dstEPSG int) (Transformer, error) {
	if srcEPSG == dstEPSG {
		return identity{}, nil
	}
	src, err := godal.NewSpatialRefFromEPSG(srcEPSG)
	if err != nil {
		return nil, fmt.Errorf("NewTransformer.EPSG:%d: %w", srcEPSG, err)
	}
	return newGDALTransformer(src, dstEPSG)
}

// NewTransformerFromWKT returns a Transformer from the CRS described by srcWKT (e.g. the content of a .prj) to dstEPSG
func NewTransformerFromWKT(srcWKT string, dstEPSG int) (Transformer, error) {
	src, err := godal.NewSpatialRefFromWKT(srcWKT)
	if err != nil {
		return nil, fmt.Errorf("NewTransformerFromWKT: %w", err)
	}
	return newGDALTransformer(src, dstEPSG)
}

func newGDALTransformer(src *godal.SpatialRef, dstEPSG int) (Transformer, error) {
	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("NewTransformer.EPSG:%d: %w", dstEPSG, err)
	}
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		src.Close()
		dst.Close()
		return nil, fmt.Errorf("NewTransformer: %w", err)
	}
	return &gdalTransformer{src: src, dst: dst, trn: trn}, nil
}

// Transform implements Transformer
func (t *gdalTransformer) Transform(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("Transform: %d xs for %d ys", len(xs), len(ys))
	}
	zs := make([]float64, len(xs))
	ok := make([]bool, len(xs))
	if err := t.trn.TransformEx(xs, ys, zs, ok); err != nil {
		return fmt.Errorf("Transform: %w", err)
	}
	for i := range ok {
		if !ok[i] || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			return fmt.Errorf("Transform: point %d cannot be transformed", i)
		}
	}
	return nil
}

// Close implements Transformer
func (t *gdalTransformer) Close() {
	t.trn.Close()
	t.src.Close()
	t.dst.Close()
}

// TransformPoint converts a single point from srcEPSG to dstEPSG
func TransformPoint(srcEPSG, dstEPSG int, x, y float64) (float64, float64, error) {
	trn, err := NewTransformer(srcEPSG, dstEPSG)
	if err != nil {
		return 0, 0, fmt.Errorf("TransformPoint.%w", err)
	}
	defer trn.Close()
	xs, ys := []float64{x}, []float64{y}
	if err := trn.Transform(xs, ys); err != nil {
		return 0, 0, fmt.Errorf("TransformPoint.%w", err)
	}
	return xs[0], ys[0], nil
}

// UTMZone returns the UTM zone of the point and the EPSG code of the corresponding WGS84/UTM CRS
func UTMZone(lat, lon float64) (int, int) {
	zone := int((lon+180)/6) + 1
	if zone < 1 {
		zone = 1
	} else if zone > 60 {
		zone = 60
	}
	if lat >= 0 {
		return zone, 32600 + zone
	}
	return zone, 32700 + zone
}

// IsUTM returns true if epsg is a WGS84/UTM CRS
func IsUTM(epsg int) bool {
	return (epsg > 32600 && epsg <= 32660) || (epsg > 32700 && epsg <= 32760)
}

// Bounds is an axis-aligned bounding box
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width of the bounding box
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height of the bounding box
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Buffer expands the bounding box by d in all directions
func (b Bounds) Buffer(d float64) Bounds {
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Extend returns the smallest bounding box containing b and o
func (b Bounds) Extend(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX), MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX), MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// WKT returns the polygon of the bounding box
func (b Bounds) WKT() string {
	minx, miny, maxx, maxy := ftoa(b.MinX), ftoa(b.MinY), ftoa(b.MaxX), ftoa(b.MaxY)
	return fmt.Sprintf("POLYGON ((%[1]s %[2]s, %[3]s %[2]s, %[3]s %[4]s, %[1]s %[4]s, %[1]s %[2]s))",
		minx, miny, maxx, maxy)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func emptyBounds() Bounds {
	return Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

func (b *Bounds) add(x, y float64) {
	b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
	b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
}

// TransformBounds returns the bounding box, in dstEPSG, of the bounding box b expressed in srcEPSG.
// Each edge is sampled with n points to take the curvature into account.
func TransformBounds(b Bounds, srcEPSG, dstEPSG, n int) (Bounds, error) {
	if srcEPSG == dstEPSG {
		return b, nil
	}
	if n < 2 {
		n = 2
	}
	var xs, ys []float64
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		x := b.MinX + f*b.Width()
		y := b.MinY + f*b.Height()
		xs = append(xs, x, x, b.MinX, b.MaxX)
		ys = append(ys, b.MinY, b.MaxY, y, y)
	}
	trn, err := NewTransformer(srcEPSG, dstEPSG)
	if err != nil {
		return Bounds{}, fmt.Errorf("TransformBounds.%w", err)
	}
	defer trn.Close()
	if err := trn.Transform(xs, ys); err != nil {
		return Bounds{}, fmt.Errorf("TransformBounds.%w", err)
	}
	res := emptyBounds()
	for i := range xs {
		res.add(xs[i], ys[i])
	}
	return res, nil
}
