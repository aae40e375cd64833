package geometry

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry: %T", g)
	}
	return nil
}

// Polygons decodes a WKT polygon, multipolygon or collection of polygons
func Polygons(wkt string) (geom.MultiPolygon, error) {
	g, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("Polygons.DecodeString: %w", err)
	}
	var mp geom.MultiPolygon
	if err := mergeMultiPolygons(g, &mp); err != nil {
		return nil, fmt.Errorf("Polygons: %w", err)
	}
	return mp, nil
}

// WKTBounds returns the bounding box of a WKT (multi)polygon
func WKTBounds(wkt string) (Bounds, error) {
	mp, err := Polygons(wkt)
	if err != nil {
		return Bounds{}, fmt.Errorf("WKTBounds.%w", err)
	}
	b := emptyBounds()
	for _, polygon := range mp {
		for _, ring := range polygon {
			for _, p := range ring {
				b.add(p[0], p[1])
			}
		}
	}
	if b.MinX > b.MaxX {
		return Bounds{}, fmt.Errorf("WKTBounds: empty geometry")
	}
	return b, nil
}

// Reproject transforms a WKT (multi)polygon from srcEPSG to dstEPSG.
// If densify > 0, the edges are first split into segments not longer than densify (in source units).
func Reproject(wkt string, srcEPSG, dstEPSG int, densify float64) (string, error) {
	if srcEPSG == dstEPSG {
		return wkt, nil
	}
	trn, err := NewTransformer(srcEPSG, dstEPSG)
	if err != nil {
		return "", fmt.Errorf("Reproject.%w", err)
	}
	defer trn.Close()
	return ReprojectWith(wkt, trn, densify)
}

// ReprojectWith transforms a WKT (multi)polygon using trn
func ReprojectWith(wkt string, trn Transformer, densify float64) (string, error) {
	mp, err := Polygons(wkt)
	if err != nil {
		return "", fmt.Errorf("Reproject.%w", err)
	}

	// Flatten all the coordinates to transform them at once
	var xs, ys []float64
	for i, polygon := range mp {
		for j, ring := range polygon {
			ring = densifyRing(closeRing(ring), densify)
			mp[i][j] = ring
			for _, p := range ring {
				xs = append(xs, p[0])
				ys = append(ys, p[1])
			}
		}
	}
	if err := trn.Transform(xs, ys); err != nil {
		return "", fmt.Errorf("Reproject.%w", err)
	}
	k := 0
	for _, polygon := range mp {
		for _, ring := range polygon {
			for l := range ring {
				ring[l] = [2]float64{xs[k], ys[k]}
				k++
			}
		}
	}

	g, err := polygonsToGeos(mp)
	if err != nil {
		return "", fmt.Errorf("Reproject.%w", err)
	}
	res, err := g.ToWKT()
	if err != nil {
		return "", fmt.Errorf("Reproject.ToWKT: %w", err)
	}
	return res, nil
}

// closeRing returns a copy of the ring whose last point equals the first one
func closeRing(ring [][2]float64) [][2]float64 {
	res := append([][2]float64{}, ring...)
	if len(res) > 0 && res[0] != res[len(res)-1] {
		res = append(res, res[0])
	}
	return res
}

// densifyRing inserts points so that no segment of the ring is longer than step
func densifyRing(ring [][2]float64, step float64) [][2]float64 {
	if step <= 0 || len(ring) < 2 {
		return ring
	}
	res := [][2]float64{ring[0]}
	for i := 1; i < len(ring); i++ {
		p0, p1 := ring[i-1], ring[i]
		n := int(math.Ceil(math.Hypot(p1[0]-p0[0], p1[1]-p0[1]) / step))
		for k := 1; k < n; k++ {
			f := float64(k) / float64(n)
			res = append(res, [2]float64{p0[0] + f*(p1[0]-p0[0]), p0[1] + f*(p1[1]-p0[1])})
		}
		res = append(res, p1)
	}
	return res
}

func ringToCoords(ring [][2]float64) []geos.Coord {
	ring = closeRing(ring)
	coords := make([]geos.Coord, len(ring))
	for i, p := range ring {
		coords[i] = geos.Coord{X: p[0], Y: p[1]}
	}
	return coords
}

func polygonsToGeos(mp geom.MultiPolygon) (*geos.Geometry, error) {
	var polygons []*geos.Geometry
	for _, polygon := range mp {
		if len(polygon) == 0 {
			continue
		}
		var holes [][]geos.Coord
		for _, hole := range polygon[1:] {
			holes = append(holes, ringToCoords(hole))
		}
		p, err := geos.NewPolygon(ringToCoords(polygon[0]), holes...)
		if err != nil {
			return nil, fmt.Errorf("polygonsToGeos.NewPolygon: %w", err)
		}
		polygons = append(polygons, p)
	}
	switch len(polygons) {
	case 0:
		return nil, fmt.Errorf("polygonsToGeos: empty geometry")
	case 1:
		return polygons[0], nil
	}
	g, err := geos.NewCollection(geos.MULTIPOLYGON, polygons...)
	if err != nil {
		return nil, fmt.Errorf("polygonsToGeos.NewCollection: %w", err)
	}
	return g, nil
}

var TOLERANCE_GEOG = 0.000001

// TOLERANCE_PROJ is the simplification tolerance for projected CRS (meters)
var TOLERANCE_PROJ = 0.01

func WKTUnion(wkts []string, tolerance float64) (string, error) {
	var geoms []*geos.Geometry
	for _, wkt := range wkts {
		geo, err := geos.FromWKT(wkt)
		if err != nil {
			return "", fmt.Errorf("WKTUnion.FromWKT: %w", err)
		}
		geoms = append(geoms, geo)
	}
	aoi, err := Union(geoms, tolerance)
	if err != nil {
		return "", fmt.Errorf("WKTUnion.%w", err)
	}
	wkt, err := aoi.ToWKT()
	if err != nil {
		return "", fmt.Errorf("WKTUnion.ToWKT: %w", err)
	}
	return wkt, nil
}

func Union(geoms []*geos.Geometry, tolerance float64) (*geos.Geometry, error) {
	aoi, err := UnaryUnion(geoms)
	if err == nil {
		if aoi, err = aoi.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		return aoi, nil
	}
	// Union all failed, retry one by one with simplify
	aoi = geoms[0]
	for _, geom := range geoms[1:] {
		if geom, err = geom.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		if aoi, err = geom.Union(aoi); err != nil {
			return nil, fmt.Errorf("Union: %w", err)
		}
	}
	return aoi, nil
}

func UnaryUnion(geoms []*geos.Geometry) (*geos.Geometry, error) {
	aoi, err := geos.NewCollection(geos.MULTIPOLYGON, geoms...)
	if err != nil {
		return nil, fmt.Errorf("UnaryUnion.NewCollection: %w", err)
	}
	if aoi, err = aoi.UnaryUnion(); err != nil {
		return nil, fmt.Errorf("UnaryUnion.UnaryUnion: %w", err)
	}
	return aoi, nil
}

// PolygonsWKT encodes the polygons (rings may be open or closed) as a WKT polygon or multipolygon
func PolygonsWKT(mp geom.MultiPolygon) (string, error) {
	g, err := polygonsToGeos(mp)
	if err != nil {
		return "", fmt.Errorf("PolygonsWKT.%w", err)
	}
	wkt, err := g.ToWKT()
	if err != nil {
		return "", fmt.Errorf("PolygonsWKT.ToWKT: %w", err)
	}
	return wkt, nil
}

// BufferWKT returns the geometry buffered by d (in the units of its CRS)
func BufferWKT(wkt string, d float64) (string, error) {
	if d == 0 {
		return wkt, nil
	}
	g, err := geos.FromWKT(wkt)
	if err != nil {
		return "", invalidGeometry("%v", err)
	}
	if g, err = g.Buffer(d); err != nil {
		return "", fmt.Errorf("BufferWKT.Buffer: %w", err)
	}
	res, err := g.ToWKT()
	if err != nil {
		return "", fmt.Errorf("BufferWKT.ToWKT: %w", err)
	}
	return res, nil
}
