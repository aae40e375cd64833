package shapefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/jonas-p/go-shp"
)

// DefaultIDField is the attribute identifying the features
const DefaultIDField = "fid"

// Feature is a polygonal record of a shapefile
type Feature struct {
	// Index of the record in the shapefile
	Index int
	// ID is the value of the id field, or the index of the record if the field does not exist or is empty
	ID       string
	Polygons geom.MultiPolygon
}

// Layer is the content of a polygon shapefile
type Layer struct {
	Features []Feature
	// PRJ is the WKT of the CRS of the layer (content of the .prj file), empty if there is no .prj
	PRJ string
}

// Load reads the polygons of the shapefile.
// Non-polygonal and empty records are skipped.
func Load(path, idField string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Load.Open(%s): %w", path, err)
	}
	defer reader.Close()

	if idField == "" {
		idField = DefaultIDField
	}
	idIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), idField) {
			idIdx = i
		}
	}

	layer := &Layer{}
	for reader.Next() {
		n, shape := reader.Shape()
		polygons := toPolygons(shape)
		if len(polygons) == 0 {
			continue
		}
		id := strconv.Itoa(n)
		if idIdx >= 0 {
			if v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00")); v != "" {
				id = v
			}
		}
		layer.Features = append(layer.Features, Feature{Index: n, ID: id, Polygons: polygons})
	}
	if len(layer.Features) == 0 {
		return nil, fmt.Errorf("Load(%s): no polygon found", path)
	}

	prj, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load.ReadPRJ: %w", err)
	}
	layer.PRJ = strings.TrimSpace(string(prj))
	return layer, nil
}

// toPolygons converts the parts of a polygon shape into polygons.
// Outer rings are clockwise and holes are counter-clockwise. A hole belongs to the preceding outer ring.
func toPolygons(shape shp.Shape) geom.MultiPolygon {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}

	var mp geom.MultiPolygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 3 {
			continue
		}
		ring := make([][2]float64, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, [2]float64{p.X, p.Y})
		}
		if len(mp) == 0 || signedArea(ring) <= 0 {
			mp = append(mp, geom.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}
	return mp
}

// signedArea is positive for counter-clockwise rings
func signedArea(ring [][2]float64) float64 {
	a := 0.
	for i := range ring {
		p, q := ring[i], ring[(i+1)%len(ring)]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return a / 2
}
