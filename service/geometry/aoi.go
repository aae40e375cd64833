package geometry

import (
	"fmt"
	"math"

	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/paulsmith/gogeos/geos"
)

// DensifyGeog is the maximum length of a segment (in degrees) of a geographic polygon before reprojection
const DensifyGeog = 0.01

// DensifyProj is the maximum length of a segment (in meters) of a projected polygon before reprojection
const DensifyProj = 1000.

func densifyStep(epsg int) float64 {
	if epsg == WGS84 {
		return DensifyGeog
	}
	return DensifyProj
}

// NewAOI creates and validates an AreaOfInterest
func NewAOI(name string, kind common.SourceKind, wkt string, epsg int) (common.AreaOfInterest, error) {
	aoi := common.AreaOfInterest{Name: name, Kind: kind, Geometry: wkt, EPSG: epsg}
	if err := Validate(aoi); err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("NewAOI[%s].%w", name, err)
	}
	return aoi, nil
}

// Validate checks that the geometry of the AOI is a valid non-empty polygon with a positive area
func Validate(aoi common.AreaOfInterest) error {
	if !aoi.Kind.Valid() {
		return invalidGeometry("unknown source kind '%s'", aoi.Kind)
	}
	if aoi.EPSG <= 0 {
		return invalidGeometry("missing EPSG")
	}
	g, err := geos.FromWKT(aoi.Geometry)
	if err != nil {
		return invalidGeometry("%v", err)
	}
	if empty, err := g.IsEmpty(); err != nil || empty {
		return invalidGeometry("empty geometry")
	}
	if valid, err := g.IsValid(); err != nil || !valid {
		return invalidGeometry("self-intersecting or malformed geometry")
	}
	if area, err := g.Area(); err != nil || area <= 0 {
		return invalidGeometry("area must be positive")
	}
	return nil
}

// Area returns the area of the AOI in the square units of its CRS
func Area(aoi common.AreaOfInterest) (float64, error) {
	g, err := geos.FromWKT(aoi.Geometry)
	if err != nil {
		return 0, fmt.Errorf("Area.FromWKT: %w", err)
	}
	area, err := g.Area()
	if err != nil {
		return 0, fmt.Errorf("Area: %w", err)
	}
	return area, nil
}

// BufferPointToSquare returns a square AOI of side sideMeters centered on (lat, lon)
// expressed in the UTM zone of the point.
func BufferPointToSquare(name string, lat, lon, sideMeters float64) (common.AreaOfInterest, error) {
	if sideMeters <= 0 || math.IsNaN(sideMeters) {
		return common.AreaOfInterest{}, invalidGeometry("side of the square must be positive (got %v)", sideMeters)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return common.AreaOfInterest{}, invalidGeometry("coordinate out of range (%v, %v)", lat, lon)
	}
	_, epsg := UTMZone(lat, lon)
	x, y, err := TransformPoint(WGS84, epsg, lon, lat)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("BufferPointToSquare.%w", err)
	}
	h := sideMeters / 2
	b := Bounds{MinX: x - h, MinY: y - h, MaxX: x + h, MaxY: y + h}
	return NewAOI(name, common.SourceCoordinateSquare, b.WKT(), epsg)
}

// BoundingAOI returns the bounding box of all the AOIs, expanded by bufferMeters.
// The result is expressed in the UTM zone of the centroid of the inputs.
func BoundingAOI(name string, aois []common.AreaOfInterest, bufferMeters float64) (common.AreaOfInterest, error) {
	if len(aois) == 0 {
		return common.AreaOfInterest{}, EmptyInputError{What: "area of interest"}
	}
	var sumLon, sumLat float64
	for _, aoi := range aois {
		b, err := WKTBounds(aoi.Geometry)
		if err != nil {
			return common.AreaOfInterest{}, fmt.Errorf("BoundingAOI[%s].%w", aoi.Name, err)
		}
		lon, lat, err := TransformPoint(aoi.EPSG, WGS84, (b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2)
		if err != nil {
			return common.AreaOfInterest{}, fmt.Errorf("BoundingAOI[%s].%w", aoi.Name, err)
		}
		sumLon += lon
		sumLat += lat
	}
	n := float64(len(aois))
	_, epsg := UTMZone(sumLat/n, sumLon/n)

	bounds := emptyBounds()
	for _, aoi := range aois {
		wkt, err := Reproject(aoi.Geometry, aoi.EPSG, epsg, densifyStep(aoi.EPSG))
		if err != nil {
			return common.AreaOfInterest{}, fmt.Errorf("BoundingAOI[%s].%w", aoi.Name, err)
		}
		b, err := WKTBounds(wkt)
		if err != nil {
			return common.AreaOfInterest{}, fmt.Errorf("BoundingAOI[%s].%w", aoi.Name, err)
		}
		bounds = bounds.Extend(b)
	}
	return NewAOI(name, common.SourceCoordinateBoundingBox, bounds.Buffer(bufferMeters).WKT(), epsg)
}

// ToUTM reprojects the AOI into the UTM zone of its centroid. It does nothing if the AOI is already in a UTM CRS.
func ToUTM(aoi common.AreaOfInterest) (common.AreaOfInterest, error) {
	if IsUTM(aoi.EPSG) {
		return aoi, nil
	}
	g, err := geos.FromWKT(aoi.Geometry)
	if err != nil {
		return common.AreaOfInterest{}, invalidGeometry("%v", err)
	}
	c, err := g.Centroid()
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("ToUTM.Centroid: %w", err)
	}
	cx, err := c.X()
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("ToUTM.X: %w", err)
	}
	cy, err := c.Y()
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("ToUTM.Y: %w", err)
	}
	lon, lat, err := TransformPoint(aoi.EPSG, WGS84, cx, cy)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("ToUTM.%w", err)
	}
	_, epsg := UTMZone(lat, lon)
	wkt, err := Reproject(aoi.Geometry, aoi.EPSG, epsg, densifyStep(aoi.EPSG))
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("ToUTM.%w", err)
	}
	aoi.Geometry, aoi.EPSG = wkt, epsg
	return aoi, nil
}

// CoverageFraction returns area(aoi ∩ footprint)/area(aoi), footprint being expressed in footprintEPSG
func CoverageFraction(aoi common.AreaOfInterest, footprint string, footprintEPSG int) (float64, error) {
	c, err := NewCoverage(aoi)
	if err != nil {
		return 0, fmt.Errorf("CoverageFraction.%w", err)
	}
	if _, err := c.Add(footprint, footprintEPSG); err != nil {
		return 0, fmt.Errorf("CoverageFraction.%w", err)
	}
	return c.Fraction(), nil
}

// Coverage accumulates the footprints covering an AOI
type Coverage struct {
	aoi      *geos.Geometry
	epsg     int
	area     float64
	covered  *geos.Geometry
	fraction float64
}

// NewCoverage returns an empty Coverage of the AOI
func NewCoverage(aoi common.AreaOfInterest) (*Coverage, error) {
	g, err := geos.FromWKT(aoi.Geometry)
	if err != nil {
		return nil, invalidGeometry("%v", err)
	}
	area, err := g.Area()
	if err != nil {
		return nil, fmt.Errorf("NewCoverage.Area: %w", err)
	}
	if area <= 0 {
		return nil, invalidGeometry("area must be positive")
	}
	return &Coverage{aoi: g, epsg: aoi.EPSG, area: area}, nil
}

// Add a footprint expressed in footprintEPSG to the coverage and returns the fraction of the AOI it newly covers
func (c *Coverage) Add(footprint string, footprintEPSG int) (float64, error) {
	wkt, err := Reproject(footprint, footprintEPSG, c.epsg, densifyStep(footprintEPSG))
	if err != nil {
		return 0, fmt.Errorf("Coverage.Add.%w", err)
	}
	fp, err := geos.FromWKT(wkt)
	if err != nil {
		return 0, fmt.Errorf("Coverage.Add.FromWKT: %w", err)
	}
	inter := c.aoi
	if contains, err := fp.Contains(c.aoi); err != nil {
		return 0, fmt.Errorf("Coverage.Add.Contains: %w", err)
	} else if !contains {
		if inter, err = c.aoi.Intersection(fp); err != nil {
			return 0, fmt.Errorf("Coverage.Add.Intersection: %w", err)
		}
	}
	covered := inter
	if c.covered != nil {
		if covered, err = c.covered.Union(inter); err != nil {
			return 0, fmt.Errorf("Coverage.Add.Union: %w", err)
		}
	}
	area, err := covered.Area()
	if err != nil {
		return 0, fmt.Errorf("Coverage.Add.Area: %w", err)
	}
	fraction := math.Max(0, math.Min(1, area/c.area))
	gain := fraction - c.fraction
	c.covered, c.fraction = covered, fraction
	return gain, nil
}

// Fraction returns the fraction of the AOI covered by all the footprints added so far, in [0, 1]
func (c *Coverage) Fraction() float64 {
	return c.fraction
}
