package workflow

import (
	"context"
	"fmt"
	"math"

	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/interface/shapefile"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/log"
)

// Thresholds of the AOI warnings
const (
	MaxAOIArea       = 1000 * 1e6 // m²
	MinPixelsPerSide = 20
)

// Job is an AOI to be processed over a range of dates
type Job struct {
	AOI   common.AreaOfInterest
	Dates common.DateRange
}

// AOIError reports an AOI that cannot be built
type AOIError struct {
	Name string
	Err  error
}

func (e AOIError) Error() string {
	return fmt.Sprintf("aoi %s: %v", e.Name, e.Err)
}

func (e AOIError) Unwrap() error {
	return e.Err
}

// BuildJobs builds the AOIs of the configuration.
// An AOI that cannot be built is reported as an AOIError and does not prevent the others from being built.
func BuildJobs(ctx context.Context, cfg *Config) ([]Job, []AOIError) {
	var jobs []Job
	var errs []AOIError
	if c := cfg.CoordinateAOIs; c != nil && len(c.Coordinates) > 0 {
		j, e := coordinateJobs(c)
		jobs, errs = append(jobs, j...), append(errs, e...)
	}
	for _, s := range cfg.ShapefileAOIs {
		j, e := shapefileJobs(s)
		jobs, errs = append(jobs, j...), append(errs, e...)
	}
	for _, job := range jobs {
		checkAOI(ctx, job.AOI, cfg.Output.TargetResolution)
	}
	return jobs, errs
}

// coordinateJobs builds a square AOI per coordinate and the overall bounding AOI
func coordinateJobs(c *CoordinateAOIConfig) ([]Job, []AOIError) {
	dates, err := c.DateRange.Parse()
	if err != nil {
		return nil, []AOIError{{Name: c.LocationGroupName, Err: err}}
	}
	var jobs []Job
	var errs []AOIError
	var squares []common.AreaOfInterest
	for _, coord := range c.Coordinates {
		lat, lon := coord[0], coord[1]
		name := common.CoordinateName(c.LocationGroupName, lat, lon)
		aoi, err := geometry.BufferPointToSquare(name, lat, lon, c.SquareSizeMeters)
		if err != nil {
			errs = append(errs, AOIError{Name: name, Err: err})
			continue
		}
		aoi.Folder = c.LocationGroupName
		squares = append(squares, aoi)
		jobs = append(jobs, Job{AOI: aoi, Dates: dates})
	}
	if c.Overall() && len(c.Coordinates) > 1 {
		name := common.OverallName(c.LocationGroupName)
		aoi, err := geometry.BoundingAOI(name, squares, c.OverallBuffer())
		if err != nil {
			errs = append(errs, AOIError{Name: name, Err: err})
		} else {
			aoi.Folder = c.LocationGroupName
			jobs = append(jobs, Job{AOI: aoi, Dates: dates})
		}
	}
	return jobs, errs
}

// shapefileJobs builds the AOI of the union of the polygons of the shapefile, or an AOI per feature.
// In per-feature mode, an invalid feature is reported and the other features are kept.
func shapefileJobs(s ShapefileAOIConfig) ([]Job, []AOIError) {
	fail := func(err error) ([]Job, []AOIError) {
		return nil, []AOIError{{Name: s.LocationName, Err: err}}
	}
	dates, err := s.DateRange.Parse()
	if err != nil {
		return fail(err)
	}
	layer, err := shapefile.Load(s.AOIShapefile, s.IDField)
	if err != nil {
		return fail(fmt.Errorf("shapefileJobs.%w", err))
	}

	// Geometries of the features in WGS84
	trn := geometry.Identity()
	if layer.PRJ != "" {
		if trn, err = geometry.NewTransformerFromWKT(layer.PRJ, geometry.WGS84); err != nil {
			return fail(fmt.Errorf("shapefileJobs.%w", err))
		}
	}
	defer trn.Close()
	wkts := make([]string, len(layer.Features))
	featureErrs := make([]error, len(layer.Features))
	for i, f := range layer.Features {
		wkt, err := geometry.PolygonsWKT(f.Polygons)
		if err == nil && layer.PRJ != "" {
			// Densification is expressed in the units of the source CRS, that are unknown
			wkt, err = geometry.ReprojectWith(wkt, trn, 0)
		}
		if err != nil {
			featureErrs[i] = fmt.Errorf("shapefileJobs[%s].%w", f.ID, err)
			continue
		}
		wkts[i] = wkt
	}

	if s.Single() {
		for _, err := range featureErrs {
			if err != nil {
				return fail(err)
			}
		}
		wkt, err := geometry.WKTUnion(wkts, geometry.TOLERANCE_GEOG)
		if err != nil {
			return fail(fmt.Errorf("shapefileJobs.%w", err))
		}
		aoi, err := shapefileAOI(s.LocationName, common.SourceShapefileUnion, wkt, s.UseBoundingBox, 0)
		if err != nil {
			return fail(fmt.Errorf("shapefileJobs.%w", err))
		}
		return []Job{{AOI: aoi, Dates: dates}}, nil
	}

	var jobs []Job
	var errs []AOIError
	for i, wkt := range wkts {
		name := common.FeatureName(s.LocationName, layer.Features[i].ID)
		if featureErrs[i] != nil {
			errs = append(errs, AOIError{Name: name, Err: featureErrs[i]})
			continue
		}
		aoi, err := shapefileAOI(name, common.SourceShapefileFeature, wkt, s.UseBoundingBox, s.BufferMeters)
		if err != nil {
			errs = append(errs, AOIError{Name: name, Err: fmt.Errorf("shapefileJobs[%s].%w", layer.Features[i].ID, err)})
			continue
		}
		if s.SharedFolder {
			aoi.Folder = s.LocationName
		}
		jobs = append(jobs, Job{AOI: aoi, Dates: dates})
	}
	return jobs, errs
}

// shapefileAOI projects the WGS84 geometry into UTM, buffers it and optionally replaces it with its bounding box
func shapefileAOI(name string, kind common.SourceKind, wkt string, bbox bool, buffer float64) (common.AreaOfInterest, error) {
	aoi, err := geometry.NewAOI(name, kind, wkt, geometry.WGS84)
	if err != nil {
		return aoi, err
	}
	if aoi, err = geometry.ToUTM(aoi); err != nil {
		return aoi, err
	}
	if aoi.Geometry, err = geometry.BufferWKT(aoi.Geometry, buffer); err != nil {
		return aoi, err
	}
	if bbox {
		b, err := geometry.WKTBounds(aoi.Geometry)
		if err != nil {
			return aoi, err
		}
		aoi.Geometry = b.WKT()
	}
	return aoi, geometry.Validate(aoi)
}

// checkAOI warns if the AOI is very large or too small for the resolution
func checkAOI(ctx context.Context, aoi common.AreaOfInterest, resolution float64) {
	lg := log.Logger(ctx).Sugar()
	if area, err := geometry.Area(aoi); err == nil && area > MaxAOIArea {
		lg.Warnf("AOI %s is large (%.0f km²): processing may be slow", aoi.Name, area/1e6)
	}
	if b, err := geometry.WKTBounds(aoi.Geometry); err == nil && resolution > 0 {
		if side := math.Min(b.Width(), b.Height()) / resolution; side < MinPixelsPerSide {
			lg.Warnf("AOI %s is small: %.0f pixels per side at %gm", aoi.Name, side, resolution)
		}
	}
}
