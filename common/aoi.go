package common

import (
	"fmt"
	"time"
)

// SourceKind tells how the geometry of an AreaOfInterest has been built
type SourceKind string

const (
	SourceShapefileUnion        SourceKind = "shapefile-union"
	SourceShapefileFeature      SourceKind = "shapefile-feature"
	SourceCoordinateSquare      SourceKind = "coordinate-square"
	SourceCoordinateBoundingBox SourceKind = "coordinate-bounding-box"
)

// Valid returns true if the kind is one of the known kinds
func (k SourceKind) Valid() bool {
	switch k {
	case SourceShapefileUnion, SourceShapefileFeature, SourceCoordinateSquare, SourceCoordinateBoundingBox:
		return true
	}
	return false
}

// AreaOfInterest is the geometry to be imaged.
// Geometry is a WKT polygon or multipolygon expressed in the CRS EPSG (a projected CRS).
type AreaOfInterest struct {
	Name     string     `json:"name"`
	Kind     SourceKind `json:"kind"`
	Geometry string     `json:"geometry"`
	EPSG     int        `json:"epsg"`
	// Folder groups the outputs of several AOIs (default: Name)
	Folder string `json:"folder,omitempty"`
}

// OutputFolder returns the folder where the outputs of this AOI are stored
func (a AreaOfInterest) OutputFolder() string {
	if a.Folder != "" {
		return a.Folder
	}
	return a.Name
}

func (a AreaOfInterest) String() string {
	return fmt.Sprintf("%s (%s, EPSG:%d)", a.Name, a.Kind, a.EPSG)
}

// DateRange is an inclusive range of calendar dates (UTC)
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange truncates start and end to the day and checks that start <= end
func NewDateRange(start, end time.Time) (DateRange, error) {
	d := DateRange{Start: Day(start), End: Day(end)}
	if d.End.Before(d.Start) {
		return DateRange{}, fmt.Errorf("NewDateRange: start (%s) is after end (%s)", d.Start.Format(DateFormat), d.End.Format(DateFormat))
	}
	return d, nil
}

// Contains returns true if the day of t is in the range
func (d DateRange) Contains(t time.Time) bool {
	t = Day(t)
	return !t.Before(d.Start) && !t.After(d.End)
}

// Interval returns the RFC3339 interval covering the whole range, from the first to the last second
func (d DateRange) Interval() string {
	end := d.End.Add(24*time.Hour - time.Second)
	return d.Start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339)
}

func (d DateRange) String() string {
	return d.Start.Format(DateFormat) + " to " + d.End.Format(DateFormat)
}

// DateFormat is the layout of a calendar date
const DateFormat = "2006-01-02"

// Day returns the UTC calendar day of t
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
