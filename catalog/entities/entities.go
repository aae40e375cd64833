package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
)

// UnknownCloudCover is the cloud cover of the scenes whose catalog does not provide it
const UnknownCloudCover = -1.

// Scene is a candidate acquisition returned by the catalog
type Scene struct {
	SourceID    string            `json:"source_id"`
	ProductName string            `json:"product_name"` // Identifies the acquisition regardless of its processing (to remove double entries)
	Date        time.Time         `json:"date"`
	EPSG        int               `json:"epsg"`
	CloudCover  float64           `json:"cloud_cover"`
	GeometryWKT string            `json:"wkt"` // Footprint in WGS84
	Assets      map[string]string `json:"assets"`
	Tags        map[string]string `json:"tags"`
	Coverage    float64           `json:"coverage,omitempty"` // Fraction of the AOI covered by the footprint
}

// Day returns the acquisition date of the scene truncated to the day
func (s *Scene) Day() time.Time {
	return common.Day(s.Date)
}

// CloudCoverKnown returns false if the catalog did not provide the cloud cover of the scene
func (s *Scene) CloudCoverKnown() bool {
	return s.CloudCover >= 0
}

// Asset returns the href of the asset or an error if the scene does not have it
func (s *Scene) Asset(key string) (string, error) {
	href, ok := s.Assets[key]
	if !ok || href == "" {
		return "", fmt.Errorf("scene %s: asset %s not found", s.SourceID, key)
	}
	return href, nil
}

// AutoFill fills ProductName and Tags with the information contained in the identifier of the scene
func (s *Scene) AutoFill() {
	if s.Tags == nil {
		s.Tags = map[string]string{}
	}
	s.Tags[common.TagSourceID] = s.SourceID
	s.Tags[common.TagAcquisitionDate] = s.Date.Format(time.RFC3339)
	if s.CloudCoverKnown() {
		s.Tags[common.TagCloudCoverPercentage] = fmt.Sprintf("%g", s.CloudCover)
	}
	if s.ProductName != "" {
		return
	}
	s.ProductName = common.ProductName(s.SourceID)
	if info, err := common.Info(s.SourceID); err == nil && s.Tags[common.TagMGRSTile] == "" {
		s.Tags[common.TagMGRSTile] = info["TILE"]
	}
}

// Scenes is a list of scenes, encoded in json as a GeoJSON FeatureCollection
type Scenes []*Scene

// MarshalJSON implements json.Marshaler
func (ss Scenes) MarshalJSON() ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]geojson.Feature, len(ss))}
	for i, s := range ss {
		g, err := wkt.DecodeString(s.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("Scenes.MarshalJSON[%s]: %w", s.SourceID, err)
		}
		props := map[string]interface{}{}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("Scenes.MarshalJSON: %w", err)
		}
		if err := json.Unmarshal(b, &props); err != nil {
			return nil, fmt.Errorf("Scenes.MarshalJSON: %w", err)
		}
		id := uint64(i)
		fc.Features[i] = geojson.Feature{ID: &id, Geometry: geojson.Geometry{Geometry: g}, Properties: props}
	}
	return json.Marshal(fc)
}

// TileGroup is a set of scenes acquired the same day that jointly cover the AOI
// Scenes are sorted by priority (the first valid pixel wins).
type TileGroup struct {
	Date     time.Time `json:"date"`
	Scenes   Scenes    `json:"scenes"`
	Coverage float64   `json:"coverage"`
}

// SourceIDs returns the identifiers of the scenes of the group
func (g *TileGroup) SourceIDs() []string {
	ids := make([]string, len(g.Scenes))
	for i, s := range g.Scenes {
		ids[i] = s.SourceID
	}
	return ids
}

// MaxCloudCover returns the highest cloud cover of the scenes of the group
func (g *TileGroup) MaxCloudCover() float64 {
	var cc float64
	for _, s := range g.Scenes {
		if s.CloudCover > cc {
			cc = s.CloudCover
		}
	}
	return cc
}

// Tag returns the unique values of the tag over the scenes of the group, in order of priority
func (g *TileGroup) Tag(key string) []string {
	var values []string
	seen := map[string]struct{}{}
	for _, s := range g.Scenes {
		v, ok := s.Tags[key]
		if !ok || v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	return values
}

// TileGroups maps the acquisition day to its TileGroup
type TileGroups map[time.Time]*TileGroup

// Dates returns the dates of the tile groups, most recent first
func (tg TileGroups) Dates() []time.Time {
	dates := make([]time.Time, 0, len(tg))
	for d := range tg {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates
}

// Sorted returns the tile groups, most recent first
func (tg TileGroups) Sorted() []*TileGroup {
	groups := make([]*TileGroup, 0, len(tg))
	for _, d := range tg.Dates() {
		groups = append(groups, tg[d])
	}
	return groups
}

// SearchArea is the input of the catalog service
type SearchArea struct {
	Name          string           `json:"name"`
	AOI           geojson.Geometry `json:"geometry"` // WGS84
	StartTime     time.Time        `json:"start_time"`
	EndTime       time.Time        `json:"end_time"`
	Collection    string           `json:"collection,omitempty"`
	MaxCloudCover *float64         `json:"max_cloud_cover,omitempty"` // Percent
	MinCoverage   *float64         `json:"min_coverage,omitempty"`    // Percent
}

// SearchQuery is the input of a ScenesProvider
type SearchQuery struct {
	AOI           string // WKT in WGS84
	Dates         common.DateRange
	Collection    string
	MaxCloudCover float64 // Percent
}
