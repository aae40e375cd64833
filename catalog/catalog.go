package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/interface/catalog"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/log"
)

// Catalog is the main class of this package
type Catalog struct {
	// Providers are tried in order until one succeeds
	Providers []catalog.ScenesProvider
	// MaxCloudCover is forwarded to the providers to reduce the size of the response (percent in [0, 100], otherwise no filter)
	MaxCloudCover float64
}

// CatalogUnavailableError is returned when no catalog can be reached
type CatalogUnavailableError struct {
	Err error
}

func (e CatalogUnavailableError) Error() string {
	return "catalog unavailable: " + e.Err.Error()
}

func (e CatalogUnavailableError) Unwrap() error {
	return e.Err
}

// Search lists the scenes of the collection intersecting the AOI, acquired during the dates.
// Scenes are sorted by ascending cloud cover, then by descending acquisition date, then by source id.
func (c *Catalog) Search(ctx context.Context, aoi common.AreaOfInterest, dates common.DateRange, collection string) (entities.Scenes, error) {
	if len(c.Providers) == 0 {
		return nil, CatalogUnavailableError{Err: fmt.Errorf("no catalog is configured")}
	}
	aoi4326, err := geometry.Reproject(aoi.Geometry, aoi.EPSG, geometry.WGS84, geometry.DensifyProj)
	if err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}
	query := entities.SearchQuery{AOI: aoi4326, Dates: dates, Collection: collection, MaxCloudCover: c.queryMaxCloudCover()}

	log.Logger(ctx).Sugar().Debugf("Search scenes for AOI %s from %s", aoi.Name, dates)
	var scenes entities.Scenes
	var e error
	for _, provider := range c.Providers {
		scenes, e = provider.SearchScenes(ctx, query)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
		log.Logger(ctx).Sugar().Warnf("Search: %s: %v", provider.Name(), e)
	}
	if err != nil {
		return nil, CatalogUnavailableError{Err: err}
	}

	if scenes, err = refineInventory(scenes, aoi, aoi4326, dates); err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}
	SortScenes(scenes)

	log.Logger(ctx).Sugar().Debugf("%d scenes found", len(scenes))
	return scenes, nil
}

// SortScenes sorts the scenes by priority: ascending cloud cover (unknown last), then descending acquisition date, then source id.
func SortScenes(scenes entities.Scenes) {
	sort.SliceStable(scenes, func(i, j int) bool {
		si, sj := scenes[i], scenes[j]
		if ci, cj := cloudCoverKey(si), cloudCoverKey(sj); ci != cj {
			return ci < cj
		}
		if !si.Date.Equal(sj.Date) {
			return si.Date.After(sj.Date)
		}
		return si.SourceID < sj.SourceID
	})
}

func cloudCoverKey(s *entities.Scene) float64 {
	if !s.CloudCoverKnown() {
		return math.Inf(1)
	}
	return s.CloudCover
}

// queryMaxCloudCover returns the cloud cover forwarded to the providers (100 if MaxCloudCover is outside [0, 100])
func (c *Catalog) queryMaxCloudCover() float64 {
	if c.MaxCloudCover < 0 || c.MaxCloudCover > 100 {
		return 100
	}
	return c.MaxCloudCover
}
