package catalog

import (
	"fmt"
	"runtime"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/paulsmith/gogeos/geos"
)

func refineInventory(scenes entities.Scenes, aoi common.AreaOfInterest, aoi4326 string, dates common.DateRange) (entities.Scenes, error) {
	scenes = removeOutsideDates(scenes, dates)
	scenes = removeDoubleEntries(scenes)

	g, err := geos.FromWKT(aoi4326)
	if err != nil {
		return nil, fmt.Errorf("refineInventory.FromWKT: %w", err)
	}
	if scenes, err = removeOutsideAOI(scenes, *g); err != nil {
		return nil, fmt.Errorf("refineInventory.%w", err)
	}
	for _, scene := range scenes {
		if scene.Coverage, err = geometry.CoverageFraction(aoi, scene.GeometryWKT, geometry.WGS84); err != nil {
			return nil, fmt.Errorf("refineInventory[%s].%w", scene.SourceID, err)
		}
	}
	return scenes, nil
}

// removeOutsideDates removes the scenes acquired outside the range of dates
// (catalogs interpret the bounds of the datetime interval differently)
func removeOutsideDates(scenes entities.Scenes, dates common.DateRange) entities.Scenes {
	j := 0
	for _, scene := range scenes {
		if dates.Contains(scene.Date) {
			scenes[j] = scene
			j++
		}
	}
	return scenes[0:j]
}

// removeDoubleEntries removes acquisitions that appear twice in the inventory
// A reprocessed product has a new processing baseline and a new identifier. When searching for data, both products
// will be found, even though they are the same acquisition. This routine keeps the product with the latest processing baseline.
func removeDoubleEntries(scenes entities.Scenes) entities.Scenes {
	identifiers := map[string]int{}

	j := 0
	for _, scene := range scenes {
		if k, ok := identifiers[scene.ProductName]; !ok {
			scenes[j] = scene
			identifiers[scene.ProductName] = j
			j++
		} else if newerProcessing(scene, scenes[k]) {
			scenes[k] = scene
		}
	}

	return scenes[0:j]
}

func newerProcessing(s1, s2 *entities.Scene) bool {
	b1, b2 := s1.Tags[common.TagProcessingBaseline], s2.Tags[common.TagProcessingBaseline]
	if b1 != b2 {
		return b1 > b2
	}
	return s1.SourceID > s2.SourceID
}

// removeOutsideAOI removes scenes that are located outside the AOI
// The search routine may use a simplified representation of the AOI.
// This may then include acquisitions that do not overlap with the AOI.
func removeOutsideAOI(scenes entities.Scenes, aoi geos.Geometry) (entities.Scenes, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	j := 0
	for i, scene := range scenes {
		aoiScene, err := geos.FromWKT(scene.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.FromWKT: %w", err)
		}
		intersect, err := paoi.Intersects(aoiScene)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
		}
		if intersect {
			scenes[j] = scenes[i]
			j++
		}
	}
	runtime.KeepAlive(aoi)

	return scenes[0:j], nil
}
