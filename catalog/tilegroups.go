package catalog

import (
	"fmt"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
)

// coverageTolerance absorbs the rounding errors of the area computations
const coverageTolerance = 1e-9

// SelectTileGroups groups the scenes acquired the same day that jointly cover at least minCoverage (fraction in [0, 1]) of the AOI.
// Scenes with a cloud cover above maxCloudCover (percent) or without cloud cover are discarded. Scenes must be sorted by priority (see SortScenes).
// For each day, scenes are accumulated in order of priority until the coverage is reached, skipping the scenes
// that do not cover any new part of the AOI. Days that never reach the coverage are discarded.
// An empty result means that no usable imagery is available.
func SelectTileGroups(scenes entities.Scenes, aoi common.AreaOfInterest, minCoverage, maxCloudCover float64) (entities.TileGroups, error) {
	// Group by day, keeping the order of priority
	var days []int64
	scenesByDay := map[int64]entities.Scenes{}
	for _, scene := range scenes {
		if !scene.CloudCoverKnown() || scene.CloudCover > maxCloudCover {
			continue
		}
		day := scene.Day().Unix()
		if _, ok := scenesByDay[day]; !ok {
			days = append(days, day)
		}
		scenesByDay[day] = append(scenesByDay[day], scene)
	}

	groups := entities.TileGroups{}
	for _, day := range days {
		coverage, err := geometry.NewCoverage(aoi)
		if err != nil {
			return nil, fmt.Errorf("SelectTileGroups.%w", err)
		}
		group := &entities.TileGroup{}
		for _, scene := range scenesByDay[day] {
			gain, err := coverage.Add(scene.GeometryWKT, geometry.WGS84)
			if err != nil {
				return nil, fmt.Errorf("SelectTileGroups[%s].%w", scene.SourceID, err)
			}
			if gain <= coverageTolerance {
				continue
			}
			group.Scenes = append(group.Scenes, scene)
			if coverage.Fraction() >= minCoverage-coverageTolerance {
				break
			}
		}
		if len(group.Scenes) > 0 && coverage.Fraction() >= minCoverage-coverageTolerance {
			group.Date = group.Scenes[0].Day()
			group.Coverage = coverage.Fraction()
			groups[group.Date] = group
		}
	}
	return groups, nil
}
