package catalog

import (
	"context"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
)

// ScenesProvider searches the scenes intersecting an area in a catalog
type ScenesProvider interface {
	Name() string
	SearchScenes(ctx context.Context, query entities.SearchQuery) (entities.Scenes, error)
}
