package processor

import (
	"context"
	"fmt"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/downloader"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
	"golang.org/x/sync/errgroup"
)

// DefaultResolution of the mosaic (meters)
const DefaultResolution = 10.

// BandFetcher fetches a window of a band (downloader.Fetcher)
type BandFetcher interface {
	FetchBand(ctx context.Context, href string, window downloader.Window) (*raster.Buffer, error)
}

// Mosaicker builds true-color mosaics of tile groups
type Mosaicker struct {
	Fetcher    BandFetcher
	Bands      common.TrueColor
	Resolution float64
	Resampling raster.Resampling
	// Maximum number of scenes fetched concurrently (default: 4)
	Concurrency int
	// Gain of the normalization (default: raster.DefaultGain)
	Gain float64
}

// NewMosaicker returns a Mosaicker with the default settings
func NewMosaicker(fetcher BandFetcher) *Mosaicker {
	return &Mosaicker{
		Fetcher:    fetcher,
		Bands:      common.DefaultTrueColor(),
		Resolution: DefaultResolution,
		Resampling: raster.Nearest,
		Gain:       raster.DefaultGain,
	}
}

// Grid returns the output grid of the AOI: CRS of the AOI, origin on its bounds, ceil(extent/resolution) pixels
func (m *Mosaicker) Grid(aoi common.AreaOfInterest) (raster.Grid, error) {
	b, err := geometry.WKTBounds(aoi.Geometry)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("Grid.%w", err)
	}
	res := m.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	return raster.GridFromBounds(b, aoi.EPSG, res)
}

// BuildMosaic fetches the red, green and blue bands of the scenes of the group and merges them on the grid of the AOI.
// Scenes are fetched concurrently and overlaid first-valid-wins in the order of the group.
// Scenes that cannot be fetched are skipped; if none can be fetched, a *MosaicUnavailableError is returned.
func (m *Mosaicker) BuildMosaic(ctx context.Context, group *entities.TileGroup, aoi common.AreaOfInterest) (*raster.Buffer, error) {
	grid, err := m.Grid(aoi)
	if err != nil {
		return nil, fmt.Errorf("BuildMosaic.%w", err)
	}

	tiles := make([]*raster.Buffer, len(group.Scenes))
	errs := make([]error, len(group.Scenes))
	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	wg := errgroup.Group{}
	wg.SetLimit(concurrency)
	for i, scene := range group.Scenes {
		wg.Go(func() error {
			tiles[i], errs[i] = m.fetchScene(log.With(ctx, "scene", scene.SourceID), scene, grid)
			return nil
		})
	}
	_ = wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mosaic := raster.NewBuffer(grid, 3, 0)
	var failed []error
	for i, tile := range tiles {
		if errs[i] != nil {
			log.Logger(ctx).Sugar().Warnf("skip scene %s: %v", group.Scenes[i].SourceID, errs[i])
			failed = append(failed, fmt.Errorf("%s: %w", group.Scenes[i].SourceID, errs[i]))
			continue
		}
		n, err := raster.Overlay(mosaic, tile)
		if err != nil {
			return nil, fmt.Errorf("BuildMosaic.%w", err)
		}
		log.Logger(ctx).Sugar().Debugf("scene %s: %d pixels", group.Scenes[i].SourceID, n)
	}
	if len(failed) == len(group.Scenes) {
		return nil, &MosaicUnavailableError{Date: group.Date, Errs: failed}
	}
	return mosaic, nil
}

// fetchScene fetches the three bands of the scene and reprojects them on the grid
func (m *Mosaicker) fetchScene(ctx context.Context, scene *entities.Scene, grid raster.Grid) (*raster.Buffer, error) {
	if scene.EPSG == 0 {
		return nil, fmt.Errorf("fetchScene: unknown CRS")
	}
	// Window in the CRS of the tile, with a margin for the resampling
	res, _ := grid.Resolution()
	bounds, err := geometry.TransformBounds(grid.Bounds(), grid.EPSG, scene.EPSG, 21)
	if err != nil {
		return nil, fmt.Errorf("fetchScene.%w", err)
	}
	window := downloader.Window{Bounds: bounds.Buffer(2 * res), EPSG: scene.EPSG}

	trn, err := geometry.NewTransformer(grid.EPSG, scene.EPSG)
	if err != nil {
		return nil, fmt.Errorf("fetchScene.%w", err)
	}
	defer trn.Close()

	bands := make([]*raster.Buffer, 0, 3)
	for _, key := range m.bands().Keys() {
		href, err := scene.Asset(key)
		if err != nil {
			return nil, fmt.Errorf("fetchScene.%w", err)
		}
		src, err := m.Fetcher.FetchBand(ctx, href, window)
		if err != nil {
			return nil, fmt.Errorf("fetchScene[%s].%w", key, err)
		}
		band, err := raster.Reproject(src, grid, trn, m.Resampling)
		if err != nil {
			return nil, fmt.Errorf("fetchScene[%s].%w", key, err)
		}
		bands = append(bands, band)
	}
	return raster.Stack(bands...)
}

func (m *Mosaicker) bands() common.TrueColor {
	if m.Bands.Red == "" {
		return common.DefaultTrueColor()
	}
	return m.Bands
}
