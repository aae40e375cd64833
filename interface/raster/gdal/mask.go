package gdal

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// Mask rasterizes the polygon (WKT, in the CRS of the grid) on the grid.
// mask[j*Width+i] is true if the center of the pixel (i, j) is inside the polygon.
func Mask(grid raster.Grid, wkt string) ([]bool, error) {
	ds, err := godal.Create(godal.DriverName("MEM"), "", 1, godal.Byte, grid.Width, grid.Height)
	if err != nil {
		return nil, fmt.Errorf("Mask.Create: %w", err)
	}
	defer ds.Close()
	if err := ds.SetGeoTransform([6]float64(grid.Transform)); err != nil {
		return nil, fmt.Errorf("Mask.SetGeoTransform: %w", err)
	}

	g, err := godal.NewGeometryFromWKT(wkt, nil)
	if err != nil {
		return nil, fmt.Errorf("Mask.NewGeometryFromWKT: %w", err)
	}
	defer g.Close()
	if err := ds.RasterizeGeometry(g, godal.Values(1)); err != nil {
		return nil, fmt.Errorf("Mask.RasterizeGeometry: %w", err)
	}

	data := make([]uint8, grid.Width*grid.Height)
	if err := ds.Bands()[0].Read(0, 0, data, grid.Width, grid.Height); err != nil {
		return nil, fmt.Errorf("Mask.Read: %w", err)
	}
	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v != 0
	}
	return mask, nil
}
