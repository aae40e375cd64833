package gdal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

func init() {
	godal.RegisterAll()
}

// ErrOutsideTile is returned when the window does not intersect the raster
var ErrOutsideTile = errors.New("window is outside the raster")

// NoData is the nodata value of the buffers returned by the Reader
const NoData = 0.

// Reader performs windowed reads of (remote) rasters
type Reader struct {
	// Timeout of the HTTP requests issued by GDAL
	Timeout time.Duration
}

func (r Reader) configOptions() []string {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return []string{
		fmt.Sprintf("GDAL_HTTP_TIMEOUT=%d", int(math.Ceil(timeout.Seconds()))),
		"GDAL_HTTP_MAX_RETRY=0",
		"GDAL_DISABLE_READDIR_ON_OPEN=EMPTY_DIR",
		"CPL_VSIL_CURL_ALLOWED_EXTENSIONS=.tif,.TIF,.tiff,.jp2",
		"GDAL_HTTP_MULTIRANGE=YES",
		"GDAL_HTTP_MERGE_CONSECUTIVE_RANGES=YES",
	}
}

// datasetName returns the GDAL name of the href (remote hrefs are read through /vsicurl/)
func datasetName(href string) string {
	if strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "http://") {
		return "/vsicurl/" + href
	}
	return href
}

// ReadWindow reads the first band of the raster over the window (expressed in the CRS of the raster, whose EPSG is epsg).
// The window is extended to whole pixels and clipped to the extent of the raster.
// Pixels equal to the nodata value of the raster are set to NoData.
func (r Reader) ReadWindow(ctx context.Context, href string, window geometry.Bounds, epsg int) (*raster.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := godal.Open(datasetName(href), godal.RasterOnly(), godal.ConfigOption(r.configOptions()...))
	if err != nil {
		return nil, fmt.Errorf("ReadWindow.Open: %w", err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, service.MakeFatal(fmt.Errorf("ReadWindow.GeoTransform: %w", err))
	}
	if gt[2] != 0 || gt[4] != 0 {
		return nil, service.MakeFatal(fmt.Errorf("ReadWindow: rotated rasters are not supported"))
	}
	st := ds.Structure()
	x0, y0, w, h := pixelWindow(raster.GeoTransform(gt), window, st.SizeX, st.SizeY)
	if w <= 0 || h <= 0 {
		return nil, service.MakeFatal(ErrOutsideTile)
	}

	band := ds.Bands()[0]
	data := make([]float64, w*h)
	if err := band.Read(x0, y0, data, w, h); err != nil {
		return nil, fmt.Errorf("ReadWindow.Read: %w", err)
	}
	if nodata, ok := band.NoData(); ok && nodata != NoData {
		for i, v := range data {
			if v == nodata || (math.IsNaN(nodata) && math.IsNaN(v)) {
				data[i] = NoData
			}
		}
	}

	return &raster.Buffer{
		Grid: raster.Grid{
			EPSG:      epsg,
			Transform: raster.GeoTransform{gt[0] + float64(x0)*gt[1], gt[1], 0, gt[3] + float64(y0)*gt[5], 0, gt[5]},
			Width:     w,
			Height:    h,
		},
		Bands:  1,
		NoData: NoData,
		Data:   data,
	}, nil
}

// pixelWindow returns the window of pixels of a north-up raster covering the bounds, clipped to the raster
func pixelWindow(gt raster.GeoTransform, b geometry.Bounds, sizeX, sizeY int) (int, int, int, int) {
	inv, err := gt.Invert()
	if err != nil {
		return 0, 0, 0, 0
	}
	px0, py0 := inv.Apply(b.MinX, b.MaxY)
	px1, py1 := inv.Apply(b.MaxX, b.MinY)
	if px0 > px1 {
		px0, px1 = px1, px0
	}
	if py0 > py1 {
		py0, py1 = py1, py0
	}
	x0 := clamp(int(math.Floor(px0)), 0, sizeX)
	y0 := clamp(int(math.Floor(py0)), 0, sizeY)
	x1 := clamp(int(math.Ceil(px1)), 0, sizeX)
	y1 := clamp(int(math.Ceil(py1)), 0, sizeY)
	return x0, y0, x1 - x0, y1 - y0
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
