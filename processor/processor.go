package processor

import (
	"context"
	"fmt"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/interface/raster/gdal"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// CropToAOI sets to nodata the pixels whose center is outside the AOI.
// The buffer must be in the CRS of the AOI.
func CropToAOI(buf *raster.Buffer, aoi common.AreaOfInterest) error {
	if buf.EPSG != aoi.EPSG {
		return fmt.Errorf("CropToAOI: buffer is in EPSG:%d, AOI is in EPSG:%d", buf.EPSG, aoi.EPSG)
	}
	mask, err := gdal.Mask(buf.Grid, aoi.Geometry)
	if err != nil {
		return fmt.Errorf("CropToAOI.%w", err)
	}
	for j := 0; j < buf.Height; j++ {
		for i := 0; i < buf.Width; i++ {
			if !mask[j*buf.Width+i] {
				buf.SetNoData(i, j)
			}
		}
	}
	return nil
}

// ProcessGroup builds the mosaic of the group, crops it to the AOI and normalizes it into a true-color image.
// It returns ErrNoUsableImagery if the cropped mosaic has no valid pixel.
func (m *Mosaicker) ProcessGroup(ctx context.Context, group *entities.TileGroup, aoi common.AreaOfInterest) (*raster.RGB8, error) {
	mosaic, err := m.BuildMosaic(ctx, group, aoi)
	if err != nil {
		return nil, fmt.Errorf("ProcessGroup.%w", err)
	}
	if err := CropToAOI(mosaic, aoi); err != nil {
		return nil, fmt.Errorf("ProcessGroup.%w", err)
	}
	valid := mosaic.CountValid()
	if valid == 0 {
		return nil, ErrNoUsableImagery
	}
	log.Logger(ctx).Sugar().Debugf("mosaic %dx%d: %d valid pixels", mosaic.Width, mosaic.Height, valid)

	gain := m.Gain
	if gain <= 0 {
		gain = raster.DefaultGain
	}
	img, err := raster.Normalize(mosaic, gain)
	if err != nil {
		return nil, fmt.Errorf("ProcessGroup.%w", err)
	}
	return img, nil
}
