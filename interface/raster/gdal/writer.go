package gdal

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// WriteGeoTIFF writes the true-color image as a 3-band Byte GeoTIFF (LZW, nodata 0) with its CRS and geotransform
func WriteGeoTIFF(path string, img *raster.RGB8) error {
	ds, err := godal.Create(godal.GTiff, path, 3, godal.Byte, img.Width, img.Height,
		godal.CreationOption("COMPRESS=LZW", "TILED=YES", "PHOTOMETRIC=RGB"))
	if err != nil {
		return fmt.Errorf("WriteGeoTIFF.Create: %w", err)
	}
	if err := writeRGB(ds, img); err != nil {
		ds.Close()
		return fmt.Errorf("WriteGeoTIFF.%w", err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("WriteGeoTIFF.Close: %w", err)
	}
	return nil
}

func writeRGB(ds *godal.Dataset, img *raster.RGB8) error {
	if err := ds.SetGeoTransform([6]float64(img.Transform)); err != nil {
		return fmt.Errorf("SetGeoTransform: %w", err)
	}
	if img.EPSG != 0 {
		sr, err := godal.NewSpatialRefFromEPSG(img.EPSG)
		if err != nil {
			return fmt.Errorf("NewSpatialRefFromEPSG: %w", err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("SetSpatialRef: %w", err)
		}
	}
	for i, band := range ds.Bands() {
		if err := band.SetNoData(raster.NoDataRGB); err != nil {
			return fmt.Errorf("SetNoData: %w", err)
		}
		if err := band.Write(0, 0, img.Band(i), img.Width, img.Height); err != nil {
			return fmt.Errorf("Write[%d]: %w", i, err)
		}
	}
	return nil
}

// WriteJPEG converts the GeoTIFF to a JPEG with the given quality (1-100)
func WriteJPEG(tifPath, jpgPath string, quality int) error {
	if quality < 1 || quality > 100 {
		return fmt.Errorf("WriteJPEG: invalid quality %d", quality)
	}
	ds, err := godal.Open(tifPath, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("WriteJPEG.Open: %w", err)
	}
	defer ds.Close()
	jpg, err := ds.Translate(jpgPath, []string{"-co", fmt.Sprintf("QUALITY=%d", quality)}, godal.DriverName("JPEG"))
	if err != nil {
		return fmt.Errorf("WriteJPEG.Translate: %w", err)
	}
	if err := jpg.Close(); err != nil {
		return fmt.Errorf("WriteJPEG.Close: %w", err)
	}
	return nil
}
