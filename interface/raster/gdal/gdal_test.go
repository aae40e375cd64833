package gdal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"

	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// createTile writes a 100x100 Float64 raster at 10m resolution whose pixel (i, j) is j*100+i
func createTile(t *testing.T, path string, nodata float64) {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.SetGeoTransform([6]float64{500000, 10, 0, 5000000, 0, -10}); err != nil {
		t.Fatal(err)
	}
	data := make([]float64, 100*100)
	for i := range data {
		data[i] = float64(i)
	}
	data[0] = nodata
	band := ds.Bands()[0]
	if err := band.SetNoData(nodata); err != nil {
		t.Fatal(err)
	}
	if err := band.Write(0, 0, data, 100, 100); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.tif")
	createTile(t, path, -1)
	r := Reader{}

	// Window [500000, 500055] x [4999950, 5000000]: pixels 0..5 x 0..4
	buf, err := r.ReadWindow(context.Background(), path, geometry.Bounds{MinX: 500000, MinY: 4999950, MaxX: 500055, MaxY: 5000000}, 32633)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 6 || buf.Height != 5 {
		t.Errorf("expecting 6x5, got %dx%d", buf.Width, buf.Height)
	}
	if buf.EPSG != 32633 || buf.Transform != (raster.GeoTransform{500000, 10, 0, 5000000, 0, -10}) {
		t.Errorf("unexpected grid %v", buf.Grid)
	}
	if buf.At(0, 0, 0) != NoData {
		t.Errorf("nodata should be mapped to %v, got %v", NoData, buf.At(0, 0, 0))
	}
	if buf.At(0, 3, 2) != 203 {
		t.Errorf("expecting 203, got %v", buf.At(0, 3, 2))
	}

	// Window partially outside: clipped
	buf, err = r.ReadWindow(context.Background(), path, geometry.Bounds{MinX: 500950, MinY: 4999000, MaxX: 501500, MaxY: 4999050}, 32633)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 5 || buf.Height != 5 || buf.Transform[0] != 500950 || buf.Transform[3] != 4999050 {
		t.Errorf("unexpected clipped window %v", buf.Grid)
	}

	// Window outside: fatal
	_, err = r.ReadWindow(context.Background(), path, geometry.Bounds{MinX: 600000, MinY: 4000000, MaxX: 600100, MaxY: 4000100}, 32633)
	if !errors.Is(err, ErrOutsideTile) || !service.Fatal(err) {
		t.Errorf("expecting a fatal ErrOutsideTile, got %v", err)
	}

	// Cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = r.ReadWindow(ctx, path, geometry.Bounds{MinX: 500000, MinY: 4999950, MaxX: 500055, MaxY: 5000000}, 32633); !errors.Is(err, context.Canceled) {
		t.Errorf("expecting context.Canceled, got %v", err)
	}
}

func TestPixelWindow(t *testing.T) {
	gt := raster.GeoTransform{0, 10, 0, 100, 0, -10}
	tests := []struct {
		b            geometry.Bounds
		x0, y0, w, h int
	}{
		{geometry.Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}, 0, 0, 10, 10},
		{geometry.Bounds{MinX: 15, MinY: 15, MaxX: 25, MaxY: 25}, 1, 7, 2, 2},
		{geometry.Bounds{MinX: -50, MinY: 50, MaxX: 5, MaxY: 150}, 0, 0, 1, 5},
		{geometry.Bounds{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}, 10, 0, 0, 0},
	}
	for i, tt := range tests {
		x0, y0, w, h := pixelWindow(gt, tt.b, 10, 10)
		if x0 != tt.x0 || y0 != tt.y0 || w != tt.w || h != tt.h {
			t.Errorf("%d: expecting (%d %d %d %d), got (%d %d %d %d)", i, tt.x0, tt.y0, tt.w, tt.h, x0, y0, w, h)
		}
	}
}

func TestMask(t *testing.T) {
	grid := raster.Grid{EPSG: 32633, Transform: raster.GeoTransform{0, 1, 0, 10, 0, -1}, Width: 10, Height: 10}
	// Left half
	mask, err := Mask(grid, "POLYGON((0 0,5 0,5 10,0 10,0 0))")
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for j := 0; j < 10; j++ {
		for i := 0; i < 10; i++ {
			if mask[j*10+i] {
				n++
				if i >= 5 {
					t.Errorf("pixel (%d,%d) should be outside", i, j)
				}
			}
		}
	}
	if n != 50 {
		t.Errorf("expecting 50 pixels inside, got %d", n)
	}
}

func TestWriteGeoTIFF(t *testing.T) {
	dir := t.TempDir()
	img := &raster.RGB8{
		Grid: raster.Grid{EPSG: 32633, Transform: raster.GeoTransform{500000, 10, 0, 5000000, 0, -10}, Width: 4, Height: 3},
		Data: make([]uint8, 3*4*3),
	}
	for i := range img.Data {
		img.Data[i] = uint8(i + 1)
	}
	tif := filepath.Join(dir, "out.tif")
	if err := WriteGeoTIFF(tif, img); err != nil {
		t.Fatal(err)
	}
	ds, err := godal.Open(tif)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	st := ds.Structure()
	if st.SizeX != 4 || st.SizeY != 3 || st.NBands != 3 {
		t.Errorf("unexpected structure %+v", st)
	}
	gt, err := ds.GeoTransform()
	if err != nil || gt != [6]float64(img.Transform) {
		t.Errorf("unexpected geotransform %v (%v)", gt, err)
	}
	green := make([]uint8, 12)
	if err := ds.Bands()[1].Read(0, 0, green, 4, 3); err != nil {
		t.Fatal(err)
	}
	if green[0] != 13 {
		t.Errorf("expecting 13, got %d", green[0])
	}

	jpg := filepath.Join(dir, "out.jpg")
	if err := WriteJPEG(tif, jpg, 95); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(jpg); err != nil {
		t.Error(err)
	}
	if err := WriteJPEG(tif, jpg, 0); err == nil {
		t.Error("quality 0 should fail")
	}
}
