package raster

import (
	"math"
	"testing"

	"github.com/airbusgeo/s2-truecolor/service/geometry"
)

func TestGeoTransform(t *testing.T) {
	gt := GeoTransform{600000, 10, 0, 5560000, 0, -10}
	inv, err := gt.Invert()
	if err != nil {
		t.Fatal(err)
	}
	x, y := gt.Apply(12.5, 7.25)
	if x != 600125 || y != 5559927.5 {
		t.Errorf("wrong Apply: %f %f", x, y)
	}
	px, py := inv.Apply(x, y)
	if math.Abs(px-12.5) > 1e-9 || math.Abs(py-7.25) > 1e-9 {
		t.Errorf("wrong Invert: %f %f", px, py)
	}
	if _, err := (GeoTransform{0, 0, 0, 0, 0, 0}).Invert(); err == nil {
		t.Errorf("expected an error")
	}
}

func TestGridFromBounds(t *testing.T) {
	for _, b := range []geometry.Bounds{
		{MinX: 600000, MinY: 5549000, MaxX: 601000, MaxY: 5550000},
		{MinX: 600000.0000001, MinY: 5549000, MaxX: 601000, MaxY: 5550000.0000001},
		{MinX: 600000, MinY: 5548999.9999999, MaxX: 601000.0000001, MaxY: 5550000},
	} {
		g, err := GridFromBounds(b, 32633, 10)
		if err != nil {
			t.Fatal(err)
		}
		if g.Width != 100 || g.Height != 100 {
			t.Errorf("expected 100x100, found %dx%d", g.Width, g.Height)
		}
	}
	g, _ := GridFromBounds(geometry.Bounds{MinX: 0, MinY: 0, MaxX: 25, MaxY: 11}, 32633, 10)
	if g.Width != 3 || g.Height != 2 {
		t.Errorf("expected 3x2, found %dx%d", g.Width, g.Height)
	}
	if b := g.Bounds(); b.MinX != 0 || b.MaxX != 30 || b.MaxY != 11 || b.MinY != -9 {
		t.Errorf("wrong bounds %v", b)
	}
	if rx, ry := g.Resolution(); rx != 10 || ry != 10 {
		t.Errorf("wrong resolution %f %f", rx, ry)
	}
	if _, err := GridFromBounds(geometry.Bounds{}, 32633, 10); err == nil {
		t.Errorf("expected an error")
	}
}

// testBuffer returns a 1-band buffer whose pixel (i, j) is 1+i+10*j
func testBuffer(w, h int) *Buffer {
	b := NewBuffer(Grid{EPSG: 32633, Transform: GeoTransform{0, 10, 0, float64(h * 10), 0, -10}, Width: w, Height: h}, 1, 0)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			b.Set(0, i, j, float64(1+i+10*j))
		}
	}
	return b
}

func TestReprojectNearest(t *testing.T) {
	src := testBuffer(4, 4)

	same, err := Reproject(src, src.Grid, Identity, Nearest)
	if err != nil {
		t.Fatal(err)
	}
	for i := range src.Data {
		if same.Data[i] != src.Data[i] {
			t.Fatalf("identity reprojection must preserve the pixels")
		}
	}

	// Shifted by one pixel and partially outside
	grid := Grid{EPSG: 32633, Transform: GeoTransform{10, 10, 0, 30, 0, -10}, Width: 4, Height: 2}
	dst, err := Reproject(src, grid, Identity, Nearest)
	if err != nil {
		t.Fatal(err)
	}
	if dst.At(0, 0, 0) != src.At(0, 1, 1) || dst.At(0, 2, 1) != src.At(0, 3, 2) {
		t.Errorf("wrong pixels %v", dst.Data)
	}
	if dst.At(0, 3, 0) != dst.NoData {
		t.Errorf("pixels outside the source must be nodata")
	}

	// Upsampling: each source pixel covers 2x2 pixels
	grid = Grid{EPSG: 32633, Transform: GeoTransform{0, 5, 0, 40, 0, -5}, Width: 8, Height: 8}
	dst, _ = Reproject(src, grid, Identity, Nearest)
	if dst.At(0, 0, 0) != 1 || dst.At(0, 1, 1) != 1 || dst.At(0, 2, 0) != 2 || dst.At(0, 7, 7) != 34 {
		t.Errorf("wrong pixels %v", dst.Data)
	}
}

func TestReprojectBilinear(t *testing.T) {
	src := testBuffer(2, 2)
	// One pixel centered on the corner shared by the four source pixels
	grid := Grid{EPSG: 32633, Transform: GeoTransform{5, 10, 0, 15, 0, -10}, Width: 1, Height: 1}
	dst, err := Reproject(src, grid, Identity, Bilinear)
	if err != nil {
		t.Fatal(err)
	}
	if expected := (1. + 2 + 11 + 12) / 4; math.Abs(dst.At(0, 0, 0)-expected) > 1e-9 {
		t.Errorf("expected %f found %f", expected, dst.At(0, 0, 0))
	}

	// A nodata neighbour is never blended
	src.Set(0, 1, 1, src.NoData)
	dst, _ = Reproject(src, grid, Identity, Bilinear)
	if v := dst.At(0, 0, 0); v != 1 && v != 2 && v != 11 && v != src.NoData {
		t.Errorf("nodata has been blended: %f", v)
	}
}

func TestOverlay(t *testing.T) {
	a := testBuffer(3, 3)
	b := testBuffer(3, 3)
	for i := range b.Data {
		b.Data[i] = 100
	}
	a.Set(0, 1, 1, a.NoData)

	dst := NewBuffer(a.Grid, 1, 0)
	if n, err := Overlay(dst, a); err != nil || n != 8 {
		t.Fatalf("expected 8 pixels, found %d (%v)", n, err)
	}
	if n, _ := Overlay(dst, b); n != 1 {
		t.Errorf("expected 1 pixel, found %d", n)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			expected := a.At(0, i, j)
			if i == 1 && j == 1 {
				expected = 100
			}
			if dst.At(0, i, j) != expected {
				t.Errorf("pixel %d,%d: expected %f found %f", i, j, expected, dst.At(0, i, j))
			}
		}
	}

	if _, err := Overlay(dst, testBuffer(2, 3)); err == nil {
		t.Errorf("expected an error")
	}
}

func TestStack(t *testing.T) {
	r, g, b := testBuffer(2, 2), testBuffer(2, 2), testBuffer(2, 2)
	g.Set(0, 0, 0, g.NoData)
	rgb, err := Stack(r, g, b)
	if err != nil {
		t.Fatal(err)
	}
	if rgb.Bands != 3 || len(rgb.Data) != 12 {
		t.Fatalf("wrong stack")
	}
	if rgb.Valid(0, 0) || !rgb.Valid(1, 0) || rgb.CountValid() != 3 {
		t.Errorf("a pixel with a nodata band is not valid")
	}
	if _, err := Stack(r, testBuffer(3, 2)); err == nil {
		t.Errorf("expected an error")
	}
}

func TestNormalize(t *testing.T) {
	for dn, expected := range map[float64]uint8{0: 0, -50: 0, 1000: 64, 2000: 128, 4000: 255, 10000: 255, 65535: 255, 1: 0, 16: 1} {
		if v := NormalizeValue(dn, DefaultGain); v != expected {
			t.Errorf("%f: expected %d found %d", dn, expected, v)
		}
	}

	buf := NewBuffer(Grid{EPSG: 32633, Transform: GeoTransform{0, 10, 0, 20, 0, -10}, Width: 2, Height: 2}, 3, 0)
	for b := 0; b < 3; b++ {
		for k := range buf.Band(b) {
			buf.Band(b)[k] = 1000 * float64(b+1)
		}
	}
	buf.Set(1, 1, 1, buf.NoData)
	img, err := Normalize(buf, DefaultGain)
	if err != nil {
		t.Fatal(err)
	}
	if img.At(0, 0, 0) != 64 || img.At(1, 0, 0) != 128 || img.At(2, 0, 0) != 191 {
		t.Errorf("wrong pixel: %d %d %d", img.At(0, 0, 0), img.At(1, 0, 0), img.At(2, 0, 0))
	}
	for b := 0; b < 3; b++ {
		if img.At(b, 1, 1) != NoDataRGB {
			t.Errorf("nodata pixel must be %d in all bands", NoDataRGB)
		}
	}

	if _, err := Normalize(testBuffer(2, 2), DefaultGain); err == nil {
		t.Errorf("expected an error")
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for v := 0; v < 256; v++ {
		dn := float64(v) / 255 / DefaultGain * ReflectanceScale
		if n := NormalizeValue(dn, DefaultGain); math.Abs(float64(n)-float64(v)) > 1 {
			t.Errorf("%d: round trip gives %d", v, n)
		}
		// Rounded digital numbers
		if n := NormalizeValue(math.Round(dn), DefaultGain); math.Abs(float64(n)-float64(v)) > 1 {
			t.Errorf("%d: round trip gives %d", v, n)
		}
	}
}
