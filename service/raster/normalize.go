package raster

import (
	"fmt"
	"math"
)

const (
	// DefaultGain brightens the reflectances before they are clamped to [0, 1]
	DefaultGain = 2.5
	// ReflectanceScale converts Sentinel-2 L2A digital numbers into reflectances
	ReflectanceScale = 10000.
	// NoDataRGB is the value of nodata pixels in an RGB8
	NoDataRGB = 0
)

// RGB8 is a 3-band 8-bit image, band-major
type RGB8 struct {
	Grid
	Data []uint8
}

// At returns the value of the pixel (i, j) of the band
func (img *RGB8) At(band, i, j int) uint8 {
	return img.Data[(band*img.Height+j)*img.Width+i]
}

// Band returns the pixels of the band (not a copy)
func (img *RGB8) Band(band int) []uint8 {
	n := img.Width * img.Height
	return img.Data[band*n : (band+1)*n]
}

// NormalizeValue converts a digital number into a display value: round(clamp(dn/10000*gain, 0, 1)*255)
func NormalizeValue(dn, gain float64) uint8 {
	v := dn / ReflectanceScale * gain
	v = math.Max(0, math.Min(1, v))
	return uint8(math.Round(v * 255))
}

// Normalize converts a 3-band buffer of digital numbers (red, green, blue) into a true color image.
// Pixels with a nodata band are set to NoDataRGB in all bands.
func Normalize(buf *Buffer, gain float64) (*RGB8, error) {
	if buf.Bands != 3 {
		return nil, fmt.Errorf("Normalize: expecting 3 bands, got %d", buf.Bands)
	}
	if gain <= 0 {
		return nil, fmt.Errorf("Normalize: gain must be positive")
	}
	img := &RGB8{Grid: buf.Grid, Data: make([]uint8, len(buf.Data))}
	n := buf.Width * buf.Height
	for j := 0; j < buf.Height; j++ {
		for i := 0; i < buf.Width; i++ {
			if !buf.Valid(i, j) {
				continue
			}
			k := j*buf.Width + i
			for b := 0; b < 3; b++ {
				img.Data[b*n+k] = NormalizeValue(buf.Data[b*n+k], gain)
			}
		}
	}
	return img, nil
}
