package raster

import (
	"fmt"
)

// Buffer is a georeferenced multi-band raster in memory
// Data is band-major: the value of the pixel (i, j) of band b is Data[b*Width*Height+j*Width+i]
// A Buffer must not be shared between goroutines.
type Buffer struct {
	Grid
	Bands  int
	NoData float64
	Data   []float64
}

// NewBuffer returns a Buffer filled with nodata
func NewBuffer(grid Grid, bands int, nodata float64) *Buffer {
	b := &Buffer{Grid: grid, Bands: bands, NoData: nodata, Data: make([]float64, bands*grid.Width*grid.Height)}
	if nodata != 0 {
		for i := range b.Data {
			b.Data[i] = nodata
		}
	}
	return b
}

func (b *Buffer) index(band, i, j int) int {
	return (band*b.Height+j)*b.Width + i
}

// At returns the value of the pixel (i, j) of the band
func (b *Buffer) At(band, i, j int) float64 {
	return b.Data[b.index(band, i, j)]
}

// Set the value of the pixel (i, j) of the band
func (b *Buffer) Set(band, i, j int, v float64) {
	b.Data[b.index(band, i, j)] = v
}

// Band returns the pixels of the band (not a copy)
func (b *Buffer) Band(band int) []float64 {
	n := b.Width * b.Height
	return b.Data[band*n : (band+1)*n]
}

// Valid returns true if no band of the pixel (i, j) is nodata
func (b *Buffer) Valid(i, j int) bool {
	for band := 0; band < b.Bands; band++ {
		if b.At(band, i, j) == b.NoData {
			return false
		}
	}
	return true
}

// SetNoData sets all the bands of the pixel (i, j) to nodata
func (b *Buffer) SetNoData(i, j int) {
	for band := 0; band < b.Bands; band++ {
		b.Set(band, i, j, b.NoData)
	}
}

// CountValid returns the number of valid pixels
func (b *Buffer) CountValid() int {
	n := 0
	for j := 0; j < b.Height; j++ {
		for i := 0; i < b.Width; i++ {
			if b.Valid(i, j) {
				n++
			}
		}
	}
	return n
}

// Stack concatenates the bands of buffers sharing the same grid and nodata
func Stack(buffers ...*Buffer) (*Buffer, error) {
	if len(buffers) == 0 {
		return nil, fmt.Errorf("Stack: no buffer")
	}
	res := &Buffer{Grid: buffers[0].Grid, NoData: buffers[0].NoData}
	for _, b := range buffers {
		if !b.Grid.Equals(res.Grid) {
			return nil, fmt.Errorf("Stack: grids differ")
		}
		if b.NoData != res.NoData {
			return nil, fmt.Errorf("Stack: nodata differ (%v != %v)", b.NoData, res.NoData)
		}
		res.Bands += b.Bands
		res.Data = append(res.Data, b.Data...)
	}
	return res, nil
}
