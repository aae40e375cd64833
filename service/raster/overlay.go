package raster

import "fmt"

// Overlay fills the nodata pixels of dst with the valid pixels of src (first valid wins).
// Both buffers must share the same grid and number of bands. It returns the number of pixels filled.
func Overlay(dst, src *Buffer) (int, error) {
	if !dst.Grid.Equals(src.Grid) || dst.Bands != src.Bands {
		return 0, fmt.Errorf("Overlay: buffers are not aligned")
	}
	n := 0
	for j := 0; j < dst.Height; j++ {
		for i := 0; i < dst.Width; i++ {
			if dst.Valid(i, j) || !src.Valid(i, j) {
				continue
			}
			for b := 0; b < dst.Bands; b++ {
				dst.Set(b, i, j, src.At(b, i, j))
			}
			n++
		}
	}
	return n, nil
}
