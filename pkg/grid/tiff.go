package grid

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"
)

// ErrNotAllocated is returned when dumping a grid with no data.
var ErrNotAllocated = errors.New("grid data not allocated")

// Image renders the grid as 16-bit grayscale, one pixel per cell, with
// values clamped to [0,1]. Row j of the grid is pixel row j.
func (g *Grid[T]) Image() (*image.Gray16, error) {
	if len(g.data) < g.width*g.height {
		return nil, ErrNotAllocated
	}
	img := image.NewGray16(image.Rect(0, 0, g.width, g.height))
	for j := 0; j < g.height; j++ {
		for i := 0; i < g.width; i++ {
			v := math.Min(math.Max(float64(g.data[i+j*g.width]), 0), 1)
			img.SetGray16(i, j, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	return img, nil
}

// WriteTIFF writes the grid image as a deflate-compressed TIFF.
func (g *Grid[T]) WriteTIFF(w io.Writer) error {
	img, err := g.Image()
	if err != nil {
		return err
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encoding grid tiff: %w", err)
	}
	return nil
}
