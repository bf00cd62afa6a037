package assets

import (
	"image"
	"image/color"
)

var (
	missingA = color.RGBA{R: 255, B: 255, A: 255}
	missingB = color.RGBA{A: 255}
)

// Checkerboard draws a size x size image alternating a and b every block pixels.
func Checkerboard(size, block int, a, b color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	block = max(block, 1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/block+y/block)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

// MissingImage is what a texture that failed to load looks like.
func MissingImage() *image.RGBA {
	return Checkerboard(64, 32, missingA, missingB)
}
