// Package testutil holds shared test fixtures.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
)

// JPEGImage returns an encoded JPEG of the given dimensions filled with a
// smooth gradient. Compresses well.
func JPEGImage(width, height int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(width, height), &jpeg.Options{Quality: 95}); err != nil {
		panic(fmt.Sprintf("encode fixture jpeg: %v", err))
	}
	return buf.Bytes()
}

// PNGImage returns an encoded PNG of the given dimensions.
func PNGImage(width, height int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(width, height)); err != nil {
		panic(fmt.Sprintf("encode fixture png: %v", err))
	}
	return buf.Bytes()
}

// NoisyJPEGImage returns a JPEG of random pixels. High bytes-per-pixel;
// barely compresses.
func NoisyJPEGImage(width, height int) []byte {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		panic(fmt.Sprintf("encode fixture jpeg: %v", err))
	}
	return buf.Bytes()
}

func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width, 1)),
				G: uint8(y * 255 / max(height, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
