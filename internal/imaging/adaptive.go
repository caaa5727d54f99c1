package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"time"
)

// Options controls adaptive compression.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64 // base quality, 0-1
	Format    string  // "auto", "jpeg", "png" or "webp"
	Adaptive  bool    // adjust quality from image characteristics
}

// DefaultOptions returns the storage-path defaults.
func DefaultOptions() Options {
	return Options{
		MaxWidth:  1600,
		MaxHeight: 1600,
		Quality:   0.8,
		Format:    "auto",
		Adaptive:  true,
	}
}

// Metrics reports what a compression pass did.
type Metrics struct {
	OriginalSize     int64         `json:"original_size"`
	CompressedSize   int64         `json:"compressed_size"`
	CompressionRatio float64       `json:"compression_ratio"`
	ProcessingTime   time.Duration `json:"processing_time"`
	Quality          float64       `json:"quality"`
}

// Adaptive quality bounds.
const (
	minQuality = 0.5
	maxQuality = 0.95
)

// encoderFunc writes img to w at the given 0-1 quality.
type encoderFunc func(w io.Writer, img image.Image, quality float64) error

// encoders maps format names to available encoders. WebP is deliberately
// absent: there is no pure-Go encoder, so the adaptive path can prefer it
// but must fall back to JPEG.
var encoders = map[string]encoderFunc{
	"jpeg": func(w io.Writer, img image.Image, quality float64) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality(quality)})
	},
	"png": func(w io.Writer, img image.Image, _ float64) error {
		return png.Encode(w, img)
	},
}

// encoderSupported reports whether a format can be encoded.
func encoderSupported(format string) bool {
	_, ok := encoders[format]
	return ok
}

// encodeFormat encodes img in the given format, falling back to JPEG when
// the format has no registered encoder.
func encodeFormat(format string, img image.Image, quality float64) ([]byte, error) {
	enc, ok := encoders[format]
	if !ok {
		enc = encoders["jpeg"]
	}

	var buf bytes.Buffer
	if err := enc(&buf, img, quality); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// jpegQuality maps the 0-1 fidelity knob to the encoder's 1-100 scale.
func jpegQuality(quality float64) int {
	q := int(quality*100 + 0.5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

// AdaptiveCompress compresses like Compress but picks format and quality
// from the image itself and reports metrics.
func (c *Codec) AdaptiveCompress(ctx context.Context, data []byte, opts Options) ([]byte, Metrics, error) {
	start := time.Now()

	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		def := DefaultOptions()
		opts.MaxWidth, opts.MaxHeight = def.MaxWidth, def.MaxHeight
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultOptions().Quality
	}

	var out []byte
	var metrics Metrics

	err := c.run(ctx, func() error {
		img, _, err := decode(data)
		if err != nil {
			return err
		}

		bounds := img.Bounds()
		area := bounds.Dx() * bounds.Dy()

		format := pickFormat(opts.Format, data, area)

		quality := opts.Quality
		if opts.Adaptive {
			quality = adaptiveQuality(opts.Quality, area, len(data))
		}

		w, h := fitDimensions(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)
		if w != bounds.Dx() || h != bounds.Dy() {
			img = scale(img, w, h)
		}

		encoded, err := encodeFormat(format, img, quality)
		if err != nil {
			return err
		}

		out = encoded
		metrics = Metrics{
			OriginalSize:     int64(len(data)),
			CompressedSize:   int64(len(encoded)),
			CompressionRatio: float64(len(encoded)) / float64(len(data)),
			ProcessingTime:   time.Since(start),
			Quality:          quality,
		}

		c.logger.WithFields(map[string]interface{}{
			"format":  format,
			"quality": quality,
			"ratio":   metrics.CompressionRatio,
		}).Debug("Adaptive compression done")

		return nil
	})

	return out, metrics, err
}

// pickFormat resolves the target encoding. "auto" prefers a higher-detail
// format for visually complex images (bytes-per-pixel heuristic) but only
// when its encoder is confirmed available; otherwise JPEG.
func pickFormat(preferred string, data []byte, area int) string {
	if preferred != "" && preferred != "auto" {
		if encoderSupported(preferred) {
			return preferred
		}
		return "jpeg"
	}

	if complexity(len(data), area) > 0.7 && encoderSupported("webp") {
		return "webp"
	}

	return "jpeg"
}

// complexity estimates visual density from bytes per pixel, normalized
// to [0, 1].
func complexity(size, area int) float64 {
	if area <= 0 {
		return 0
	}
	bpp := float64(size) / float64(area)
	c := bpp / 4
	if c > 1 {
		c = 1
	}
	return c
}

// adaptiveQuality raises quality for small images and lowers it for
// already-dense ones, clamped to [minQuality, maxQuality].
func adaptiveQuality(base float64, area, size int) float64 {
	q := base

	if area > 1_000_000 {
		q *= 0.9
	} else {
		q *= 1.1
	}

	if area > 0 && float64(size)/float64(area) > 3 {
		q *= 0.95
	}

	if q < minQuality {
		q = minQuality
	}
	if q > maxQuality {
		q = maxQuality
	}

	return q
}
