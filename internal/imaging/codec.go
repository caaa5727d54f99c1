// Package imaging resizes, recompresses and thumbnails image payloads.
// All pixel work runs on a small bounded worker pool so batches of
// compressions cannot monopolize the process.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/models"
)

// DefaultWorkers bounds concurrent image operations.
const DefaultWorkers = 2

// Codec performs image compression and thumbnailing.
type Codec struct {
	pool   *ants.Pool
	logger *events.Logger
}

// NewCodec creates a codec with a bounded worker pool. Submission blocks
// when all workers are busy; queued work observes context cancellation
// before it starts.
func NewCodec(workers int, logger *events.Logger) (*Codec, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Codec{
		pool:   pool,
		logger: logger.WithField("component", "imaging"),
	}, nil
}

// Close releases the worker pool.
func (c *Codec) Close() error {
	c.pool.Release()
	return nil
}

// run executes fn on the pool and waits for it. The context is checked
// before submission and again when the worker picks the task up, so
// cancelled work never decodes a single pixel.
func (c *Codec) run(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan error, 1)
	err := c.pool.Submit(func() {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return
		default:
		}
		done <- fn()
	})
	if err != nil {
		return fmt.Errorf("submit image task: %w", err)
	}

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// The task may still run to completion; its result is discarded.
		return ctx.Err()
	}
}

// Compress decodes data, bounds it to maxWidth x maxHeight preserving
// aspect ratio (never upscaling) and re-encodes as JPEG at the given
// quality (0-1).
func (c *Codec) Compress(ctx context.Context, data []byte, maxWidth, maxHeight int, quality float64) ([]byte, error) {
	var out []byte

	err := c.run(ctx, func() error {
		img, format, err := decode(data)
		if err != nil {
			return err
		}

		bounds := img.Bounds()
		w, h := fitDimensions(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

		if w != bounds.Dx() || h != bounds.Dy() {
			img = scale(img, w, h)
		}

		encoded, err := encodeFormat("jpeg", img, quality)
		if err != nil {
			return err
		}

		c.logger.WithFields(map[string]interface{}{
			"format": format,
			"in":     len(data),
			"out":    len(encoded),
			"width":  w,
			"height": h,
		}).Debug("Compressed image")

		out = encoded
		return nil
	})

	return out, err
}

// Thumbnail produces a square size x size JPEG cropped around the image's
// focal point and scaled down.
func (c *Codec) Thumbnail(ctx context.Context, data []byte, size int, quality float64) ([]byte, error) {
	var out []byte

	err := c.run(ctx, func() error {
		img, _, err := decode(data)
		if err != nil {
			return err
		}

		cropped := squareCrop(img)

		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Src, nil)

		encoded, err := encodeFormat("jpeg", dst, quality)
		if err != nil {
			return err
		}

		out = encoded
		return nil
	})

	return out, err
}

// decode parses an image, mapping failures to models.DecodeError. JPEG,
// PNG and WebP are decodable.
func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &models.DecodeError{Format: format, Err: err}
	}
	return img, format, nil
}

// fitDimensions computes the bounded size: scale = min(maxW/w, maxH/h)
// clamped to <= 1 so images are never upscaled.
func fitDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	widthRatio := float64(maxWidth) / float64(width)
	heightRatio := float64(maxHeight) / float64(height)

	ratio := widthRatio
	if heightRatio < ratio {
		ratio = heightRatio
	}

	w := int(float64(width)*ratio + 0.5)
	h := int(float64(height)*ratio + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return w, h
}

// scale resamples img to w x h.
func scale(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// squareCrop returns the largest square centered on the focal point.
// The focal point is currently the image center; the indirection is the
// hook for smarter detection later.
func squareCrop(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	side := w
	if h < side {
		side = h
	}

	fx, fy := focalPoint(w, h)

	x := clamp(fx-side/2, 0, w-side)
	y := clamp(fy-side/2, 0, h-side)

	rect := image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+side, bounds.Min.Y+y+side)

	cropped := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)
	return cropped
}

func focalPoint(w, h int) (int, int) {
	return w / 2, h / 2
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
