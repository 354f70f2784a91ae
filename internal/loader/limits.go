package loader

import (
	"fmt"
	"image"
	"io"
)

const (
	// defaultMaxDimension caps width and height read from an image header.
	defaultMaxDimension = 20000
	// defaultMaxPixels bounds width*height, keeping one decoded NRGBA buffer under 256 MB.
	defaultMaxPixels int64 = 64 * 1024 * 1024
)

// Limits bounds the images a decoder accepts. Headers are checked before any
// pixel data is allocated.
type Limits struct {
	MaxDimension int
	MaxPixels    int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxDimension: defaultMaxDimension,
		MaxPixels:    defaultMaxPixels,
	}
}

func (l Limits) orDefault() Limits {
	d := DefaultLimits()
	if l.MaxDimension > 0 {
		d.MaxDimension = l.MaxDimension
	}
	if l.MaxPixels > 0 {
		d.MaxPixels = l.MaxPixels
	}
	return d
}

func (l Limits) validate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, width, height)
	}
	if width > l.MaxDimension || height > l.MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d per side", ErrImageTooLarge, width, height, l.MaxDimension)
	}
	if pixels := int64(width) * int64(height); pixels > l.MaxPixels {
		return fmt.Errorf("%w: %d pixels exceeds %d", ErrImageTooLarge, pixels, l.MaxPixels)
	}
	return nil
}

// checkHeader reads just the image header from r, validates it and rewinds r.
func (l Limits) checkHeader(r io.ReadSeeker) error {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return err
	}
	if err := l.validate(cfg.Width, cfg.Height); err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	return nil
}
