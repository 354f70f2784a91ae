package packer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const defaultOutputSize = 2000

// Rounding selects how scaled dimensions are converted back to whole pixels.
type Rounding int

const (
	// RoundNearest rounds half away from zero.
	RoundNearest Rounding = iota
	// RoundTruncate drops the fractional part.
	RoundTruncate
)

func (r Rounding) String() string {
	switch r {
	case RoundTruncate:
		return "truncate"
	default:
		return "nearest"
	}
}

// ParseRounding maps a configuration value onto a Rounding mode.
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "nearest":
		return RoundNearest, nil
	case "truncate":
		return RoundTruncate, nil
	default:
		return RoundNearest, fmt.Errorf("unknown rounding mode %q", s)
	}
}

func (r Rounding) apply(v float64) int {
	var n int
	if r == RoundTruncate {
		n = int(v)
	} else {
		n = int(math.Round(v))
	}
	// Libraries treat a zero dimension as "preserve aspect ratio", so never hand one out.
	return max(n, 1)
}

// Option configures a shelf packer.
type Option func(*shelfPacker)

// WithOutputSize sets the canvas edge length in pixels.
func WithOutputSize(size int) Option {
	return func(p *shelfPacker) {
		p.outputSize = size
	}
}

// WithBackground sets the colour of uncovered canvas pixels.
func WithBackground(c color.Color) Option {
	return func(p *shelfPacker) {
		p.background = c
	}
}

// WithRounding sets how scaled dimensions are rounded.
func WithRounding(r Rounding) Option {
	return func(p *shelfPacker) {
		p.rounding = r
	}
}

type shelfPacker struct {
	outputSize int
	background color.Color
	rounding   Rounding
}

// New creates a Packer that scales images uniformly and shelf-packs them onto a square canvas.
func New(opts ...Option) Packer {
	p := &shelfPacker{
		outputSize: defaultOutputSize,
		background: color.White,
		rounding:   RoundNearest,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *shelfPacker) Pack(items []Item) (*Result, error) {
	if p.outputSize <= 0 {
		return nil, ErrInvalidOutputSize
	}
	if len(items) == 0 {
		return nil, ErrNoImages
	}

	originals := make([]image.Point, len(items))
	for i, item := range items {
		originals[i] = item.Image.Bounds().Size()
	}
	scale := Scale(originals, p.outputSize)

	resized := make([]*image.NRGBA, len(items))
	sizes := make([]image.Point, len(items))
	for i, item := range items {
		sizes[i] = ScaledSize(originals[i], scale, p.rounding)
		resized[i] = imaging.Resize(item.Image, sizes[i].X, sizes[i].Y, imaging.Lanczos)
	}

	placements := Layout(sizes, p.outputSize)

	canvas := imaging.New(p.outputSize, p.outputSize, p.background)
	for i := range placements {
		placements[i].Name = items[i].Name
		if !placements[i].Visible {
			continue
		}
		paste(canvas, resized[i], image.Pt(placements[i].X, placements[i].Y))
	}
	flatten(canvas)

	return &Result{
		Canvas:     canvas,
		Scale:      scale,
		Placements: placements,
	}, nil
}

// Scale returns the uniform factor that makes the combined area of sizes
// approximate outputSize squared. It returns 0 when the total area is zero.
func Scale(sizes []image.Point, outputSize int) float64 {
	var total int64
	for _, s := range sizes {
		total += int64(s.X) * int64(s.Y)
	}
	if total <= 0 {
		return 0
	}
	target := float64(outputSize) * float64(outputSize)
	return math.Sqrt(target / float64(total))
}

// ScaledSize multiplies both axes of size by scale, preserving aspect ratio.
func ScaledSize(size image.Point, scale float64, r Rounding) image.Point {
	return image.Pt(
		r.apply(float64(size.X)*scale),
		r.apply(float64(size.Y)*scale),
	)
}

// paste overwrites canvas pixels with src at pos, clipped to the canvas bounds.
func paste(canvas *image.NRGBA, src *image.NRGBA, pos image.Point) {
	r := image.Rectangle{Min: pos, Max: pos.Add(src.Bounds().Size())}
	draw.Draw(canvas, r, src, src.Bounds().Min, draw.Src)
}

// flatten drops the alpha channel, keeping colour as stored.
func flatten(img *image.NRGBA) {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xff
		}
	}
}
