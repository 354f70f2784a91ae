package loader

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// Extra formats for custom discovery patterns.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/eugenenazirov/masonry/internal/packer"
)

// Decoder turns a file path into a decoded image.
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) (image.Image, error)

// Decode calls f(path).
func (f DecoderFunc) Decode(path string) (image.Image, error) {
	return f(path)
}

// FileDecoder decodes images from disk. EXIF orientation is ignored.
// A zero Limits value means DefaultLimits.
type FileDecoder struct {
	Limits Limits
}

// Decode opens and decodes the file at path.
func (d FileDecoder) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return d.Limits.Decode(f)
}

// Decode validates the header of r against the limits, then decodes the full image.
func (l Limits) Decode(r io.ReadSeeker) (image.Image, error) {
	l = l.orDefault()
	if err := l.checkHeader(r); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	if err := checkBounds(img); err != nil {
		return nil, err
	}
	return img, nil
}

// DecodeReader decodes a single image from r with DefaultLimits, for uploads that never touch disk.
func DecodeReader(r io.ReadSeeker) (image.Image, error) {
	return DefaultLimits().Decode(r)
}

// Skipped names an input that was excluded from packing and why.
type Skipped struct {
	Path string
	Err  error
}

// Load decodes every path in order. Failures never stop the batch: the path is
// recorded in the skipped list, logged, and the remaining paths are still loaded.
func Load(paths []string, decoder Decoder, logger *zap.Logger) ([]packer.Item, []Skipped) {
	if logger == nil {
		logger = zap.NewNop()
	}

	items := make([]packer.Item, 0, len(paths))
	var skipped []Skipped
	for _, path := range paths {
		img, err := decoder.Decode(path)
		if err == nil {
			err = checkBounds(img)
		}
		if err != nil {
			logger.Warn("skipping image", zap.String("path", path), zap.Error(err))
			skipped = append(skipped, Skipped{Path: path, Err: err})
			continue
		}
		items = append(items, packer.Item{Name: path, Image: img})
	}
	return items, skipped
}

func checkBounds(img image.Image) error {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, size.X, size.Y)
	}
	return nil
}
