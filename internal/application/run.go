package application

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eugenenazirov/masonry/internal/config"
	"github.com/eugenenazirov/masonry/internal/discovery"
	"github.com/eugenenazirov/masonry/internal/loader"
	"github.com/eugenenazirov/masonry/internal/packer"
	"github.com/eugenenazirov/masonry/internal/storage"
)

// Pipeline holds the collaborators of a one-shot pack run.
type Pipeline struct {
	Decoder loader.Decoder
	Storage storage.Storage
	Out     io.Writer
}

// Run discovers images in cfg.Dir, packs them and writes cfg.OutputFile into
// the same directory. The report line names the written path, which is just
// the file name for the default directory. Having no decodable images is not an error: nothing is
// written and Run returns nil.
func Run(cfg config.Config, logger *zap.Logger, out io.Writer) error {
	return RunWith(cfg, logger, Pipeline{
		Decoder: loader.FileDecoder{},
		Storage: storage.NewFileStorage(cfg.Dir, cfg.Quality),
		Out:     out,
	})
}

// RunWith is Run with explicit collaborators.
func RunWith(cfg config.Config, logger *zap.Logger, p Pipeline) error {
	opts, err := cfg.PackerOptions()
	if err != nil {
		return err
	}

	paths, err := discovery.Enumerate(cfg.Dir, cfg.Patterns)
	if err != nil {
		return fmt.Errorf("discover images: %w", err)
	}

	items, skipped := loader.Load(paths, p.Decoder, logger)

	result, err := packer.New(opts...).Pack(items)
	if errors.Is(err, packer.ErrNoImages) {
		logger.Info("no images to pack",
			zap.String("dir", cfg.Dir),
			zap.Int("candidates", len(paths)),
			zap.Int("skipped", len(skipped)),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pack images: %w", err)
	}

	if err := p.Storage.Save(cfg.OutputFile, result.Canvas); err != nil {
		return fmt.Errorf("save composition: %w", err)
	}

	logger.Info("composition packed",
		zap.String("output", cfg.OutputFile),
		zap.Float64("scale", result.Scale),
		zap.Int("packed", result.Packed()),
		zap.Int("visible", result.Visible()),
		zap.Int("skipped", len(skipped)),
	)

	if p.Out != nil {
		written := filepath.Join(cfg.Dir, cfg.OutputFile)
		if _, err := fmt.Fprintf(p.Out, "Packed %d images into %s\n", result.Packed(), written); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}
