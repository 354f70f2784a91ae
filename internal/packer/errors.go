package packer

import "errors"

var (
	// ErrNoImages is returned when there is nothing to pack. Callers treat it as a silent no-op.
	ErrNoImages = errors.New("no images to pack")
	// ErrInvalidOutputSize is returned when the canvas edge length is not a positive integer.
	ErrInvalidOutputSize = errors.New("output size must be a positive integer")
)
