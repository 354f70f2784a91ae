package loader

import "errors"

var (
	// ErrEmptyImage is returned for images that decode to zero width or height.
	ErrEmptyImage = errors.New("image has zero width or height")
	// ErrImageTooLarge is returned when an image header declares dimensions beyond the decode limits.
	ErrImageTooLarge = errors.New("image exceeds decode limits")
)
