package packer

import "image"

// Item is a decoded source image together with the name it was loaded from.
type Item struct {
	Name  string
	Image image.Image
}

// Placement records where a resized image landed on the canvas.
// Visible is false when the image fell below the bottom edge and was not pasted;
// its X, Y, Width and Height still reflect the shelf geometry it consumed.
type Placement struct {
	Index   int
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Visible bool
}

// Result is the outcome of one packing run.
type Result struct {
	Canvas     *image.NRGBA
	Scale      float64
	Placements []Placement
}

// Packed returns the number of images that entered the packing step.
func (r *Result) Packed() int {
	return len(r.Placements)
}

// Visible returns the number of images actually pasted onto the canvas.
func (r *Result) Visible() int {
	n := 0
	for _, p := range r.Placements {
		if p.Visible {
			n++
		}
	}
	return n
}

// Packer describes the behaviour required from a canvas packer.
type Packer interface {
	Pack(items []Item) (*Result, error)
}
