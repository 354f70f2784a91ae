package packer

import "image"

// shelf tracks the cursor of the shelf-packing heuristic.
type shelf struct {
	limit     int
	x, y      int
	rowHeight int
}

// place assigns a position to an item of the given size and advances the cursor.
// It runs for every item, visible or not.
func (s *shelf) place(size image.Point) image.Point {
	if s.x+size.X > s.limit {
		s.x = 0
		s.y += s.rowHeight
		s.rowHeight = 0
	}

	pos := image.Pt(s.x, s.y)

	s.x += size.X
	s.rowHeight = max(s.rowHeight, size.Y)

	return pos
}

// fitsVertically reports whether an item placed at pos keeps its bottom edge on the canvas.
func fitsVertically(pos, size image.Point, limit int) bool {
	return pos.Y+size.Y <= limit
}

// Layout computes shelf placements for items of the given sizes, in order, on a
// square canvas of edge outputSize. Items are never reordered.
func Layout(sizes []image.Point, outputSize int) []Placement {
	s := &shelf{limit: outputSize}
	placements := make([]Placement, 0, len(sizes))
	for i, size := range sizes {
		pos := s.place(size)
		placements = append(placements, Placement{
			Index:   i,
			X:       pos.X,
			Y:       pos.Y,
			Width:   size.X,
			Height:  size.Y,
			Visible: fitsVertically(pos, size, outputSize),
		})
	}
	return placements
}
