// Package geo provides the rectangular cell grid agents live on.
// Communities occupy cells in row-major offset order, x varying fastest,
// so community k lives at cell AtOffset(k).
package geo

import "math"

// Cell identifies one grid cell by integer coordinates.
type Cell struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Domain is the rectangular extent of the grid: cells (0,0) through
// (NX-1, NY-1).
type Domain struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
}

// Square returns the smallest domain that holds more than n cells, sized
// the way census geometry is: ny = floor(sqrt(n)), then nx grows until
// nx*ny exceeds n. The extra cells hold no community and stay empty.
func Square(n int) Domain {
	if n < 1 {
		return Domain{NX: 1, NY: 1}
	}
	ny := int(math.Floor(math.Sqrt(float64(n))))
	nx := ny
	for nx*ny <= n {
		nx++
	}
	return Domain{NX: nx, NY: ny}
}

// NumCells returns the total cell count.
func (d Domain) NumCells() int {
	return d.NX * d.NY
}

// Contains reports whether c lies inside the domain.
func (d Domain) Contains(c Cell) bool {
	return c.X >= 0 && int(c.X) < d.NX && c.Y >= 0 && int(c.Y) < d.NY
}

// Index returns the row-major offset of c. Only meaningful for cells
// inside the domain.
func (d Domain) Index(c Cell) int {
	return int(c.Y)*d.NX + int(c.X)
}

// AtOffset returns the cell at row-major offset k.
func (d Domain) AtOffset(k int) Cell {
	return Cell{X: int32(k % d.NX), Y: int32(k / d.NX)}
}

// Clip clamps c to the domain bounds.
func (d Domain) Clip(c Cell) Cell {
	if c.X < 0 {
		c.X = 0
	}
	if int(c.X) >= d.NX {
		c.X = int32(d.NX - 1)
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if int(c.Y) >= d.NY {
		c.Y = int32(d.NY - 1)
	}
	return c
}

// MooreDirections are the eight neighbor offsets used by the random walk.
var MooreDirections = [8]Cell{
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
	{X: 0, Y: -1},
	{X: 1, Y: -1},
}

// Dist returns the Euclidean distance between two cell centers.
func Dist(a, b Cell) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
