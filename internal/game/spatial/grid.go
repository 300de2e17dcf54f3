// Package spatial provides the broad-phase index used by combat hit tests.
//
// The grid stores slot indices into the caller's enemy slice rather than
// pointers, so rebuilding it every step allocates nothing once the cells
// have grown to their working size.
package spatial

import "math"

// Grid buckets points into fixed-size square cells laid out row-major
// (cells[row*cols+col]). Cell size should be at least the largest query
// radius divided by two; the arena uses the special radius.
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
	count       int
}

// NewGrid creates a grid covering [0,width]x[0,height]. expected is the
// typical number of indexed entities and only sizes the initial buckets.
func NewGrid(width, height, cellSize float64, expected int) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	perCell := expected / len(cells)
	if perCell < 4 {
		perCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear empties every cell, keeping capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert indexes slot at (x, y). Points outside the grid land in the
// nearest edge cell.
func (g *Grid) Insert(slot uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], slot)
	g.count++
}

func (g *Grid) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= g.cols {
		return g.cols - 1
	}
	return col
}

func (g *Grid) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= g.rows {
		return g.rows - 1
	}
	return row
}

func (g *Grid) cellIndex(x, y float64) int {
	col := g.clampCol(int(math.Floor(x * g.invCellSize)))
	row := g.clampRow(int(math.Floor(y * g.invCellSize)))
	return row*g.cols + col
}

// QueryRadius returns every slot whose cell intersects the square around
// (cx, cy) of half-size radius. Candidates may lie outside the radius; the
// caller runs the exact test.
//
// The returned slice is reused by the next call.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(int(math.Floor((cx - radius) * g.invCellSize)))
	maxCol := g.clampCol(int(math.Floor((cx + radius) * g.invCellSize)))
	minRow := g.clampRow(int(math.Floor((cy - radius) * g.invCellSize)))
	maxRow := g.clampRow(int(math.Floor((cy + radius) * g.invCellSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Len is the number of indexed slots.
func (g *Grid) Len() int { return g.count }

// Stats summarises cell occupancy for the debug endpoints.
func (g *Grid) Stats() GridStats {
	var nonEmpty, maxInCell int
	for _, cell := range g.cells {
		n := len(cell)
		if n > maxInCell {
			maxInCell = n
		}
		if n > 0 {
			nonEmpty++
		}
	}
	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(g.count) / float64(nonEmpty)
	}
	return GridStats{
		Cells:          len(g.cells),
		NonEmptyCells:  nonEmpty,
		Entities:       g.count,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

type GridStats struct {
	Cells          int     `json:"cells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	Entities       int     `json:"entities"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}
