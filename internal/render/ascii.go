// Package render draws lattice conformations as plain text.
package render

import (
	"strings"

	"hpfold/internal/conformation"
	"hpfold/internal/lattice"
)

const (
	hydrophobicGlyph = 'H'
	polarGlyph       = 'p'
	horizontalBond   = '-'
	verticalBond     = '|'
)

// ASCII draws the placed residues of conf with north at the top. Residues
// sit on even columns and rows; bonds fill the cells between them. Trailing
// spaces are trimmed from every line.
func ASCII(conf *conformation.Conformation) string {
	points := conf.Points()
	if len(points) == 0 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	width := 2*(maxX-minX) + 1
	height := 2*(maxY-minY) + 1
	grid := make([][]rune, height)
	for row := range grid {
		grid[row] = []rune(strings.Repeat(" ", width))
	}

	cell := func(p lattice.Point) (int, int) {
		return 2 * (maxY - p.Y), 2 * (p.X - minX)
	}

	seq := conf.Sequence()
	for i, p := range points {
		row, col := cell(p)
		if seq.IsHydrophobic(i) {
			grid[row][col] = hydrophobicGlyph
		} else {
			grid[row][col] = polarGlyph
		}
		if i == 0 {
			continue
		}
		prevRow, prevCol := cell(points[i-1])
		if prevRow == row {
			grid[row][(col+prevCol)/2] = horizontalBond
		} else {
			grid[(row+prevRow)/2][col] = verticalBond
		}
	}

	var b strings.Builder
	for _, line := range grid {
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
