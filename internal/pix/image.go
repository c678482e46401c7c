// Package pix loads CSV-encoded images and compiles them into wire-format
// pixel draw commands.
package pix

import (
	"fmt"
	"strings"
)

// Transparent is the color value treated as fully transparent. Cells
// holding it never produce a draw command and skip validation entirely.
const Transparent = "000000"

// Image is a rectangular grid of color tokens, row-major. A load always
// produces a new Image; an Image is never mutated in place.
type Image struct {
	rows [][]string
}

// Width returns the number of columns.
func (img Image) Width() int {
	if len(img.rows) == 0 {
		return 0
	}
	return len(img.rows[0])
}

// Height returns the number of rows.
func (img Image) Height() int { return len(img.rows) }

// ParseCSV decodes a CSV-encoded image: one line per row, comma-separated
// color tokens, whitespace stripped. The last element of the newline split
// is dropped, so a trailing newline does not produce a phantom row. Rows
// must all have the same width.
func ParseCSV(data []byte) (Image, error) {
	lines := strings.Split(string(data), "\n")
	lines = lines[:len(lines)-1]
	if len(lines) == 0 {
		return Image{}, fmt.Errorf("image: no rows")
	}

	rows := make([][]string, 0, len(lines))
	width := 0
	for i, line := range lines {
		row := strings.Split(strings.Map(dropSpace, line), ",")
		if i == 0 {
			width = len(row)
		} else if len(row) != width {
			return Image{}, fmt.Errorf("image: row %d has %d cells, want %d", i, len(row), width)
		}
		rows = append(rows, row)
	}
	return Image{rows: rows}, nil
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' || r == '\r' {
		return -1
	}
	return r
}
