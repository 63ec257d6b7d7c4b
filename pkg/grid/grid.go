// Package grid maps linear indices onto a row-major grid. The bitmap codec
// lays instruction blocks out with it and the desktop visualiser lays out
// tape cells the same way.
package grid

// GetGridCoords returns the column and row of index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// GetGridIndex is the inverse of GetGridCoords.
func GetGridIndex(x, y, cols int) int {
	return y*cols + x
}

// SquareSide returns the smallest side of a square grid holding n cells,
// never less than 1.
func SquareSide(n int) int {
	side := 1
	for side*side < n {
		side++
	}
	return side
}
