package grid

import "testing"

func TestGetGridCoords(t *testing.T) {
	tests := []struct {
		index int
		cols  int
		wantX int
		wantY int
	}{
		// 64 cols (Standard)
		{0, 64, 0, 0},
		{1, 64, 1, 0},
		{63, 64, 63, 0},
		{64, 64, 0, 1},
		{65, 64, 1, 1},
		{127, 64, 63, 1},
		{128, 64, 0, 2},
		{1023, 64, 63, 15},

		// 32 cols (Low Res)
		{0, 32, 0, 0},
		{31, 32, 31, 0},
		{32, 32, 0, 1},
		{63, 32, 31, 1},
		{1023, 32, 31, 31},
	}

	for _, tc := range tests {
		gotX, gotY := GetGridCoords(tc.index, tc.cols)
		if gotX != tc.wantX || gotY != tc.wantY {
			t.Errorf("GetGridCoords(%d, %d) = (%d, %d); want (%d, %d)", tc.index, tc.cols, gotX, gotY, tc.wantX, tc.wantY)
		}
	}
}

func TestGetGridIndex(t *testing.T) {
	for _, cols := range []int{1, 3, 32, 64} {
		for i := 0; i < 200; i++ {
			x, y := GetGridCoords(i, cols)
			if got := GetGridIndex(x, y, cols); got != i {
				t.Errorf("GetGridIndex(GetGridCoords(%d, %d)) = %d", i, cols, got)
			}
		}
	}
}

func TestSquareSide(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{4, 2},
		{5, 3},
		{9, 3},
		{10, 4},
		{1024, 32},
		{1025, 33},
	}
	for _, tc := range tests {
		if got := SquareSide(tc.n); got != tc.want {
			t.Errorf("SquareSide(%d) = %d; want %d", tc.n, got, tc.want)
		}
	}
}
