package deepzoom

import (
	"image"
	"testing"
)

func TestMaxLevel(t *testing.T) {
	cases := []struct {
		width, height int
		want          int
	}{
		{1, 1, 0},
		{2, 1, 1},
		{3, 3, 2},
		{256, 256, 8},
		{257, 10, 9},
		{600, 300, 10},
		{1024, 4096, 12},
	}
	for _, c := range cases {
		if got := MaxLevel(c.width, c.height); got != c.want {
			t.Errorf("MaxLevel(%d, %d) = %d, want %d", c.width, c.height, got, c.want)
		}
	}
}

func TestLevels(t *testing.T) {
	layout := DefaultLayout()

	t.Run("full pyramid down to one pixel", func(t *testing.T) {
		levels := layout.Levels(600, 300)
		if len(levels) != 11 {
			t.Fatalf("expected 11 levels, got %d", len(levels))
		}
		root := levels[0]
		if root.Width != 1 || root.Height != 1 || root.Columns != 1 || root.Rows != 1 {
			t.Errorf("level 0 must be a single 1x1 tile, got %+v", root)
		}
		top := levels[len(levels)-1]
		if top.Width != 600 || top.Height != 300 {
			t.Errorf("top level must be full resolution, got %dx%d", top.Width, top.Height)
		}
		if top.Columns != 3 || top.Rows != 2 {
			t.Errorf("expected 3x2 tiles at full resolution, got %dx%d", top.Columns, top.Rows)
		}
	})

	t.Run("dimensions round up", func(t *testing.T) {
		// 1000x999: level 9 is 500x500, level 8 is 250x250, level 7 is 125x125
		want := map[int][2]int{10: {1000, 999}, 9: {500, 500}, 8: {250, 250}, 7: {125, 125}, 1: {2, 2}}
		for index, dims := range want {
			level := layout.Level(1000, 999, index)
			if level.Width != dims[0] || level.Height != dims[1] {
				t.Errorf("level %d: got %dx%d, want %dx%d", index, level.Width, level.Height, dims[0], dims[1])
			}
		}
	})
}

func TestTileBounds(t *testing.T) {
	layout := DefaultLayout()
	level := layout.Level(600, 300, MaxLevel(600, 300))

	cases := []struct {
		col, row int
		want     image.Rectangle
	}{
		{0, 0, image.Rect(0, 0, 257, 257)},
		{1, 0, image.Rect(255, 0, 513, 257)},
		{2, 0, image.Rect(511, 0, 600, 257)},
		{0, 1, image.Rect(0, 255, 257, 300)},
		{2, 1, image.Rect(511, 255, 600, 300)},
	}
	for _, c := range cases {
		if got := layout.TileBounds(level, c.col, c.row); got != c.want {
			t.Errorf("TileBounds(%d, %d) = %v, want %v", c.col, c.row, got, c.want)
		}
	}

	single := layout.Level(600, 300, 0)
	if got := layout.TileBounds(single, 0, 0); got != image.Rect(0, 0, 1, 1) {
		t.Errorf("root tile bounds = %v, want 1x1", got)
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := DefaultLayout().Validate(); err != nil {
		t.Fatalf("default layout rejected: %v", err)
	}

	bad := []Layout{
		{TileSize: 0, Overlap: 0, Format: "jpg", Quality: 85},
		{TileSize: 256, Overlap: 256, Format: "jpg", Quality: 85},
		{TileSize: 256, Overlap: -1, Format: "jpg", Quality: 85},
		{TileSize: 256, Overlap: 1, Format: "jpg", Quality: 0},
		{TileSize: 256, Overlap: 1, Format: "tiff", Quality: 85},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Errorf("expected error for layout %+v", l)
		}
	}
}

func TestTileName(t *testing.T) {
	if got := DefaultLayout().TileName(3, 7); got != "3_7.jpg" {
		t.Errorf("TileName = %q, want 3_7.jpg", got)
	}
}
