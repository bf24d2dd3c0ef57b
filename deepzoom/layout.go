package deepzoom

import (
	"fmt"
	"image"
	"strings"
)

const (
	DefaultTileSize = 256
	DefaultOverlap  = 1
	DefaultQuality  = 85
	DefaultFormat   = "jpg"
)

// Layout holds the pyramid parameters. Viewers rely on these matching the
// descriptor, so they are fixed for a given output.
type Layout struct {
	TileSize int
	Overlap  int
	Format   string
	Quality  int
	Workers  int
}

type Level struct {
	Index   int
	Width   int
	Height  int
	Columns int
	Rows    int
}

func DefaultLayout() Layout {
	return Layout{
		TileSize: DefaultTileSize,
		Overlap:  DefaultOverlap,
		Format:   DefaultFormat,
		Quality:  DefaultQuality,
		Workers:  1,
	}
}

func (l Layout) Validate() error {
	if l.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", l.TileSize)
	}
	if l.Overlap < 0 || l.Overlap >= l.TileSize {
		return fmt.Errorf("overlap must be in [0, %d), got %d", l.TileSize, l.Overlap)
	}
	if l.Quality < 1 || l.Quality > 100 {
		return fmt.Errorf("quality must be in [1, 100], got %d", l.Quality)
	}
	switch strings.ToLower(l.Format) {
	case "jpg", "jpeg":
	default:
		return fmt.Errorf("unsupported tile format: %q", l.Format)
	}
	return nil
}

// MaxLevel is ceil(log2(max(width, height))): the index of the full
// resolution level when the pyramid runs down to a single pixel.
func MaxLevel(width, height int) int {
	size := max(width, height)
	level := 0
	for (1 << level) < size {
		level++
	}
	return level
}

func NumLevels(width, height int) int {
	return MaxLevel(width, height) + 1
}

func (l Layout) Levels(width, height int) []Level {
	maxLevel := MaxLevel(width, height)
	levels := make([]Level, 0, maxLevel+1)
	for i := 0; i <= maxLevel; i++ {
		levels = append(levels, l.Level(width, height, i))
	}
	return levels
}

// Level returns the geometry of level index for a width x height image.
func (l Layout) Level(width, height, index int) Level {
	shift := MaxLevel(width, height) - index
	w := ceilShift(width, shift)
	h := ceilShift(height, shift)
	return Level{
		Index:   index,
		Width:   w,
		Height:  h,
		Columns: ceilDiv(w, l.TileSize),
		Rows:    ceilDiv(h, l.TileSize),
	}
}

// TileBounds returns the pixel rectangle of tile (col, row) within level,
// including overlap on every edge that has a neighbour.
func (l Layout) TileBounds(level Level, col, row int) image.Rectangle {
	x0 := col * l.TileSize
	y0 := row * l.TileSize
	if col > 0 {
		x0 -= l.Overlap
	}
	if row > 0 {
		y0 -= l.Overlap
	}
	x1 := min(level.Width, (col+1)*l.TileSize+l.Overlap)
	y1 := min(level.Height, (row+1)*l.TileSize+l.Overlap)
	return image.Rect(x0, y0, x1, y1)
}

func (l Layout) TileName(col, row int) string {
	return fmt.Sprintf("%d_%d.%s", col, row, l.Format)
}

func ceilShift(v, shift int) int {
	if shift <= 0 {
		return v
	}
	return (v + (1 << shift) - 1) >> shift
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
