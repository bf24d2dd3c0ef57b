package deepzoom

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

type Pyramid struct {
	Layout Layout
	Log    logrus.FieldLogger
}

type tileTask struct {
	path   string
	bounds image.Rectangle
}

func NewPyramid(layout Layout, log logrus.FieldLogger) *Pyramid {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pyramid{Layout: layout, Log: log}
}

// Write renders img as <base>_files/<level>/<col>_<row>.<format> for every
// level from full resolution down to 1x1, then writes <base>.dzi. It returns
// the number of levels written.
func (p *Pyramid) Write(ctx context.Context, img image.Image, base string) (int, error) {
	if err := p.Layout.Validate(); err != nil {
		return 0, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	tilesDir := base + "_files"
	if err := os.MkdirAll(tilesDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create tiles folder: %w", err)
	}

	maxLevel := MaxLevel(width, height)
	current := Flatten(img)

	for index := maxLevel; index >= 0; index-- {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		level := p.Layout.Level(width, height, index)
		if index < maxLevel {
			current = halve(current, level.Width, level.Height)
		}
		if err := p.writeLevel(current, level, filepath.Join(tilesDir, strconv.Itoa(index))); err != nil {
			return 0, fmt.Errorf("level %d: %w", index, err)
		}
		p.Log.WithFields(logrus.Fields{
			"level":   index,
			"width":   level.Width,
			"height":  level.Height,
			"columns": level.Columns,
			"rows":    level.Rows,
		}).Debug("level_written")
	}

	if err := NewDescriptor(p.Layout, width, height).WriteFile(base + ".dzi"); err != nil {
		return 0, err
	}
	return maxLevel + 1, nil
}

func (p *Pyramid) writeLevel(img *image.RGBA, level Level, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create level folder: %w", err)
	}

	taskChan := make(chan tileTask)
	errChan := make(chan error, 1)
	wg := &sync.WaitGroup{}

	numWorkers := max(p.Layout.Workers, 1)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go p.tileWorker(img, taskChan, errChan, wg)
	}

	for row := 0; row < level.Rows; row++ {
		for col := 0; col < level.Columns; col++ {
			taskChan <- tileTask{
				path:   filepath.Join(dir, p.Layout.TileName(col, row)),
				bounds: p.Layout.TileBounds(level, col, row),
			}
		}
	}
	close(taskChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// tileWorker keeps draining taskChan after a failure so the producer never
// blocks; only the first error is kept.
func (p *Pyramid) tileWorker(img *image.RGBA, taskChan <-chan tileTask, errChan chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	failed := false
	for task := range taskChan {
		if failed {
			continue
		}
		if err := encodeJPEG(task.path, img.SubImage(task.bounds), p.Layout.Quality); err != nil {
			failed = true
			select {
			case errChan <- err:
			default:
			}
		}
	}
}

func encodeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating tile %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := jpeg.Encode(bw, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("error encoding tile %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("error writing tile %s: %w", path, err)
	}
	return f.Close()
}

// Flatten copies img onto an opaque white canvas anchored at (0, 0). JPEG has
// no alpha channel.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func halve(src *image.RGBA, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
