//go:build vips
// +build vips

package converter

import (
	"context"
	"fmt"
	"os"
	"sync"

	"tiff2dzi/deepzoom"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/sirupsen/logrus"
)

var vipsStartup sync.Once

func init() {
	registerEngine("vips", newVipsEngine)
}

type vipsEngine struct {
	workers int
	log     logrus.FieldLogger
}

type vipsImage struct {
	ref    *vips.ImageRef
	engine *vipsEngine
}

func newVipsEngine(opts EngineOptions) (Engine, error) {
	log := opts.Log
	vipsStartup.Do(func() {
		vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
			log.WithField("domain", domain).Debug(msg)
		}, vips.LogLevelWarning)
		vips.Startup(&vips.Config{ConcurrencyLevel: max(opts.Workers, 1)})
	})
	return &vipsEngine{
		workers: max(opts.Workers, 1),
		log:     log,
	}, nil
}

func (e *vipsEngine) Name() string {
	return "vips"
}

func (e *vipsEngine) Load(path string) (SourceImage, error) {
	ref, err := vips.NewImageFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading image: %w", err)
	}
	return &vipsImage{ref: ref, engine: e}, nil
}

func (v *vipsImage) Width() int {
	return v.ref.Width()
}

func (v *vipsImage) Height() int {
	return v.ref.Height()
}

// DeepZoom hands the decoded pixels to the shared pyramid writer so both
// engines produce the same tile tree.
func (v *vipsImage) DeepZoom(ctx context.Context, base string, layout deepzoom.Layout) (int, error) {
	img, err := v.ref.ToImage(&vips.ExportParams{Format: vips.ImageTypePNG})
	if err != nil {
		return 0, fmt.Errorf("error exporting pixels: %w", err)
	}
	layout.Workers = v.engine.workers
	return deepzoom.NewPyramid(layout, v.engine.log).Write(ctx, img, base)
}

func (v *vipsImage) Thumbnail(path string, size int) error {
	thumb, err := v.ref.Copy()
	if err != nil {
		return fmt.Errorf("error copying image: %w", err)
	}
	defer thumb.Close()

	if err := thumb.Thumbnail(size, size, vips.InterestingCentre); err != nil {
		return fmt.Errorf("error creating thumbnail: %w", err)
	}
	params := vips.NewJpegExportParams()
	params.Quality = ThumbnailQuality
	buf, _, err := thumb.ExportJpeg(params)
	if err != nil {
		return fmt.Errorf("error encoding thumbnail: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("error writing thumbnail: %w", err)
	}
	return nil
}

func (v *vipsImage) Close() error {
	v.ref.Close()
	return nil
}
