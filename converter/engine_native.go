package converter

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	_ "image/gif"
	_ "image/png"

	"tiff2dzi/deepzoom"

	"github.com/disintegration/gift"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func init() {
	registerEngine("native", newNativeEngine)
}

type nativeEngine struct {
	workers int
	log     logrus.FieldLogger
}

type nativeImage struct {
	img    image.Image
	engine *nativeEngine
}

func newNativeEngine(opts EngineOptions) (Engine, error) {
	return &nativeEngine{
		workers: max(opts.Workers, 1),
		log:     opts.Log,
	}, nil
}

func (e *nativeEngine) Name() string {
	return "native"
}

func (e *nativeEngine) Load(path string) (SourceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}
	e.log.WithFields(logrus.Fields{"path": path, "format": format}).Debug("image_decoded")
	return &nativeImage{img: img, engine: e}, nil
}

func (n *nativeImage) Width() int {
	return n.img.Bounds().Dx()
}

func (n *nativeImage) Height() int {
	return n.img.Bounds().Dy()
}

func (n *nativeImage) DeepZoom(ctx context.Context, base string, layout deepzoom.Layout) (int, error) {
	layout.Workers = n.engine.workers
	return deepzoom.NewPyramid(layout, n.engine.log).Write(ctx, n.img, base)
}

func (n *nativeImage) Thumbnail(path string, size int) error {
	g := gift.New(gift.ResizeToFill(size, size, gift.LanczosResampling, gift.CenterAnchor))
	dst := image.NewRGBA(g.Bounds(n.img.Bounds()))
	g.Draw(dst, n.img)
	return writeJPEG(path, deepzoom.Flatten(dst), ThumbnailQuality)
}

func (n *nativeImage) Close() error {
	n.img = nil
	return nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := jpeg.Encode(bw, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return f.Close()
}
