package converter

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"tiff2dzi/deepzoom"

	"github.com/sirupsen/logrus"
)

func init() {
	registerEngine("vips-cli", newVipsCLIEngine)
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// vipsCLIEngine drives the libvips command-line tools, for hosts that have
// libvips installed but a binary built without cgo.
type vipsCLIEngine struct {
	run     commandRunner
	workers int
	log     logrus.FieldLogger
}

type vipsCLIImage struct {
	path   string
	width  int
	height int
	engine *vipsCLIEngine
}

func newVipsCLIEngine(opts EngineOptions) (Engine, error) {
	return &vipsCLIEngine{
		run:     execRunner,
		workers: max(opts.Workers, 1),
		log:     opts.Log,
	}, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (e *vipsCLIEngine) Name() string {
	return "vips-cli"
}

func (e *vipsCLIEngine) Load(path string) (SourceImage, error) {
	width, err := e.header(path, "width")
	if err != nil {
		return nil, err
	}
	height, err := e.header(path, "height")
	if err != nil {
		return nil, err
	}
	return &vipsCLIImage{path: path, width: width, height: height, engine: e}, nil
}

func (e *vipsCLIEngine) header(path, field string) (int, error) {
	out, err := e.run(context.Background(), "vipsheader", "-f", field, path)
	if err != nil {
		return 0, fmt.Errorf("error reading image header: %w", err)
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected %s %q: %w", field, strings.TrimSpace(string(out)), err)
	}
	return value, nil
}

func (v *vipsCLIImage) Width() int {
	return v.width
}

func (v *vipsCLIImage) Height() int {
	return v.height
}

func (v *vipsCLIImage) DeepZoom(ctx context.Context, base string, layout deepzoom.Layout) (int, error) {
	if err := layout.Validate(); err != nil {
		return 0, err
	}
	args := []string{
		"dzsave", v.path, base,
		"--tile-size=" + strconv.Itoa(layout.TileSize),
		"--overlap=" + strconv.Itoa(layout.Overlap),
		"--depth=onepixel",
		fmt.Sprintf("--suffix=.%s[Q=%d]", layout.Format, layout.Quality),
		"--vips-concurrency=" + strconv.Itoa(v.engine.workers),
	}
	if _, err := v.engine.run(ctx, "vips", args...); err != nil {
		return 0, err
	}
	v.engine.log.WithField("base", base).Debug("dzsave_complete")
	return deepzoom.NumLevels(v.width, v.height), nil
}

func (v *vipsCLIImage) Thumbnail(path string, size int) error {
	_, err := v.engine.run(context.Background(), "vips",
		"thumbnail", v.path, path, strconv.Itoa(size),
		"--height="+strconv.Itoa(size),
		"--crop=centre",
	)
	return err
}

func (v *vipsCLIImage) Close() error {
	return nil
}
