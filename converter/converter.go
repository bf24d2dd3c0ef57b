package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"tiff2dzi/contracts"
	"tiff2dzi/deepzoom"
	"tiff2dzi/files_manager"
	"tiff2dzi/utils"

	"github.com/sirupsen/logrus"
)

type ConversionRequest = contracts.ConversionRequest
type ConvertResult = contracts.ConvertResult

// Journal records the lifecycle of each conversion. Failures to record never
// affect the conversion itself.
type Journal interface {
	Begin(request ConversionRequest, baseName string, engine string) (string, error)
	Finish(id string, result *ConvertResult, err error) error
}

type Publisher interface {
	Destination(baseName string) string
	Publish(ctx context.Context, outputs contracts.OutputPaths) (int, error)
}

type Converter struct {
	Engine    Engine
	Layout    deepzoom.Layout
	Out       io.Writer
	Log       logrus.FieldLogger
	Journal   Journal
	Publisher Publisher
	// Resolution reports the recorded DPI of the input, if any.
	Resolution func(path string) (float64, float64, error)
}

var _ contracts.Converter = (*Converter)(nil)

func New(engine Engine, out io.Writer, log logrus.FieldLogger) *Converter {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{
		Engine:     engine,
		Layout:     deepzoom.DefaultLayout(),
		Out:        out,
		Log:        log,
		Resolution: utils.GetTIFFDPI,
	}
}

// Run converts and collapses every failure into one printed line. It reports
// whether the conversion succeeded.
func (c *Converter) Run(ctx context.Context, request ConversionRequest) bool {
	if _, err := c.Convert(ctx, request); err != nil {
		var failure *contracts.ConversionFailure
		if errors.As(err, &failure) {
			c.Log.WithFields(logrus.Fields{
				"input": request.InputPath,
				"stage": failure.Stage,
			}).Debug("conversion_failed")
			err = failure.Err
		}
		c.printf("✗ Error: %v\n", err)
		return false
	}
	return true
}

// Convert produces <output_dir>/<base_name>.dzi, <base_name>_files/ and
// <base_name>-thumb.jpg. Errors are *contracts.ConversionFailure. Partial
// output is left in place on failure.
func (c *Converter) Convert(ctx context.Context, request ConversionRequest) (*ConvertResult, error) {
	if request.OutputDir == "" {
		request.OutputDir = contracts.DefaultOutputDir
	}
	baseName := files_manager.BaseName(request.InputPath)

	runID := c.begin(request, baseName)
	result, err := c.convert(ctx, request, baseName)
	c.finish(runID, result, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Converter) convert(ctx context.Context, request ConversionRequest, baseName string) (*ConvertResult, error) {
	if err := files_manager.EnsureOutputDir(request.OutputDir); err != nil {
		return nil, contracts.Fail(contracts.StagePrepare, err)
	}
	paths := files_manager.OutputPathsFor(request.OutputDir, baseName)
	result := &ConvertResult{
		BaseName: baseName,
		Engine:   c.Engine.Name(),
		Outputs:  paths,
	}

	c.printf("Loading image: %s\n", request.InputPath)
	img, err := c.Engine.Load(request.InputPath)
	if err != nil {
		return result, contracts.Fail(contracts.StageDecode, err)
	}
	defer img.Close()

	result.PixelWidth = img.Width()
	result.PixelHeight = img.Height()
	c.printf("Image size: %d x %d\n", result.PixelWidth, result.PixelHeight)
	c.printResolution(request.InputPath)

	c.printf("Converting to DZI format...\n")
	levels, err := img.DeepZoom(ctx, paths.Base, c.Layout)
	if err != nil {
		return result, contracts.Fail(contracts.StageDeepZoom, err)
	}
	result.Levels = levels
	c.printf("✓ Conversion complete!\n")
	c.printf("  DZI file: %s\n", paths.Descriptor)
	c.printf("  Tiles folder: %s/\n", paths.TilesDir)

	c.printf("Generating thumbnail...\n")
	if err := img.Thumbnail(paths.Thumbnail, ThumbnailSize); err != nil {
		return result, contracts.Fail(contracts.StageThumbnail, err)
	}
	c.printf("  Thumbnail: %s\n", paths.Thumbnail)

	if c.Publisher != nil {
		c.printf("Publishing to %s...\n", c.Publisher.Destination(baseName))
		uploaded, err := c.Publisher.Publish(ctx, paths)
		result.Uploaded = uploaded
		if err != nil {
			return result, contracts.Fail(contracts.StagePublish, err)
		}
		c.printf("  Uploaded %d objects\n", uploaded)
	}

	return result, nil
}

func (c *Converter) printResolution(path string) {
	if c.Resolution == nil {
		return
	}
	dpiX, dpiY, err := c.Resolution(path)
	if err != nil {
		c.Log.WithField("error", err).Debug("resolution_unavailable")
		return
	}
	c.printf("Resolution: %.0f x %.0f dpi\n", dpiX, dpiY)
}

func (c *Converter) begin(request ConversionRequest, baseName string) string {
	if c.Journal == nil {
		return ""
	}
	id, err := c.Journal.Begin(request, baseName, c.Engine.Name())
	if err != nil {
		c.Log.WithField("error", err).Warn("journal_begin_failed")
		return ""
	}
	return id
}

func (c *Converter) finish(id string, result *ConvertResult, err error) {
	if c.Journal == nil || id == "" {
		return
	}
	if jerr := c.Journal.Finish(id, result, err); jerr != nil {
		c.Log.WithFields(logrus.Fields{"run_id": id, "error": jerr}).Warn("journal_finish_failed")
	}
}

func (c *Converter) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}
