package contracts

import "context"

const DefaultOutputDir = "dzi-images"

type Converter interface {
	Convert(ctx context.Context, request ConversionRequest) (*ConvertResult, error)
}

type ConversionRequest struct {
	InputPath string
	OutputDir string
}

type ConvertResult struct {
	BaseName    string
	Engine      string
	Outputs     OutputPaths
	PixelWidth  int
	PixelHeight int
	Levels      int
	Uploaded    int
}

// OutputPaths names every artifact a conversion of one base name produces.
type OutputPaths struct {
	OutputDir  string
	Base       string // <output_dir>/<base_name>
	Descriptor string // <base>.dzi
	TilesDir   string // <base>_files
	Thumbnail  string // <output_dir>/<base_name>-thumb.jpg
}
