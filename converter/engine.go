package converter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tiff2dzi/deepzoom"

	"github.com/sirupsen/logrus"
)

const (
	DefaultEngine    = "native"
	ThumbnailSize    = 300
	ThumbnailQuality = 75
)

// Engine decodes images. Everything else is done through the SourceImage it
// returns.
type Engine interface {
	Name() string
	Load(path string) (SourceImage, error)
}

type SourceImage interface {
	Width() int
	Height() int
	// DeepZoom writes <base>.dzi and <base>_files/ and returns the level count.
	DeepZoom(ctx context.Context, base string, layout deepzoom.Layout) (int, error)
	// Thumbnail scales the image to fill a size x size box, crops the centre
	// and writes it as JPEG.
	Thumbnail(path string, size int) error
	Close() error
}

type EngineOptions struct {
	Workers int
	Log     logrus.FieldLogger
}

type EngineFactory func(opts EngineOptions) (Engine, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{}
)

func registerEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

func NewEngine(name string, opts EngineOptions) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	enginesMu.RLock()
	factory, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %s)", name, strings.Join(Engines(), ", "))
	}
	return factory(opts)
}

// Engines lists the engines compiled into this binary.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
