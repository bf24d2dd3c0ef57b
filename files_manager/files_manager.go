package files_manager

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tiff2dzi/contracts"
)

type OutputPaths = contracts.OutputPaths

// BaseName strips the final extension from the file name. A name that is only
// an extension (".hidden") is kept whole.
func BaseName(inputPath string) string {
	name := filepath.Base(inputPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		return name
	}
	return base
}

func OutputPathsFor(outputDir string, baseName string) OutputPaths {
	base := filepath.Join(outputDir, baseName)
	return OutputPaths{
		OutputDir:  outputDir,
		Base:       base,
		Descriptor: base + ".dzi",
		TilesDir:   base + "_files",
		Thumbnail:  filepath.Join(outputDir, baseName+"-thumb.jpg"),
	}
}

func CheckInputFile(inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("input path required")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("File not found: %s", inputPath)
	}
	return nil
}

func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// ListArtifacts returns the descriptor, every tile below the tiles folder and
// the thumbnail, skipping whichever of them does not exist.
func ListArtifacts(paths OutputPaths) ([]string, error) {
	var files []string
	if isFile(paths.Descriptor) {
		files = append(files, paths.Descriptor)
	}

	tiles, err := GetTilePaths(paths.TilesDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	files = append(files, tiles...)

	if isFile(paths.Thumbnail) {
		files = append(files, paths.Thumbnail)
	}
	return files, nil
}

func GetTilePaths(tilesDir string) ([]string, error) {
	if _, err := os.Stat(tilesDir); err != nil {
		return nil, err
	}
	var tiles []string
	err := filepath.WalkDir(tilesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "._") {
			return nil
		}
		tiles = append(tiles, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error while scanning tiles folder: %w", err)
	}
	sort.Strings(tiles)
	return tiles, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
