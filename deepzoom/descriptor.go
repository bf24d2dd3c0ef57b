package deepzoom

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

const Namespace = "http://schemas.microsoft.com/deepzoom/2008"

type Descriptor struct {
	XMLName  xml.Name `xml:"Image"`
	Xmlns    string   `xml:"xmlns,attr"`
	Format   string   `xml:"Format,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	TileSize int      `xml:"TileSize,attr"`
	Size     Size     `xml:"Size"`
}

type Size struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

func NewDescriptor(layout Layout, width, height int) Descriptor {
	return Descriptor{
		Xmlns:    Namespace,
		Format:   layout.Format,
		Overlap:  layout.Overlap,
		TileSize: layout.TileSize,
		Size:     Size{Width: width, Height: height},
	}
}

func (d Descriptor) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("error writing descriptor header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("error encoding descriptor: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return nil
}

func (d Descriptor) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating descriptor %s: %w", path, err)
	}
	if err := d.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func DecodeDescriptor(r io.Reader) (Descriptor, error) {
	var d Descriptor
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return Descriptor{}, fmt.Errorf("error decoding descriptor: %w", err)
	}
	if d.TileSize <= 0 || d.Size.Width <= 0 || d.Size.Height <= 0 {
		return Descriptor{}, fmt.Errorf("descriptor is missing tile size or image size")
	}
	return d, nil
}

func ReadDescriptor(path string) (Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("error opening descriptor: %w", err)
	}
	defer f.Close()
	return DecodeDescriptor(f)
}

// Layout recovers the pyramid parameters recorded in the descriptor.
func (d Descriptor) Layout() Layout {
	return Layout{
		TileSize: d.TileSize,
		Overlap:  d.Overlap,
		Format:   d.Format,
		Quality:  DefaultQuality,
		Workers:  1,
	}
}
