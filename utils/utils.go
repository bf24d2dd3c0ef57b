package utils

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

const resolutionUnitCentimeter = 3

// GetTIFFDPI reads XResolution/YResolution from the root IFD and converts
// centimetre units to inches. It fails when either tag is absent.
func GetTIFFDPI(filePath string) (float64, float64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	rawExif, err := exif.SearchAndExtractExifWithReader(f)
	if err != nil {
		return 0, 0, fmt.Errorf("EXIF not found: %w", err)
	}

	im := exifcommon.NewIfdMapping()
	ti := exif.NewTagIndex()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 0, 0, err
	}

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return 0, 0, err
	}

	dpiX, okX := rationalTag(index.RootIfd, "XResolution")
	dpiY, okY := rationalTag(index.RootIfd, "YResolution")
	if !okX || !okY {
		return 0, 0, fmt.Errorf("resolution tags not found")
	}

	if tag, err := index.RootIfd.FindTagWithName("ResolutionUnit"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if units, ok := val.([]uint16); ok && len(units) > 0 && units[0] == resolutionUnitCentimeter {
				dpiX *= 2.54
				dpiY *= 2.54
			}
		}
	}

	return dpiX, dpiY, nil
}

func rationalTag(ifd *exif.Ifd, name string) (float64, bool) {
	tag, err := ifd.FindTagWithName(name)
	if err != nil || len(tag) == 0 {
		return 0, false
	}
	val, err := tag[0].Value()
	if err != nil {
		return 0, false
	}
	rats, ok := val.([]exifcommon.Rational)
	if !ok || len(rats) == 0 || rats[0].Denominator == 0 {
		return 0, false
	}
	return float64(rats[0].Numerator) / float64(rats[0].Denominator), true
}
