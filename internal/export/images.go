package export

import (
	"image"
	"image/png"
	"os"

	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-vat/pkg/exr"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

func writeFloatEXR(path string, img *vat.FloatImage, half bool) error {
	if img == nil {
		return errors.New("no image data")
	}
	pt := exr.Float
	if half {
		pt = exr.Half
	}
	return createFile(path, func(f *os.File) error {
		return errors.Wrap(exr.Encode(f, img.Width, img.Height, img.Pix, pt), "encoding EXR")
	})
}

func writePNG(path string, img image.Image) error {
	return createFile(path, func(f *os.File) error {
		return errors.Wrap(png.Encode(f, img), "encoding PNG")
	})
}
