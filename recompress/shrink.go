package recompress

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ErrCodec marks a failure to decode, resample or encode an image.
var ErrCodec = errors.New("codec failure")

func codecError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
}

// ShouldShrink reports whether an image at dpi exceeds threshold. An
// image exactly at the threshold is left alone.
func ShouldShrink(dpi, threshold float64) bool {
	return dpi > threshold
}

// NewDimensions scales width and height from dpi to target, rounding down
// and keeping at least one pixel each way.
func NewDimensions(width, height int, dpi, target float64) (int, int) {
	w := int(math.Floor(float64(width) * target / dpi))
	h := int(math.Floor(float64(height) * target / dpi))
	return max(w, 1), max(h, 1)
}

// Resizer resamples an image to new pixel dimensions.
type Resizer interface {
	Resize(src image.Image, width, height int) (image.Image, error)
}

// boxKernel weighs every source pixel under the destination pixel
// equally. The scaler widens the support by the downsampling factor.
var boxKernel = &draw.Kernel{
	Support: 0.5,
	At:      func(float64) float64 { return 1 },
}

// AreaAverage resamples by averaging the source pixels that each
// destination pixel covers. Gray sources produce *image.Gray, everything
// else *image.RGBA.
type AreaAverage struct{}

// Resize implements Resizer.
func (AreaAverage) Resize(src image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if src.Bounds().Empty() {
		return nil, errors.New("empty source image")
	}
	r := image.Rect(0, 0, width, height)
	var dst draw.Image
	if isGray(src) {
		dst = image.NewGray(r)
	} else {
		dst = image.NewRGBA(r)
	}
	boxKernel.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func isGray(img image.Image) bool {
	m := img.ColorModel()
	return m == color.GrayModel || m == color.Gray16Model
}
