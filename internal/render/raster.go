// Package render wraps the rendering backends used by the derivative
// generators: an SVG rasterizer for pixel output and a vector path writer
// for PDF output.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

// Error reports a failure inside a rendering backend.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "render: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Contain returns the largest size with the aspect ratio of w×h that fits
// inside maxW×maxH.
func Contain(w, h float64, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}

	scale := math.Min(float64(maxW)/w, float64(maxH)/h)
	fw := int(math.Round(w * scale))
	fh := int(math.Round(h * scale))

	return max(fw, 1), max(fh, 1)
}

// Rasterize draws markup contain-fit into maxW×maxH and flattens it onto
// white. The returned image has the fitted size, not maxW×maxH.
func Rasterize(markup string, maxW, maxH int) (img *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, &Error{Op: "rasterize", Err: fmt.Errorf("%v", r)}
		}
	}()

	prepared, err := prepare(markup)
	if err != nil {
		return nil, &Error{Op: "parse svg", Err: err}
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(prepared), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, &Error{Op: "parse svg", Err: err}
	}

	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = svg.Dimensions(markup)
	}

	w, h := Contain(icon.ViewBox.W, icon.ViewBox.H, maxW, maxH)
	icon.SetTarget(0, 0, float64(w), float64(h))

	img = imaging.New(w, h, color.White)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	return img, nil
}
