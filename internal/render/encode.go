package render

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// WebPQuality is the lossy quality used for thumbnails.
const WebPQuality = 85

// WebP encodes img as lossy WebP at WebPQuality.
func WebP(img image.Image) ([]byte, error) {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, WebPQuality)
	if err != nil {
		return nil, &Error{Op: "webp options", Err: err}
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, &Error{Op: "encode webp", Err: err}
	}

	return buf.Bytes(), nil
}

// PNG encodes img as PNG.
func PNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, &Error{Op: "encode png", Err: err}
	}

	return buf.Bytes(), nil
}
