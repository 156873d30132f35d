package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/render"
	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

const (
	OgWidth  = 1200
	OgHeight = 630

	ogArtMaxW    = 450
	ogArtMaxH    = 500
	ogArtCenterX = 900
	ogArtCenterY = 315

	ogTextX        = 80
	ogFirstLineY   = 280
	ogLineHeight   = 60
	ogSubtitleGap  = 20
	ogTitleSize    = 52
	ogSubtitleSize = 28

	titleLineLimit = 22
	titleMaxLines  = 3
)

var errNoArt = errors.New("no art supplied")

// OgInput is the source of an OG image. The art comes from SVG when set,
// otherwise from an already rendered raster thumbnail.
type OgInput struct {
	Title         string
	SVG           string
	Thumbnail     []byte
	ThumbnailMIME string
}

// OgImage renders the 1200×630 social preview as PNG. Art failures are
// logged and the image is produced with background and text only.
func (p *Processor) OgImage(ctx context.Context, in OgInput) ([]byte, error) {
	canvas := p.ogBackground(ctx)

	art, err := ogArt(in)
	switch {
	case err == nil:
		pos := image.Pt(ogArtCenterX-art.Bounds().Dx()/2, ogArtCenterY-art.Bounds().Dy()/2)
		canvas = imaging.Overlay(canvas, art, pos, 1.0)
	case errors.Is(err, errNoArt):
	default:
		zlog.Logger.Warn().Err(err).Msg("og image art layer skipped")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(canvas)
	if err := p.drawOgText(dc, in.Title); err != nil {
		return nil, err
	}

	return render.PNG(dc.Image())
}

// ogBackground returns the template background scaled to the canvas, or a
// white canvas when there is none.
func (p *Processor) ogBackground(ctx context.Context) *image.NRGBA {
	data, found, err := p.loadTemplate(ctx, p.names.OgBackground)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("og background template unavailable")
	}
	if !found {
		return imaging.New(OgWidth, OgHeight, color.White)
	}

	bg, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("og background template is not an image")
		return imaging.New(OgWidth, OgHeight, color.White)
	}

	return imaging.Fill(bg, OgWidth, OgHeight, imaging.Center, imaging.Lanczos)
}

// ogArt produces the art layer contain-fit into 450×500 and flattened on
// white.
func ogArt(in OgInput) (*image.NRGBA, error) {
	if in.SVG != "" {
		clean, err := svg.Sanitize(in.SVG)
		if err != nil {
			return nil, err
		}
		return render.Rasterize(clean, ogArtMaxW, ogArtMaxH)
	}

	if len(in.Thumbnail) == 0 {
		return nil, errNoArt
	}

	src, err := decodeRaster(in.Thumbnail, in.ThumbnailMIME)
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}

	w, h := render.Contain(float64(src.Bounds().Dx()), float64(src.Bounds().Dy()), ogArtMaxW, ogArtMaxH)
	resized := imaging.Resize(src, w, h, imaging.Lanczos)

	return imaging.Overlay(imaging.New(w, h, color.White), resized, image.Pt(0, 0), 1.0), nil
}

func decodeRaster(data []byte, mime string) (image.Image, error) {
	if mime == "image/webp" || isWebP(data) {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	return imaging.Decode(bytes.NewReader(data))
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

func (p *Processor) drawOgText(dc *gg.Context, title string) error {
	lines := WrapTitle(title)

	face, err := render.Face(render.Bold, ogTitleSize)
	if err != nil {
		return err
	}
	defer face.Close()

	dc.SetColor(color.Black)
	dc.SetFontFace(face)

	y := float64(ogFirstLineY)
	for i, line := range lines {
		y = float64(ogFirstLineY + i*ogLineHeight)
		dc.DrawString(line, ogTextX, y)
	}

	sub, err := render.Face(render.Regular, ogSubtitleSize)
	if err != nil {
		return err
	}
	defer sub.Close()

	dc.SetFontFace(sub)
	dc.SetColor(color.Gray{Y: 0x55})
	dc.DrawStringAnchored(p.brand.Subtitle, ogTextX, y+ogSubtitleGap, 0, 1)

	return nil
}

// WrapTitle greedily wraps title into at most three lines, appending a
// word while the line stays under 22 characters. When the wrap fills all
// three lines the last one is cut by three characters and ends in "...".
func WrapTitle(title string) []string {
	var lines []string
	line := ""

	for _, word := range strings.Fields(title) {
		switch {
		case line == "":
			line = word
		case utf8.RuneCountInString(line+" "+word) < titleLineLimit:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}

	if len(lines) < titleMaxLines {
		return lines
	}

	lines = lines[:titleMaxLines]
	last := []rune(lines[titleMaxLines-1])
	if len(last) > 3 {
		last = last[:len(last)-3]
	} else {
		last = nil
	}
	lines[titleMaxLines-1] = strings.TrimRight(string(last), " ") + "..."

	return lines
}
