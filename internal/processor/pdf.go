package processor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/go-pdf/fpdf"

	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/render"
	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

// A4 page size and print margin in points.
const (
	A4Width   = 595.28
	A4Height  = 841.89
	PDFMargin = 28.35
)

const (
	footerFontSize   = 10
	footerLineHeight = 15
	footerBottom     = 48
)

// PageLayout places the art of page one.
type PageLayout struct {
	Orientation string // "P" or "L"
	Width       float64
	Height      float64
	Scale       float64
	X, Y        float64
}

// Landscape reports whether the page is wider than tall.
func (l PageLayout) Landscape() bool {
	return l.Orientation == "L"
}

// LayoutPage fits w×h art into an A4 page with PDFMargin on every side.
// The page is landscape only when the art is wider than tall.
func LayoutPage(w, h float64) PageLayout {
	l := PageLayout{Orientation: "P", Width: A4Width, Height: A4Height}
	if w > h {
		l.Orientation = "L"
		l.Width, l.Height = A4Height, A4Width
	}

	availW := l.Width - 2*PDFMargin
	availH := l.Height - 2*PDFMargin

	l.Scale = math.Min(availW/w, availH/h)
	l.X = PDFMargin + (availW-w*l.Scale)/2
	l.Y = PDFMargin + (availH-h*l.Scale)/2

	return l
}

// PDF renders the print document: the art as vector paths on page one and,
// when the marketing template exists, a branded marketing page. Any
// failure fails the whole document.
func (p *Processor) PDF(ctx context.Context, svgContent string, asset model.Asset, publicURL string) ([]byte, error) {
	clean, err := svg.Sanitize(svgContent)
	if err != nil {
		return nil, err
	}

	marketing, hasMarketing, err := p.loadTemplate(ctx, p.names.MarketingPage)
	if err != nil {
		return nil, fmt.Errorf("load marketing template: %w", err)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(asset.Title, true)
	pdf.SetAuthor(p.brand.Name, true)
	pdf.SetCreator(p.brand.SiteName, true)
	pdf.SetSubject(DisplayID(asset.AssetID), true)

	layout := LayoutPage(svg.Dimensions(clean))
	pdf.AddPageFormat(layout.Orientation, fpdf.SizeType{Wd: A4Width, Ht: A4Height})

	if err := render.DrawSVG(pdf, clean, layout.X, layout.Y, layout.Scale); err != nil {
		return nil, err
	}

	if hasMarketing {
		if err := p.marketingPage(pdf, marketing, asset, publicURL); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &render.Error{Op: "write pdf", Err: err}
	}

	return buf.Bytes(), nil
}

// marketingPage adds the portrait marketing page: the template full-bleed
// with a centered footer.
func (p *Processor) marketingPage(pdf *fpdf.Fpdf, template []byte, asset model.Asset, publicURL string) error {
	var imageType string
	switch http.DetectContentType(template) {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg":
		imageType = "JPG"
	default:
		return &render.Error{Op: "marketing template", Err: fmt.Errorf("unsupported image type")}
	}

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: A4Width, Ht: A4Height})

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("marketing", opts, bytes.NewReader(template))
	pdf.ImageOptions("marketing", 0, 0, A4Width, A4Height, false, opts, 0, "")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", footerFontSize)
	pdf.SetTextColor(0, 0, 0)

	lines := []string{
		"Questions? " + p.brand.SupportEmail,
		p.copyright(),
		"Asset ID: " + DisplayID(asset.AssetID),
	}
	if p.brand.SupportEmail == "" {
		lines = lines[1:]
	}

	y := A4Height - footerBottom - float64(len(lines))*footerLineHeight
	if publicURL != "" {
		y -= footerLineHeight
	}

	for _, line := range lines {
		text := tr(line)
		pdf.Text((A4Width-pdf.GetStringWidth(text))/2, y, text)
		y += footerLineHeight
	}

	if publicURL != "" {
		text := tr(publicURL)
		w := pdf.GetStringWidth(text)
		x := (A4Width - w) / 2

		pdf.SetTextColor(0, 0, 238)
		pdf.Text(x, y, text)
		pdf.LinkString(x, y-footerFontSize, w, footerFontSize+2, publicURL)
	}

	return pdf.Error()
}
