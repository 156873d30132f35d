package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/render"
	"github.com/aliskhannn/asset-derivatives/internal/storage/file"
	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

// DefaultThumbnailSize is the edge of the square art area of a thumbnail.
const DefaultThumbnailSize = 600

// bannerRatio is the banner height relative to the thumbnail size.
const bannerRatio = 0.083

// templates defines the interface for reading static template layers
// (e.g., local FS, MinIO). A missing layer is reported as
// file.ErrTemplateNotFound.
type templates interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// Processor renders the derivatives of an asset: thumbnail, OG image
// and print PDF. It holds no per-job state and is safe for concurrent use.
type Processor struct {
	templates templates
	brand     config.Brand
	names     config.Templates
	now       func() time.Time
}

// New creates a new Processor with the given template source.
func New(t templates, brand config.Brand, names config.Templates) *Processor {
	return &Processor{
		templates: t,
		brand:     brand,
		names:     names,
		now:       time.Now,
	}
}

// Thumbnail renders svgContent contain-fit into a size×size square on
// white with a brand banner underneath and encodes it as WebP.
func (p *Processor) Thumbnail(ctx context.Context, svgContent, assetID string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}

	clean, err := svg.Sanitize(svgContent)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art, err := render.Rasterize(clean, size, size)
	if err != nil {
		return nil, fmt.Errorf("rasterize thumbnail: %w", err)
	}

	bannerHeight := BannerHeight(size)

	canvas := imaging.New(size, size+bannerHeight, color.White)
	offset := image.Pt((size-art.Bounds().Dx())/2, (size-art.Bounds().Dy())/2)
	canvas = imaging.Paste(canvas, art, offset)

	dc := gg.NewContextForImage(canvas)
	if err := p.drawBanner(dc, size, bannerHeight, assetID); err != nil {
		return nil, err
	}

	return render.WebP(dc.Image())
}

// BannerHeight returns the height of the thumbnail banner for size.
func BannerHeight(size int) int {
	return int(math.Round(float64(size) * bannerRatio))
}

// drawBanner fills the strip below the art with the site name, display
// id, copyright line and low-res notice.
func (p *Processor) drawBanner(dc *gg.Context, size, height int, assetID string) error {
	top := float64(size)
	h := float64(height)
	pad := math.Max(2, h*0.12)

	dc.SetColor(color.Black)
	dc.DrawRectangle(0, top, float64(size), h)
	dc.Fill()

	dc.SetColor(color.White)

	title, err := render.Face(render.Bold, h*0.28)
	if err != nil {
		return err
	}
	defer title.Close()

	dc.SetFontFace(title)
	dc.DrawStringAnchored(p.brand.SiteName, pad, top+pad, 0, 1)
	dc.DrawStringAnchored(DisplayID(assetID), float64(size)-pad, top+pad, 1, 1)

	small, err := render.Face(render.Regular, h*0.22)
	if err != nil {
		return err
	}
	defer small.Close()

	dc.SetFontFace(small)
	copyright := p.copyright()
	dc.DrawStringAnchored(copyright, pad, top+h-pad, 0, 0)
	cw, _ := dc.MeasureString(copyright)

	notice, err := render.Face(render.Regular, h*0.16)
	if err != nil {
		return err
	}
	defer notice.Close()

	dc.SetFontFace(notice)
	dc.SetColor(color.Gray{Y: 0xb0})
	dc.DrawStringAnchored(p.brand.LowResNotice, pad+cw+pad*2, top+h-pad, 0, 0)

	return nil
}

func (p *Processor) copyright() string {
	return "© " + strconv.Itoa(p.now().Year()) + " " + p.brand.Name
}

// DisplayID returns the human-facing id with its domain prefix stripped,
// e.g. "#00067" for "HP-ANI-00067".
func DisplayID(assetID string) string {
	id := strings.TrimSpace(assetID)
	if id == "" {
		return ""
	}
	if i := strings.LastIndex(id, "-"); i >= 0 {
		id = id[i+1:]
	}

	return "#" + id
}

// loadTemplate reads a template layer. found is false when the layer is
// not configured or does not exist.
func (p *Processor) loadTemplate(ctx context.Context, name string) (data []byte, found bool, err error) {
	if name == "" || p.templates == nil {
		return nil, false, nil
	}

	data, err = p.templates.Load(ctx, name)
	if errors.Is(err, file.ErrTemplateNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}
