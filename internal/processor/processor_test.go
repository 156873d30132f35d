package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/storage/file"
	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

const squareArt = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200">` +
	`<rect x="0" y="0" width="200" height="200" fill="#111111"/></svg>`

type memTemplates struct {
	files map[string][]byte
	err   error
}

func (m *memTemplates) Load(_ context.Context, name string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, file.ErrTemplateNotFound)
	}
	return data, nil
}

func newTestProcessor(files map[string][]byte) *Processor {
	return New(&memTemplates{files: files}, config.Brand{
		SiteName:     "printables.example",
		Name:         "Printables",
		SupportEmail: "help@printables.example",
		LowResNotice: "Low-res preview",
		Subtitle:     "Printable Coloring Page",
	}, config.Templates{
		OgBackground:  "og.png",
		MarketingPage: "marketing.png",
	})
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, c), imaging.PNG))
	return buf.Bytes()
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 < 60 && g>>8 < 60 && b>>8 < 60
}

func isLight(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 > 200 && b>>8 > 200
}

func TestWrapTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "three lines with ellipsis",
			title: "A Very Long Title That Should Break Into Three Lines",
			want:  []string{"A Very Long Title", "That Should Break", "Into Three Li..."},
		},
		{
			name:  "short",
			title: "Short Title",
			want:  []string{"Short Title"},
		},
		{
			name:  "two lines",
			title: "Cozy Capybara In A Warm Bath",
			want:  []string{"Cozy Capybara In A", "Warm Bath"},
		},
		{
			name:  "overflow is dropped",
			title: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen",
			want:  []string{"one two three four", "five six seven eight", "nine ten ele..."},
		},
		{
			name:  "empty",
			title: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapTitle(tt.title))
		})
	}
}

func TestWrapTitle_ThirdLineEndsWithEllipsis(t *testing.T) {
	lines := WrapTitle("A Very Long Title That Should Break Into Three Lines")

	require.Len(t, lines, 3)
	assert.Equal(t, "Into Three Li...", lines[2])
	for _, l := range lines[:2] {
		assert.Less(t, len(l), titleLineLimit)
	}

	assert.NotContains(t, strings.Join(WrapTitle("Short Title"), ""), "...")
}

func TestDisplayID(t *testing.T) {
	assert.Equal(t, "#00067", DisplayID("HP-ANI-00067"))
	assert.Equal(t, "#42", DisplayID("42"))
	assert.Equal(t, "", DisplayID(""))
}

func TestBannerHeight(t *testing.T) {
	assert.Equal(t, 50, BannerHeight(600))
	assert.Equal(t, 83, BannerHeight(1000))
}

func TestLayoutPage(t *testing.T) {
	landscape := LayoutPage(1000, 500)
	assert.True(t, landscape.Landscape())
	assert.Equal(t, A4Height, landscape.Width)
	assert.Equal(t, A4Width, landscape.Height)

	portrait := LayoutPage(500, 1000)
	assert.False(t, portrait.Landscape())

	square := LayoutPage(200, 200)
	assert.False(t, square.Landscape())
	assert.InDelta(t, (A4Width-2*PDFMargin)/200, square.Scale, 1e-9)
	assert.InDelta(t, PDFMargin, square.X, 1e-9)
	assert.InDelta(t, PDFMargin+((A4Height-2*PDFMargin)-(A4Width-2*PDFMargin))/2, square.Y, 1e-9)

	// art stays inside the margin box
	for _, l := range []PageLayout{landscape, portrait, square} {
		assert.GreaterOrEqual(t, l.X, PDFMargin-1e-9)
		assert.GreaterOrEqual(t, l.Y, PDFMargin-1e-9)
	}
}

func TestThumbnail_EndToEnd(t *testing.T) {
	p := newTestProcessor(nil)

	data, err := p.Thumbnail(context.Background(), squareArt, "HP-ANI-00067", 0)
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 600, 650), img.Bounds())
	assert.True(t, isDark(img.At(300, 300)), "art should be black ink")
	assert.True(t, isDark(img.At(300, 602)), "banner strip should be dark")
}

func TestThumbnail_ContainFitOnWhite(t *testing.T) {
	p := newTestProcessor(nil)

	wide := `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="100">` +
		`<rect width="400" height="100" fill="#000"/></svg>`

	data, err := p.Thumbnail(context.Background(), wide, "HP-ANI-1", 300)
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
	require.NoError(t, err)

	assert.Equal(t, 300+BannerHeight(300), img.Bounds().Dy())
	assert.True(t, isLight(img.At(150, 20)), "letterbox should be white")
	assert.True(t, isDark(img.At(150, 150)))
}

func TestThumbnail_InvalidSVG(t *testing.T) {
	p := newTestProcessor(nil)

	_, err := p.Thumbnail(context.Background(), "<html/>", "HP-ANI-00067", 600)

	var verr *svg.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestOgImage(t *testing.T) {
	p := newTestProcessor(nil)

	data, err := p.OgImage(context.Background(), OgInput{Title: "Cozy Capybara", SVG: squareArt})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, OgWidth, OgHeight), img.Bounds())
	assert.True(t, isDark(img.At(ogArtCenterX, ogArtCenterY)))
	assert.True(t, isLight(img.At(OgWidth-5, 5)))
}

func TestOgImage_ArtFailureIsNotFatal(t *testing.T) {
	p := newTestProcessor(nil)

	data, err := p.OgImage(context.Background(), OgInput{Title: `Tom & "Jerry" <3`, SVG: "<not-svg"})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, isLight(img.At(ogArtCenterX, ogArtCenterY)))
}

func TestOgImage_UsesBackgroundTemplate(t *testing.T) {
	p := newTestProcessor(map[string][]byte{
		"og.png": solidPNG(t, 60, 30, color.NRGBA{R: 255, A: 255}),
	})

	data, err := p.OgImage(context.Background(), OgInput{Title: "Short"})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	r, g, b, _ := img.At(OgWidth-5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(50))
	assert.Less(t, b>>8, uint32(50))
}

func TestOgImage_FromThumbnail(t *testing.T) {
	p := newTestProcessor(nil)

	thumb := solidPNG(t, 100, 100, color.Black)

	data, err := p.OgImage(context.Background(), OgInput{
		Title:         "Cozy Capybara",
		Thumbnail:     thumb,
		ThumbnailMIME: "image/png",
	})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	// 100×100 grows to 450×450 around (900, 315)
	assert.True(t, isDark(img.At(ogArtCenterX-200, ogArtCenterY)))
	assert.True(t, isLight(img.At(ogArtCenterX-240, ogArtCenterY)))
}

func pageCount(pdf []byte) int {
	return bytes.Count(pdf, []byte("/Type /Page\n"))
}

func TestPDF_Orientation(t *testing.T) {
	p := newTestProcessor(nil)
	asset := model.Asset{AssetID: "HP-ANI-00067", Title: "Cozy Capybara"}

	art := func(w, h int) string {
		return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+
			`<path d="M0 0 L%d %d" stroke="#000"/></svg>`, w, h, w, h)
	}

	landscape, err := p.PDF(context.Background(), art(1000, 500), asset, "")
	require.NoError(t, err)
	assert.Contains(t, string(landscape), "/MediaBox [0 0 841.89 595.28]")

	portrait, err := p.PDF(context.Background(), art(500, 1000), asset, "")
	require.NoError(t, err)
	assert.NotContains(t, string(portrait), "/MediaBox [0 0 841.89 595.28]")
	assert.Contains(t, string(portrait), "/MediaBox [0 0 595.28 841.89]")
}

func TestPDF_EndToEnd(t *testing.T) {
	asset := model.Asset{AssetID: "HP-ANI-00067", Title: "Cozy Capybara"}

	single, err := newTestProcessor(nil).PDF(context.Background(), squareArt, asset, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(single, []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(single))
	assert.NotContains(t, string(single), "/MediaBox [0 0 841.89 595.28]")

	withMarketing := newTestProcessor(map[string][]byte{
		"marketing.png": solidPNG(t, 20, 28, color.White),
	})

	double, err := withMarketing.PDF(context.Background(), squareArt, asset, "https://printables.example/p/cozy-capybara")
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(double))
	assert.Contains(t, string(double), "https://printables.example/p/cozy-capybara")
}

func TestPDF_Failures(t *testing.T) {
	asset := model.Asset{AssetID: "HP-ANI-00067"}

	_, err := newTestProcessor(nil).PDF(context.Background(), "<svg", asset, "")
	var verr *svg.ValidationError
	assert.True(t, errors.As(err, &verr))

	broken := New(&memTemplates{err: errors.New("bucket offline")}, config.Brand{}, config.Templates{MarketingPage: "m.png"})
	_, err = broken.PDF(context.Background(), squareArt, asset, "")
	assert.ErrorContains(t, err, "bucket offline")

	notImage := newTestProcessor(map[string][]byte{"marketing.png": []byte("plain text")})
	_, err = notImage.PDF(context.Background(), squareArt, asset, "")
	assert.Error(t, err)
}
