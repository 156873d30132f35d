package render

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const halfBlack = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100">` +
	`<rect x="0" y="0" width="100" height="100" fill="#000000"/></svg>`

func TestContain(t *testing.T) {
	tests := []struct {
		name       string
		w, h       float64
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"square into square", 200, 200, 600, 600, 600, 600},
		{"wide", 200, 100, 600, 600, 600, 300},
		{"tall into box", 100, 400, 450, 500, 125, 500},
		{"degenerate", 0, 10, 450, 500, 450, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Contain(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestRasterize(t *testing.T) {
	img, err := Rasterize(halfBlack, 400, 400)
	require.NoError(t, err)

	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	r, g, b, a := img.At(50, 100).RGBA()
	assert.Equal(t, []uint32{0, 0, 0, 0xffff}, []uint32{r, g, b, a})

	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.NRGBAAt(350, 100))
}

func TestRasterize_NoViewBoxFallsBackToDeclaredSize(t *testing.T) {
	img, err := Rasterize(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`, 100, 50)
	require.NoError(t, err)

	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestRasterize_ToleratesPaintTheRasterizerCannotRead(t *testing.T) {
	markup := `<svg xmlns="http://www.w3.org/2000/svg" width="100%" height="100%" viewBox="0 0 100 100">` +
		`<rect width="50" height="100" fill="currentColor" stroke="transparent"/>` +
		`<rect x="50" width="50" height="100" style="fill:rgb(0 0 0 / 50%);stroke-width:1em"/></svg>`

	img, err := Rasterize(markup, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(25, 50))
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(75, 50))
}

func TestPresentationValue(t *testing.T) {
	tests := []struct {
		prop, value string
		want        string
		keep        bool
	}{
		{"fill", "currentColor", "#000000", true},
		{"fill", "transparent", "none", true},
		{"fill", "inherit", "", false},
		{"fill", "url(#grad)", "url(#grad)", true},
		{"fill", "#abc", "#aabbcc", true},
		{"fill", "orange", "orange", true},
		{"stroke", "rgb(10 20 30)", "#0a141e", true},
		{"stroke", "nonsense", "", false},
		{"stroke-width", "2px", "2px", true},
		{"stroke-width", "1em", "", false},
		{"stroke-dasharray", "4, 2", "4, 2", true},
		{"stroke-dasharray", "4 auto", "", false},
		{"d", "M0 0", "M0 0", true},
	}

	for _, tt := range tests {
		t.Run(tt.prop+"="+tt.value, func(t *testing.T) {
			got, ok := presentationValue(tt.prop, tt.value)
			assert.Equal(t, tt.keep, ok)
			if tt.keep {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseTransform(t *testing.T) {
	tests := []struct {
		in     string
		x, y   float64
		wx, wy float64
	}{
		{"translate(10 20)", 1, 1, 11, 21},
		{"translate(10)", 1, 1, 11, 1},
		{"scale(2)", 3, 4, 6, 8},
		{"scale(2, 3)", 3, 4, 6, 12},
		{"translate(10,0) scale(2)", 1, 1, 12, 2},
		{"rotate(90)", 1, 0, 0, 1},
		{"rotate(180 5 5)", 0, 0, 10, 10},
		{"matrix(1 0 0 1 5 6)", 0, 0, 5, 6},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := parseTransform(tt.in)
			require.NoError(t, err)

			x, y := apply(m, tt.x, tt.y)
			assert.InDelta(t, tt.wx, x, 1e-9)
			assert.InDelta(t, tt.wy, y, 1e-9)
		})
	}
}

func TestParseTransform_Invalid(t *testing.T) {
	for _, in := range []string{"translate(1", "wobble(3)", "scale(a)", "rotate(1 2)"} {
		_, err := parseTransform(in)
		assert.Error(t, err, in)
	}
}

func TestLineScale(t *testing.T) {
	m, err := parseTransform("scale(3)")
	require.NoError(t, err)
	assert.InDelta(t, 3, lineScale(m), 1e-9)

	m, err = parseTransform("rotate(30) scale(2)")
	require.NoError(t, err)
	assert.InDelta(t, 2, lineScale(m), 1e-9)
	assert.False(t, math.IsNaN(lineScale(m)))
}

func TestDrawSVG_WritesVectorPaths(t *testing.T) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.AddPage()

	markup := `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100">` +
		`<g transform="translate(10 10)"><circle cx="20" cy="20" r="10" stroke="#000000" fill="none"/></g>` +
		`<path d="M0 0 L50 50 Z" fill="#000000"/>` +
		`<text x="1" y="1">ignored</text></svg>`

	require.NoError(t, DrawSVG(pdf, markup, 28.35, 28.35, 2))

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	out := buf.String()
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, out, " c\n")
	assert.Contains(t, out, " l\n")
	assert.NotContains(t, out, "ignored")
}

func TestDrawSVG_BadPathFails(t *testing.T) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()

	markup := `<svg xmlns="http://www.w3.org/2000/svg"><path d="M0 0" fill="#000" transform="spin(3)"/></svg>`

	var rerr *Error
	assert.ErrorAs(t, DrawSVG(pdf, markup, 0, 0, 1), &rerr)
}

func TestDrawSVG_SmallViewBoxKeepsPrecision(t *testing.T) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.AddPage()

	markup := `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 1 1">` +
		`<path d="M0.3 0.3 L0.7 0.7" stroke="#000000" fill="none"/></svg>`

	require.NoError(t, DrawSVG(pdf, markup, 0, 0, 1))

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	out := buf.String()
	assert.Contains(t, out, "30.00 811.89 m\n")
	assert.Contains(t, out, "70.00 771.89 l")
}

func TestScalePath(t *testing.T) {
	tests := []struct {
		name string
		d    string
		k    float64
		want string
	}{
		{"identity", "M0 0 L1 1", 1, "M0 0 L1 1"},
		{"coordinates", "M0.5,1 l-2-3.5z", 2, "M 1 2 l -4 -7z"},
		{"exponent", "M1e-1 2E1", 10, "M 1 200"},
		{"arc keeps rotation and flags", "A1 2 30 1 0 3 4", 10, "A 10 20 30 1 0 30 40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scalePath(tt.d, tt.k))
		})
	}
}

func TestFace(t *testing.T) {
	face, err := Face(Bold, 24)
	require.NoError(t, err)
	defer face.Close()

	assert.Greater(t, int(face.Metrics().Height), 0)
}

func TestPNG(t *testing.T) {
	img, err := Rasterize(halfBlack, 20, 20)
	require.NoError(t, err)

	data, err := PNG(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestWebP(t *testing.T) {
	img, err := Rasterize(halfBlack, 20, 20)
	require.NoError(t, err)

	data, err := WebP(img)
	require.NoError(t, err)
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))
}
