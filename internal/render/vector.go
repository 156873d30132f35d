package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/go-pdf/fpdf"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

// skipped elements carry no directly drawable geometry. Text is left to
// the raster outputs.
var skipped = map[string]bool{
	"defs":           true,
	"style":          true,
	"clipPath":       true,
	"linearGradient": true,
	"stop":           true,
	"text":           true,
	"tspan":          true,
}

type paint struct {
	on    bool
	color svg.Color
}

type drawState struct {
	m       rasterx.Matrix2D
	fill    paint
	stroke  paint
	width   float64
	evenOdd bool
	cap     string
	join    string
}

// DrawSVG draws sanitized markup onto the current PDF page as vector
// paths. The declared width×height box of the document is placed at
// (x, y) and scaled by scale; content outside it is clipped.
func DrawSVG(pdf *fpdf.Fpdf, markup string, x, y, scale float64) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(markup); err != nil {
		return &Error{Op: "parse svg", Err: err}
	}

	root := doc.Root()
	if root == nil {
		return &Error{Op: "parse svg", Err: fmt.Errorf("no root element")}
	}

	w, h := svg.Dimensions(markup)

	m := rasterx.Identity.Translate(x, y).Scale(scale, scale)
	m = m.Mult(viewBoxMatrix(root.SelectAttrValue("viewBox", ""), w, h))

	st := drawState{
		m:     m,
		fill:  paint{on: true},
		width: 1,
		cap:   "butt",
		join:  "miter",
	}

	pdf.ClipRect(x, y, w*scale, h*scale, false)
	defer pdf.ClipEnd()

	if err := drawChildren(pdf, root, st); err != nil {
		return err
	}

	return pdf.Error()
}

// viewBoxMatrix maps the viewBox onto the w×h viewport, centered and
// preserving aspect ratio.
func viewBoxMatrix(viewBox string, w, h float64) rasterx.Matrix2D {
	vb, err := parseNumbers(viewBox)
	if err != nil || len(vb) != 4 || vb[2] <= 0 || vb[3] <= 0 {
		return rasterx.Identity
	}

	s := math.Min(w/vb[2], h/vb[3])
	return rasterx.Identity.
		Translate((w-vb[2]*s)/2, (h-vb[3]*s)/2).
		Scale(s, s).
		Translate(-vb[0], -vb[1])
}

func drawChildren(pdf *fpdf.Fpdf, el *etree.Element, st drawState) error {
	for _, child := range el.ChildElements() {
		if err := drawElement(pdf, child, st); err != nil {
			return err
		}
	}
	return nil
}

func drawElement(pdf *fpdf.Fpdf, el *etree.Element, parent drawState) error {
	if skipped[el.Tag] {
		return nil
	}

	st, err := inherit(el, parent)
	if err != nil {
		return err
	}

	var d string
	switch el.Tag {
	case "g":
		return drawChildren(pdf, el, st)
	case "path":
		d = el.SelectAttrValue("d", "")
	case "rect":
		d = rectPath(el)
	case "circle":
		d = circlePath(el)
	default:
		return nil
	}

	if strings.TrimSpace(d) == "" {
		return nil
	}

	return fillPath(pdf, d, st)
}

func fillPath(pdf *fpdf.Fpdf, d string, st drawState) error {
	var op string
	if st.fill.on {
		c := st.fill.color
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		op += "F"
	}
	if st.stroke.on && st.width > 0 {
		c := st.stroke.color
		pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		pdf.SetLineWidth(st.width * lineScale(st.m))
		pdf.SetLineCapStyle(st.cap)
		pdf.SetLineJoinStyle(st.join)
		op += "D"
	}
	if op == "" {
		return nil
	}
	if st.evenOdd && st.fill.on {
		op += "*"
	}

	// the compiled path is 26.6 fixed point, so compile it in page units
	k := lineScale(st.m)
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		k = 1
	}

	cursor := &oksvg.PathCursor{}
	if err := cursor.CompilePath(scalePath(d, k)); err != nil {
		return &Error{Op: "compile path", Err: err}
	}
	if len(cursor.Path) == 0 {
		return nil
	}

	cursor.Path.AddTo(&pdfPath{pdf: pdf, m: st.m.Scale(1/k, 1/k)})
	pdf.DrawPath(op)

	return nil
}

// inherit resolves the presentation properties of el on top of parent.
func inherit(el *etree.Element, parent drawState) (drawState, error) {
	st := parent

	if t := el.SelectAttrValue("transform", ""); t != "" {
		m, err := parseTransform(t)
		if err != nil {
			return st, &Error{Op: "transform", Err: err}
		}
		st.m = st.m.Mult(m)
	}

	if v, ok := property(el, "fill"); ok {
		st.fill = resolvePaint(v, parent.fill)
	}
	if v, ok := property(el, "stroke"); ok {
		st.stroke = resolvePaint(v, parent.stroke)
	}
	if v, ok := property(el, "stroke-width"); ok {
		if f, ok := number(v); ok {
			st.width = f
		}
	}
	if v, ok := property(el, "fill-rule"); ok {
		st.evenOdd = strings.TrimSpace(v) == "evenodd"
	}
	if v, ok := property(el, "stroke-linecap"); ok {
		switch v = strings.TrimSpace(v); v {
		case "butt", "round", "square":
			st.cap = v
		}
	}
	if v, ok := property(el, "stroke-linejoin"); ok {
		switch v = strings.TrimSpace(v); v {
		case "miter", "round", "bevel":
			st.join = v
		}
	}

	return st, nil
}

// property reads a presentation property, inline style first.
func property(el *etree.Element, name string) (string, bool) {
	if v, ok := svg.Declaration(el.SelectAttrValue("style", ""), name); ok {
		return v, true
	}
	if a := el.SelectAttr(name); a != nil {
		return a.Value, true
	}
	return "", false
}

func resolvePaint(v string, parent paint) paint {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "inherit":
		return parent
	case "currentcolor":
		return paint{on: true}
	}

	if c, ok := svg.ParseColor(v); ok {
		return paint{on: true, color: c}
	}

	// none, transparent and paint servers
	return paint{}
}

func rectPath(el *etree.Element) string {
	x, y := attrNumber(el, "x"), attrNumber(el, "y")
	w, h := attrNumber(el, "width"), attrNumber(el, "height")
	if w <= 0 || h <= 0 {
		return ""
	}

	rx, okx := number(el.SelectAttrValue("rx", ""))
	ry, oky := number(el.SelectAttrValue("ry", ""))
	switch {
	case okx && !oky:
		ry = rx
	case oky && !okx:
		rx = ry
	}
	rx, ry = math.Min(math.Max(rx, 0), w/2), math.Min(math.Max(ry, 0), h/2)

	if rx == 0 || ry == 0 {
		return fmt.Sprintf("M%s %s H%s V%s H%s Z", num(x), num(y), num(x+w), num(y+h), num(x))
	}

	arc := "A" + num(rx) + " " + num(ry) + " 0 0 1 "
	return "M" + num(x+rx) + " " + num(y) +
		" H" + num(x+w-rx) + " " + arc + num(x+w) + " " + num(y+ry) +
		" V" + num(y+h-ry) + " " + arc + num(x+w-rx) + " " + num(y+h) +
		" H" + num(x+rx) + " " + arc + num(x) + " " + num(y+h-ry) +
		" V" + num(y+ry) + " " + arc + num(x+rx) + " " + num(y) + " Z"
}

func circlePath(el *etree.Element) string {
	cx, cy, r := attrNumber(el, "cx"), attrNumber(el, "cy"), attrNumber(el, "r")
	if r <= 0 {
		return ""
	}

	arc := "A" + num(r) + " " + num(r) + " 0 1 0 "
	return "M" + num(cx-r) + " " + num(cy) +
		" " + arc + num(cx+r) + " " + num(cy) +
		" " + arc + num(cx-r) + " " + num(cy) + " Z"
}

var pathNumber = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// scalePath multiplies every coordinate of path data by k. Arc rotation
// and flag arguments are left alone.
func scalePath(d string, k float64) string {
	if k == 1 {
		return d
	}

	var b strings.Builder
	for _, seg := range pathSegments(d) {
		cmd := seg[0]
		b.WriteByte(cmd)

		for i, n := range pathNumber.FindAllString(seg[1:], -1) {
			v, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return d
			}
			if (cmd == 'A' || cmd == 'a') && i%7 >= 2 && i%7 <= 4 {
				b.WriteString(" " + n)
				continue
			}
			b.WriteString(" " + num(v*k))
		}
	}

	return b.String()
}

// pathSegments splits path data at command letters, the way the path
// compiler does.
func pathSegments(d string) []string {
	var segs []string
	last := -1
	for i, r := range d {
		if unicode.IsLetter(r) && r != 'e' && r != 'E' {
			if last != -1 {
				segs = append(segs, d[last:i])
			}
			last = i
		}
	}
	if last != -1 {
		segs = append(segs, d[last:])
	}
	return segs
}

func attrNumber(el *etree.Element, name string) float64 {
	v, _ := number(el.SelectAttrValue(name, ""))
	return v
}

func number(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pdfPath replays a compiled path into the PDF content stream.
type pdfPath struct {
	pdf *fpdf.Fpdf
	m   rasterx.Matrix2D
}

func (p *pdfPath) point(a fixed.Point26_6) (float64, float64) {
	return apply(p.m, float64(a.X)/64, float64(a.Y)/64)
}

func (p *pdfPath) Start(a fixed.Point26_6) {
	p.pdf.MoveTo(p.point(a))
}

func (p *pdfPath) Line(b fixed.Point26_6) {
	p.pdf.LineTo(p.point(b))
}

func (p *pdfPath) QuadBezier(b, c fixed.Point26_6) {
	cx, cy := p.point(b)
	x, y := p.point(c)
	p.pdf.CurveTo(cx, cy, x, y)
}

func (p *pdfPath) CubeBezier(b, c, d fixed.Point26_6) {
	cx0, cy0 := p.point(b)
	cx1, cy1 := p.point(c)
	x, y := p.point(d)
	p.pdf.CurveBezierCubicTo(cx0, cy0, cx1, cy1, x, y)
}

func (p *pdfPath) Stop(closeLoop bool) {
	if closeLoop {
		p.pdf.ClosePath()
	}
}
