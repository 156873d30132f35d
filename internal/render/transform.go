package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/srwiley/rasterx"
)

// parseTransform reads an SVG transform list into a single matrix.
func parseTransform(s string) (rasterx.Matrix2D, error) {
	m := rasterx.Identity

	rest := strings.TrimSpace(s)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		end := strings.IndexByte(rest, ')')
		if open < 0 || end < open {
			return m, fmt.Errorf("malformed transform %q", s)
		}

		name := strings.TrimSpace(rest[:open])
		args, err := parseNumbers(rest[open+1 : end])
		if err != nil {
			return m, fmt.Errorf("transform %s: %w", name, err)
		}

		switch {
		case name == "matrix" && len(args) == 6:
			m = m.Mult(rasterx.Matrix2D{A: args[0], B: args[1], C: args[2], D: args[3], E: args[4], F: args[5]})
		case name == "translate" && len(args) == 1:
			m = m.Translate(args[0], 0)
		case name == "translate" && len(args) == 2:
			m = m.Translate(args[0], args[1])
		case name == "scale" && len(args) == 1:
			m = m.Scale(args[0], args[0])
		case name == "scale" && len(args) == 2:
			m = m.Scale(args[0], args[1])
		case name == "rotate" && len(args) == 1:
			m = m.Mult(rotation(args[0]))
		case name == "rotate" && len(args) == 3:
			m = m.Translate(args[1], args[2]).Mult(rotation(args[0])).Translate(-args[1], -args[2])
		case name == "skewX" && len(args) == 1:
			m = m.Mult(rasterx.Matrix2D{A: 1, C: math.Tan(radians(args[0])), D: 1})
		case name == "skewY" && len(args) == 1:
			m = m.Mult(rasterx.Matrix2D{A: 1, B: math.Tan(radians(args[0])), D: 1})
		default:
			return m, fmt.Errorf("unsupported transform %s with %d arguments", name, len(args))
		}

		rest = strings.TrimLeft(rest[end+1:], " \t\r\n,")
	}

	return m, nil
}

func rotation(deg float64) rasterx.Matrix2D {
	sin, cos := math.Sincos(radians(deg))
	return rasterx.Matrix2D{A: cos, B: sin, C: -sin, D: cos}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func parseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

// apply maps a point through m.
func apply(m rasterx.Matrix2D, x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// lineScale is the factor by which m scales stroke widths.
func lineScale(m rasterx.Matrix2D) float64 {
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}
