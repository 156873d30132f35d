package svg

import (
	"strconv"
	"strings"
)

// nearBlackMax is the highest channel value still treated as black ink.
const nearBlackMax = 40

// Color is an opaque RGB color parsed from an SVG paint value.
type Color struct {
	R, G, B uint8
}

// NearBlack reports whether every channel is at most 40.
func (c Color) NearBlack() bool {
	return c.R <= nearBlackMax && c.G <= nearBlackMax && c.B <= nearBlackMax
}

var namedColors = map[string]Color{
	"black": {0, 0, 0},
	"white": {255, 255, 255},
	"red":   {255, 0, 0},
	"green": {0, 128, 0},
	"blue":  {0, 0, 255},
}

// ParseColor parses a paint value into a Color.
//
// The second result is false for values that carry no color: none,
// transparent, inherit, currentColor, paint-server references such as
// url(#grad), and anything else that cannot be parsed.
func ParseColor(value string) (Color, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))

	switch v {
	case "", "none", "transparent", "inherit", "currentcolor":
		return Color{}, false
	}

	if c, ok := namedColors[v]; ok {
		return c, true
	}

	if strings.HasPrefix(v, "#") {
		return parseHex(v[1:])
	}

	if strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba(") {
		return parseFunctional(v)
	}

	return Color{}, false
}

func parseHex(hex string) (Color, bool) {
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return Color{}, false
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, false
	}

	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, true
}

func parseFunctional(v string) (Color, bool) {
	open := strings.IndexByte(v, '(')
	if !strings.HasSuffix(v, ")") || open < 0 {
		return Color{}, false
	}

	args := strings.FieldsFunc(v[open+1:len(v)-1], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/' || r == '\t'
	})
	if len(args) < 3 {
		return Color{}, false
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, ok := parseChannel(args[i])
		if !ok {
			return Color{}, false
		}
		ch[i] = n
	}

	return Color{R: ch[0], G: ch[1], B: ch[2]}, true
}

func parseChannel(s string) (uint8, bool) {
	percent := strings.HasSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	if percent {
		f = f * 255 / 100
	}

	switch {
	case f < 0:
		f = 0
	case f > 255:
		f = 255
	}

	return uint8(f + 0.5), true
}
