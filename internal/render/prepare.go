package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/srwiley/oksvg"

	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

// numericProps are read by the rasterizer as plain numbers.
var numericProps = map[string]bool{
	"stroke-width":      true,
	"stroke-miterlimit": true,
	"stroke-dashoffset": true,
	"opacity":           true,
	"fill-opacity":      true,
	"stroke-opacity":    true,
}

// prepare rewrites sanitized markup into the subset the rasterizer
// accepts. Root sizes become plain numbers and paint values it cannot read
// are replaced by their equivalent or dropped so they inherit.
func prepare(markup string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(markup); err != nil {
		return "", err
	}

	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("empty document")
	}

	w, h := svg.Dimensions(markup)
	if root.SelectAttr("width") != nil {
		root.CreateAttr("width", formatFloat(w))
	}
	if root.SelectAttr("height") != nil {
		root.CreateAttr("height", formatFloat(h))
	}

	prepareTree(root)

	return doc.WriteToString()
}

func prepareTree(el *etree.Element) {
	attrs := el.Attr[:0]
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == "style" {
			a.Value = svg.MapDeclarations(a.Value, presentationValue)
			attrs = append(attrs, a)
			continue
		}
		if a.Space != "" {
			attrs = append(attrs, a)
			continue
		}

		v, ok := presentationValue(a.Key, a.Value)
		if !ok {
			continue
		}
		a.Value = v
		attrs = append(attrs, a)
	}
	el.Attr = attrs

	for _, child := range el.ChildElements() {
		prepareTree(child)
	}
}

// presentationValue returns the rasterizer-safe form of a property value,
// or false when the property should be dropped.
func presentationValue(prop, value string) (string, bool) {
	v := strings.TrimSpace(value)

	switch {
	case prop == "fill" || prop == "stroke":
		return paintValue(v)
	case prop == "stroke-dasharray":
		if v == "none" {
			return v, true
		}
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			if !plainNumber(part) {
				return "", false
			}
		}
		return v, true
	case numericProps[prop]:
		return v, plainNumber(v)
	}

	return value, true
}

func paintValue(v string) (string, bool) {
	lower := strings.ToLower(v)
	switch {
	case lower == "transparent":
		return "none", true
	case lower == "currentcolor":
		return "#000000", true
	case lower == "inherit":
		return "", false
	case strings.HasPrefix(lower, "url("):
		return v, true
	}

	if c, ok := svg.ParseColor(v); ok {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), true
	}

	// named colors beyond the basic set
	if !strings.Contains(v, "(") {
		if _, err := oksvg.ParseSVGColor(v); err == nil {
			return v, true
		}
	}

	return "", false
}

// plainNumber reports whether s is a number with at most an absolute unit
// suffix the rasterizer strips itself.
func plainNumber(s string) bool {
	for _, unit := range []string{"px", "pt", "mm", "cm"} {
		s = strings.TrimSuffix(s, unit)
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
