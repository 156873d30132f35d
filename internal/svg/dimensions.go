package svg

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// DefaultSize is assumed for a root width or height that is missing or
// not an absolute length.
const DefaultSize = 800

// Dimensions returns the width and height declared on the root element.
func Dimensions(s string) (w, h float64) {
	w, h = DefaultSize, DefaultSize

	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil || doc.Root() == nil {
		return w, h
	}

	root := doc.Root()
	if v, ok := length(root.SelectAttrValue("width", "")); ok {
		w = v
	}
	if v, ok := length(root.SelectAttrValue("height", "")); ok {
		h = v
	}

	return w, h
}

// length reads the leading number of an SVG length such as "210mm" or
// "600". Percentages are relative to a viewport the document does not
// have, so they count as absent.
func length(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") {
		return 0, false
	}

	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || v <= 0 {
		return 0, false
	}

	return v, true
}
