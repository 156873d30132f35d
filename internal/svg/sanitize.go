// Package svg validates untrusted SVG markup and rewrites it into the
// black line-art form that every renderer in this service consumes.
package svg

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// MaxInputSize is the largest raw SVG payload accepted, in bytes.
const MaxInputSize = 5 << 20

// allowedElements lists the only element names that survive sanitizing.
// The root <svg> is checked separately and is not allowed anywhere else.
var allowedElements = map[string]bool{
	"style":          true,
	"defs":           true,
	"linearGradient": true,
	"stop":           true,
	"rect":           true,
	"circle":         true,
	"path":           true,
	"g":              true,
	"text":           true,
	"tspan":          true,
	"clipPath":       true,
}

var allowedAttrs = map[string]bool{
	"xmlns":               true,
	"version":             true,
	"viewBox":             true,
	"preserveAspectRatio": true,
	"id":                  true,
	"class":               true,
	"style":               true,
	"transform":           true,
	"x":                   true,
	"y":                   true,
	"x1":                  true,
	"y1":                  true,
	"x2":                  true,
	"y2":                  true,
	"dx":                  true,
	"dy":                  true,
	"cx":                  true,
	"cy":                  true,
	"r":                   true,
	"rx":                  true,
	"ry":                  true,
	"width":               true,
	"height":              true,
	"d":                   true,
	"fill":                true,
	"fill-opacity":        true,
	"fill-rule":           true,
	"stroke":              true,
	"stroke-width":        true,
	"stroke-linecap":      true,
	"stroke-linejoin":     true,
	"stroke-miterlimit":   true,
	"stroke-dasharray":    true,
	"stroke-dashoffset":   true,
	"stroke-opacity":      true,
	"opacity":             true,
	"clip-path":           true,
	"clip-rule":           true,
	"clipPathUnits":       true,
	"offset":              true,
	"stop-color":          true,
	"stop-opacity":        true,
	"gradientUnits":       true,
	"gradientTransform":   true,
	"font-family":         true,
	"font-size":           true,
	"font-weight":         true,
	"font-style":          true,
	"text-anchor":         true,
	"letter-spacing":      true,
}

// Sanitize validates raw SVG markup, strips everything outside the
// element and attribute allow-lists, and normalizes colors to black ink.
//
// The result is a pure function of the input: Sanitize(Sanitize(x)) equals
// Sanitize(x) for any x that Sanitize accepts.
func Sanitize(raw string) (string, error) {
	if len(raw) > MaxInputSize {
		return "", &ValidationError{
			Reason: fmt.Sprintf("input is %d bytes, limit is %d", len(raw), MaxInputSize),
		}
	}

	root, err := parse(raw)
	if err != nil {
		return "", err
	}

	filterElement(root)
	normalizeTree(root)

	out, err := serialize(root)
	if err != nil {
		return "", &ValidationError{Reason: "serialize", Err: err}
	}

	return out, nil
}

// parse reads raw into an element tree and checks the root is <svg>.
func parse(raw string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, &ValidationError{Reason: "malformed markup", Err: err}
	}

	root := doc.Root()
	if root == nil {
		return nil, &ValidationError{Reason: "no root element"}
	}
	if n := len(doc.ChildElements()); n != 1 {
		return nil, &ValidationError{Reason: fmt.Sprintf("document has %d root elements", n)}
	}
	if root.Space != "" || root.Tag != "svg" {
		return nil, &ValidationError{Reason: fmt.Sprintf("root element is <%s>, want <svg>", root.FullTag())}
	}

	return root, nil
}

func serialize(root *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(root.Copy())

	return doc.WriteToString()
}

// filterElement removes disallowed attributes and child tokens from el,
// recursing into the children it keeps.
func filterElement(el *etree.Element) {
	attrs := make([]etree.Attr, 0, len(el.Attr))
	for _, a := range el.Attr {
		if a.Space != "" || !allowedAttrs[a.Key] || !safeValue(a.Value) {
			continue
		}
		attrs = append(attrs, a)
	}
	el.Attr = attrs

	var drop []etree.Token
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if t.Space != "" || !allowedElements[t.Tag] {
				drop = append(drop, t)
				continue
			}
			if t.Tag == "style" && !safeValue(charData(t)) {
				drop = append(drop, t)
				continue
			}
			filterElement(t)
		case *etree.CharData:
		default:
			// comments, processing instructions and directives
			drop = append(drop, tok)
		}
	}

	for _, tok := range drop {
		el.RemoveChild(tok)
	}
}

// safeValue rejects attribute values and stylesheet text that could reach
// outside the document or run script.
func safeValue(v string) bool {
	lv := strings.ToLower(v)
	for _, bad := range []string{"javascript:", "vbscript:", "expression(", "@import", "data:"} {
		if strings.Contains(lv, bad) {
			return false
		}
	}

	rest := lv
	for {
		i := strings.Index(rest, "url(")
		if i < 0 {
			return true
		}
		rest = strings.TrimLeft(rest[i+len("url("):], " \t\r\n'\"")
		if !strings.HasPrefix(rest, "#") {
			return false
		}
	}
}

func charData(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}
