package svg

import (
	"strings"

	"github.com/beevik/etree"
)

const black = "#000000"

// containers are walked into but never classified as shapes.
var containers = map[string]bool{
	"svg":   true,
	"defs":  true,
	"style": true,
}

// Normalize rewrites fill and stroke colors so only black ink survives.
// It never fails: markup it cannot parse is returned unchanged.
func Normalize(s string) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return s
	}

	root := doc.Root()
	if root == nil {
		return s
	}

	normalizeTree(root)

	out, err := serialize(root)
	if err != nil {
		return s
	}
	return out
}

// normalizeTree applies the ink rules to el's children depth-first.
// A removed child takes its whole subtree with it.
func normalizeTree(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if !containers[child.Tag] && !normalizeShape(child) {
			el.RemoveChild(child)
			continue
		}
		if child.Tag == "style" {
			normalizeStylesheet(child)
		}
		normalizeTree(child)
	}
}

// normalizeStylesheet applies the ink rules to fill and stroke
// declarations inside <style> rule blocks. A colored declaration becomes
// none since the elements it targets are not known here.
func normalizeStylesheet(el *etree.Element) {
	css := charData(el)

	var b strings.Builder
	rest := css
	for {
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}

		open := strings.LastIndexByte(rest[:end], '{')
		if open < 0 {
			b.WriteString(rest[:end+1])
			rest = rest[end+1:]
			continue
		}

		b.WriteString(rest[:open+1])
		b.WriteString(MapDeclarations(rest[open+1:end], inkDeclaration))
		b.WriteByte('}')
		rest = rest[end+1:]
	}

	out := b.String()
	if out == css {
		return
	}

	for _, tok := range append([]etree.Token(nil), el.Child...) {
		if _, ok := tok.(*etree.CharData); ok {
			el.RemoveChild(tok)
		}
	}
	el.CreateText(out)
}

func inkDeclaration(prop, value string) (string, bool) {
	if prop != "fill" && prop != "stroke" {
		return value, true
	}

	color, _, _ := strings.Cut(value, "!")
	c, ok := ParseColor(strings.TrimSpace(color))
	switch {
	case !ok:
		return value, true
	case c.NearBlack():
		return black, true
	default:
		return "none", true
	}
}

// normalizeShape rewrites the paint of a single element and reports
// whether the element should stay in the tree.
func normalizeShape(el *etree.Element) bool {
	style := parseStyle(el.SelectAttrValue("style", ""))

	kept := false
	var colored []string
	for _, prop := range []string{"fill", "stroke"} {
		value, ok := effectivePaint(el, style, prop)
		if !ok {
			continue
		}

		c, ok := ParseColor(value)
		if !ok {
			continue
		}

		if c.NearBlack() {
			setPaint(el, style, prop, black)
			kept = true
			continue
		}
		colored = append(colored, prop)
	}

	if len(colored) > 0 && !kept {
		return false
	}
	for _, prop := range colored {
		setPaint(el, style, prop, "none")
	}

	if style.dirty {
		if rest := style.String(); rest != "" {
			el.CreateAttr("style", rest)
		} else {
			el.RemoveAttr("style")
		}
	}

	return true
}

// effectivePaint resolves prop with inline style taking precedence over
// the presentation attribute.
func effectivePaint(el *etree.Element, style *declarations, prop string) (string, bool) {
	if v, ok := style.get(prop); ok {
		return v, true
	}
	if a := el.SelectAttr(prop); a != nil {
		return a.Value, true
	}
	return "", false
}

func setPaint(el *etree.Element, style *declarations, prop, value string) {
	el.CreateAttr(prop, value)
	style.remove(prop)
}

type declaration struct {
	prop  string
	value string
}

// declarations is an ordered inline style attribute.
type declarations struct {
	list  []declaration
	dirty bool
}

func parseStyle(s string) *declarations {
	d := &declarations{}
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		d.list = append(d.list, declaration{prop: prop, value: value})
	}
	return d
}

// get returns the last declaration of prop, as CSS does.
func (d *declarations) get(prop string) (string, bool) {
	for i := len(d.list) - 1; i >= 0; i-- {
		if d.list[i].prop == prop {
			return d.list[i].value, true
		}
	}
	return "", false
}

func (d *declarations) remove(prop string) {
	out := d.list[:0]
	for _, decl := range d.list {
		if decl.prop == prop {
			d.dirty = true
			continue
		}
		out = append(out, decl)
	}
	d.list = out
}

func (d *declarations) String() string {
	parts := make([]string, 0, len(d.list))
	for _, decl := range d.list {
		parts = append(parts, decl.prop+":"+decl.value)
	}
	return strings.Join(parts, ";")
}

// Declaration returns the value of prop in an inline style attribute.
func Declaration(style, prop string) (string, bool) {
	return parseStyle(style).get(strings.ToLower(prop))
}

// MapDeclarations rewrites every declaration of an inline style through
// fn. Declarations fn rejects are dropped.
func MapDeclarations(style string, fn func(prop, value string) (string, bool)) string {
	d := parseStyle(style)

	out := d.list[:0]
	for _, decl := range d.list {
		v, ok := fn(decl.prop, decl.value)
		if !ok {
			continue
		}
		out = append(out, declaration{prop: decl.prop, value: v})
	}
	d.list = out

	return d.String()
}
