package deck

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markup attributes and classes read from presentation markup.
const (
	AttrNotes         = "data-notes"
	AttrMarkdown      = "data-markdown"
	AttrFragmentIndex = "data-fragment-index"

	ClassNotes           = "notes"
	ClassFragment        = "fragment"
	ClassVisible         = "visible"
	ClassCurrentFragment = "current-fragment"
	ClassSlides          = "slides"
	ClassPresent         = "present"
)

// Element is a read-mostly view of a markup node.
type Element struct {
	node *html.Node
}

func wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{node: n}
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present, even if empty.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Attributes returns all attributes as a map.
func (e *Element) Attributes() map[string]string {
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out[a.Key] = a.Val
	}
	return out
}

// HasClass reports whether the class list contains class.
func (e *Element) HasClass(class string) bool {
	v, _ := e.Attr("class")
	return slices.Contains(strings.Fields(v), class)
}

func (e *Element) setClass(class string, on bool) {
	v, _ := e.Attr("class")
	fields := strings.Fields(v)
	has := slices.Contains(fields, class)
	switch {
	case on && !has:
		fields = append(fields, class)
	case !on && has:
		fields = slices.DeleteFunc(fields, func(f string) bool { return f == class })
	default:
		return
	}
	e.setAttr("class", strings.Join(fields, " "))
}

func (e *Element) setAttr(key, val string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == key {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: val})
}

// InnerHTML renders the element's children.
func (e *Element) InnerHTML() string {
	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// QuerySelector returns the first descendant matching a simple selector:
// "tag", ".class", "tag.class" or "[attr]".
func (e *Element) QuerySelector(sel string) *Element {
	m := parseSelector(sel)
	var found *html.Node
	walk(e.node, func(n *html.Node) bool {
		if n != e.node && m.match(n) {
			found = n
			return false
		}
		return true
	})
	return wrap(found)
}

// QuerySelectorAll returns every descendant matching sel in document order.
func (e *Element) QuerySelectorAll(sel string) []*Element {
	m := parseSelector(sel)
	var out []*Element
	walk(e.node, func(n *html.Node) bool {
		if n != e.node && m.match(n) {
			out = append(out, wrap(n))
		}
		return true
	})
	return out
}

// walk visits n and its descendants depth first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

type selector struct {
	tag   string
	class string
	attr  string
}

func parseSelector(sel string) selector {
	var s selector
	sel = strings.TrimSpace(sel)
	if strings.HasPrefix(sel, "[") && strings.HasSuffix(sel, "]") {
		s.attr = sel[1 : len(sel)-1]
		return s
	}
	if i := strings.IndexByte(sel, '.'); i >= 0 {
		s.tag, s.class = sel[:i], sel[i+1:]
	} else {
		s.tag = sel
	}
	return s
}

func (s selector) match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	e := Element{node: n}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.class != "" && !e.HasClass(s.class) {
		return false
	}
	if s.attr != "" && !e.HasAttr(s.attr) {
		return false
	}
	return true
}

func childSections(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Section {
			out = append(out, c)
		}
	}
	return out
}
