package render

import (
	"fmt"
	"strings"

	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/vdom"
)

// Node materializes d as a managed element according to rule. Null
// attributes and invalid attribute names are omitted. The rule's content
// pseudo-attribute becomes the element body: escaped text for <title>, raw
// content for everything else.
func Node(rule headtag.Rule, d headtag.Declaration) *vdom.VNode {
	props := vdom.Props{headtag.Marker: "true"}
	var body *vdom.VNode
	for _, name := range d.Names() {
		v, ok := d.Value(name)
		if !ok {
			continue
		}
		if rule.IsContent(name) {
			if rule.Type == headtag.TypeTitle {
				body = vdom.Text(v)
			} else {
				body = vdom.Raw(v)
			}
			continue
		}
		if !validAttrName(name) {
			continue
		}
		props[name] = v
	}
	return vdom.Element(rule.ElementName(), props, body)
}

// RootAttrs returns the managed attributes of a root type in canonical
// order, with the last value winning when a name repeats. Names that are
// not valid attribute names are skipped.
func RootAttrs(entries []reconcile.Entry) (names []string, values map[string]string) {
	values = make(map[string]string)
	for _, e := range entries {
		for _, name := range e.Decl.Names() {
			v, ok := e.Decl.Value(name)
			if !ok || !validAttrName(name) {
				continue
			}
			if _, seen := values[name]; !seen {
				names = append(names, name)
			}
			values[name] = v
		}
	}
	return names, values
}

// Markup is the server-side rendering of a reconciled set.
type Markup struct {
	table    *headtag.Table
	set      reconcile.Set
	renderer *Renderer
}

// Head prepares the static markup for set.
func Head(table *headtag.Table, set reconcile.Set, config RendererConfig) Markup {
	return Markup{table: table, set: set, renderer: NewRenderer(config)}
}

// Nodes returns the managed elements for a non-root type.
func (m Markup) Nodes(t headtag.Type) []*vdom.VNode {
	rule, ok := m.table.Rule(t)
	if !ok || rule.Root {
		return nil
	}
	entries := m.set.Entries(t)
	out := make([]*vdom.VNode, 0, len(entries))
	for _, e := range entries {
		out = append(out, Node(rule, e.Decl))
	}
	return out
}

// Type renders the managed elements of t. Root types render as attributes.
func (m Markup) Type(t headtag.Type) string {
	rule, ok := m.table.Rule(t)
	if !ok {
		return ""
	}
	if rule.Root {
		return m.Attributes(t)
	}
	var sb strings.Builder
	for _, n := range m.Nodes(t) {
		// Rendering into a strings.Builder cannot fail.
		_ = m.renderer.RenderToWriter(&sb, n)
	}
	return sb.String()
}

// Head renders every non-root type in table order, for inclusion in <head>.
func (m Markup) Head() string {
	var sb strings.Builder
	for _, r := range m.table.Rules() {
		if r.Root {
			continue
		}
		sb.WriteString(m.Type(r.Type))
	}
	return sb.String()
}

// Attributes renders a root type's attributes for the opening tag of its
// element, followed by the marker listing the managed names. It returns ""
// when nothing is managed.
func (m Markup) Attributes(t headtag.Type) string {
	names, values := RootAttrs(m.set.Entries(t))
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names)+1)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, name, escapeAttr(values[name])))
	}
	parts = append(parts, fmt.Sprintf(`%s="%s"`, headtag.Marker, escapeAttr(strings.Join(names, ","))))
	return strings.Join(parts, " ")
}

// Document renders a full, minimal HTML document around the managed tags.
func (m Markup) Document(body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html")
	if a := m.Attributes(headtag.TypeHTMLAttributes); a != "" {
		sb.WriteString(" " + a)
	}
	sb.WriteString("><head>")
	sb.WriteString(m.Head())
	sb.WriteString("</head><body")
	if a := m.Attributes(headtag.TypeBodyAttributes); a != "" {
		sb.WriteString(" " + a)
	}
	sb.WriteString(">")
	sb.WriteString(body)
	sb.WriteString("</body></html>")
	return sb.String()
}
