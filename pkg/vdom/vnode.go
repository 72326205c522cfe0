package vdom

import "sort"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <link>, <meta>, etc.
	KindText                 // Escaped text node
	KindRaw                  // Raw content (script bodies, CSS)
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// Props holds element attributes.
type Props map[string]string

// VNode is a virtual DOM node.
type VNode struct {
	Kind     VKind    `json:"kind"`
	Tag      string   `json:"tag,omitempty"`
	Props    Props    `json:"props,omitempty"`
	Children []*VNode `json:"children,omitempty"`
	Text     string   `json:"text,omitempty"`
	HID      string   `json:"hid,omitempty"`
}

// Element creates an element node. The props map is copied; nil children
// are skipped.
func Element(tag string, props Props, children ...*VNode) *VNode {
	node := &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props, len(props)),
	}
	for k, v := range props {
		node.Props[k] = v
	}
	for _, c := range children {
		if c != nil {
			node.Children = append(node.Children, c)
		}
	}
	return node
}

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{Kind: KindText, Text: content}
}

// Raw creates an unescaped content node.
// Use with caution - can lead to XSS if content is user-provided.
func Raw(content string) *VNode {
	return &VNode{Kind: KindRaw, Text: content}
}

// Attr returns the value of an attribute.
func (v *VNode) Attr(name string) (string, bool) {
	if v == nil || v.Props == nil {
		return "", false
	}
	val, ok := v.Props[name]
	return val, ok
}

// AttrNames returns the element's attribute names in sorted order.
func (v *VNode) AttrNames() []string {
	if v == nil {
		return nil
	}
	names := make([]string, 0, len(v.Props))
	for k := range v.Props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the node.
func (v *VNode) Clone() *VNode {
	if v == nil {
		return nil
	}
	out := &VNode{Kind: v.Kind, Tag: v.Tag, Text: v.Text, HID: v.HID}
	if v.Props != nil {
		out.Props = make(Props, len(v.Props))
		for k, val := range v.Props {
			out.Props[k] = val
		}
	}
	for _, c := range v.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// TextContent concatenates the text of all descendant text and raw nodes.
func (v *VNode) TextContent() string {
	if v == nil {
		return ""
	}
	if v.Kind != KindElement {
		return v.Text
	}
	var s string
	for _, c := range v.Children {
		s += c.TextContent()
	}
	return s
}
