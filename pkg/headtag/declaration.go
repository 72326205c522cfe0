package headtag

import (
	"sort"
	"strings"
)

// Type is a tag-type name such as "link" or "meta".
type Type string

// Built-in tag types.
const (
	TypeBase           Type = "base"
	TypeMeta           Type = "meta"
	TypeLink           Type = "link"
	TypeScript         Type = "script"
	TypeNoscript       Type = "noscript"
	TypeStyle          Type = "style"
	TypeTitle          Type = "title"
	TypeHTMLAttributes Type = "htmlAttributes"
	TypeBodyAttributes Type = "bodyAttributes"
)

// Marker is the attribute carried by every element the engine manages.
const Marker = "data-managed"

// Pseudo-attributes holding element content rather than a wire attribute.
const (
	ContentInnerHTML = "innerHTML"
	ContentCSSText   = "cssText"
	ContentText      = "text"
)

// A is a raw attribute bag. A nil value declares the attribute as null.
type A map[string]*string

// S returns a pointer to s, for building an A literal.
func S(s string) *string { return &s }

// Declaration is an immutable tag declaration.
type Declaration struct {
	typ   Type
	attrs map[string]*string
}

// New creates a declaration of type t. The attribute map is copied.
func New(t Type, attrs A) Declaration {
	d := Declaration{typ: t, attrs: make(map[string]*string, len(attrs))}
	for name, v := range attrs {
		if v != nil {
			val := *v
			v = &val
		}
		d.attrs[name] = v
	}
	return d
}

// Base creates a <base> declaration.
func Base(attrs A) Declaration { return New(TypeBase, attrs) }

// Meta creates a <meta> declaration.
func Meta(attrs A) Declaration { return New(TypeMeta, attrs) }

// Link creates a <link> declaration.
func Link(attrs A) Declaration { return New(TypeLink, attrs) }

// Script creates a <script> declaration. The body goes in ContentInnerHTML.
func Script(attrs A) Declaration { return New(TypeScript, attrs) }

// Noscript creates a <noscript> declaration. The body goes in
// ContentInnerHTML.
func Noscript(attrs A) Declaration { return New(TypeNoscript, attrs) }

// Style creates a <style> declaration. The stylesheet goes in ContentCSSText.
func Style(attrs A) Declaration { return New(TypeStyle, attrs) }

// Title creates a title declaration with text as its content.
func Title(text string, attrs A) Declaration {
	d := New(TypeTitle, attrs)
	d.attrs[ContentText] = &text
	return d
}

// HTMLAttributes splits a bag of <html> attributes into one declaration
// per attribute, so each attribute is overridden independently.
func HTMLAttributes(attrs A) []Declaration { return SplitRoot(TypeHTMLAttributes, attrs) }

// BodyAttributes is HTMLAttributes for the <body> element.
func BodyAttributes(attrs A) []Declaration { return SplitRoot(TypeBodyAttributes, attrs) }

// SplitRoot makes one declaration of type t per attribute, in name order.
func SplitRoot(t Type, attrs A) []Declaration {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Declaration, 0, len(names))
	for _, name := range names {
		out = append(out, New(t, A{name: attrs[name]}))
	}
	return out
}

// Type returns the declaration's tag type.
func (d Declaration) Type() Type { return d.typ }

// Value returns the attribute value. ok is false when the attribute is
// absent or null.
func (d Declaration) Value(name string) (value string, ok bool) {
	v, present := d.attrs[name]
	if !present || v == nil {
		return "", false
	}
	return *v, true
}

// Lookup reports whether the attribute was declared at all, returning its
// value which may be nil.
func (d Declaration) Lookup(name string) (*string, bool) {
	v, ok := d.attrs[name]
	if !ok || v == nil {
		return nil, ok
	}
	val := *v
	return &val, true
}

// Has returns true if the attribute is present with a non-empty value.
func (d Declaration) Has(name string) bool {
	v, ok := d.Value(name)
	return ok && v != ""
}

// Names returns the declared attribute names in sorted order, nulls included.
func (d Declaration) Names() []string {
	names := make([]string, 0, len(d.attrs))
	for name := range d.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attrs returns a copy of the attribute map.
func (d Declaration) Attrs() A {
	out := make(A, len(d.attrs))
	for name, v := range d.attrs {
		if v != nil {
			val := *v
			v = &val
		}
		out[name] = v
	}
	return out
}

// Len returns the number of declared attributes.
func (d Declaration) Len() int { return len(d.attrs) }

// Signature is an order-independent serialization of the non-null
// attributes. Two declarations with equal signatures materialize as the
// same element.
func (d Declaration) Signature() string {
	var b strings.Builder
	b.WriteString(string(d.typ))
	for _, name := range d.Names() {
		v := d.attrs[name]
		if v == nil {
			continue
		}
		b.WriteByte(0)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(*v)
	}
	return b.String()
}

// String returns a readable form for logs and test output.
func (d Declaration) String() string {
	var b strings.Builder
	b.WriteString(string(d.typ))
	b.WriteByte('{')
	for i, name := range d.Names() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		b.WriteByte(':')
		if v := d.attrs[name]; v != nil {
			b.WriteString(*v)
		} else {
			b.WriteString("null")
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Equal reports whether both declarations have the same type and the same
// attributes, null values included.
func (d Declaration) Equal(other Declaration) bool {
	if d.typ != other.typ || len(d.attrs) != len(other.attrs) {
		return false
	}
	for name, v := range d.attrs {
		ov, ok := other.attrs[name]
		if !ok || (v == nil) != (ov == nil) {
			return false
		}
		if v != nil && *v != *ov {
			return false
		}
	}
	return true
}
