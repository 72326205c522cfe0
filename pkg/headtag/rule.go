package headtag

import (
	"strings"

	"github.com/vango-dev/headsync/internal/errors"
)

// KeyClause is one candidate way of deriving a declaration's identity key.
//
// A clause applies when every When guard matches (attribute values are
// compared case-insensitively), the Present attribute (if set) has a
// non-empty value, and it can produce a value: Const always can, Attr can
// when the attribute has a non-empty value, and Name can when the
// declaration has at least one non-null attribute.
type KeyClause struct {
	When    map[string]string `yaml:"when,omitempty" json:"when,omitempty"`
	Present string            `yaml:"present,omitempty" json:"present,omitempty"`
	Attr    string            `yaml:"attr,omitempty" json:"attr,omitempty"`
	Const   string            `yaml:"const,omitempty" json:"const,omitempty"`
	Name    bool              `yaml:"name,omitempty" json:"name,omitempty"`
	Qualify bool              `yaml:"qualify,omitempty" json:"qualify,omitempty"`
	Fold    bool              `yaml:"fold,omitempty" json:"fold,omitempty"`
}

func (c KeyClause) derive(d Declaration) (string, bool) {
	for name, want := range c.When {
		got, ok := d.Value(name)
		if !ok || !strings.EqualFold(got, want) {
			return "", false
		}
	}
	if c.Present != "" && !d.Has(c.Present) {
		return "", false
	}

	var key string
	switch {
	case c.Const != "":
		return c.Const, true
	case c.Attr != "":
		v, ok := d.Value(c.Attr)
		if !ok || v == "" {
			return "", false
		}
		key = v
		if c.Qualify {
			key = c.Attr + "=" + v
		}
	case c.Name:
		for _, name := range d.Names() {
			if _, ok := d.Value(name); ok {
				key = name
				break
			}
		}
		if key == "" {
			return "", false
		}
	default:
		return "", false
	}

	if c.Fold {
		key = strings.ToLower(key)
	}
	return key, true
}

// Rule is the validity predicate and key selector for one tag type.
type Rule struct {
	// Type is the tag type this rule governs.
	Type Type `yaml:"type" json:"type"`

	// Element is the HTML element the type materializes as. For root
	// rules it names the element whose attributes are managed.
	Element string `yaml:"element,omitempty" json:"element,omitempty"`

	// Root marks root-element attribute types (html, body).
	Root bool `yaml:"root,omitempty" json:"root,omitempty"`

	// Content names the pseudo-attribute rendered as element text.
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// RequireAll attributes must all be present, non-null and non-empty.
	RequireAll []string `yaml:"requireAll,omitempty" json:"requireAll,omitempty"`

	// RequireAny needs at least one of its attributes present, non-null
	// and non-empty. Ignored when empty.
	RequireAny []string `yaml:"requireAny,omitempty" json:"requireAny,omitempty"`

	// Key lists the key clauses in priority order. No clauses means the
	// type is unkeyed.
	Key []KeyClause `yaml:"key,omitempty" json:"key,omitempty"`
}

// Classification is the rule table's verdict on a declaration.
type Classification struct {
	Valid bool
	Key   string
	Keyed bool
}

// Valid reports whether d satisfies the rule's required attributes.
func (r Rule) Valid(d Declaration) bool {
	for _, name := range r.RequireAll {
		if !d.Has(name) {
			return false
		}
	}
	if len(r.RequireAny) > 0 {
		found := false
		for _, name := range r.RequireAny {
			if d.Has(name) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.Root {
		for _, name := range d.Names() {
			if _, ok := d.Value(name); ok {
				return true
			}
		}
		return false
	}
	return true
}

// Classify reports validity and the identity key of d.
func (r Rule) Classify(d Declaration) Classification {
	if !r.Valid(d) {
		return Classification{}
	}
	for _, clause := range r.Key {
		if key, ok := clause.derive(d); ok {
			return Classification{Valid: true, Key: key, Keyed: true}
		}
	}
	return Classification{Valid: true}
}

// ElementName returns the element the rule materializes as, defaulting to
// the type name.
func (r Rule) ElementName() string {
	if r.Element != "" {
		return r.Element
	}
	return string(r.Type)
}

// IsContent reports whether name is the rule's content pseudo-attribute.
func (r Rule) IsContent(name string) bool {
	return r.Content != "" && name == r.Content
}

func (r Rule) validate() error {
	if r.Type == "" {
		return errors.New("E201").WithDetail("rule has no type")
	}
	if r.Root && r.Element == "" {
		return errors.New("E201").WithDetailf("root rule %q has no element", r.Type)
	}
	for i, c := range r.Key {
		set := 0
		if c.Const != "" {
			set++
		}
		if c.Attr != "" {
			set++
		}
		if c.Name {
			set++
		}
		if set != 1 {
			return errors.New("E201").
				WithDetailf("rule %q key clause %d must set exactly one of const, attr, name", r.Type, i).
				WithSuggestion("Split the clause into one clause per key source")
		}
	}
	return nil
}
