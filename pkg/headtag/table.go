package headtag

import "github.com/vango-dev/headsync/internal/errors"

// Table is an ordered, immutable set of rules, one per tag type.
// Table order is the order tag types are reconciled and rendered in.
type Table struct {
	rules []Rule
	index map[Type]int
}

// NewTable builds a table from rules. Duplicate or malformed rules are errors.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[Type]int, len(rules)),
	}
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.index[r.Type]; dup {
			return nil, errors.New("E202").WithDetailf("type %q declared twice", r.Type)
		}
		t.index[r.Type] = len(t.rules)
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// MustTable is NewTable that panics on error. Intended for package-level tables.
func MustTable(rules ...Rule) *Table {
	t, err := NewTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// defaultRules is the built-in rule set. Only the link rule is pinned by
// behaviour; the others follow the usual head-manager conventions.
func defaultRules() []Rule {
	return []Rule{
		{
			Type:    TypeHTMLAttributes,
			Element: "html",
			Root:    true,
			Key:     []KeyClause{{Name: true}},
		},
		{
			Type:    TypeBodyAttributes,
			Element: "body",
			Root:    true,
			Key:     []KeyClause{{Name: true}},
		},
		{
			Type:       TypeTitle,
			Content:    ContentText,
			RequireAny: []string{ContentText},
			Key:        []KeyClause{{Const: "title"}},
		},
		{
			Type:       TypeBase,
			RequireAny: []string{"href", "target"},
			Key:        []KeyClause{{Const: "base"}},
		},
		{
			Type:       TypeMeta,
			RequireAny: []string{"name", "charset", "http-equiv", "property", "itemprop"},
			Key: []KeyClause{
				{Present: "charset", Const: "charset"},
				{Attr: "name", Qualify: true, Fold: true},
				{Attr: "http-equiv", Qualify: true, Fold: true},
				{Attr: "property", Qualify: true, Fold: true},
				{Attr: "itemprop", Qualify: true, Fold: true},
			},
		},
		{
			Type:       TypeLink,
			RequireAll: []string{"rel", "href"},
			Key: []KeyClause{
				{When: map[string]string{"rel": "stylesheet"}, Attr: "href", Qualify: true},
				{Attr: "rel", Qualify: true, Fold: true},
			},
		},
		{
			Type:       TypeStyle,
			Content:    ContentCSSText,
			RequireAny: []string{ContentCSSText},
			Key:        []KeyClause{{Attr: ContentCSSText}},
		},
		{
			Type:       TypeScript,
			Content:    ContentInnerHTML,
			RequireAny: []string{"src", ContentInnerHTML},
			Key:        []KeyClause{{Attr: "src"}, {Attr: ContentInnerHTML}},
		},
		{
			Type:       TypeNoscript,
			Content:    ContentInnerHTML,
			RequireAny: []string{ContentInnerHTML},
			Key:        []KeyClause{{Attr: ContentInnerHTML}},
		},
	}
}

var defaultTable = MustTable(defaultRules()...)

// DefaultTable returns the built-in rule table.
func DefaultTable() *Table {
	return defaultTable
}

// Rule returns the rule for t.
func (t *Table) Rule(typ Type) (Rule, bool) {
	i, ok := t.index[typ]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}

// Rules returns a copy of the rules in table order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Types returns the tag types in table order.
func (t *Table) Types() []Type {
	out := make([]Type, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.Type
	}
	return out
}

// Classify answers whether d is a valid declaration of typ and what its key
// is. Types without a rule are never valid.
func (t *Table) Classify(typ Type, d Declaration) Classification {
	r, ok := t.Rule(typ)
	if !ok {
		return Classification{}
	}
	return r.Classify(d)
}

// With returns a copy of t where each given rule replaces the rule of the
// same type, or is appended if the type is new.
func (t *Table) With(rules ...Rule) (*Table, error) {
	merged := t.Rules()
	for _, r := range rules {
		if i, ok := t.index[r.Type]; ok {
			merged[i] = r
			continue
		}
		merged = append(merged, r)
	}
	return NewTable(merged...)
}
