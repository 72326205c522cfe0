package registry

import (
	"sort"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
)

// Document is the wire form of a contribution: tag type to attribute bags.
// Root types take a single bag that is split per attribute; the title type
// reads its content from the "text" attribute. It decodes from both JSON
// and YAML, with null attribute values kept as null.
type Document map[string][]headtag.A

// Tags converts d into Tags, rejecting types table has no rule for.
func (d Document) Tags(table *headtag.Table) (Tags, error) {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	tags := make(Tags, len(d))
	for _, name := range names {
		typ := headtag.Type(name)
		rule, ok := table.Rule(typ)
		if !ok {
			return nil, errors.New("E401").
				WithDetailf("tag type %q", name).
				WithSuggestion("Add a rule for the type or use one of the built-in types")
		}
		for _, attrs := range d[name] {
			if rule.Root {
				tags[typ] = append(tags[typ], headtag.SplitRoot(typ, attrs)...)
				continue
			}
			tags[typ] = append(tags[typ], headtag.New(typ, attrs))
		}
	}
	return tags, nil
}

// Document converts tags back to wire form.
func (t Tags) Document() Document {
	d := make(Document, len(t))
	for typ, decls := range t {
		bags := make([]headtag.A, 0, len(decls))
		for _, decl := range decls {
			bags = append(bags, decl.Attrs())
		}
		d[string(typ)] = bags
	}
	return d
}
