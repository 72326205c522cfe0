package surface

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/vdom"
)

// Target is a mutable document. *vdom.Document implements it.
type Target interface {
	Head() *vdom.VNode
	Root(tag string) *vdom.VNode
	AppendChild(parent, child *vdom.VNode) error
	RemoveChild(parent, child *vdom.VNode) error
	SetAttr(node *vdom.VNode, key, value string) error
	RemoveAttr(node *vdom.VNode, key string) error
	Commit() []vdom.Patch
}

type element struct {
	sig  string
	node *vdom.VNode
}

// DOM keeps a live target in step with the canonical set, mutating only
// elements whose attribute set changed. Elements without the marker
// attribute are never touched.
type DOM struct {
	table  *headtag.Table
	target Target
	logger *slog.Logger

	mu      sync.Mutex
	managed map[headtag.Type][]element
	roots   map[headtag.Type][]string
}

// NewDOM creates a live surface over target. Marker-bearing elements
// already in the target, such as server-rendered markup, are adopted as
// managed so a matching first Apply keeps them.
func NewDOM(table *headtag.Table, target Target, logger *slog.Logger) *DOM {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DOM{
		table:   table,
		target:  target,
		logger:  logger.With("component", "surface"),
		managed: make(map[headtag.Type][]element),
		roots:   make(map[headtag.Type][]string),
	}
	d.adopt()
	return d
}

func (d *DOM) adopt() {
	adopted := 0
	for _, child := range d.target.Head().Children {
		if _, ok := child.Attr(headtag.Marker); !ok || child.Kind != vdom.KindElement {
			continue
		}
		rule, ok := d.ruleForElement(child.Tag)
		if !ok {
			continue
		}
		d.managed[rule.Type] = append(d.managed[rule.Type], element{
			sig:  declarationOf(rule, child).Signature(),
			node: child,
		})
		adopted++
	}
	for _, rule := range d.table.Rules() {
		if !rule.Root {
			continue
		}
		node := d.target.Root(rule.ElementName())
		marker, ok := node.Attr(headtag.Marker)
		if !ok || marker == "" {
			continue
		}
		d.roots[rule.Type] = strings.Split(marker, ",")
		adopted += len(d.roots[rule.Type])
	}
	if adopted > 0 {
		d.logger.Debug("adopted server-rendered tags", "count", adopted)
	}
}

func (d *DOM) ruleForElement(tag string) (headtag.Rule, bool) {
	for _, r := range d.table.Rules() {
		if !r.Root && r.ElementName() == tag {
			return r, true
		}
	}
	return headtag.Rule{}, false
}

// declarationOf rebuilds the declaration an element was rendered from.
func declarationOf(rule headtag.Rule, node *vdom.VNode) headtag.Declaration {
	attrs := make(headtag.A, len(node.Props))
	for k, v := range node.Props {
		if k == headtag.Marker {
			continue
		}
		attrs[k] = headtag.S(v)
	}
	if rule.Content != "" {
		if text := node.TextContent(); text != "" {
			attrs[rule.Content] = headtag.S(text)
		}
	}
	return headtag.New(rule.Type, attrs)
}

// Apply diffs set against the previously applied state and mutates the
// target. A target error stops Apply immediately; mutations already made
// stay applied and are remembered, so the next Apply continues from the
// actual target state.
func (d *DOM) Apply(ctx context.Context, set reconcile.Set) (Changes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.target.Commit()

	var total Changes
	for _, rule := range d.table.Rules() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var (
			c   Changes
			err error
		)
		if rule.Root {
			c, err = d.applyRoot(rule, set.Entries(rule.Type))
		} else {
			c, err = d.applyType(rule, set.Entries(rule.Type))
		}
		total = total.Add(c)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *DOM) applyType(rule headtag.Rule, entries []reconcile.Entry) (Changes, error) {
	var c Changes
	head := d.target.Head()

	want := make(map[string]int, len(entries))
	for _, e := range entries {
		want[e.Decl.Signature()]++
	}

	prev := d.managed[rule.Type]
	next := make([]element, 0, len(entries))
	for i, el := range prev {
		if want[el.sig] > 0 {
			want[el.sig]--
			next = append(next, el)
			c.Kept++
			continue
		}
		if err := d.target.RemoveChild(head, el.node); err != nil {
			d.managed[rule.Type] = append(next, prev[i:]...)
			return c, mutationError(err, "remove", rule.Type)
		}
		c.Removed++
	}

	have := make(map[string]int, len(next))
	for _, el := range next {
		have[el.sig]++
	}
	for _, e := range entries {
		sig := e.Decl.Signature()
		if have[sig] > 0 {
			have[sig]--
			continue
		}
		node := render.Node(rule, e.Decl)
		if err := d.target.AppendChild(head, node); err != nil {
			d.managed[rule.Type] = next
			return c, mutationError(err, "append", rule.Type)
		}
		next = append(next, element{sig: sig, node: node})
		c.Added++
	}

	d.managed[rule.Type] = next
	return c, nil
}

func (d *DOM) applyRoot(rule headtag.Rule, entries []reconcile.Entry) (Changes, error) {
	var c Changes
	node := d.target.Root(rule.ElementName())
	if node == nil {
		if len(entries) == 0 {
			return c, nil
		}
		return c, errors.New("E300").WithDetailf("target has no <%s> element", rule.ElementName())
	}

	names, values := render.RootAttrs(entries)

	// Managed names only ever shrink through a successful RemoveAttr and
	// grow through a successful SetAttr.
	prev := d.roots[rule.Type]
	managed := make([]string, 0, len(prev))
	for i, name := range prev {
		if _, ok := values[name]; ok {
			managed = append(managed, name)
			continue
		}
		if err := d.target.RemoveAttr(node, name); err != nil {
			d.roots[rule.Type] = append(managed, prev[i:]...)
			return c, mutationError(err, "removeAttr", rule.Type)
		}
		c.Removed++
	}
	d.roots[rule.Type] = managed

	for _, name := range names {
		if cur, ok := node.Attr(name); ok && cur == values[name] && contains(managed, name) {
			c.Kept++
			continue
		}
		if err := d.target.SetAttr(node, name, values[name]); err != nil {
			return c, mutationError(err, "setAttr", rule.Type)
		}
		if !contains(managed, name) {
			managed = append(managed, name)
			d.roots[rule.Type] = managed
		}
		c.Added++
	}
	d.roots[rule.Type] = names

	var err error
	if len(names) == 0 {
		err = d.target.RemoveAttr(node, headtag.Marker)
	} else {
		err = d.target.SetAttr(node, headtag.Marker, strings.Join(names, ","))
	}
	if err != nil {
		return c, mutationError(err, "marker", rule.Type)
	}
	return c, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Managed returns the number of managed elements per type.
func (d *DOM) Managed() map[headtag.Type]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[headtag.Type]int, len(d.managed)+len(d.roots))
	for t, els := range d.managed {
		out[t] = len(els)
	}
	for t, names := range d.roots {
		out[t] = len(names)
	}
	return out
}

func mutationError(err error, op string, t headtag.Type) error {
	return errors.New("E300").WithDetailf("%s %s", op, t).Wrap(err)
}
