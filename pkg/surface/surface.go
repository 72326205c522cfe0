// Package surface applies a reconciled tag set to a target.
//
// Two implementations share the Surface interface. DOM mutates a live
// document and only touches what changed since the previous Apply. String
// is stateless and renders the whole set to markup every time.
package surface

import (
	"context"
	"sync"

	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/render"
)

// Surface makes a target reflect a canonical set.
type Surface interface {
	Apply(ctx context.Context, set reconcile.Set) (Changes, error)
}

// Changes counts what one Apply did. For root types the unit is a single
// attribute rather than an element.
type Changes struct {
	Added   int
	Removed int
	Kept    int
}

// Empty reports whether Apply changed nothing.
func (c Changes) Empty() bool {
	return c.Added == 0 && c.Removed == 0
}

// Add returns the element-wise sum of c and o.
func (c Changes) Add(o Changes) Changes {
	return Changes{
		Added:   c.Added + o.Added,
		Removed: c.Removed + o.Removed,
		Kept:    c.Kept + o.Kept,
	}
}

// String renders each applied set to static markup. It keeps no element
// state, so every entry counts as added.
type String struct {
	table  *headtag.Table
	config render.RendererConfig

	mu     sync.RWMutex
	markup render.Markup
}

// NewString creates a string surface for table.
func NewString(table *headtag.Table, config render.RendererConfig) *String {
	return &String{
		table:  table,
		config: config,
		markup: render.Head(table, reconcile.Set{}, config),
	}
}

// Apply renders set and stores the result.
func (s *String) Apply(ctx context.Context, set reconcile.Set) (Changes, error) {
	if err := ctx.Err(); err != nil {
		return Changes{}, err
	}
	m := render.Head(s.table, set, s.config)

	s.mu.Lock()
	s.markup = m
	s.mu.Unlock()

	return Changes{Added: set.Len()}, nil
}

// Markup returns the markup of the most recent Apply.
func (s *String) Markup() render.Markup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markup
}

type multi []Surface

// Multi applies every set to each surface in order and sums their changes.
// The first error stops the chain.
func Multi(surfaces ...Surface) Surface {
	return multi(surfaces)
}

func (m multi) Apply(ctx context.Context, set reconcile.Set) (Changes, error) {
	var total Changes
	for _, s := range m {
		c, err := s.Apply(ctx, set)
		total = total.Add(c)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
