package surface

import (
	"context"
	"testing"

	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/render"
)

func TestStringSurface(t *testing.T) {
	str := NewString(headtag.DefaultTable(), render.RendererConfig{})
	if got := str.Markup().Head(); got != "" {
		t.Errorf("initial Head() = %q, want empty", got)
	}

	c, err := str.Apply(context.Background(), setOf(
		registry.Tags{headtag.TypeLink: {canonical("/x")}},
		registry.Tags{headtag.TypeLink: {canonical("/y")}},
	))
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if c != (Changes{Added: 1}) {
		t.Errorf("Changes = %+v", c)
	}

	want := `<link data-managed="true" href="/y" rel="canonical">`
	if got := str.Markup().Type(headtag.TypeLink); got != want {
		t.Errorf("Type(link) = %q, want %q", got, want)
	}
}

func TestChanges(t *testing.T) {
	if !(Changes{Kept: 3}).Empty() {
		t.Error("kept-only changes should be empty")
	}
	got := Changes{Added: 1}.Add(Changes{Removed: 2, Kept: 1})
	if got != (Changes{Added: 1, Removed: 2, Kept: 1}) {
		t.Errorf("Add() = %+v", got)
	}
}

func TestMulti(t *testing.T) {
	table := headtag.DefaultTable()
	a := NewString(table, render.RendererConfig{})
	b := NewString(table, render.RendererConfig{Pretty: true})

	c, err := Multi(a, b).Apply(context.Background(), setOf(registry.Tags{headtag.TypeLink: {canonical("/x")}}))
	if err != nil {
		t.Fatal(err)
	}
	if c.Added != 2 {
		t.Errorf("Added = %d, want one per surface", c.Added)
	}
	if a.Markup().Head() == "" || b.Markup().Head() == "" {
		t.Error("every surface should receive the set")
	}
}
