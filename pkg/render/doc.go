// Package render turns reconciled head tags into HTML.
//
// It has two layers. Renderer writes any vdom tree as HTML5, escaping text
// and attribute values and emitting void elements without closing tags.
// Head builds the managed elements for a reconciled set and exposes the
// server-side rendering strings a page template needs:
//
//	markup := render.Head(table, set, render.RendererConfig{})
//	fmt.Fprintf(w, "<html %s><head>%s</head>", markup.Attributes(headtag.TypeHTMLAttributes), markup.Head())
//
// Every element produced by Node carries the data-managed="true" marker so a
// live surface can tell managed elements from page-authored ones.
package render
