// Package headtag defines document-head tag types, immutable tag
// declarations, and the rule table that decides which declarations are
// valid and what identity key each one carries.
//
// # Declarations
//
// A Declaration is a tag type plus an attribute map from name to optional
// value. A nil value means the attribute was declared as null:
//
//	canonical := headtag.Link(headtag.A{
//	    "rel":  headtag.S("canonical"),
//	    "href": headtag.S("https://example.com/"),
//	})
//
// Declarations are copied on construction and never change afterwards.
//
// # Rules
//
// Each Rule answers two questions for its tag type: is a declaration valid,
// and which key identifies it. Keys are derived from KeyClauses; the first
// clause that applies wins, and a declaration no clause applies to is
// unkeyed.
//
// The link rule is the reference example:
//
//	rel="stylesheet"  key = href
//	anything else     key = rel
//
// Tables are plain data. LoadTable reads YAML and merges it over
// DefaultTable, so new tag types or rule changes never touch the
// reconciliation code.
package headtag
