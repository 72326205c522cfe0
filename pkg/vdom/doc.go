// Package vdom provides the in-memory document model headsync mutates.
//
// A Document is a small virtual DOM of <html>, <head> and <body>. Every
// mutation made through it is recorded as a Patch, so a live surface can
// keep a remote browser's head in step by shipping patches instead of
// re-rendering.
//
// # Core Types
//
// VNode is an element, text, or raw-HTML node. Elements carry string
// attributes in Props and a hydration ID (HID) once attached to a
// Document. Patch describes one applied mutation.
//
// # Patches
//
//	doc := vdom.NewDocument()
//	doc.AppendChild(doc.Head(), vdom.Element("link", vdom.Props{"rel": "canonical"}))
//	for _, p := range doc.Commit() {
//	    fmt.Println(p.Op, p.HID)
//	}
package vdom
