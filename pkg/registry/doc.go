// Package registry tracks the live head-tag contributions of mounted
// components and the precedence order between them.
//
// Every contribution gets a sequence number when it is registered. The
// number never changes on Update and is never reused, so precedence is
// mount order: a contribution registered later wins, whether it belongs to
// a deeper descendant or a later sibling.
//
// A Registry is an explicit value owned by the composition root. There is
// no package-level registry.
package registry
