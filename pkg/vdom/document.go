package vdom

import (
	"fmt"
	"sync"
)

// Document is an in-memory <html> tree with <head> and <body> children.
// Mutations are recorded as patches until Commit drains them.
//
// Document is safe for concurrent use.
type Document struct {
	mu      sync.Mutex
	root    *VNode
	head    *VNode
	body    *VNode
	hids    *HIDGenerator
	byHID   map[string]*VNode
	pending []Patch

	subMu  sync.Mutex
	subs   map[int]func([]Patch)
	nextID int
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	d := &Document{
		hids:  NewHIDGenerator(),
		byHID: make(map[string]*VNode),
		subs:  make(map[int]func([]Patch)),
	}
	d.head = Element("head", nil)
	d.body = Element("body", nil)
	d.root = Element("html", nil, d.head, d.body)
	d.index(d.root)
	return d
}

// NodeError reports an operation against a node the document does not own.
type NodeError struct {
	Op  string
	HID string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("vdom: %s: node %q is not in this document", e.Op, e.HID)
}

func (d *Document) index(n *VNode) {
	AssignHIDs(n, d.hids)
	var walk func(*VNode)
	walk = func(v *VNode) {
		if v.Kind != KindElement {
			return
		}
		d.byHID[v.HID] = v
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(n)
}

func (d *Document) unindex(n *VNode) {
	if n.Kind != KindElement {
		return
	}
	delete(d.byHID, n.HID)
	for _, c := range n.Children {
		d.unindex(c)
	}
}

// Head returns the <head> element.
func (d *Document) Head() *VNode { return d.head }

// Root returns the element named tag among html, head and body, or nil.
func (d *Document) Root(tag string) *VNode {
	switch tag {
	case "html":
		return d.root
	case "head":
		return d.head
	case "body":
		return d.body
	default:
		return nil
	}
}

// Query returns the children of <head> with the given tag that carry attr.
// An empty tag matches any element.
func (d *Document) Query(tag, attr string) []*VNode {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*VNode
	for _, c := range d.head.Children {
		if c.Kind != KindElement || (tag != "" && c.Tag != tag) {
			continue
		}
		if _, ok := c.Props[attr]; ok {
			out = append(out, c)
		}
	}
	return out
}

// AppendChild attaches child as the last child of parent.
func (d *Document) AppendChild(parent, child *VNode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if parent == nil || d.byHID[parent.HID] != parent {
		return &NodeError{Op: "append", HID: hidOf(parent)}
	}
	d.index(child)
	parent.Children = append(parent.Children, child)
	d.pending = append(d.pending, Patch{
		Op:       PatchInsertNode,
		ParentID: parent.HID,
		Index:    len(parent.Children) - 1,
		Node:     child.Clone(),
	})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *VNode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if parent == nil || d.byHID[parent.HID] != parent {
		return &NodeError{Op: "remove", HID: hidOf(parent)}
	}
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			d.unindex(child)
			d.pending = append(d.pending, Patch{Op: PatchRemoveNode, HID: child.HID})
			return nil
		}
	}
	return &NodeError{Op: "remove", HID: hidOf(child)}
}

// SetAttr sets an attribute on a node owned by the document.
func (d *Document) SetAttr(node *VNode, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node == nil || d.byHID[node.HID] != node {
		return &NodeError{Op: "setAttr", HID: hidOf(node)}
	}
	if node.Props == nil {
		node.Props = make(Props)
	}
	if cur, ok := node.Props[key]; ok && cur == value {
		return nil
	}
	node.Props[key] = value
	d.pending = append(d.pending, Patch{Op: PatchSetAttr, HID: node.HID, Key: key, Value: value})
	return nil
}

// RemoveAttr removes an attribute from a node owned by the document.
func (d *Document) RemoveAttr(node *VNode, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node == nil || d.byHID[node.HID] != node {
		return &NodeError{Op: "removeAttr", HID: hidOf(node)}
	}
	if _, ok := node.Props[key]; !ok {
		return nil
	}
	delete(node.Props, key)
	d.pending = append(d.pending, Patch{Op: PatchRemoveAttr, HID: node.HID, Key: key})
	return nil
}

// Snapshot returns a deep copy of the <html> tree.
func (d *Document) Snapshot() *VNode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root.Clone()
}

// Commit drains the recorded patches and hands them to every subscriber.
// Nothing is delivered when no patch is pending.
func (d *Document) Commit() []Patch {
	d.mu.Lock()
	patches := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(patches) == 0 {
		return nil
	}

	d.subMu.Lock()
	subs := make([]func([]Patch), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.subMu.Unlock()

	for _, fn := range subs {
		fn(patches)
	}
	return patches
}

// Subscribe registers fn to receive every committed batch of patches.
// The returned function cancels the subscription.
func (d *Document) Subscribe(fn func([]Patch)) func() {
	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func hidOf(n *VNode) string {
	if n == nil {
		return ""
	}
	return n.HID
}
