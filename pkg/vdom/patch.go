package vdom

import "encoding/json"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
	PatchInsertNode PatchOp = 0x04 // Insert new node
	PatchRemoveNode PatchOp = 0x05 // Remove node
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the op by name.
func (op PatchOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// Patch represents a single DOM operation that was applied.
type Patch struct {
	Op       PatchOp `json:"op"`
	HID      string  `json:"hid,omitempty"`      // Target element
	Key      string  `json:"key,omitempty"`      // Attribute name (SetAttr/RemoveAttr)
	Value    string  `json:"value,omitempty"`    // New attribute value
	Node     *VNode  `json:"node,omitempty"`     // For InsertNode
	Index    int     `json:"index,omitempty"`    // Insert position
	ParentID string  `json:"parentId,omitempty"` // Parent for InsertNode
}
