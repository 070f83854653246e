package aip

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a catalog document is neither a list of
// nodes nor a single node.
var ErrInvalidInput = errors.New("aip: catalog is neither a list nor a record")

// Node is one entry of a catalog tree as the portal publishes it.
type Node struct {
	Name string
	// "Y" when the entry changed in this release, anything else otherwise
	IsModified   string
	DocumentPath string
	Children     []Node
}

func (n Node) Modified() bool {
	return n.IsModified == "Y"
}

type wireNode struct {
	Name         json.RawMessage `json:"name_cn"`
	IsModified   json.RawMessage `json:"Is_Modified"`
	DocumentPath json.RawMessage `json:"pdfPath"`
	Children     json.RawMessage `json:"children"`
}

// UnmarshalJSON is lenient: non-string labels are kept as their JSON text,
// a missing modification flag reads as "N" and children that are not
// objects are skipped.
func (n *Node) UnmarshalJSON(b []byte) error {
	var wire wireNode
	err := json.Unmarshal(b, &wire)
	if err != nil {
		return err
	}

	n.Name = scalarText(wire.Name)
	n.IsModified = scalarText(wire.IsModified)
	if n.IsModified == "" {
		n.IsModified = "N"
	}
	n.DocumentPath = scalarText(wire.DocumentPath)

	n.Children = nil
	var children []json.RawMessage
	if json.Unmarshal(wire.Children, &children) != nil {
		return nil
	}
	n.Children, err = decodeList(children)
	return err
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"name_cn":     n.Name,
		"Is_Modified": n.IsModified,
		"children":    n.Children,
	}
	if n.DocumentPath != "" {
		out["pdfPath"] = n.DocumentPath
	}
	if n.Children == nil {
		out["children"] = []Node{}
	}
	return json.Marshal(out)
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var compact bytes.Buffer
	if json.Compact(&compact, raw) == nil {
		return compact.String()
	}
	return string(raw)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func decodeList(items []json.RawMessage) ([]Node, error) {
	var out []Node
	for _, item := range items {
		if !isObject(item) {
			continue
		}
		var node Node
		err := json.Unmarshal(item, &node)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// Decode parses a catalog document. A single record is treated as a
// one-element list, an empty document yields no nodes.
func Decode(raw []byte) ([]Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidInput)
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		err := json.Unmarshal(raw, &items)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		return decodeList(items)
	case '{':
		if bytes.Equal(raw, []byte("{}")) {
			return nil, nil
		}
		var node Node
		err := json.Unmarshal(raw, &node)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		return []Node{node}, nil
	}
	return nil, fmt.Errorf("%w: found %q", ErrInvalidInput, raw[:1])
}

// FilteredNode is a node that survived filtering.
type FilteredNode struct {
	Name       string         `json:"name_cn"`
	IsModified string         `json:"Is_Modified"`
	Children   []FilteredNode `json:"children"`
}

func (n FilteredNode) Modified() bool {
	return n.IsModified == "Y"
}

// Node converts n back into a catalog node so it can be filtered again.
func (n FilteredNode) Node() Node {
	out := Node{Name: n.Name, IsModified: n.IsModified}
	for _, child := range n.Children {
		out.Children = append(out.Children, child.Node())
	}
	return out
}

// Count returns how many nodes the tree holds.
func Count(tree []FilteredNode) int {
	n := 0
	for _, node := range tree {
		n += 1 + Count(node.Children)
	}
	return n
}
