package graphapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// NodeRef is an indirect input value pointing at another node's output.
// It is the graph's only edge representation.
type NodeRef struct {
	NodeID      string
	OutputIndex int
}

// InputValue is one named input of a WorkflowNode: either a literal scalar
// (string, number, bool, or nested structure) or a NodeRef encoded on the
// wire as a two element [node_id, output_index] array.
type InputValue struct {
	raw any
	ref *NodeRef
}

func (v *InputValue) UnmarshalJSON(b []byte) error {
	// UseNumber keeps numeric literals intact; seeds overflow float64
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v.raw = raw
	v.ref = nil

	// detect the [node_id, output_index] link form
	if arr, ok := raw.([]any); ok && len(arr) == 2 {
		id, idok := arr[0].(string)
		idx, ixok := arr[1].(json.Number)
		if idok && ixok {
			if i, err := idx.Int64(); err == nil {
				v.ref = &NodeRef{NodeID: id, OutputIndex: int(i)}
			}
		}
	}
	return nil
}

func (v InputValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// Raw returns the decoded value as-is.
func (v InputValue) Raw() any {
	return v.raw
}

// Ref returns the link target, or nil for literal values.
func (v InputValue) Ref() *NodeRef {
	return v.ref
}

func (v InputValue) IsRef() bool {
	return v.ref != nil
}

// Map returns the value as a string keyed map if it is one.
func (v InputValue) Map() (map[string]any, bool) {
	m, ok := v.raw.(map[string]any)
	return m, ok
}

// WorkflowNode is one step of a workflow graph in the prompt (API) format:
// a class type name plus a mapping of named inputs. Input iteration order
// follows the JSON document. Nodes in the UI format carry "type" instead of
// "class_type"; that is accepted as a fallback.
type WorkflowNode struct {
	ClassType string

	inputs     map[string]InputValue
	inputOrder []string
}

func (n *WorkflowNode) UnmarshalJSON(b []byte) error {
	var alias struct {
		ClassType string          `json:"class_type"`
		Type      string          `json:"type"`
		Inputs    json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}

	n.ClassType = alias.ClassType
	if n.ClassType == "" {
		n.ClassType = alias.Type
	}
	n.inputs = make(map[string]InputValue)
	n.inputOrder = nil

	if len(alias.Inputs) == 0 || bytes.Equal(alias.Inputs, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(alias.Inputs, &n.inputs); err != nil {
		// tolerate non-map inputs (UI format uses an array of slots)
		n.inputs = make(map[string]InputValue)
		return nil
	}
	order, err := objectKeyOrder(alias.Inputs)
	if err != nil {
		order = sortedKeys(n.inputs)
	}
	n.inputOrder = order
	return nil
}

// Input returns the named input value.
func (n *WorkflowNode) Input(name string) (InputValue, bool) {
	v, ok := n.inputs[name]
	return v, ok
}

// InputNames returns the input names in document order.
func (n *WorkflowNode) InputNames() []string {
	return n.inputOrder
}

// WorkflowGraph is a mapping from node identifier to WorkflowNode that
// preserves the node order of the JSON document it was decoded from, so
// "first node of a class type" is deterministic.
type WorkflowGraph struct {
	ids   []string
	nodes map[string]*WorkflowNode
}

func (g *WorkflowGraph) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	order, err := objectKeyOrder(b)
	if err != nil {
		return err
	}

	g.ids = make([]string, 0, len(order))
	g.nodes = make(map[string]*WorkflowNode, len(order))
	for _, id := range order {
		node := &WorkflowNode{}
		if err := json.Unmarshal(raw[id], node); err != nil {
			// entries that are not node shaped are skipped, not fatal
			continue
		}
		g.ids = append(g.ids, id)
		g.nodes[id] = node
	}
	return nil
}

// Len returns the number of nodes in the graph.
func (g *WorkflowGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.ids)
}

// NodeIDs returns the node identifiers in document order.
func (g *WorkflowGraph) NodeIDs() []string {
	return g.ids
}

// Node returns the node with the given identifier.
func (g *WorkflowGraph) Node(id string) (*WorkflowNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// FirstWithClassType returns the first node (in document order) with the
// given class type, or nil.
func (g *WorkflowGraph) FirstWithClassType(classType string) *WorkflowNode {
	for _, id := range g.ids {
		if g.nodes[id].ClassType == classType {
			return g.nodes[id]
		}
	}
	return nil
}

// NodesWithClassType returns all nodes with the given class type in
// document order.
func (g *WorkflowGraph) NodesWithClassType(classType string) []*WorkflowNode {
	retv := make([]*WorkflowNode, 0)
	for _, id := range g.ids {
		if g.nodes[id].ClassType == classType {
			retv = append(retv, g.nodes[id])
		}
	}
	return retv
}

// ResolveRef follows a NodeRef one hop to its target node.
func (g *WorkflowGraph) ResolveRef(ref *NodeRef) (*WorkflowNode, bool) {
	if ref == nil {
		return nil, false
	}
	n, ok := g.nodes[ref.NodeID]
	return n, ok
}

// graphFromNodeList normalizes the sequence form of a node collection
// (workflow "nodes" arrays) into a graph. Elements are keyed by their "id"
// field when present, else by list index.
func graphFromNodeList(b []byte) (*WorkflowGraph, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}

	g := &WorkflowGraph{nodes: make(map[string]*WorkflowNode, len(items))}
	for i, item := range items {
		node := &WorkflowNode{}
		if err := json.Unmarshal(item, node); err != nil {
			continue
		}
		var withID struct {
			ID json.Number `json:"id"`
		}
		id := strconv.Itoa(i)
		if err := json.Unmarshal(item, &withID); err == nil && withID.ID.String() != "" {
			id = withID.ID.String()
		}
		g.ids = append(g.ids, id)
		g.nodes[id] = node
	}
	return g, nil
}

// objectKeyOrder returns the top level keys of a JSON object in document
// order. encoding/json maps lose that order, so it is captured separately
// with a token walk.
func objectKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("unexpected token in object position")
		}
		keys = append(keys, key)

		// consume the value
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func sortedKeys(m map[string]InputValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
