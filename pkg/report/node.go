// Package report holds the nested, insertion-ordered usage report tree and
// its serializations.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Node is an insertion-ordered string-keyed map. Values are scalars,
// string slices, Histograms or nested *Node values.
type Node struct {
	entries *orderedmap.OrderedMap[string, any]
}

// NewNode creates an empty node.
func NewNode() *Node {
	return &Node{entries: orderedmap.New[string, any]()}
}

// Set stores value under key. An existing key keeps its position.
func (n *Node) Set(key string, value any) {
	n.entries.Set(key, value)
}

// Get returns the value stored under key.
func (n *Node) Get(key string) (any, bool) {
	return n.entries.Get(key)
}

// Child returns the nested node stored under key.
func (n *Node) Child(key string) (*Node, bool) {
	value, ok := n.entries.Get(key)
	if !ok {
		return nil, false
	}

	child, ok := value.(*Node)

	return child, ok
}

// Lookup walks nested nodes along path.
func (n *Node) Lookup(path ...string) (any, bool) {
	var current any = n

	for _, key := range path {
		node, ok := current.(*Node)
		if !ok {
			return nil, false
		}

		current, ok = node.Get(key)
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Len returns the number of keys.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}

	return n.entries.Len()
}

// Keys returns the keys in insertion order.
func (n *Node) Keys() []string {
	keys := make([]string, 0, n.Len())

	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Each calls fn for every entry in insertion order.
func (n *Node) Each(fn func(key string, value any)) {
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Merge copies src into n key by key. When both sides hold a node under the
// same key the merge recurses; any other collision is won by src.
func (n *Node) Merge(src *Node) {
	if src == nil {
		return
	}

	src.Each(func(key string, value any) {
		incoming, incomingIsNode := value.(*Node)

		existing, ok := n.Child(key)
		if ok && incomingIsNode {
			existing.Merge(incoming)

			return
		}

		if incomingIsNode {
			value = incoming.Clone()
		}

		n.Set(key, value)
	})
}

// Clone returns a deep copy of the node tree. Leaves are shared.
func (n *Node) Clone() *Node {
	out := NewNode()

	n.Each(func(key string, value any) {
		if child, ok := value.(*Node); ok {
			value = child.Clone()
		}

		out.Set(key, value)
	})

	return out
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	first := true

	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}

		first = false

		key, keyErr := json.Marshal(pair.Key)
		if keyErr != nil {
			return nil, fmt.Errorf("marshal key %q: %w", pair.Key, keyErr)
		}

		value, valueErr := json.Marshal(pair.Value)
		if valueErr != nil {
			return nil, fmt.Errorf("marshal value of %q: %w", pair.Key, valueErr)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// MarshalYAML builds a YAML mapping in insertion order.
func (n *Node) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.Key}

		value := &yaml.Node{}

		encodeErr := value.Encode(pair.Value)
		if encodeErr != nil {
			return nil, fmt.Errorf("encode %q: %w", pair.Key, encodeErr)
		}

		out.Content = append(out.Content, key, value)
	}

	return out, nil
}
