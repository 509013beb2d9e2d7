package report

import (
	"encoding/json"
	"fmt"
)

const jsonIndent = "  "

// Report is the two-level tree report[entityType][key] of merged fragments.
type Report struct {
	root *Node
}

// New creates an empty report.
func New() *Report {
	return &Report{root: NewNode()}
}

// Set stores fragment under [entityTypeID][key], replacing what was there.
func (r *Report) Set(entityTypeID, key string, fragment any) {
	r.entity(entityTypeID).Set(key, fragment)
}

// Merge folds fragment into [entityTypeID][key]. Two nodes merge recursively;
// otherwise the fragment replaces the previous value.
func (r *Report) Merge(entityTypeID, key string, fragment any) {
	slot := r.entity(entityTypeID)

	incoming, incomingIsNode := fragment.(*Node)

	existing, ok := slot.Child(key)
	if ok && incomingIsNode {
		existing.Merge(incoming)

		return
	}

	if incomingIsNode {
		fragment = incoming.Clone()
	}

	slot.Set(key, fragment)
}

// Get returns the value stored under [entityTypeID][key].
func (r *Report) Get(entityTypeID, key string) (any, bool) {
	return r.root.Lookup(entityTypeID, key)
}

// Node returns the root of the tree.
func (r *Report) Node() *Node {
	return r.root
}

// Len returns the number of entity types in the report.
func (r *Report) Len() int {
	return r.root.Len()
}

// EntityTypes returns the entity type IDs in insertion order.
func (r *Report) EntityTypes() []string {
	return r.root.Keys()
}

// MarshalJSON emits the tree in insertion order.
func (r *Report) MarshalJSON() ([]byte, error) {
	return r.root.MarshalJSON()
}

// MarshalYAML emits the tree in insertion order.
func (r *Report) MarshalYAML() (any, error) {
	return r.root.MarshalYAML()
}

// JSON returns the report pretty-printed with two-space indentation.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	return data, nil
}

func (r *Report) entity(entityTypeID string) *Node {
	slot, ok := r.root.Child(entityTypeID)
	if !ok {
		slot = NewNode()
		r.root.Set(entityTypeID, slot)
	}

	return slot
}
