package sampler

import (
	"errors"
	"fmt"
	pathpkg "path"
	"strings"
)

var (
	// ErrUnknownCollectorID is returned when registry lookup fails.
	ErrUnknownCollectorID = errors.New("unknown collector id")
	// ErrDuplicateCollectorID is returned when registry receives duplicate IDs.
	ErrDuplicateCollectorID = errors.New("duplicate collector id")
	// ErrInvalidCollectorGlob is returned when a glob pattern is malformed.
	ErrInvalidCollectorGlob = errors.New("invalid collector glob")
	// ErrInvalidCollectorKind is returned for a descriptor without a known kind.
	ErrInvalidCollectorKind = errors.New("invalid collector kind")
)

// Registry stores collector factories with deterministic ordering.
type Registry struct {
	ordered   []Descriptor
	index     map[string]Descriptor
	factories map[string]Factory
}

// NewRegistry creates a registry from collector factories. Each factory is
// invoked once with empty deps to read its descriptor.
func NewRegistry(factories ...Factory) (*Registry, error) {
	reg := &Registry{
		ordered:   make([]Descriptor, 0, len(factories)),
		index:     make(map[string]Descriptor, len(factories)),
		factories: make(map[string]Factory, len(factories)),
	}

	for _, factory := range factories {
		descriptor := factory(Deps{}).Descriptor()

		switch descriptor.Kind {
		case KindSampler, KindHistogram, KindCount:
		default:
			return nil, fmt.Errorf("%w for %s: %q", ErrInvalidCollectorKind, descriptor.ID, descriptor.Kind)
		}

		if _, exists := reg.index[descriptor.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCollectorID, descriptor.ID)
		}

		reg.index[descriptor.ID] = descriptor
		reg.factories[descriptor.ID] = factory
		reg.ordered = append(reg.ordered, descriptor)
	}

	return reg, nil
}

// All returns all descriptors in stable order.
func (r *Registry) All() []Descriptor {
	descriptors := make([]Descriptor, len(r.ordered))
	copy(descriptors, r.ordered)

	return descriptors
}

// Descriptor returns collector metadata for the given ID.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	descriptor, ok := r.index[id]

	return descriptor, ok
}

// Build instantiates the collectors with the given IDs, in registry order.
func (r *Registry) Build(ids []string, deps Deps) ([]Collector, error) {
	wanted := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := r.factories[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollectorID, id)
		}

		wanted[id] = struct{}{}
	}

	collectors := make([]Collector, 0, len(wanted))

	for _, descriptor := range r.ordered {
		if _, ok := wanted[descriptor.ID]; ok {
			collectors = append(collectors, r.factories[descriptor.ID](deps))
		}
	}

	return collectors, nil
}

// ExpandPatterns expands glob patterns against registered collector IDs.
func (r *Registry) ExpandPatterns(patterns []string) ([]string, error) {
	selected := make([]string, 0, len(r.ordered))
	selectedSet := make(map[string]struct{}, len(r.ordered))

	for _, rawPattern := range patterns {
		ids, err := r.resolvePattern(strings.TrimSpace(rawPattern))
		if err != nil {
			return nil, err
		}

		appendUniqueIDs(&selected, selectedSet, ids)
	}

	return selected, nil
}

// SelectedIDs returns the collector IDs for the given patterns, or all IDs if none specified.
func (r *Registry) SelectedIDs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return r.allIDs(), nil
	}

	return r.ExpandPatterns(patterns)
}

func (r *Registry) resolvePattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollectorID, pattern)
	}

	if !hasGlobMeta(pattern) {
		if _, exists := r.index[pattern]; !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollectorID, pattern)
		}

		return []string{pattern}, nil
	}

	if pattern == "*" {
		return r.allIDs(), nil
	}

	matchedIDs, err := r.matchGlob(pattern)
	if err != nil {
		return nil, err
	}

	if len(matchedIDs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollectorID, pattern)
	}

	return matchedIDs, nil
}

func (r *Registry) matchGlob(pattern string) ([]string, error) {
	matched := make([]string, 0, len(r.ordered))

	for _, descriptor := range r.ordered {
		isMatch, err := pathpkg.Match(pattern, descriptor.ID)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidCollectorGlob, pattern, err)
		}

		if isMatch {
			matched = append(matched, descriptor.ID)
		}
	}

	return matched, nil
}

func (r *Registry) allIDs() []string {
	ids := make([]string, 0, len(r.ordered))
	for _, descriptor := range r.ordered {
		ids = append(ids, descriptor.ID)
	}

	return ids
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func appendUniqueIDs(target *[]string, targetSet map[string]struct{}, ids []string) {
	for _, id := range ids {
		if _, exists := targetSet[id]; exists {
			continue
		}

		*target = append(*target, id)
		targetSet[id] = struct{}{}
	}
}
