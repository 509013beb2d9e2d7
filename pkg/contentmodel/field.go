package contentmodel

import (
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field types with special handling.
const (
	FieldTypeEntityReference          = "entity_reference"
	FieldTypeEntityReferenceRevisions = "entity_reference_revisions"
)

// Setting names of reference fields.
const (
	SettingTargetType      = "target_type"
	SettingHandlerSettings = "handler_settings"
)

// FieldDefinition is one field of an entity type, either a base field shared
// by every bundle or a field configured on a bundle.
type FieldDefinition struct {
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	Label        string         `yaml:"label,omitempty"`
	Required     bool           `yaml:"required,omitempty"`
	Translatable bool           `yaml:"translatable,omitempty"`
	Cardinality  int            `yaml:"cardinality,omitempty"`
	Table        string         `yaml:"table,omitempty"`
	BaseOverride bool           `yaml:"base_override,omitempty"`
	Settings     map[string]any `yaml:"settings,omitempty"`

	// Filled in when the manifest is loaded.
	EntityTypeID string `yaml:"-"`
	Bundle       string `yaml:"-"`
	Base         bool   `yaml:"-"`

	// Key order of every settings mapping as written in the manifest,
	// keyed by settingPathKey.
	settingOrder map[string][]string
}

// IsBase reports whether the definition is a base field or overrides one.
func (f FieldDefinition) IsBase() bool {
	return f.Base || f.BaseOverride
}

// IsReference reports whether the field references other entities.
func (f FieldDefinition) IsReference() bool {
	return slices.Contains(ReferenceFieldTypes(), f.Type)
}

// TargetType returns the referenced entity type of a reference field.
func (f FieldDefinition) TargetType() string {
	value, _ := f.Setting(SettingTargetType)
	s, _ := value.(string)

	return s
}

// Setting walks the nested settings map along path.
func (f FieldDefinition) Setting(path ...string) (any, bool) {
	var current any = f.Settings

	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// SettingKeys returns the keys of the settings mapping at path in manifest
// order. Definitions not read from a manifest get their keys sorted.
func (f FieldDefinition) SettingKeys(path ...string) []string {
	raw, ok := f.Setting(path...)
	if !ok {
		return nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	if order, known := f.settingOrder[settingPathKey(path)]; known && len(order) == len(m) {
		return slices.Clone(order)
	}

	return slices.Sorted(maps.Keys(m))
}

func settingPathKey(path []string) string {
	return strings.Join(path, "\x00")
}

// recordSettingOrder stores the key order of node and of every mapping
// nested in it.
func recordSettingOrder(node *yaml.Node, path []string, out map[string][]string) {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}

	keys := make([]string, 0, len(node.Content)/2)

	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		key := node.Content[idx].Value
		keys = append(keys, key)

		recordSettingOrder(node.Content[idx+1], append(slices.Clone(path), key), out)
	}

	out[settingPathKey(path)] = keys
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}

	return node
}

// ReferenceFieldTypes lists the field types that reference other entities.
func ReferenceFieldTypes() []string {
	return []string{FieldTypeEntityReference, FieldTypeEntityReferenceRevisions}
}
