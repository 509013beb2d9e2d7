// Package contentmodel describes the content model of a site: entity types,
// bundles, field definitions, roles and permissions.
package contentmodel

import (
	"errors"
)

// Well-known identifiers.
const (
	EntityTypeUser      = "user"
	EntityTypeNode      = "node"
	EntityTypeParagraph = "paragraph"
	EntityTypeMedia     = "media"
	EntityTypeTaxonomy  = "taxonomy_term"

	RoleAnonymous = "anonymous"

	KeyID       = "id"
	KeyRevision = "revision"
	KeyBundle   = "bundle"
	KeyLabel    = "label"
)

// Sentinel errors.
var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrUnknownBundle     = errors.New("unknown bundle")
	ErrUnknownRole       = errors.New("unknown role")
	ErrInvalidManifest   = errors.New("invalid manifest")
)

// Model answers content model questions. Implementations must be safe for
// concurrent reads.
type Model interface {
	EntityTypes() []EntityType
	EntityType(id string) (EntityType, error)
	Bundles(entityTypeID string) ([]string, error)
	BaseFields(entityTypeID string) ([]FieldDefinition, error)
	FieldsForBundle(entityTypeID, bundle string) ([]FieldDefinition, error)
	Roles() []Role
	PermissionsForRole(roleID string) ([]Permission, error)
	Permissions() []Permission
	MediaTypes() []MediaType
}

// EntityType is the definition of one entity type.
type EntityType struct {
	ID               string            `yaml:"id"`
	Label            string            `yaml:"label,omitempty"`
	Provider         string            `yaml:"provider,omitempty"`
	Fieldable        bool              `yaml:"fieldable"`
	SQLStorage       bool              `yaml:"sql_storage"`
	Revisionable     bool              `yaml:"revisionable"`
	Keys             map[string]string `yaml:"keys,omitempty"`
	BaseTable        string            `yaml:"base_table,omitempty"`
	DataTable        string            `yaml:"data_table,omitempty"`
	RevisionTable    string            `yaml:"revision_table,omitempty"`
	BundleEntityType string            `yaml:"bundle_entity_type,omitempty"`
}

// Key returns the column name behind an entity key, or "" when unset.
func (e EntityType) Key(name string) string {
	return e.Keys[name]
}

// HasBundleKey reports whether the entity type is split into bundles.
func (e EntityType) HasBundleKey() bool {
	return e.Key(KeyBundle) != ""
}

// Role is a user role with its granted permission names.
type Role struct {
	ID          string   `yaml:"id"`
	Label       string   `yaml:"label,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
}

// Permission is a permission name and the module providing it.
type Permission struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

// MediaType is a media bundle and its source plugin.
type MediaType struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label,omitempty"`
	Source      string `yaml:"source"`
	SourceField string `yaml:"source_field,omitempty"`
}

// Bundle is one bundle of an entity type with its configurable fields.
type Bundle struct {
	ID     string            `yaml:"id"`
	Label  string            `yaml:"label,omitempty"`
	Fields []FieldDefinition `yaml:"fields,omitempty"`
}

// NonBaseFields returns the fields of a bundle whose names are not base
// field names, in definition order.
func NonBaseFields(m Model, entityTypeID, bundle string) ([]FieldDefinition, error) {
	base, err := m.BaseFields(entityTypeID)
	if err != nil {
		return nil, err
	}

	all, err := m.FieldsForBundle(entityTypeID, bundle)
	if err != nil {
		return nil, err
	}

	baseNames := make(map[string]bool, len(base))
	for _, f := range base {
		baseNames[f.Name] = true
	}

	out := make([]FieldDefinition, 0, len(all))

	for _, f := range all {
		if !baseNames[f.Name] {
			out = append(out, f)
		}
	}

	return out, nil
}

// FieldIndex returns the position of fieldName among the non-base fields of
// bundle, or among the base fields when bundle is empty.
func FieldIndex(m Model, entityTypeID, fieldName, bundle string) (int, bool, error) {
	var (
		fields []FieldDefinition
		err    error
	)

	if bundle != "" {
		fields, err = NonBaseFields(m, entityTypeID, bundle)
	} else {
		fields, err = m.BaseFields(entityTypeID)
	}

	if err != nil {
		return 0, false, err
	}

	for idx, f := range fields {
		if f.Name == fieldName {
			return idx, true, nil
		}
	}

	return 0, false, nil
}
