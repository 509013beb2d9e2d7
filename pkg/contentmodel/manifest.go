package contentmodel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultCardinality = 1
	yamlIndent         = 2
	fieldTableSep      = "__"
)

// entityTypeDoc is the manifest form of an entity type.
type entityTypeDoc struct {
	EntityType `yaml:",inline"`

	BaseFields []FieldDefinition `yaml:"base_fields,omitempty"`
	Bundles    []Bundle          `yaml:"bundles,omitempty"`
}

type document struct {
	EntityTypes []entityTypeDoc `yaml:"entity_types"`
	Roles       []Role          `yaml:"roles,omitempty"`
	Permissions []Permission    `yaml:"permissions,omitempty"`
	MediaTypes  []MediaType     `yaml:"media_types,omitempty"`
}

// Manifest is a Model read from a YAML site description.
type Manifest struct {
	mu  sync.RWMutex
	doc document

	entityIndex map[string]int
	roleIndex   map[string]int
	permIndex   map[string]int
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(&doc)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var root yaml.Node

	err = yaml.Unmarshal(data, &root)
	if err == nil {
		applySettingOrder(&doc, &root)
	}

	m := &Manifest{doc: doc}

	err = m.reindex()
	if err != nil {
		return nil, err
	}

	return m, nil
}

// applySettingOrder walks the raw YAML alongside the decoded document and
// records the manifest key order of every field's settings.
func applySettingOrder(doc *document, root *yaml.Node) {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	entityTypes := mappingValue(root, "entity_types")
	if entityTypes == nil || entityTypes.Kind != yaml.SequenceNode {
		return
	}

	for idx, etNode := range entityTypes.Content {
		if idx >= len(doc.EntityTypes) {
			return
		}

		et := &doc.EntityTypes[idx]
		orderFieldSettings(et.BaseFields, mappingValue(etNode, "base_fields"))

		bundles := mappingValue(etNode, "bundles")
		if bundles == nil || bundles.Kind != yaml.SequenceNode {
			continue
		}

		for bIdx, bundleNode := range bundles.Content {
			if bIdx >= len(et.Bundles) {
				break
			}

			orderFieldSettings(et.Bundles[bIdx].Fields, mappingValue(bundleNode, "fields"))
		}
	}
}

func orderFieldSettings(fields []FieldDefinition, seq *yaml.Node) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}

	for idx, fieldNode := range seq.Content {
		if idx >= len(fields) {
			return
		}

		settings := mappingValue(fieldNode, "settings")
		if settings == nil {
			continue
		}

		order := make(map[string][]string)
		recordSettingOrder(settings, nil, order)
		fields[idx].settingOrder = order
	}
}

// mappingValue returns the value under key of a YAML mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		if node.Content[idx].Value == key {
			return resolveAlias(node.Content[idx+1])
		}
	}

	return nil
}

// reindex normalizes the document and rebuilds the lookup indexes.
func (m *Manifest) reindex() error {
	m.entityIndex = make(map[string]int, len(m.doc.EntityTypes))
	m.roleIndex = make(map[string]int, len(m.doc.Roles))
	m.permIndex = make(map[string]int, len(m.doc.Permissions))

	for idx := range m.doc.EntityTypes {
		et := &m.doc.EntityTypes[idx]
		if et.ID == "" {
			return fmt.Errorf("%w: entity type #%d has no id", ErrInvalidManifest, idx)
		}

		if _, dup := m.entityIndex[et.ID]; dup {
			return fmt.Errorf("%w: duplicate entity type %q", ErrInvalidManifest, et.ID)
		}

		m.entityIndex[et.ID] = idx

		err := normalizeEntityType(et)
		if err != nil {
			return err
		}
	}

	for idx, role := range m.doc.Roles {
		if _, dup := m.roleIndex[role.ID]; dup || role.ID == "" {
			return fmt.Errorf("%w: bad or duplicate role %q", ErrInvalidManifest, role.ID)
		}

		m.roleIndex[role.ID] = idx
	}

	for idx, perm := range m.doc.Permissions {
		m.permIndex[perm.Name] = idx
	}

	return nil
}

func normalizeEntityType(et *entityTypeDoc) error {
	for idx := range et.BaseFields {
		f := &et.BaseFields[idx]

		err := normalizeField(f, et.ID, "")
		if err != nil {
			return err
		}

		f.Base = true
	}

	seen := make(map[string]bool, len(et.Bundles))

	for bIdx := range et.Bundles {
		bundle := &et.Bundles[bIdx]
		if bundle.ID == "" || seen[bundle.ID] {
			return fmt.Errorf("%w: bad or duplicate bundle %q of %s", ErrInvalidManifest, bundle.ID, et.ID)
		}

		seen[bundle.ID] = true

		for fIdx := range bundle.Fields {
			err := normalizeField(&bundle.Fields[fIdx], et.ID, bundle.ID)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func normalizeField(f *FieldDefinition, entityTypeID, bundle string) error {
	if f.Name == "" || f.Type == "" {
		return fmt.Errorf("%w: field of %s/%s needs name and type", ErrInvalidManifest, entityTypeID, bundle)
	}

	if f.Cardinality == 0 {
		f.Cardinality = defaultCardinality
	}

	if f.Table == "" && bundle != "" && !f.BaseOverride {
		f.Table = entityTypeID + fieldTableSep + f.Name
	}

	f.EntityTypeID = entityTypeID
	f.Bundle = bundle

	return nil
}

// EntityTypes returns every entity type in manifest order.
func (m *Manifest) EntityTypes() []EntityType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EntityType, len(m.doc.EntityTypes))
	for idx, et := range m.doc.EntityTypes {
		out[idx] = et.EntityType
	}

	return out
}

// EntityType returns one entity type definition.
func (m *Manifest) EntityType(id string) (EntityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	et, err := m.entity(id)
	if err != nil {
		return EntityType{}, err
	}

	return et.EntityType, nil
}

// Bundles returns the bundle IDs of an entity type. An entity type without a
// bundle key has a single implicit bundle named after itself.
func (m *Manifest) Bundles(entityTypeID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	et, err := m.entity(entityTypeID)
	if err != nil {
		return nil, err
	}

	if len(et.Bundles) == 0 && !et.HasBundleKey() {
		return []string{et.ID}, nil
	}

	out := make([]string, len(et.Bundles))
	for idx, b := range et.Bundles {
		out[idx] = b.ID
	}

	return out, nil
}

// BaseFields returns the base field definitions of an entity type.
func (m *Manifest) BaseFields(entityTypeID string) ([]FieldDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	et, err := m.entity(entityTypeID)
	if err != nil {
		return nil, err
	}

	return slices.Clone(et.BaseFields), nil
}

// FieldsForBundle returns the base fields followed by the bundle's own
// fields. A base override takes the place of the base field it overrides.
func (m *Manifest) FieldsForBundle(entityTypeID, bundle string) ([]FieldDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	et, err := m.entity(entityTypeID)
	if err != nil {
		return nil, err
	}

	out := make([]FieldDefinition, 0, len(et.BaseFields))
	for _, f := range et.BaseFields {
		f.Bundle = bundle
		out = append(out, f)
	}

	bundleIdx := slices.IndexFunc(et.Bundles, func(b Bundle) bool { return b.ID == bundle })
	if bundleIdx < 0 {
		if len(et.Bundles) == 0 && !et.HasBundleKey() && bundle == et.ID {
			return out, nil
		}

		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownBundle, entityTypeID, bundle)
	}

	for _, f := range et.Bundles[bundleIdx].Fields {
		pos := slices.IndexFunc(out, func(existing FieldDefinition) bool { return existing.Name == f.Name })
		if pos >= 0 {
			out[pos] = f

			continue
		}

		out = append(out, f)
	}

	return out, nil
}

// Roles returns every role in manifest order.
func (m *Manifest) Roles() []Role {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.doc.Roles)
}

// PermissionsForRole resolves the permissions granted to a role. Permissions
// missing from the catalog have an empty provider.
func (m *Manifest) PermissionsForRole(roleID string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.roleIndex[roleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, roleID)
	}

	names := m.doc.Roles[idx].Permissions
	out := make([]Permission, 0, len(names))

	for _, name := range names {
		perm := Permission{Name: name}
		if pIdx, known := m.permIndex[name]; known {
			perm = m.doc.Permissions[pIdx]
		}

		out = append(out, perm)
	}

	return out, nil
}

// Permissions returns the permission catalog.
func (m *Manifest) Permissions() []Permission {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.doc.Permissions)
}

// MediaTypes returns the media types in manifest order.
func (m *Manifest) MediaTypes() []MediaType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.doc.MediaTypes)
}

// ReplaceBundles sets the bundles of an entity type, dropping the old ones.
func (m *Manifest) ReplaceBundles(entityTypeID string, bundles []Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.entityIndex[entityTypeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntityType, entityTypeID)
	}

	m.doc.EntityTypes[idx].Bundles = slices.Clone(bundles)

	return normalizeEntityType(&m.doc.EntityTypes[idx])
}

// WriteTo encodes the manifest as YAML.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(m.doc)
	if err != nil {
		return 0, fmt.Errorf("encode manifest: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return 0, fmt.Errorf("encode manifest: %w", err)
	}

	n, err := w.Write(buf.Bytes())

	return int64(n), err
}

func (m *Manifest) entity(id string) (*entityTypeDoc, error) {
	idx, ok := m.entityIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, id)
	}

	return &m.doc.EntityTypes[idx], nil
}
