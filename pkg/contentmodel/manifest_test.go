package contentmodel_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
)

const testManifestPath = "testdata/site.yaml"

func loadTestManifest(t *testing.T) *contentmodel.Manifest {
	t.Helper()

	m, err := contentmodel.LoadManifest(testManifestPath)
	require.NoError(t, err)

	return m
}

func fieldNames(fields []contentmodel.FieldDefinition) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}

	return out
}

func TestManifest_EntityTypes(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	ets := m.EntityTypes()
	require.Len(t, ets, 3)
	assert.Equal(t, "node", ets[0].ID)

	node, err := m.EntityType("node")
	require.NoError(t, err)
	assert.True(t, node.HasBundleKey())
	assert.Equal(t, "vid", node.Key(contentmodel.KeyRevision))
	assert.Equal(t, "node_revision", node.RevisionTable)

	user, err := m.EntityType("user")
	require.NoError(t, err)
	assert.False(t, user.HasBundleKey())

	_, err = m.EntityType("missing")
	require.ErrorIs(t, err, contentmodel.ErrUnknownEntityType)
}

func TestManifest_Bundles(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	bundles, err := m.Bundles("node")
	require.NoError(t, err)
	assert.Equal(t, []string{"article", "page"}, bundles)

	bundles, err = m.Bundles("user")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, bundles)
}

func TestManifest_FieldsForBundle(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	fields, err := m.FieldsForBundle("node", "article")
	require.NoError(t, err)
	assert.Equal(t, []string{"nid", "type", "title", "field_tags", "body"}, fieldNames(fields))

	title := fields[2]
	assert.True(t, title.BaseOverride)
	assert.True(t, title.IsBase())
	assert.Equal(t, "article", title.Bundle)

	tags := fields[3]
	assert.False(t, tags.IsBase())
	assert.True(t, tags.IsReference())
	assert.Equal(t, "taxonomy_term", tags.TargetType())
	assert.Equal(t, "node__field_tags", tags.Table)
	assert.Equal(t, -1, tags.Cardinality)
	assert.Equal(t, 1, fields[4].Cardinality)

	target, ok := tags.Setting("handler_settings", "target_bundles", "tags")
	require.True(t, ok)
	assert.Equal(t, "tags", target)

	_, err = m.FieldsForBundle("node", "missing")
	require.ErrorIs(t, err, contentmodel.ErrUnknownBundle)

	userFields, err := m.FieldsForBundle("user", "user")
	require.NoError(t, err)
	assert.Equal(t, []string{"uid", "name"}, fieldNames(userFields))
}

func TestManifest_FieldIndex(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	idx, ok, err := contentmodel.FieldIndex(m, "node", "body", "article")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok, err = contentmodel.FieldIndex(m, "node", "title", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok, err = contentmodel.FieldIndex(m, "node", "title", "article")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManifest_Roles(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	roles := m.Roles()
	require.Len(t, roles, 3)
	assert.Equal(t, contentmodel.RoleAnonymous, roles[0].ID)

	perms, err := m.PermissionsForRole("editor")
	require.NoError(t, err)
	assert.Equal(t, []contentmodel.Permission{
		{Name: "create article content", Provider: "node"},
		{Name: "access content", Provider: "node"},
		{Name: "unknown permission"},
	}, perms)

	_, err = m.PermissionsForRole("ghost")
	require.ErrorIs(t, err, contentmodel.ErrUnknownRole)

	assert.Len(t, m.Permissions(), 2)
	assert.Equal(t, "field_media_image", m.MediaTypes()[0].SourceField)
}

func TestManifest_ReplaceBundlesAndWrite(t *testing.T) {
	t.Parallel()

	m := loadTestManifest(t)

	require.NoError(t, m.ReplaceBundles("taxonomy_term", []contentmodel.Bundle{{ID: "bundle-0", Label: "bundle-0"}}))
	require.ErrorIs(t, m.ReplaceBundles("missing", nil), contentmodel.ErrUnknownEntityType)

	var buf bytes.Buffer

	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	again, err := contentmodel.ParseManifest(buf.Bytes())
	require.NoError(t, err)

	bundles, err := again.Bundles("taxonomy_term")
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle-0"}, bundles)

	fields, err := again.FieldsForBundle("node", "article")
	require.NoError(t, err)
	assert.Equal(t, []string{"nid", "type", "title", "field_tags", "body"}, fieldNames(fields))
}

func TestParseManifest_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing id":       "entity_types:\n  - label: x\n",
		"duplicate type":   "entity_types:\n  - id: node\n  - id: node\n",
		"duplicate bundle": "entity_types:\n  - id: node\n    bundles: [{id: a}, {id: a}]\n",
		"field no type":    "entity_types:\n  - id: node\n    base_fields: [{name: nid}]\n",
		"unknown key":      "entity_types:\n  - id: node\n    colour: red\n",
		"duplicate role":   "entity_types: []\nroles: [{id: a}, {id: a}]\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := contentmodel.ParseManifest([]byte(doc))
			require.ErrorIs(t, err, contentmodel.ErrInvalidManifest)
		})
	}
}

func TestParseManifest_Empty(t *testing.T) {
	t.Parallel()

	m, err := contentmodel.ParseManifest(nil)
	require.NoError(t, err)
	assert.Empty(t, m.EntityTypes())
}

const orderedSettingsManifest = `
entity_types:
  - id: node
    fieldable: true
    sql_storage: true
    keys: {id: nid, bundle: type}
    bundles:
      - id: article
        fields:
          - name: field_blocks
            type: entity_reference_revisions
            settings:
              target_type: paragraph
              handler_settings:
                target_bundles: {text: text, image: image, quote: quote}
  - id: paragraph
    fieldable: true
    sql_storage: true
    keys: {id: id, bundle: type}
    bundles:
      - id: image
      - id: quote
      - id: text
`

func TestFieldDefinition_SettingKeysKeepManifestOrder(t *testing.T) {
	t.Parallel()

	m, err := contentmodel.ParseManifest([]byte(orderedSettingsManifest))
	require.NoError(t, err)

	fields, err := m.FieldsForBundle("node", "article")
	require.NoError(t, err)
	require.Len(t, fields, 1)

	assert.Equal(t, []string{"text", "image", "quote"},
		fields[0].SettingKeys(contentmodel.SettingHandlerSettings, "target_bundles"))
	assert.Equal(t, []string{"target_type", "handler_settings"}, fields[0].SettingKeys())
	assert.Nil(t, fields[0].SettingKeys(contentmodel.SettingTargetType))
	assert.Nil(t, fields[0].SettingKeys("missing"))
}

func TestFieldDefinition_SettingKeysSortedWithoutManifest(t *testing.T) {
	t.Parallel()

	field := contentmodel.FieldDefinition{
		Name: "field_blocks",
		Settings: map[string]any{
			contentmodel.SettingHandlerSettings: map[string]any{
				"target_bundles": map[string]any{"text": "text", "image": "image"},
			},
		},
	}

	assert.Equal(t, []string{"image", "text"},
		field.SettingKeys(contentmodel.SettingHandlerSettings, "target_bundles"))
}
