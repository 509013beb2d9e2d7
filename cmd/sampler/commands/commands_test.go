package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

const testManifest = `entity_types:
  - id: node
    fieldable: true
    sql_storage: true
    revisionable: true
    keys: {id: nid, revision: vid, bundle: type}
    base_table: node
    revision_table: node_revision
    bundle_entity_type: node_type
    base_fields:
      - {name: nid, type: integer}
      - {name: type, type: entity_reference, settings: {target_type: node_type}}
    bundles:
      - id: type_one
        fields:
          - name: field_tags
            type: entity_reference
            cardinality: -1
            settings:
              target_type: taxonomy_term
              handler_settings:
                target_bundles: [vocabulary_one]
      - id: type_two
  - id: taxonomy_term
    fieldable: true
    sql_storage: true
    keys: {id: tid, bundle: vid}
    base_table: taxonomy_term_data
    bundle_entity_type: taxonomy_vocabulary
    base_fields:
      - {name: tid, type: integer}
    bundles: [{id: vocabulary_one}]
  - id: user
    fieldable: true
    sql_storage: true
    keys: {id: uid}
    base_table: users
    base_fields:
      - {name: uid, type: integer}
roles:
  - id: anonymous
  - id: editor
    permissions: [create type_one content]
permissions:
  - {name: create type_one content, provider: node}
`

var testFixture = []string{
	`CREATE TABLE node (nid INTEGER PRIMARY KEY, type TEXT NOT NULL)`,
	`INSERT INTO node VALUES (1, 'type_one'), (2, 'type_one'), (3, 'type_two')`,
	`CREATE TABLE node_revision (nid INTEGER NOT NULL, vid INTEGER NOT NULL)`,
	`INSERT INTO node_revision VALUES (1, 1), (2, 2), (2, 4), (3, 3)`,
	`CREATE TABLE node__field_tags (entity_id INTEGER NOT NULL, delta INTEGER NOT NULL)`,
	`INSERT INTO node__field_tags VALUES (1, 0), (2, 0), (2, 1)`,
	`CREATE TABLE taxonomy_term_data (tid INTEGER PRIMARY KEY, vid TEXT NOT NULL)`,
	`INSERT INTO taxonomy_term_data VALUES (1, 'vocabulary_one')`,
	`CREATE TABLE user__roles (entity_id INTEGER NOT NULL, roles_target_id TEXT NOT NULL)`,
	`INSERT INTO user__roles VALUES (1, 'editor'), (2, 'editor')`,
}

type testSite struct {
	dir      string
	manifest string
	globals  *Globals
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "site.yaml")
	dbPath := filepath.Join(dir, "site.db")
	cfgPath := filepath.Join(dir, "sampler.yaml")

	require.NoError(t, os.WriteFile(manifest, []byte(testManifest), 0o600))

	ctx := context.Background()

	store, err := storage.Open(ctx, storage.DriverSQLite, dbPath)
	require.NoError(t, err)

	for _, stmt := range testFixture {
		_, execErr := store.DB().ExecContext(ctx, stmt)
		require.NoError(t, execErr)
	}

	require.NoError(t, store.Close())

	cfg := "sampler:\n" +
		"  supported_entity_types: [node, taxonomy_term]\n" +
		"  supported_field_types: [string, entity_reference]\n" +
		"database:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + dbPath + "\n" +
		"site:\n" +
		"  manifest: " + manifest + "\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &testSite{
		dir:      dir,
		manifest: manifest,
		globals:  &Globals{ConfigPath: cfgPath},
	}
}

func (s *testSite) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *testSite) report(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewReportCommand(s.globals)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func TestReportCommand_WritesFile(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	target := site.path("report.json")

	_, stderr, err := site.report(t, target)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Report written to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.NoError(t, report.Validate(data))

	rep, err := report.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"node", "taxonomy_term", "user"}, rep.EntityTypes())

	revisions, _ := rep.Node().Lookup("node", "histogram", "revision")
	assert.Equal(t, report.Histogram{1: 2, 2: 1}, revisions)

	tags, _ := rep.Node().Lookup("node", "bundle", "bundle-0", "fields", "field-0", "histogram")
	assert.Equal(t, report.Histogram{1: 1, 2: 1}, tags)

	editors, _ := rep.Node().Lookup("user", "role", "role-0", "instances")
	assert.Equal(t, 2, editors)
}

func TestReportCommand_StdoutYAMLWithoutAnonymization(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)

	stdout, stderr, err := site.report(t, "--anonymize=false", "--format", "yaml", "--entity-types", "node")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "type_one:")
	assert.Contains(t, stdout, "field_tags:")
	assert.NotContains(t, stdout, "user:")
}

func TestReportCommand_Collectors(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)

	stdout, _, err := site.report(t, "--collectors", "base_fields")
	require.NoError(t, err)

	rep, err := report.Parse([]byte(stdout))
	require.NoError(t, err)

	count, _ := rep.Get("node", "base_fields")
	assert.Equal(t, 2, count)

	_, hasBundles := rep.Get("node", "bundle")
	assert.False(t, hasBundles)
}

func TestReportCommand_MetricsFile(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	metricsPath := site.path("sampler.prom")

	_, _, err := site.report(t, "--metrics-file", metricsPath, "--workers", "2")
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sampler_collections_total")
}

func TestReportCommand_InvalidFlags(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)

	_, _, err := site.report(t, "--format", "xml")
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)

	_, _, err = site.report(t, "--workers", "0")
	require.Error(t, err)

	_, _, err = site.report(t, "--collectors", "nope")
	require.Error(t, err)

	_, _, err = site.report(t, "--entity-types", "commerce_product")
	require.ErrorIs(t, err, contentmodel.ErrUnknownEntityType)
}

func TestReportCommand_LZ4RoundTrip(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	target := site.path("report.json.lz4")

	_, _, err := site.report(t, target)
	require.NoError(t, err)

	var out bytes.Buffer

	require.NoError(t, runValidate(target, false, &out))
	assert.Contains(t, out.String(), "Report is valid")
}

func TestValidate_Broken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"node": {"base_fields": "many"}}`), 0o600))

	var out bytes.Buffer

	err := runValidate(path, false, &out)
	require.ErrorIs(t, err, report.ErrSchemaViolation)
	assert.Contains(t, out.String(), "Report validation failed")
}

func TestDiff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	before := filepath.Join(dir, "before.json")
	after := filepath.Join(dir, "after.json")
	same := filepath.Join(dir, "same.json")

	require.NoError(t, os.WriteFile(before, []byte(`{"node": {"base_fields": 18}}`), 0o600))
	require.NoError(t, os.WriteFile(same, []byte("{\n\"node\":{\"base_fields\":18}}"), 0o600))
	require.NoError(t, os.WriteFile(after, []byte(`{"node": {"base_fields": 19}}`), 0o600))

	var out bytes.Buffer

	require.NoError(t, runDiff(before, same, false, &out))
	assert.Equal(t, "Reports are identical\n", out.String())

	out.Reset()
	require.NoError(t, runDiff(before, after, false, &out))
	assert.Contains(t, out.String(), `- `)
	assert.Contains(t, out.String(), `"base_fields": 19`)

	out.Reset()
	require.NoError(t, runDiff(before, after, true, &out))
	assert.Contains(t, out.String(), "added: 1")
	assert.Contains(t, out.String(), "removed: 1")
}

func TestCreateConfig(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	reportPath := site.path("report.json")

	_, _, err := site.report(t, reportPath)
	require.NoError(t, err)

	out := site.path("test-site.yaml")

	var stdout, stderr bytes.Buffer

	require.NoError(t, runCreateConfig(site.globals, reportPath, "", out, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Manifest written to "+out)

	written, err := contentmodel.LoadManifest(out)
	require.NoError(t, err)

	bundles, err := written.Bundles("node")
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle-0", "bundle-1"}, bundles)

	terms, err := written.Bundles("taxonomy_term")
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle-0"}, terms)
}

func TestCreateConfig_Stdout(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	reportPath := site.path("report.json")

	_, _, err := site.report(t, reportPath)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer

	require.NoError(t, runCreateConfig(site.globals, reportPath, site.manifest, "", &stdout, &stderr))
	assert.Contains(t, stdout.String(), "id: bundle-1")
	assert.Empty(t, stderr.String())
}

func TestCollectorsCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewCollectorsCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	for _, id := range []string{"bundle", "media_source", "role", "revision", "paragraph", "base_fields"} {
		assert.Contains(t, out.String(), id)
	}
}
