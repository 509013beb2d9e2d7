package sampler_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/sampler"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

type recordedRun struct {
	collector  string
	entityType string
	status     string
}

type stubMetrics struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (m *stubMetrics) RecordCollection(_ context.Context, collector, entityType, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, recordedRun{collector: collector, entityType: entityType, status: status})
}

func runReport(t *testing.T, opts sampler.Options) *report.Report {
	t.Helper()

	deps := siteDeps(t, openSiteStore(t))

	r, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, opts).Collect(context.Background())
	require.NoError(t, err)

	return r.Report()
}

func TestReporter_FullSite(t *testing.T) {
	t.Parallel()

	rep := runReport(t, sampler.Options{Anonymize: true})

	assert.Equal(t, []string{"node", "paragraph", "taxonomy_term", "media", "user"}, rep.EntityTypes())

	root := rep.Node()

	revisions, _ := root.Lookup("node", "histogram", "revision")
	assert.Equal(t, report.Histogram{1: 3, 2: 1, 3: 1}, revisions)

	paragraphs, _ := root.Lookup("node", "histogram", "paragraph")
	assert.Equal(t, report.Histogram{3: 1}, paragraphs)

	baseFields, _ := root.Lookup("user", "base_fields")
	assert.Equal(t, 3, baseFields)

	instances, _ := root.Lookup("paragraph", "bundle", "bundle-0", "instances")
	assert.Equal(t, 2, instances)

	// Media bundle records carry both the bundle and the source fragments.
	mediaInstances, _ := root.Lookup("media", "bundle", "bundle-0", "instances")
	assert.Equal(t, 1, mediaInstances)

	plugin, _ := root.Lookup("media", "bundle", "bundle-0", "source", "plugin_id")
	assert.Equal(t, "image", plugin)

	videoField, ok := root.Lookup("media", "bundle", "bundle-1", "fields", "field-2", "type")
	require.True(t, ok)
	assert.Equal(t, "string", videoField)

	nodeEditing, _ := root.Lookup("user", "role", "role-3", "is_node_editing")
	assert.Equal(t, true, nodeEditing)

	data, err := rep.JSON()
	require.NoError(t, err)
	require.NoError(t, report.Validate(data))
	assert.NotContains(t, string(data), "type_one")
	assert.NotContains(t, string(data), "field_tags")
	assert.NotContains(t, string(data), "node_editor")
}

func TestReporter_WithoutAnonymization(t *testing.T) {
	t.Parallel()

	rep := runReport(t, sampler.Options{Anonymize: false})

	instances, _ := rep.Node().Lookup("user", "role", "node_editor", "instances")
	assert.Equal(t, 2, instances)

	target, _ := rep.Node().Lookup("node", "bundle", "type_one", "fields", "field_tags", "target_bundles")
	assert.Equal(t, []string{"vocabulary_one"}, target)
}

func TestReporter_WorkersDoNotChangeOutput(t *testing.T) {
	t.Parallel()

	serial, err := runReport(t, sampler.Options{Anonymize: true, Workers: 1}).JSON()
	require.NoError(t, err)

	parallel, err := runReport(t, sampler.Options{Anonymize: true, Workers: 4}).JSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(serial), string(parallel))
}

// slowQuerier delays bundle counts of one table so that the entity types
// collected after it finish first.
type slowQuerier struct {
	storage.Querier

	table string
	delay time.Duration
}

func (q slowQuerier) CountWhere(ctx context.Context, table, column string, value any) (int, error) {
	if table == q.table {
		time.Sleep(q.delay)
	}

	return q.Querier.CountWhere(ctx, table, column, value)
}

// selectiveSiteDeps narrows the node paragraph field to the image bundle,
// so node names paragraph bundles in a different order than the paragraph
// entity type lists them.
func selectiveSiteDeps(t *testing.T) sampler.Deps {
	t.Helper()

	data, err := os.ReadFile(testManifestPath)
	require.NoError(t, err)

	selective := strings.Replace(string(data), "target_bundles: {}", "target_bundles: {image: image}", 1)
	require.NotEqual(t, string(data), selective)

	model, err := contentmodel.ParseManifest([]byte(selective))
	require.NoError(t, err)

	store := slowQuerier{Querier: openSiteStore(t), table: "node", delay: 5 * time.Millisecond}

	return sampler.NewDeps(model, store, mapping.New(), sampler.Settings{
		SupportedEntityTypes: supportedEntityTypes,
		SupportedFieldTypes:  supportedFieldTypes,
	}, nil)
}

func TestReporter_WorkersKeepSerialNumbering(t *testing.T) {
	t.Parallel()

	const parallelRuns = 10

	run := func(workers int) *report.Report {
		r, err := sampler.NewReporter(sampler.DefaultRegistry(), selectiveSiteDeps(t), sampler.Options{
			Anonymize: true,
			Workers:   workers,
		}).Collect(context.Background())
		require.NoError(t, err)

		return r.Report()
	}

	serialReport := run(1)

	targets, ok := serialReport.Node().Lookup("node", "bundle", "bundle-0", "fields", "field-2", "target_bundles")
	require.True(t, ok)
	assert.Equal(t, []string{"bundle-0"}, targets)

	paragraphs, ok := serialReport.Node().Lookup("paragraph", "bundle")
	require.True(t, ok)
	assert.Equal(t, []string{"bundle-1", "bundle-0"}, paragraphs.(*report.Node).Keys())

	serial, err := serialReport.JSON()
	require.NoError(t, err)

	for range parallelRuns {
		parallel, parallelErr := run(4).JSON()
		require.NoError(t, parallelErr)

		assert.JSONEq(t, string(serial), string(parallel))

		parallelReport, parseErr := report.Parse(parallel)
		require.NoError(t, parseErr)

		got, found := parallelReport.Node().Lookup("paragraph", "bundle")
		require.True(t, found)
		assert.Equal(t, []string{"bundle-1", "bundle-0"}, got.(*report.Node).Keys())
	}
}

func TestReporter_ExplicitEntityTypes(t *testing.T) {
	t.Parallel()

	rep := runReport(t, sampler.Options{EntityTypes: []string{"taxonomy_term", "node"}})

	assert.Equal(t, []string{"node", "taxonomy_term"}, rep.EntityTypes())
}

func TestReporter_UnknownEntityType(t *testing.T) {
	t.Parallel()

	deps := siteDeps(t, openSiteStore(t))

	_, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, sampler.Options{
		EntityTypes: []string{"commerce_product"},
	}).Collect(context.Background())
	require.ErrorIs(t, err, contentmodel.ErrUnknownEntityType)
}

func TestReporter_CollectorSelection(t *testing.T) {
	t.Parallel()

	rep := runReport(t, sampler.Options{Collectors: []string{"base_fields"}})

	for _, id := range rep.EntityTypes() {
		entity, ok := rep.Node().Child(id)
		require.True(t, ok)
		assert.Equal(t, []string{"base_fields"}, entity.Keys())
	}
}

func TestReporter_IsolatesFailingCollectors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	reg, err := sampler.NewRegistry(
		func(sampler.Deps) sampler.Collector {
			return &stubCollector{id: "broken", kind: sampler.KindCount, key: "broken",
				collect: func(context.Context, contentmodel.EntityType) (any, error) { return nil, errBoom }}
		},
		func(sampler.Deps) sampler.Collector {
			return &stubCollector{id: "panicky", kind: sampler.KindCount, key: "panicky",
				collect: func(context.Context, contentmodel.EntityType) (any, error) { panic("kaboom") }}
		},
		sampler.NewBaseFieldCountCollector,
	)
	require.NoError(t, err)

	metrics := &stubMetrics{}
	deps := siteDeps(t, openSiteStore(t))

	r, err := sampler.NewReporter(reg, deps, sampler.Options{
		EntityTypes: []string{"node"},
		Metrics:     metrics,
	}).Collect(context.Background())
	require.NoError(t, err)

	root := r.Report().Node()

	broken, ok := root.Lookup("node", "broken")
	require.True(t, ok)
	assert.Equal(t, 0, broken.(*report.Node).Len())

	panicky, ok := root.Lookup("node", "panicky")
	require.True(t, ok)
	assert.Equal(t, 0, panicky.(*report.Node).Len())

	count, _ := root.Lookup("node", "base_fields")
	assert.Equal(t, 4, count)

	assert.Equal(t, []recordedRun{
		{"broken", "node", sampler.StatusError},
		{"panicky", "node", sampler.StatusError},
		{"base_fields", "node", sampler.StatusOK},
	}, metrics.runs)
}

func TestReporter_CanceledContext(t *testing.T) {
	t.Parallel()

	deps := siteDeps(t, openSiteStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, sampler.Options{}).Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReporter_Output(t *testing.T) {
	t.Parallel()

	deps := siteDeps(t, openSiteStore(t))

	var stdout bytes.Buffer

	r, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, sampler.Options{
		Anonymize:   true,
		EntityTypes: []string{"user"},
		Stdout:      &stdout,
	}).Collect(context.Background())
	require.NoError(t, err)

	require.NoError(t, r.Output(context.Background(), ""))
	assert.Contains(t, stdout.String(), `"role-0"`)

	target := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.Output(context.Background(), target))

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, stdout.String(), string(written))
}

func TestReporter_FormattedYAML(t *testing.T) {
	t.Parallel()

	deps := siteDeps(t, openSiteStore(t))

	r, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, sampler.Options{
		EntityTypes: []string{"user"},
		Format:      report.FormatYAML,
	}).Collect(context.Background())
	require.NoError(t, err)

	out, err := r.Formatted()
	require.NoError(t, err)
	assert.Contains(t, string(out), "base_fields: 3")
}
