package sampler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/sampler"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

const testManifestPath = "testdata/site.yaml"

var supportedEntityTypes = []string{"node", "paragraph", "taxonomy_term", "media", "user"}

var supportedFieldTypes = []string{
	"string", "text_with_summary", "entity_reference", "entity_reference_revisions", "image",
}

var siteFixture = []string{
	`CREATE TABLE node (nid INTEGER PRIMARY KEY, type TEXT NOT NULL)`,
	`INSERT INTO node VALUES (1, 'type_one'), (2, 'type_one'), (3, 'type_two'), (4, 'type_two'), (5, 'type_two')`,
	`CREATE TABLE node_revision (nid INTEGER NOT NULL, vid INTEGER NOT NULL)`,
	`INSERT INTO node_revision VALUES (1, 1), (2, 2), (2, 6), (3, 3), (3, 7), (3, 8), (4, 4), (5, 5)`,
	`CREATE TABLE node__field_tags (entity_id INTEGER NOT NULL, delta INTEGER NOT NULL)`,
	`INSERT INTO node__field_tags VALUES (1, 0), (1, 1), (2, 0)`,
	`CREATE TABLE node__field_paragraphs (entity_id INTEGER NOT NULL, delta INTEGER NOT NULL)`,
	`INSERT INTO node__field_paragraphs VALUES (1, 0), (1, 1), (1, 2)`,
	`CREATE TABLE paragraphs_item (id INTEGER PRIMARY KEY, type TEXT NOT NULL)`,
	`INSERT INTO paragraphs_item VALUES (1, 'text'), (2, 'text'), (3, 'image')`,
	`CREATE TABLE paragraphs_item_field_data (id INTEGER NOT NULL, parent_type TEXT, parent_id TEXT)`,
	`INSERT INTO paragraphs_item_field_data VALUES (1, 'node', '1'), (2, 'node', '1'), (3, 'node', '1')`,
	`CREATE TABLE paragraphs_item_revision (id INTEGER NOT NULL, revision_id INTEGER NOT NULL)`,
	`INSERT INTO paragraphs_item_revision VALUES (1, 1), (2, 2), (3, 3)`,
	`CREATE TABLE taxonomy_term_data (tid INTEGER PRIMARY KEY, vid TEXT NOT NULL)`,
	`INSERT INTO taxonomy_term_data VALUES (1, 'vocabulary_one'), (2, 'vocabulary_one')`,
	`CREATE TABLE media (mid INTEGER PRIMARY KEY, bundle TEXT NOT NULL)`,
	`INSERT INTO media VALUES (1, 'image')`,
	`CREATE TABLE user__roles (entity_id INTEGER NOT NULL, roles_target_id TEXT NOT NULL)`,
	`INSERT INTO user__roles VALUES
		(1, 'restricted'),
		(2, 'node_editor'), (3, 'node_editor'),
		(4, 'term_editor'), (5, 'term_editor'), (6, 'term_editor'),
		(7, 'all_editor'), (8, 'all_editor'), (9, 'all_editor'), (10, 'all_editor')`,
}

func openSiteStore(t *testing.T) *storage.SQLStore {
	t.Helper()

	ctx := context.Background()

	store, err := storage.Open(ctx, storage.DriverSQLite, ":memory:", storage.WithMaxOpenConns(1))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	for _, stmt := range siteFixture {
		_, execErr := store.DB().ExecContext(ctx, stmt)
		require.NoError(t, execErr)
	}

	return store
}

func loadSiteModel(t *testing.T) *contentmodel.Manifest {
	t.Helper()

	m, err := contentmodel.LoadManifest(testManifestPath)
	require.NoError(t, err)

	return m
}

func siteDeps(t *testing.T, store storage.Querier) sampler.Deps {
	t.Helper()

	return sampler.NewDeps(loadSiteModel(t), store, mapping.New(), sampler.Settings{
		SupportedEntityTypes: supportedEntityTypes,
		SupportedFieldTypes:  supportedFieldTypes,
	}, nil)
}

func entityType(t *testing.T, deps sampler.Deps, id string) contentmodel.EntityType {
	t.Helper()

	et, err := deps.Model.EntityType(id)
	require.NoError(t, err)

	return et
}
