package sampler

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

// Histogram collector IDs and their fragment names.
const (
	IDRevision     = "revision"
	IDParagraph    = "paragraph"
	KeyHistogram   = "histogram"
	parentTypeCol  = "parent_type"
	parentIDColumn = "parent_id"
)

// RevisionHistogramCollector buckets entities by their number of revisions.
type RevisionHistogramCollector struct {
	deps Deps
}

// NewRevisionHistogramCollector creates a RevisionHistogramCollector.
func NewRevisionHistogramCollector(deps Deps) Collector {
	return &RevisionHistogramCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *RevisionHistogramCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDRevision,
		Description: "Histogram of revisions per entity",
		Kind:        KindHistogram,
	}
}

// Applicable accepts supported, fieldable, revisionable entity types.
func (c *RevisionHistogramCollector) Applicable(et contentmodel.EntityType) bool {
	return et.Revisionable && et.Fieldable && c.deps.Settings.SupportsEntityType(et.ID)
}

// Key returns the report slot.
func (c *RevisionHistogramCollector) Key(contentmodel.EntityType) string {
	return KeyHistogram
}

// Collect returns {"revision": histogram}.
func (c *RevisionHistogramCollector) Collect(ctx context.Context, et contentmodel.EntityType) (any, error) {
	groups, err := c.deps.Store.GroupedCount(ctx, et.RevisionTable, []string{et.Key(contentmodel.KeyID)}, nil)
	if err != nil {
		return nil, fmt.Errorf("revisions of %s: %w", et.ID, err)
	}

	return histogramFragment(IDRevision, groups), nil
}

// ChildHistogramCollector buckets parent entities by the number of
// paragraphs attached to them.
type ChildHistogramCollector struct {
	deps Deps
}

// NewChildHistogramCollector creates a ChildHistogramCollector.
func NewChildHistogramCollector(deps Deps) Collector {
	return &ChildHistogramCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *ChildHistogramCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDParagraph,
		Description: "Histogram of paragraphs per parent entity",
		Kind:        KindHistogram,
	}
}

// Applicable accepts supported, fieldable entity types when the site has
// paragraphs at all.
func (c *ChildHistogramCollector) Applicable(et contentmodel.EntityType) bool {
	if !et.Fieldable || !c.deps.Settings.SupportsEntityType(et.ID) {
		return false
	}

	_, err := c.deps.Model.EntityType(contentmodel.EntityTypeParagraph)

	return err == nil
}

// Key returns the report slot.
func (c *ChildHistogramCollector) Key(contentmodel.EntityType) string {
	return KeyHistogram
}

// Collect returns {"paragraph": histogram}.
func (c *ChildHistogramCollector) Collect(ctx context.Context, et contentmodel.EntityType) (any, error) {
	paragraph, err := c.deps.Model.EntityType(contentmodel.EntityTypeParagraph)
	if err != nil {
		return nil, err
	}

	groups, err := c.deps.Store.GroupedCount(ctx, paragraph.DataTable,
		[]string{parentTypeCol, parentIDColumn},
		&storage.Filter{Column: parentTypeCol, Value: et.ID})
	if err != nil {
		return nil, fmt.Errorf("paragraphs of %s: %w", et.ID, err)
	}

	return histogramFragment(IDParagraph, groups), nil
}

func histogramFragment(name string, groups []storage.GroupCount) *report.Node {
	counts := make([]int, len(groups))
	for idx, g := range groups {
		counts[idx] = g.Count
	}

	out := report.NewNode()
	out.Set(name, report.HistogramOf(counts))

	return out
}
