package sampler

import (
	"context"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

// MediaSourceCollector adds the source plugin of every media type to the
// media bundle records.
type MediaSourceCollector struct {
	deps Deps
}

// NewMediaSourceCollector creates a MediaSourceCollector.
func NewMediaSourceCollector(deps Deps) Collector {
	return &MediaSourceCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *MediaSourceCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDMedia,
		Description: "Media type source plugins and source field positions",
		Kind:        KindSampler,
	}
}

// Applicable accepts only the media entity type.
func (c *MediaSourceCollector) Applicable(et contentmodel.EntityType) bool {
	return et.ID == contentmodel.EntityTypeMedia
}

// Key returns the bundle slot so the records merge with the bundle
// collector output.
func (c *MediaSourceCollector) Key(contentmodel.EntityType) string {
	return KeyBundle
}

// Collect builds {bundle: {source: {plugin_id, source_field_index}}}.
func (c *MediaSourceCollector) Collect(ctx context.Context, et contentmodel.EntityType) (any, error) {
	out := report.NewNode()

	for _, mediaType := range c.deps.Model.MediaTypes() {
		source := report.NewNode()
		source.Set(keyPluginID, mediaType.Source)

		if mediaType.SourceField != "" {
			idx, found, err := contentmodel.FieldIndex(c.deps.Model, et.ID, mediaType.SourceField, mediaType.ID)

			switch {
			case err != nil:
				c.deps.logger().WarnContext(ctx, "source field lookup failed",
					"media_type", mediaType.ID, "field", mediaType.SourceField, "error", err)
			case found:
				source.Set(keyFieldIdx, idx)
			}
		}

		record := report.NewNode()
		record.Set(keySource, source)

		out.Set(c.deps.Mapper.Bundle(et.ID, mediaType.ID), record)
	}

	return out, nil
}
