package sampler

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

// Collector IDs and report keys of the grouped collectors.
const (
	IDBundle    = "bundle"
	IDRole      = "role"
	IDMedia     = "media_source"
	KeyBundle   = "bundle"
	KeyRole     = "role"
	keySource   = "source"
	keyPluginID = "plugin_id"
	keyFieldIdx = "source_field_index"
)

// BundleCollector reports every bundle with its instance count and the
// definitions of its configurable fields.
type BundleCollector struct {
	deps Deps
}

// NewBundleCollector creates a BundleCollector.
func NewBundleCollector(deps Deps) Collector {
	return &BundleCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *BundleCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDBundle,
		Description: "Bundles with instance counts and configurable field definitions",
		Kind:        KindSampler,
	}
}

// Applicable accepts fieldable, SQL-backed entity types with bundles.
func (c *BundleCollector) Applicable(et contentmodel.EntityType) bool {
	return et.Fieldable && et.SQLStorage && et.HasBundleKey()
}

// Key returns the report slot.
func (c *BundleCollector) Key(contentmodel.EntityType) string {
	return KeyBundle
}

// Collect builds {bundle: {fields, instances}} for every installed bundle.
func (c *BundleCollector) Collect(ctx context.Context, et contentmodel.EntityType) (any, error) {
	bundles, err := c.deps.Model.Bundles(et.ID)
	if err != nil {
		return nil, fmt.Errorf("list bundles of %s: %w", et.ID, err)
	}

	out := report.NewNode()

	for _, bundle := range bundles {
		pseudonym := c.deps.Mapper.Bundle(et.ID, bundle)

		instances, countErr := c.deps.Store.CountWhere(ctx, et.BaseTable, et.Key(contentmodel.KeyBundle), bundle)
		if countErr != nil {
			return nil, fmt.Errorf("count %s/%s: %w", et.ID, bundle, countErr)
		}

		fields, fieldsErr := c.fields(ctx, et, bundle)
		if fieldsErr != nil {
			return nil, fieldsErr
		}

		out.Set(pseudonym, report.GroupRecord{Instances: instances, Fields: fields}.Node())
	}

	return out, nil
}

func (c *BundleCollector) fields(ctx context.Context, et contentmodel.EntityType, bundle string) (*report.Node, error) {
	definitions, err := c.deps.Model.FieldsForBundle(et.ID, bundle)
	if err != nil {
		return nil, fmt.Errorf("fields of %s/%s: %w", et.ID, bundle, err)
	}

	out := report.NewNode()

	for _, field := range definitions {
		if field.IsBase() || !c.supported(field) {
			continue
		}

		rec, describeErr := c.deps.Describer.Describe(ctx, field, et.ID)
		if describeErr != nil {
			c.deps.logger().WarnContext(ctx, "field description incomplete",
				"entity_type", et.ID, "bundle", bundle, "field", field.Name, "error", describeErr)
		}

		out.Set(c.deps.Mapper.Field(et.ID, field.Name), rec.Node())
	}

	return out, nil
}

// supported applies the field type allow-list and, for reference fields,
// the entity type allow-list of the target.
func (c *BundleCollector) supported(field contentmodel.FieldDefinition) bool {
	if !c.deps.Settings.SupportsFieldType(field.Type) {
		return false
	}

	if field.IsReference() {
		return c.deps.Settings.SupportsEntityType(field.TargetType())
	}

	return true
}
