package sampler

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
)

// IDBaseFields is both the collector ID and its report key.
const IDBaseFields = "base_fields"

// BaseFieldCountCollector reports how many base fields an entity type has.
// Base field names are structural, so none are emitted or pseudonymized.
type BaseFieldCountCollector struct {
	deps Deps
}

// NewBaseFieldCountCollector creates a BaseFieldCountCollector.
func NewBaseFieldCountCollector(deps Deps) Collector {
	return &BaseFieldCountCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *BaseFieldCountCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDBaseFields,
		Description: "Number of base field definitions",
		Kind:        KindCount,
	}
}

// Applicable accepts every fieldable entity type.
func (c *BaseFieldCountCollector) Applicable(et contentmodel.EntityType) bool {
	return et.Fieldable
}

// Key returns the report slot.
func (c *BaseFieldCountCollector) Key(contentmodel.EntityType) string {
	return IDBaseFields
}

// Collect returns the base field count.
func (c *BaseFieldCountCollector) Collect(_ context.Context, et contentmodel.EntityType) (any, error) {
	fields, err := c.deps.Model.BaseFields(et.ID)
	if err != nil {
		return nil, fmt.Errorf("base fields of %s: %w", et.ID, err)
	}

	return len(fields), nil
}
