// Package fielddata describes field definitions for the usage report.
package fielddata

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

// Handler setting names.
const (
	settingTargetBundles         = "target_bundles"
	settingTargetBundlesDragDrop = "target_bundles_drag_drop"
	settingNegate                = "negate"
	settingEnabled               = "enabled"
	settingWeight                = "weight"
)

// ErrMalformedSettings marks reference settings that could not be read.
// It never escapes Describe; the affected target list is treated as empty.
var ErrMalformedSettings = errors.New("malformed reference settings")

// Option configures a Describer.
type Option func(*Describer)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Describer) {
		d.logger = logger
	}
}

// Describer turns field definitions into report records.
type Describer struct {
	model  contentmodel.Model
	store  storage.Querier
	mapper *mapping.Mapper
	logger *slog.Logger
}

// New creates a Describer.
func New(model contentmodel.Model, store storage.Querier, mapper *mapping.Mapper, opts ...Option) *Describer {
	d := &Describer{
		model:  model,
		store:  store,
		mapper: mapper,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Describe returns the record of any field. Reference fields get their
// target data and, unless they are base fields, a usage histogram. A failed
// histogram query is returned as an error alongside the partial record.
func (d *Describer) Describe(ctx context.Context, field contentmodel.FieldDefinition, entityTypeID string) (report.FieldRecord, error) {
	if !field.IsReference() {
		return d.DescribeDefault(field), nil
	}

	return d.DescribeReference(ctx, field, entityTypeID)
}

// DescribeDefault returns the attributes every field has.
func (d *Describer) DescribeDefault(field contentmodel.FieldDefinition) report.FieldRecord {
	return report.FieldRecord{
		Type:         field.Type,
		Required:     field.Required,
		Translatable: field.Translatable,
		Cardinality:  field.Cardinality,
	}
}

// DescribeReference adds the reference target data to the default record.
func (d *Describer) DescribeReference(ctx context.Context, field contentmodel.FieldDefinition, entityTypeID string) (report.FieldRecord, error) {
	rec := d.DescribeDefault(field)
	rec.Reference = true
	rec.TargetType = field.TargetType()

	bundles := d.targetBundles(field, rec.TargetType)

	rec.TargetBundles = make([]string, len(bundles))
	for idx, b := range bundles {
		rec.TargetBundles[idx] = d.mapper.Bundle(rec.TargetType, b)
	}

	if field.IsBase() {
		return rec, nil
	}

	hist, err := d.histogram(ctx, field, entityTypeID)
	if err != nil {
		return rec, fmt.Errorf("histogram of %s.%s: %w", entityTypeID, field.Name, err)
	}

	rec.Histogram = hist

	return rec, nil
}

func (d *Describer) histogram(ctx context.Context, field contentmodel.FieldDefinition, entityTypeID string) (report.Histogram, error) {
	et, err := d.model.EntityType(entityTypeID)
	if err != nil {
		return nil, err
	}

	return d.store.FieldHistogram(ctx, storage.FieldHistogramQuery{
		FieldTable:   field.Table,
		BaseTable:    et.BaseTable,
		IDColumn:     et.Key(contentmodel.KeyID),
		BundleColumn: et.Key(contentmodel.KeyBundle),
		Bundle:       field.Bundle,
	})
}

// targetBundles resolves the bundles a reference field may point to,
// restricted to bundles that are still installed.
func (d *Describer) targetBundles(field contentmodel.FieldDefinition, targetType string) []string {
	installed := d.installedBundles(targetType)

	handler, negate, selected, err := readHandlerSettings(field)
	if err != nil {
		d.logger.Debug("reference settings unreadable",
			"field", field.Name, "entity_type", field.EntityTypeID, "error", err)

		return []string{}
	}

	if targetType == contentmodel.EntityTypeParagraph {
		if _, hasList := handler[settingTargetBundles]; !hasList {
			selected = dragDropSelection(handler)
		}

		switch {
		case negate:
			selected = slices.DeleteFunc(slices.Clone(installed), func(b string) bool {
				return slices.Contains(selected, b)
			})
		case len(selected) == 0:
			selected = slices.Clone(installed)
		}
	}

	return slices.DeleteFunc(selected, func(b string) bool {
		return !slices.Contains(installed, b)
	})
}

func (d *Describer) installedBundles(targetType string) []string {
	if targetType == "" {
		return nil
	}

	installed, err := d.model.Bundles(targetType)
	if err != nil {
		d.logger.Debug("target entity type unavailable", "target_type", targetType, "error", err)

		return nil
	}

	return installed
}

// readHandlerSettings extracts the handler settings map, the negate flag and
// the configured selection. A missing handler_settings block yields an empty
// selection; a present but malformed one is an error.
func readHandlerSettings(field contentmodel.FieldDefinition) (map[string]any, bool, []string, error) {
	raw, ok := field.Setting(contentmodel.SettingHandlerSettings)
	if !ok || raw == nil {
		return map[string]any{}, false, []string{}, nil
	}

	handler, ok := raw.(map[string]any)
	if !ok {
		return nil, false, nil, fmt.Errorf("%w: handler_settings is %T", ErrMalformedSettings, raw)
	}

	selected, err := bundleList(field, handler[settingTargetBundles])
	if err != nil {
		return nil, false, nil, err
	}

	return handler, truthy(handler[settingNegate]), selected, nil
}

// bundleList reads a target bundle selection. A map contributes its keys in
// configuration order, a list its entries in order.
func bundleList(field contentmodel.FieldDefinition, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case map[string]any:
		return field.SettingKeys(contentmodel.SettingHandlerSettings, settingTargetBundles), nil
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: target bundle %v is %T", ErrMalformedSettings, item, item)
			}

			out = append(out, s)
		}

		return out, nil
	case []string:
		return slices.Clone(v), nil
	default:
		return nil, fmt.Errorf("%w: target_bundles is %T", ErrMalformedSettings, raw)
	}
}

// dragDropSelection returns the enabled bundles of the drag-drop setting
// ordered by weight, then name.
func dragDropSelection(handler map[string]any) []string {
	raw, ok := handler[settingTargetBundlesDragDrop].(map[string]any)
	if !ok {
		return []string{}
	}

	type weighted struct {
		name   string
		weight int
	}

	var items []weighted

	for name, entry := range raw {
		props, isMap := entry.(map[string]any)
		if !isMap || !truthy(props[settingEnabled]) {
			continue
		}

		weight, _ := props[settingWeight].(int)
		items = append(items, weighted{name: name, weight: weight})
	}

	slices.SortFunc(items, func(a, b weighted) int {
		return cmp.Or(cmp.Compare(a.weight, b.weight), cmp.Compare(a.name, b.name))
	})

	out := make([]string, len(items))
	for idx, item := range items {
		out[idx] = item.name
	}

	return out
}

// truthy accepts the boolean spellings found in exported configuration.
func truthy(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		return v == "1" || v == "true"
	default:
		return false
	}
}
