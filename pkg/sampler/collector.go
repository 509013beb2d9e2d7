// Package sampler collects usage data from a site and assembles the report.
package sampler

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/fielddata"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

// Kind groups collectors by the shape of data they produce.
type Kind string

// Collector kinds.
const (
	KindSampler   Kind = "sampler"
	KindHistogram Kind = "histogram"
	KindCount     Kind = "count"
)

// Descriptor contains stable collector metadata.
type Descriptor struct {
	ID          string
	Description string
	Kind        Kind
}

// Collector produces one report fragment per applicable entity type.
type Collector interface {
	Descriptor() Descriptor
	Applicable(et contentmodel.EntityType) bool
	Collect(ctx context.Context, et contentmodel.EntityType) (any, error)
	Key(et contentmodel.EntityType) string
}

// Settings restrict which entity and field types are reported.
type Settings struct {
	SupportedEntityTypes []string
	SupportedFieldTypes  []string
}

// SupportsEntityType reports whether id is on the entity type allow-list.
func (s Settings) SupportsEntityType(id string) bool {
	return slices.Contains(s.SupportedEntityTypes, id)
}

// SupportsFieldType reports whether fieldType is on the field type allow-list.
func (s Settings) SupportsFieldType(fieldType string) bool {
	return slices.Contains(s.SupportedFieldTypes, fieldType)
}

// Deps are the collaborators shared by every collector.
type Deps struct {
	Model     contentmodel.Model
	Store     storage.Querier
	Mapper    *mapping.Mapper
	Describer *fielddata.Describer
	Settings  Settings
	Logger    *slog.Logger
}

// Factory builds a collector over deps.
type Factory func(Deps) Collector

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}
