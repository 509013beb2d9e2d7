package sampler

import (
	"log/slog"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/fielddata"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

// DefaultFactories lists the built-in collectors in run order.
func DefaultFactories() []Factory {
	return []Factory{
		NewBundleCollector,
		NewMediaSourceCollector,
		NewRoleCollector,
		NewRevisionHistogramCollector,
		NewChildHistogramCollector,
		NewBaseFieldCountCollector,
	}
}

// DefaultRegistry returns a registry of the built-in collectors.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultFactories()...)
	if err != nil {
		panic(err)
	}

	return reg
}

// NewDeps wires the shared collaborators, building the field describer
// from the others.
func NewDeps(model contentmodel.Model, store storage.Querier, mapper *mapping.Mapper, settings Settings, logger *slog.Logger) Deps {
	if logger == nil {
		logger = slog.Default()
	}

	return Deps{
		Model:     model,
		Store:     store,
		Mapper:    mapper,
		Describer: fielddata.New(model, store, mapper, fielddata.WithLogger(logger)),
		Settings:  settings,
		Logger:    logger,
	}
}

// withMapper returns a copy of d whose collectors and describer map names
// through mapper.
func (d Deps) withMapper(mapper *mapping.Mapper) Deps {
	d.Mapper = mapper
	d.Describer = fielddata.New(d.Model, d.Store, mapper, fielddata.WithLogger(d.logger()))

	return d
}
