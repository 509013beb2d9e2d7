package sampler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

const (
	tracerName = "github.com/Sumatoshi-tech/sampler/pkg/sampler"

	// StatusOK and StatusError label collector runs.
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrCollectorPanic wraps a panic recovered from a collector.
var ErrCollectorPanic = errors.New("collector panicked")

// MetricsRecorder receives one observation per collector run.
type MetricsRecorder interface {
	RecordCollection(ctx context.Context, collector, entityType, status string, duration time.Duration)
}

// Options tune a Reporter.
type Options struct {
	// Anonymize switches the mapper on or off for the run.
	Anonymize bool
	// Workers bounds how many entity types are collected at once.
	// Pseudonyms are assigned in context order whatever the value.
	Workers int
	// EntityTypes overrides the supported entity types when set.
	EntityTypes []string
	// Collectors holds collector ID patterns; empty selects all.
	Collectors []string
	// Format is the output format name; empty means JSON.
	Format string

	Tracer  trace.Tracer
	Metrics MetricsRecorder
	Stdout  io.Writer
	S3      report.S3Config
}

type fragment struct {
	key  string
	data any
}

// contextResult holds the fragments of one entity type. mapper is the
// deferred mapper the context ran with, nil when it mapped directly.
type contextResult struct {
	fragments []fragment
	mapper    *mapping.Mapper
}

// Reporter runs collectors over entity types and merges their fragments.
type Reporter struct {
	registry *Registry
	deps     Deps
	opts     Options
	report   *report.Report
}

// NewReporter creates a Reporter.
func NewReporter(registry *Registry, deps Deps, opts Options) *Reporter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	return &Reporter{
		registry: registry,
		deps:     deps,
		opts:     opts,
		report:   report.New(),
	}
}

// Collect runs every selected collector and replaces the current report.
// Collector failures are logged and leave an empty fragment; only selection
// errors and cancellation are returned.
func (r *Reporter) Collect(ctx context.Context) (*Reporter, error) {
	ids, err := r.registry.SelectedIDs(r.opts.Collectors)
	if err != nil {
		return r, err
	}

	collectors, err := r.registry.Build(ids, r.deps)
	if err != nil {
		return r, err
	}

	contexts, err := r.contexts()
	if err != nil {
		return r, err
	}

	r.deps.Mapper.SetEnabled(r.opts.Anonymize)

	// Concurrent contexts would race for pseudonym numbers in shared
	// namespaces, e.g. paragraph bundles named from a node reference field
	// and from the paragraph context itself. They map through deferred
	// mappers that are committed in context order below.
	deferred := r.opts.Workers > 1 && r.deps.Mapper.Enabled()

	ctx, span := r.opts.Tracer.Start(ctx, "sampler.report", trace.WithAttributes(
		attribute.Int("sampler.entity_types", len(contexts)),
		attribute.Int("sampler.collectors", len(collectors)),
		attribute.Int("sampler.workers", r.opts.Workers),
	))
	defer span.End()

	results := make([]contextResult, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for idx, et := range contexts {
		g.Go(func() error {
			if !deferred {
				results[idx] = contextResult{fragments: r.collectEntityType(gctx, et, collectors)}

				return gctx.Err()
			}

			mapper := r.deps.Mapper.Defer()

			own, buildErr := r.registry.Build(ids, r.deps.withMapper(mapper))
			if buildErr != nil {
				return buildErr
			}

			results[idx] = contextResult{fragments: r.collectEntityType(gctx, et, own), mapper: mapper}

			return gctx.Err()
		})
	}

	waitErr := g.Wait()
	if waitErr != nil {
		span.RecordError(waitErr)

		return r, fmt.Errorf("collect: %w", waitErr)
	}

	rep := report.New()

	for idx, et := range contexts {
		var names map[string]string
		if results[idx].mapper != nil {
			names = results[idx].mapper.Commit()
		}

		for _, frag := range results[idx].fragments {
			rep.Merge(et.ID, frag.key, relabel(frag.data, names))
		}
	}

	r.report = rep

	return r, nil
}

// Report returns the last collected report.
func (r *Reporter) Report() *report.Report {
	return r.report
}

// Formatted renders the report in the configured format.
func (r *Reporter) Formatted() ([]byte, error) {
	var buf bytes.Buffer

	err := report.Encode(&buf, r.report, r.opts.Format)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Output writes the formatted report to target: stdout when empty, else a
// file or object storage location.
func (r *Reporter) Output(ctx context.Context, target string) error {
	data, err := r.Formatted()
	if err != nil {
		return err
	}

	sink, err := report.OpenSink(target, r.opts.Stdout, r.opts.S3)
	if err != nil {
		return err
	}

	return sink.Write(ctx, data)
}

// contexts lists the entity types to collect, in model order.
func (r *Reporter) contexts() ([]contentmodel.EntityType, error) {
	wanted := r.opts.EntityTypes
	explicit := len(wanted) > 0

	if !explicit {
		wanted = append(slices.Clone(r.deps.Settings.SupportedEntityTypes), contentmodel.EntityTypeUser)
	}

	all := r.deps.Model.EntityTypes()

	if explicit {
		for _, id := range wanted {
			if !slices.ContainsFunc(all, func(et contentmodel.EntityType) bool { return et.ID == id }) {
				return nil, fmt.Errorf("%w: %s", contentmodel.ErrUnknownEntityType, id)
			}
		}
	}

	out := make([]contentmodel.EntityType, 0, len(wanted))

	for _, et := range all {
		if slices.Contains(wanted, et.ID) {
			out = append(out, et)
		}
	}

	return out, nil
}

func (r *Reporter) collectEntityType(ctx context.Context, et contentmodel.EntityType, collectors []Collector) []fragment {
	out := make([]fragment, 0, len(collectors))

	for _, c := range collectors {
		if ctx.Err() != nil {
			return out
		}

		if !c.Applicable(et) {
			continue
		}

		out = append(out, fragment{key: c.Key(et), data: r.run(ctx, c, et)})
	}

	return out
}

// run executes one collector, turning errors and panics into an empty
// fragment.
func (r *Reporter) run(ctx context.Context, c Collector, et contentmodel.EntityType) any {
	id := c.Descriptor().ID
	logger := r.deps.logger().With("collector", id, "entity_type", et.ID)

	ctx, span := r.opts.Tracer.Start(ctx, "sampler.collect", trace.WithAttributes(
		attribute.String("sampler.collector", id),
		attribute.String("sampler.entity_type", et.ID),
	))
	defer span.End()

	start := time.Now()

	data, err := safeCollect(ctx, c, et)

	status := StatusOK
	if err != nil {
		status = StatusError
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordCollection(ctx, id, et.ID, status, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "collector failed, skipping", "error", err)

		return report.NewNode()
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.DebugContext(ctx, "collected fragment", "fragment", spew.Sdump(data))
	}

	return data
}

func safeCollect(ctx context.Context, c Collector, et contentmodel.EntityType) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCollectorPanic, rec)
		}
	}()

	return c.Collect(ctx, et)
}
