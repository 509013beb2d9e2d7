package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCollectionsTotal   = "sampler.collections.total"
	metricCollectionDuration = "sampler.collection.duration.seconds"
	metricCollectionErrors   = "sampler.collection.errors.total"

	attrCollector  = "collector"
	attrEntityType = "entity_type"
	attrStatus     = "status"

	statusError = "error"
)

// durationBucketBoundaries covers 1ms to 120s; a collector is one or a few
// aggregate queries.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// CollectionMetrics holds the OTel instruments for collector runs.
type CollectionMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewCollectionMetrics creates collection metric instruments from the given meter.
func NewCollectionMetrics(mt metric.Meter) (*CollectionMetrics, error) {
	total, err := mt.Int64Counter(metricCollectionsTotal,
		metric.WithDescription("Collector runs per entity type"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCollectionsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricCollectionDuration,
		metric.WithDescription("Collector run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCollectionDuration, err)
	}

	errs, err := mt.Int64Counter(metricCollectionErrors,
		metric.WithDescription("Collector runs that failed and were skipped"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCollectionErrors, err)
	}

	return &CollectionMetrics{total: total, duration: duration, errors: errs}, nil
}

// RecordCollection records one collector run. Safe to call on a nil receiver.
func (cm *CollectionMetrics) RecordCollection(
	ctx context.Context, collector, entityType, status string, duration time.Duration,
) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrCollector, collector),
		attribute.String(attrEntityType, entityType),
		attribute.String(attrStatus, status),
	)

	cm.total.Add(ctx, 1, attrs)
	cm.duration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		cm.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrCollector, collector),
			attribute.String(attrEntityType, entityType),
		))
	}
}
