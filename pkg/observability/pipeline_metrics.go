package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDetectorDuration = "codescope.detector.duration.seconds"
	metricDetectorFailures = "codescope.detector.failures.total"
	metricJobsTotal        = "codescope.jobs.total"
	metricCacheHitsTotal   = "codescope.cache.hits.total"
	metricCacheMissesTotal = "codescope.cache.misses.total"

	attrDetector = "detector"
	attrCache    = "cache"
	attrOutcome  = "outcome"
)

// PipelineMetrics holds OTel instruments tracking the DAG runner: one
// duration histogram per detector node, a job-outcome counter, and cache
// hit/miss counters for the response-memoization cache.
type PipelineMetrics struct {
	detectorDuration metric.Float64Histogram
	detectorFailures metric.Int64Counter
	jobsTotal        metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	detDuration, err := mt.Float64Histogram(metricDetectorDuration,
		metric.WithDescription("Per-detector-node duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDetectorDuration, err)
	}

	detFailures, err := mt.Int64Counter(metricDetectorFailures,
		metric.WithDescription("Detector node failures by detector name"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDetectorFailures, err)
	}

	jobs, err := mt.Int64Counter(metricJobsTotal,
		metric.WithDescription("Completed jobs by outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricJobsTotal, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by cache name"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by cache name"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &PipelineMetrics{
		detectorDuration: detDuration,
		detectorFailures: detFailures,
		jobsTotal:        jobs,
		cacheHits:        hits,
		cacheMisses:      misses,
	}, nil
}

// RecordDetector records a single detector node's execution.
func (pm *PipelineMetrics) RecordDetector(ctx context.Context, name string, d time.Duration, failed bool) {
	if pm == nil {
		return
	}

	pm.detectorDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrDetector, name)))

	if failed {
		pm.detectorFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrDetector, name)))
	}
}

// RecordJob records a completed job's terminal outcome.
func (pm *PipelineMetrics) RecordJob(ctx context.Context, outcome string) {
	if pm == nil {
		return
	}

	pm.jobsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordCache records a cache lookup outcome for the named cache.
func (pm *PipelineMetrics) RecordCache(ctx context.Context, cache string, hit bool) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, cache))

	if hit {
		pm.cacheHits.Add(ctx, 1, attrs)

		return
	}

	pm.cacheMisses.Add(ctx, 1, attrs)
}
