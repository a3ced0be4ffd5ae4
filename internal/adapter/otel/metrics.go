// Package otel provides OpenTelemetry metric instruments and HTTP
// instrumentation for the optimization engine.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "promptforge"

// Metrics holds all PromptForge metric instruments.
type Metrics struct {
	Optimizations    metric.Int64Counter
	CacheHits        metric.Int64Counter
	FeedbackEvents   metric.Int64Counter
	OptimizeDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Optimizations, err = meter.Int64Counter("promptforge.optimizations",
		metric.WithDescription("Number of optimization requests served"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("promptforge.cache.hits",
		metric.WithDescription("Number of optimizations served from cache"))
	if err != nil {
		return nil, err
	}

	m.FeedbackEvents, err = meter.Int64Counter("promptforge.feedback.events",
		metric.WithDescription("Number of accepted feedback events"))
	if err != nil {
		return nil, err
	}

	m.OptimizeDuration, err = meter.Float64Histogram("promptforge.optimize.duration_seconds",
		metric.WithDescription("Optimization latency in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOptimization records one served optimization.
func (m *Metrics) RecordOptimization(ctx context.Context, d time.Duration, fromCache bool) {
	m.Optimizations.Add(ctx, 1)
	if fromCache {
		m.CacheHits.Add(ctx, 1)
	}
	m.OptimizeDuration.Record(ctx, d.Seconds())
}
