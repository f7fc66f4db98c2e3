package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ResolverMetricsMeterName is the name used for the resolver metrics meter
	ResolverMetricsMeterName = "github.com/neartreasury/kyc-status-server/resolver"
)

// ResolverMetrics holds the OpenTelemetry instruments for KYC status lookups
type ResolverMetrics struct {
	lookupsTotal   metric.Int64Counter
	lookupDuration metric.Float64Histogram
}

// NewResolverMetrics creates a new ResolverMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewResolverMetrics(provider metric.MeterProvider) (*ResolverMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ResolverMetricsMeterName)

	lookupsTotal, err := meter.Int64Counter(
		"kyc_srv_lookups_total",
		metric.WithDescription("Total number of KYC status lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	lookupDuration, err := meter.Float64Histogram(
		"kyc_srv_lookup_duration_seconds",
		metric.WithDescription("Duration of upstream KYC record lookups in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &ResolverMetrics{
		lookupsTotal:   lookupsTotal,
		lookupDuration: lookupDuration,
	}, nil
}

// RecordLookup records one completed status lookup. status is the resolved
// status wire value (empty on failure) and outcome is one of "resolved",
// "invalid_account", "upstream_error" or "schema_error".
func (m *ResolverMetrics) RecordLookup(ctx context.Context, status, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("outcome", outcome),
	}

	m.lookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.lookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
