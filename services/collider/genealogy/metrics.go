// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package genealogy

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for resolver operations.
var (
	tracer = otel.Tracer("colliderml.genealogy")
	meter  = otel.Meter("colliderml.genealogy")
)

// Metrics for ancestor resolution.
var (
	resolveLatency metric.Float64Histogram
	resolveTotal   metric.Int64Counter
	eventsResolved metric.Int64Histogram
	loopsBroken    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolveLatency, err = meter.Float64Histogram(
			"genealogy_resolve_duration_seconds",
			metric.WithDescription("Duration of primary ancestor resolution per batch"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveTotal, err = meter.Int64Counter(
			"genealogy_resolve_total",
			metric.WithDescription("Total number of ancestor resolution operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		eventsResolved, err = meter.Int64Histogram(
			"genealogy_events_resolved",
			metric.WithDescription("Number of events resolved per batch"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loopsBroken, err = meter.Int64Counter(
			"genealogy_loops_broken_total",
			metric.WithDescription("Total number of parent chains broken by cycle detection"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordResolveMetrics records metrics for one resolution pass.
func recordResolveMetrics(ctx context.Context, duration time.Duration, events int, loops int64, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	resolveLatency.Record(ctx, duration.Seconds(), attrs)
	resolveTotal.Add(ctx, 1, attrs)

	if success {
		eventsResolved.Record(ctx, int64(events))
		if loops > 0 {
			loopsBroken.Add(ctx, loops)
		}
	}
}
