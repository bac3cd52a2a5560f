// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pileup

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for filter operations.
var (
	tracer = otel.Tracer("colliderml.pileup")
	meter  = otel.Meter("colliderml.pileup")
)

// Metrics for cascading filter operations.
var (
	filterLatency    metric.Float64Histogram
	filterTotal      metric.Int64Counter
	particlesDropped metric.Int64Counter
	hitsDropped      metric.Int64Counter
	cellsDropped     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		filterLatency, err = meter.Float64Histogram(
			"pileup_filter_duration_seconds",
			metric.WithDescription("Duration of cascading filter passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filterTotal, err = meter.Int64Counter(
			"pileup_filter_total",
			metric.WithDescription("Total number of cascading filter passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		particlesDropped, err = meter.Int64Counter(
			"pileup_particles_dropped_total",
			metric.WithDescription("Particles removed by the kept-id filter"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		hitsDropped, err = meter.Int64Counter(
			"pileup_hits_dropped_total",
			metric.WithDescription("Tracker hits removed because their particle was removed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cellsDropped, err = meter.Int64Counter(
			"pileup_cells_dropped_total",
			metric.WithDescription("Calo cells removed because no contribution survived"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordFilterMetrics records one filter pass.
func recordFilterMetrics(ctx context.Context, duration time.Duration, dropped dropCounts, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	filterLatency.Record(ctx, duration.Seconds(), attrs)
	filterTotal.Add(ctx, 1, attrs)

	if success {
		particlesDropped.Add(ctx, dropped.particles)
		hitsDropped.Add(ctx, dropped.hits)
		cellsDropped.Add(ctx, dropped.cells)
	}
}

// dropCounts aggregates what one pass removed, for metrics and debug logs.
type dropCounts struct {
	particles int64
	hits      int64
	cells     int64
}
