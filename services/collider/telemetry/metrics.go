// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for collider batch processing.
//
// The genealogy and pileup packages register their own operation metrics
// against the global meter; this struct is for applications that drive
// whole batches and want batch-level counters under one roof. All metrics
// use the "collider_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// BatchesProcessed counts processed batches by operation and status.
	BatchesProcessed metric.Int64Counter

	// BatchDuration records whole-batch processing duration in seconds.
	BatchDuration metric.Float64Histogram

	// EventsProcessed counts events across all batches.
	EventsProcessed metric.Int64Counter

	// EventsInFlight tracks events currently being transformed.
	EventsInFlight metric.Int64UpDownCounter
}

// NewMetrics creates and registers the batch-level metrics on a meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.BatchesProcessed, err = meter.Int64Counter(
		"collider_batches_processed_total",
		metric.WithDescription("Total number of processed batches"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batches counter: %w", err)
	}

	m.BatchDuration, err = meter.Float64Histogram(
		"collider_batch_duration_seconds",
		metric.WithDescription("Duration of whole-batch processing"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batch duration histogram: %w", err)
	}

	m.EventsProcessed, err = meter.Int64Counter(
		"collider_events_processed_total",
		metric.WithDescription("Total number of processed events"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}

	m.EventsInFlight, err = meter.Int64UpDownCounter(
		"collider_events_in_flight",
		metric.WithDescription("Events currently being transformed"),
	)
	if err != nil {
		return nil, fmt.Errorf("create in-flight counter: %w", err)
	}

	return m, nil
}

// RecordBatch records one completed batch.
func (m *Metrics) RecordBatch(ctx context.Context, seconds float64, events int) {
	m.BatchesProcessed.Add(ctx, 1)
	m.BatchDuration.Record(ctx, seconds)
	m.EventsProcessed.Add(ctx, int64(events))
}
