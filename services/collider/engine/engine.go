// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Scheduling configuration constants.
const (
	// DefaultParallelThreshold is the minimum batch size to engage the
	// worker pool. Smaller batches run sequentially for better cache
	// locality.
	DefaultParallelThreshold = 32

	// DefaultMaxWorkers caps the pool regardless of CPU count.
	// Memory-bound columnar transforms don't benefit from excessive
	// parallelism.
	DefaultMaxWorkers = 8
)

var tracer = otel.Tracer("colliderml.engine")

// EventFunc processes one event, identified by its index in the batch.
// Implementations must confine writes to state owned by that index.
type EventFunc func(ctx context.Context, event int) error

// Options configures event scheduling.
type Options struct {
	// Workers is the maximum number of concurrent event workers.
	// Default: min(runtime.NumCPU(), DefaultMaxWorkers).
	Workers int

	// ParallelThreshold is the minimum event count to run in parallel.
	// Default: DefaultParallelThreshold.
	ParallelThreshold int
}

// Option mutates Options.
type Option func(*Options)

// WithWorkers sets the worker cap. Values below 1 force sequential
// execution.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		} else {
			o.Workers = 1
		}
	}
}

// WithParallelThreshold sets the minimum batch size for parallel execution.
func WithParallelThreshold(n int) Option {
	return func(o *Options) { o.ParallelThreshold = n }
}

func defaultOptions() Options {
	return Options{
		Workers:           min(runtime.NumCPU(), DefaultMaxWorkers),
		ParallelThreshold: DefaultParallelThreshold,
	}
}

func applyOptions(opts []Option) Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// ForEachEvent runs fn once per event index in [0, events).
//
// Description:
//
//	Batches at or below the parallel threshold run sequentially on the
//	calling goroutine. Larger batches run on an errgroup pool bounded by
//	the worker cap. Cancellation is coarse-grained: a cancelled context or
//	a failing event abandons the whole batch, and the first error is
//	returned. There is no partial-success contract; callers discard their
//	output buffers on error.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - events: Number of events in the batch. Non-positive means no work.
//   - fn: Per-event transform. Must write only to state owned by its index.
//   - opts: Scheduling options (worker cap, threshold).
//
// Outputs:
//   - error: First per-event error, context error, or ErrWorkerPanic.
//
// Thread Safety: Safe for concurrent use; each call owns its own pool.
func ForEachEvent(ctx context.Context, events int, fn EventFunc, opts ...Option) error {
	options := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "engine.ForEachEvent")
	defer span.End()
	span.SetAttributes(
		attribute.Int("events", events),
		attribute.Int("workers", options.Workers),
	)

	if events <= 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	if events <= options.ParallelThreshold || options.Workers <= 1 {
		span.SetAttributes(attribute.Bool("parallel", false))
		if err := runSequential(ctx, events, fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}

	runID := uuid.NewString()
	span.SetAttributes(
		attribute.Bool("parallel", true),
		attribute.String("run_id", runID),
	)
	slog.Debug("dispatching event workers",
		slog.String("run_id", runID),
		slog.Int("events", events),
		slog.Int("workers", options.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(options.Workers)
	for i := 0; i < events; i++ {
		if gctx.Err() != nil {
			break
		}
		event := i
		g.Go(func() (err error) {
			// Panic containment: log with stack, fail the batch.
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					slog.Error("panic in event worker",
						slog.String("run_id", runID),
						slog.Int("event", event),
						slog.Any("panic", r),
						slog.String("stack", string(buf[:n])),
					)
					err = fmt.Errorf("event %d: %w: %v", event, ErrWorkerPanic, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, event)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	// Dispatch may stop on a cancelled context without any worker failing.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	slog.Debug("event workers completed",
		slog.String("run_id", runID),
		slog.Int("events", events),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// runSequential processes events in order on the calling goroutine,
// checking cancellation between events.
func runSequential(ctx context.Context, events int, fn EventFunc) error {
	for i := 0; i < events; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
