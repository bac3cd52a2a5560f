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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/colliderml/services/collider/batch"
	"github.com/AleutianAI/colliderml/services/collider/engine"
)

// Default table keys matching the ColliderML dataset layout.
const (
	DefaultParticlesKey   = "particles"
	DefaultTrackerHitsKey = "tracker_hits"
	DefaultCaloHitsKey    = "calo_hits"
)

// KeepSet is the set of particle ids surviving a filtering pass for one
// event.
type KeepSet map[int64]struct{}

// NewKeepSet builds a KeepSet from explicit ids.
func NewKeepSet(ids ...int64) KeepSet {
	s := make(KeepSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether the id survives.
func (s KeepSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Options configures the cascading filter.
type Options struct {
	// ParticlesKey, TrackerHitsKey, and CaloHitsKey locate the tables in
	// the batch map. The particles table is required; the hit tables are
	// filtered only when present.
	ParticlesKey   string
	TrackerHitsKey string
	CaloHitsKey    string

	// Manifest names the referenced columns.
	Manifest batch.Manifest

	// Workers caps the event worker pool. 0 means the engine default.
	Workers int
}

// Option mutates Options.
type Option func(*Options)

// WithParticlesKey overrides the particle table key.
func WithParticlesKey(key string) Option {
	return func(o *Options) { o.ParticlesKey = key }
}

// WithTrackerHitsKey overrides the tracker hit table key.
func WithTrackerHitsKey(key string) Option {
	return func(o *Options) { o.TrackerHitsKey = key }
}

// WithCaloHitsKey overrides the calo cell table key.
func WithCaloHitsKey(key string) Option {
	return func(o *Options) { o.CaloHitsKey = key }
}

// WithManifest overrides the column manifest.
func WithManifest(m batch.Manifest) Option {
	return func(o *Options) { o.Manifest = m }
}

// WithWorkers caps the event worker pool.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func defaultOptions() Options {
	return Options{
		ParticlesKey:   DefaultParticlesKey,
		TrackerHitsKey: DefaultTrackerHitsKey,
		CaloHitsKey:    DefaultCaloHitsKey,
		Manifest:       batch.DefaultManifest(),
	}
}

func applyOptions(opts []Option) Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// engineOptions converts the worker cap into scheduling options. Zero means
// the engine's own default pool size, so no option is passed at all;
// engine.WithWorkers(0) would force sequential execution instead.
func engineOptions(workers int) []engine.Option {
	if workers > 0 {
		return []engine.Option{engine.WithWorkers(workers)}
	}
	return nil
}

// Subsample reduces pileup by removing every particle whose vertex
// generation exceeds targetVertices, cascading the removal through the hit
// tables present in the batch.
//
// Description:
//
//	Keeps particles with vertex_primary <= targetVertices (generations are
//	1-based), derives the per-event kept-id sets from the survivors, and
//	applies the cascade of FilterByKeptIDs. Tables under keys other than
//	the configured particle/tracker/calo keys pass through untouched.
//
// Inputs:
//   - ctx: Context for coarse cancellation. Must not be nil.
//   - tables: Batch map of table key to event table.
//   - targetVertices: Highest vertex generation to keep. Must be positive.
//   - opts: Table keys, column manifest, worker cap.
//
// Outputs:
//   - map[string]*batch.Table: New map with filtered tables for the known
//     keys; input tables are never mutated.
//   - error: ErrNonPositiveTarget, ErrMissingParticlesTable, or a schema
//     error, all reported before any event is processed.
//
// Thread Safety: Safe for concurrent use; inputs are read-only.
func Subsample(ctx context.Context, tables map[string]*batch.Table, targetVertices int, opts ...Option) (map[string]*batch.Table, error) {
	options := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "pileup.Subsample")
	defer span.End()
	span.SetAttributes(attribute.Int("target_vertices", targetVertices))

	if targetVertices <= 0 {
		err := fmt.Errorf("%w: %d", ErrNonPositiveTarget, targetVertices)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	particles, ok := tables[options.ParticlesKey]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrMissingParticlesTable, options.ParticlesKey)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := options.Manifest.ValidateParticles(particles); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("particles table schema: %w", err)
	}

	// Schema is batch-wide; check the dependent tables up front too.
	if err := validateHitTables(tables, options); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	pidCol, err := particles.Int64(options.Manifest.ParticleID)
	if err != nil {
		return nil, err
	}
	vertexCol, err := particles.Int64(options.Manifest.VertexPrimary)
	if err != nil {
		return nil, err
	}

	kept := make([]KeepSet, particles.NumEvents())
	for event := range kept {
		pids := pidCol.Event(event)
		vertices := vertexCol.Event(event)
		set := make(KeepSet)
		for j, pid := range pids {
			if j < len(vertices) && vertices[j] <= int64(targetVertices) {
				set[pid] = struct{}{}
			}
		}
		kept[event] = set
	}

	out, dropped, err := cascade(ctx, tables, kept, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("particles_dropped", dropped.particles),
		attribute.Int64("hits_dropped", dropped.hits),
		attribute.Int64("cells_dropped", dropped.cells),
	)
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// FilterByKeptIDs applies the cascading filter with caller-supplied
// per-event kept-id sets, one per event of the particle table.
//
// An empty set is valid and yields empty particle, hit, and cell sequences
// for that event. Schema and keep-set cardinality are checked before any
// event is processed.
func FilterByKeptIDs(ctx context.Context, tables map[string]*batch.Table, kept []KeepSet, opts ...Option) (map[string]*batch.Table, error) {
	options := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "pileup.FilterByKeptIDs")
	defer span.End()

	particles, ok := tables[options.ParticlesKey]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrMissingParticlesTable, options.ParticlesKey)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := options.Manifest.ValidateParticleIDs(particles); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("particles table schema: %w", err)
	}
	if len(kept) != particles.NumEvents() {
		err := fmt.Errorf("%w: %d sets for %d events", ErrKeepSetCountMismatch, len(kept), particles.NumEvents())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := validateHitTables(tables, options); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out, dropped, err := cascade(ctx, tables, kept, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("particles_dropped", dropped.particles),
		attribute.Int64("hits_dropped", dropped.hits),
		attribute.Int64("cells_dropped", dropped.cells),
	)
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// validateHitTables checks the dependent tables that are present. A
// missing required column is a batch-wide schema error, never skipped
// silently.
func validateHitTables(tables map[string]*batch.Table, options Options) error {
	if tracker, ok := tables[options.TrackerHitsKey]; ok {
		if err := options.Manifest.ValidateTrackerHits(tracker); err != nil {
			return fmt.Errorf("tracker hits table schema: %w", err)
		}
	}
	if calo, ok := tables[options.CaloHitsKey]; ok {
		if err := options.Manifest.ValidateCaloCells(calo); err != nil {
			return fmt.Errorf("calo hits table schema: %w", err)
		}
	}
	return nil
}

// cascade runs the three filter stages. Schema has already been validated.
func cascade(ctx context.Context, tables map[string]*batch.Table, kept []KeepSet, options Options) (map[string]*batch.Table, dropCounts, error) {
	start := time.Now()
	var dropped dropCounts

	out := make(map[string]*batch.Table, len(tables))
	for key, table := range tables {
		out[key] = table
	}

	// Stage 1: particle-level filter, every particle column lock-step.
	particles := tables[options.ParticlesKey]
	pidCol, err := particles.Int64(options.Manifest.ParticleID)
	if err != nil {
		return nil, dropped, err
	}
	masks, removed := membershipMasks(pidCol, kept)
	filtered, err := particles.FilterRows(masks)
	if err != nil {
		return nil, dropped, err
	}
	out[options.ParticlesKey] = filtered
	dropped.particles = removed

	// Stage 2: single-reference hit filter.
	if tracker, ok := tables[options.TrackerHitsKey]; ok {
		refCol, err := tracker.Int64(options.Manifest.HitParticleID)
		if err != nil {
			return nil, dropped, err
		}
		hitMasks, removed := membershipMasks(refCol, kept)
		filteredHits, err := tracker.FilterRows(hitMasks)
		if err != nil {
			return nil, dropped, err
		}
		out[options.TrackerHitsKey] = filteredHits
		dropped.hits = removed
	}

	// Stage 3: two-level contribution filter.
	if calo, ok := tables[options.CaloHitsKey]; ok {
		filteredCells, removed, err := filterCaloCells(ctx, calo, kept, options)
		if err != nil {
			return nil, dropped, err
		}
		out[options.CaloHitsKey] = filteredCells
		dropped.cells = removed
	}

	recordFilterMetrics(ctx, time.Since(start), dropped, true)
	slog.Debug("cascading filter applied",
		slog.Int("events", particles.NumEvents()),
		slog.Int64("particles_dropped", dropped.particles),
		slog.Int64("hits_dropped", dropped.hits),
		slog.Int64("cells_dropped", dropped.cells),
		slog.Duration("duration", time.Since(start)),
	)
	return out, dropped, nil
}

// membershipMasks builds per-event keep masks from id membership in the
// event's kept set, and counts the rows that fail.
func membershipMasks(ids *batch.Int64Column, kept []KeepSet) ([][]bool, int64) {
	n := ids.NumEvents()
	masks := make([][]bool, n)
	var removed int64
	for event := 0; event < n; event++ {
		vals := ids.Event(event)
		var set KeepSet
		if event < len(kept) {
			set = kept[event]
		}
		mask := make([]bool, len(vals))
		for j, id := range vals {
			if set.Contains(id) {
				mask[j] = true
			} else {
				removed++
			}
		}
		masks[event] = mask
	}
	return masks, removed
}

// filterCaloCells prunes contributions from removed particles, recomputes
// the cell aggregate from the survivors, and drops cells left with zero
// contributions. Cell-level scalar columns travel with their cell.
func filterCaloCells(ctx context.Context, calo *batch.Table, kept []KeepSet, options Options) (*batch.Table, int64, error) {
	m := options.Manifest
	contribPIDs, err := calo.Int64List(m.ContribParticleIDs)
	if err != nil {
		return nil, 0, err
	}
	contribEnergies, err := calo.Float64List(m.ContribEnergies)
	if err != nil {
		return nil, 0, err
	}
	contribTimes, err := calo.Float64List(m.ContribTimes)
	if err != nil {
		return nil, 0, err
	}

	n := calo.NumEvents()
	cellKeep := make([][]bool, n)
	newPIDs := make([][][]int64, n)
	newEnergies := make([][][]float64, n)
	newTimes := make([][][]float64, n)
	newTotals := make([][]float64, n)
	cellsRemoved := make([]int64, n)

	err = engine.ForEachEvent(ctx, n, func(_ context.Context, event int) error {
		pids := contribPIDs.Event(event)
		energies := contribEnergies.Event(event)
		times := contribTimes.Event(event)
		var set KeepSet
		if event < len(kept) {
			set = kept[event]
		}

		keep := make([]bool, len(pids))
		survivorPIDs := make([][]int64, 0, len(pids))
		survivorEnergies := make([][]float64, 0, len(pids))
		survivorTimes := make([][]float64, 0, len(pids))
		totals := make([]float64, 0, len(pids))

		for c, cellPIDs := range pids {
			var cellEnergies, cellTimes []float64
			if c < len(energies) {
				cellEnergies = energies[c]
			}
			if c < len(times) {
				cellTimes = times[c]
			}

			var keptPIDs []int64
			var keptEnergies, keptTimes []float64
			sum := 0.0
			for k, pid := range cellPIDs {
				if !set.Contains(pid) {
					continue
				}
				keptPIDs = append(keptPIDs, pid)
				if k < len(cellEnergies) {
					keptEnergies = append(keptEnergies, cellEnergies[k])
					sum += cellEnergies[k]
				}
				if k < len(cellTimes) {
					keptTimes = append(keptTimes, cellTimes[k])
				}
			}

			if len(keptPIDs) == 0 {
				// Every contribution removed: the whole cell goes.
				cellsRemoved[event]++
				continue
			}
			keep[c] = true
			survivorPIDs = append(survivorPIDs, keptPIDs)
			survivorEnergies = append(survivorEnergies, keptEnergies)
			survivorTimes = append(survivorTimes, keptTimes)
			totals = append(totals, sum)
		}

		cellKeep[event] = keep
		newPIDs[event] = survivorPIDs
		newEnergies[event] = survivorEnergies
		newTimes[event] = survivorTimes
		newTotals[event] = totals
		return nil
	}, engineOptions(options.Workers)...)
	if err != nil {
		return nil, 0, err
	}

	// Drop the pruned cells from every cell-level column, then swap in the
	// rebuilt contribution columns and the recomputed aggregate. The
	// aggregate is never trusted as stored input once contributions have
	// been pruned.
	filtered, err := calo.FilterRows(cellKeep)
	if err != nil {
		return nil, 0, err
	}
	filtered, err = filtered.WithColumn(m.ContribParticleIDs, batch.NewInt64ListColumn(newPIDs))
	if err != nil {
		return nil, 0, err
	}
	filtered, err = filtered.WithColumn(m.ContribEnergies, batch.NewFloat64ListColumn(newEnergies))
	if err != nil {
		return nil, 0, err
	}
	filtered, err = filtered.WithColumn(m.ContribTimes, batch.NewFloat64ListColumn(newTimes))
	if err != nil {
		return nil, 0, err
	}
	filtered, err = filtered.WithColumn(m.TotalEnergy, batch.NewFloat64Column(newTotals))
	if err != nil {
		return nil, 0, err
	}

	var removed int64
	for _, c := range cellsRemoved {
		removed += c
	}
	return filtered, removed, nil
}
