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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/colliderml/services/collider/batch"
)

// singleEventBatch builds the reference one-event batch used across the
// filter tests:
//
//	particles: 10 (gen 1), 11 (gen 2), 12 (gen 3), 13 (gen 4)
//	tracker:   hits for 10, 11, 13
//	calo:      cell A fed by {10, 12}, cell B fed by {12, 13}
func singleEventBatch(t *testing.T) map[string]*batch.Table {
	t.Helper()

	particles := batch.NewTable([]int64{0})
	require.NoError(t, particles.AddColumn("particle_id", batch.NewInt64Column([][]int64{{10, 11, 12, 13}})))
	require.NoError(t, particles.AddColumn("vertex_primary", batch.NewInt64Column([][]int64{{1, 2, 3, 4}})))
	require.NoError(t, particles.AddColumn("energy", batch.NewFloat64Column([][]float64{{1.0, 2.0, 3.0, 4.0}})))

	tracker := batch.NewTable([]int64{0})
	require.NoError(t, tracker.AddColumn("particle_id", batch.NewInt64Column([][]int64{{10, 11, 13}})))
	require.NoError(t, tracker.AddColumn("position", batch.NewFloat64Column([][]float64{{0.1, 0.2, 0.3}})))

	calo := batch.NewTable([]int64{0})
	require.NoError(t, calo.AddColumn("contrib_particle_ids", batch.NewInt64ListColumn([][][]int64{
		{{10, 12}, {12, 13}},
	})))
	require.NoError(t, calo.AddColumn("contrib_energies", batch.NewFloat64ListColumn([][][]float64{
		{{0.5, 0.25}, {0.75, 1.5}},
	})))
	require.NoError(t, calo.AddColumn("contrib_times", batch.NewFloat64ListColumn([][][]float64{
		{{1.0, 2.0}, {3.0, 4.0}},
	})))
	require.NoError(t, calo.AddColumn("cell_id", batch.NewInt64Column([][]int64{{500, 501}})))

	return map[string]*batch.Table{
		"particles":    particles,
		"tracker_hits": tracker,
		"calo_hits":    calo,
	}
}

func TestSubsample_Cascade(t *testing.T) {
	tables := singleEventBatch(t)

	out, err := Subsample(context.Background(), tables, 2)
	require.NoError(t, err)

	// Particles: generations 1 and 2 survive, every column lock-step.
	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, pids.Event(0))
	energy, err := out["particles"].Float64("energy")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, energy.Event(0))

	// Tracker: the hit referencing dropped particle 13 goes.
	hitPids, err := out["tracker_hits"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, hitPids.Event(0))
	pos, err := out["tracker_hits"].Float64("position")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, pos.Event(0))

	// Calo: cell A keeps only particle 10's contribution and its aggregate
	// is recomputed; cell B loses every contribution and is dropped.
	calo := out["calo_hits"]
	contribs, err := calo.Int64List("contrib_particle_ids")
	require.NoError(t, err)
	require.Equal(t, 1, contribs.Len(0))
	assert.Equal(t, []int64{10}, contribs.Event(0)[0])

	energies, err := calo.Float64List("contrib_energies")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, energies.Event(0)[0])

	times, err := calo.Float64List("contrib_times")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, times.Event(0)[0])

	totals, err := calo.Float64("total_energy")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, totals.Event(0))

	// Cell-level scalar columns travel with their surviving cell.
	cellIDs, err := calo.Int64("cell_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{500}, cellIDs.Event(0))
}

func TestSubsample_TargetOne(t *testing.T) {
	tables := singleEventBatch(t)

	out, err := Subsample(context.Background(), tables, 1)
	require.NoError(t, err)

	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, pids.Event(0))

	// Only cell A survives, fed solely by particle 10.
	contribs, err := out["calo_hits"].Int64List("contrib_particle_ids")
	require.NoError(t, err)
	require.Equal(t, 1, contribs.Len(0))
	assert.Equal(t, []int64{10}, contribs.Event(0)[0])
}

func TestSubsample_Monotonicity(t *testing.T) {
	// A larger target never yields fewer survivors.
	prev := -1
	for target := 1; target <= 5; target++ {
		out, err := Subsample(context.Background(), singleEventBatch(t), target)
		require.NoError(t, err)
		pids, err := out["particles"].Int64("particle_id")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pids.Len(0), prev, "target %d", target)
		prev = pids.Len(0)
	}
}

func TestSubsample_TargetCoversAll(t *testing.T) {
	tables := singleEventBatch(t)
	out, err := Subsample(context.Background(), tables, 100)
	require.NoError(t, err)

	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 13}, pids.Event(0))

	// Aggregates are still recomputed even when nothing is dropped.
	totals, err := out["calo_hits"].Float64("total_energy")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, totals.Event(0)[0], 1e-12)
	assert.InDelta(t, 2.25, totals.Event(0)[1], 1e-12)
}

func TestSubsample_NonPositiveTarget(t *testing.T) {
	tables := singleEventBatch(t)
	_, err := Subsample(context.Background(), tables, 0)
	require.ErrorIs(t, err, ErrNonPositiveTarget)
	_, err = Subsample(context.Background(), tables, -1)
	require.ErrorIs(t, err, ErrNonPositiveTarget)
}

func TestSubsample_MissingParticlesTable(t *testing.T) {
	tables := singleEventBatch(t)
	delete(tables, "particles")
	_, err := Subsample(context.Background(), tables, 1)
	require.ErrorIs(t, err, ErrMissingParticlesTable)
}

func TestSubsample_SchemaErrors(t *testing.T) {
	t.Run("missing vertex column", func(t *testing.T) {
		tables := singleEventBatch(t)
		particles := batch.NewTable([]int64{0})
		require.NoError(t, particles.AddColumn("particle_id", batch.NewInt64Column([][]int64{{10}})))
		tables["particles"] = particles

		_, err := Subsample(context.Background(), tables, 1)
		require.ErrorIs(t, err, batch.ErrColumnMissing)
	})

	t.Run("missing contrib column fails before any event", func(t *testing.T) {
		tables := singleEventBatch(t)
		calo := batch.NewTable([]int64{0})
		require.NoError(t, calo.AddColumn("contrib_particle_ids", batch.NewInt64ListColumn([][][]int64{{{10}}})))
		tables["calo_hits"] = calo

		_, err := Subsample(context.Background(), tables, 1)
		require.ErrorIs(t, err, batch.ErrColumnMissing)
	})

	t.Run("missing tracker reference column", func(t *testing.T) {
		tables := singleEventBatch(t)
		tracker := batch.NewTable([]int64{0})
		require.NoError(t, tracker.AddColumn("position", batch.NewFloat64Column([][]float64{{0.1}})))
		tables["tracker_hits"] = tracker

		_, err := Subsample(context.Background(), tables, 1)
		require.ErrorIs(t, err, batch.ErrColumnMissing)
	})
}

func TestSubsample_ParticlesOnly(t *testing.T) {
	// Hit tables are optional; a batch of just particles filters fine.
	tables := singleEventBatch(t)
	delete(tables, "tracker_hits")
	delete(tables, "calo_hits")

	out, err := Subsample(context.Background(), tables, 2)
	require.NoError(t, err)
	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, pids.Event(0))
}

func TestSubsample_PassThroughTables(t *testing.T) {
	tables := singleEventBatch(t)
	extra := batch.NewTable([]int64{0})
	require.NoError(t, extra.AddColumn("weight", batch.NewFloat64Column([][]float64{{0.9}})))
	tables["event_weights"] = extra

	out, err := Subsample(context.Background(), tables, 1)
	require.NoError(t, err)
	// Unknown keys pass through untouched, same pointer.
	assert.Same(t, extra, out["event_weights"])
}

func TestSubsample_InputUntouched(t *testing.T) {
	tables := singleEventBatch(t)
	_, err := Subsample(context.Background(), tables, 1)
	require.NoError(t, err)

	pids, err := tables["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 13}, pids.Event(0))
	contribs, err := tables["calo_hits"].Int64List("contrib_particle_ids")
	require.NoError(t, err)
	assert.Equal(t, 2, contribs.Len(0))
}

func TestFilterByKeptIDs_ExplicitSets(t *testing.T) {
	tables := singleEventBatch(t)

	out, err := FilterByKeptIDs(context.Background(), tables, []KeepSet{NewKeepSet(10, 13)})
	require.NoError(t, err)

	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 13}, pids.Event(0))

	hitPids, err := out["tracker_hits"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 13}, hitPids.Event(0))

	// Cell A keeps 10, cell B keeps 13; both survive with recomputed
	// aggregates.
	contribs, err := out["calo_hits"].Int64List("contrib_particle_ids")
	require.NoError(t, err)
	require.Equal(t, 2, contribs.Len(0))
	assert.Equal(t, []int64{10}, contribs.Event(0)[0])
	assert.Equal(t, []int64{13}, contribs.Event(0)[1])

	totals, err := out["calo_hits"].Float64("total_energy")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, totals.Event(0))
}

func TestFilterByKeptIDs_EmptySet(t *testing.T) {
	tables := singleEventBatch(t)

	out, err := FilterByKeptIDs(context.Background(), tables, []KeepSet{NewKeepSet()})
	require.NoError(t, err)

	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Empty(t, pids.Event(0))

	hitPids, err := out["tracker_hits"].Int64("particle_id")
	require.NoError(t, err)
	assert.Empty(t, hitPids.Event(0))

	contribs, err := out["calo_hits"].Int64List("contrib_particle_ids")
	require.NoError(t, err)
	assert.Empty(t, contribs.Event(0))
}

func TestFilterByKeptIDs_CountMismatch(t *testing.T) {
	tables := singleEventBatch(t)
	_, err := FilterByKeptIDs(context.Background(), tables, []KeepSet{NewKeepSet(10), NewKeepSet(11)})
	require.ErrorIs(t, err, ErrKeepSetCountMismatch)
}

func TestFilterByKeptIDs_OrderPreserved(t *testing.T) {
	// Multi-event batch: output events stay in input order and relative row
	// order is preserved within each event.
	particles := batch.NewTable([]int64{100, 101, 102})
	require.NoError(t, particles.AddColumn("particle_id", batch.NewInt64Column([][]int64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	})))

	tables := map[string]*batch.Table{"particles": particles}
	kept := []KeepSet{
		NewKeepSet(3, 1),
		NewKeepSet(5),
		NewKeepSet(7, 8, 9),
	}

	out, err := FilterByKeptIDs(context.Background(), tables, kept)
	require.NoError(t, err)

	pids, err := out["particles"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, pids.Event(0))
	assert.Equal(t, []int64{5}, pids.Event(1))
	assert.Equal(t, []int64{7, 8, 9}, pids.Event(2))
	assert.Equal(t, []int64{100, 101, 102}, out["particles"].EventIDs())
}

func TestFilterByKeptIDs_CustomKeysAndColumns(t *testing.T) {
	particles := batch.NewTable([]int64{0})
	require.NoError(t, particles.AddColumn("pid", batch.NewInt64Column([][]int64{{10, 11}})))

	manifest := batch.DefaultManifest()
	manifest.ParticleID = "pid"

	tables := map[string]*batch.Table{"truth": particles}
	out, err := FilterByKeptIDs(context.Background(), tables, []KeepSet{NewKeepSet(11)},
		WithParticlesKey("truth"),
		WithManifest(manifest),
	)
	require.NoError(t, err)

	pids, err := out["truth"].Int64("pid")
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, pids.Event(0))
}

func TestFilterByKeptIDs_EnergyConservation(t *testing.T) {
	// Recomputed totals always equal the sum of surviving contributions.
	tables := singleEventBatch(t)
	out, err := FilterByKeptIDs(context.Background(), tables, []KeepSet{NewKeepSet(10, 12, 13)})
	require.NoError(t, err)

	calo := out["calo_hits"]
	energies, err := calo.Float64List("contrib_energies")
	require.NoError(t, err)
	totals, err := calo.Float64("total_energy")
	require.NoError(t, err)

	for c, cell := range energies.Event(0) {
		sum := 0.0
		for _, e := range cell {
			sum += e
		}
		assert.InDelta(t, sum, totals.Event(0)[c], 1e-12, "cell %d", c)
	}
}

func TestFilterByKeptIDs_ManyEvents(t *testing.T) {
	// Enough events to engage the parallel path in the calo stage.
	const n = 100
	contribPIDs := make([][][]int64, n)
	contribEnergies := make([][][]float64, n)
	contribTimes := make([][][]float64, n)
	pids := make([][]int64, n)
	kept := make([]KeepSet, n)
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i)
		pids[i] = []int64{1, 2}
		contribPIDs[i] = [][]int64{{1, 2}, {2}}
		contribEnergies[i] = [][]float64{{1.0, 2.0}, {3.0}}
		contribTimes[i] = [][]float64{{0.1, 0.2}, {0.3}}
		kept[i] = NewKeepSet(1)
	}

	particles := batch.NewTable(ids)
	require.NoError(t, particles.AddColumn("particle_id", batch.NewInt64Column(pids)))
	calo := batch.NewTable(ids)
	require.NoError(t, calo.AddColumn("contrib_particle_ids", batch.NewInt64ListColumn(contribPIDs)))
	require.NoError(t, calo.AddColumn("contrib_energies", batch.NewFloat64ListColumn(contribEnergies)))
	require.NoError(t, calo.AddColumn("contrib_times", batch.NewFloat64ListColumn(contribTimes)))

	tables := map[string]*batch.Table{"particles": particles, "calo_hits": calo}
	out, err := FilterByKeptIDs(context.Background(), tables, kept, WithWorkers(4))
	require.NoError(t, err)

	outCalo := out["calo_hits"]
	contribs, err := outCalo.Int64List("contrib_particle_ids")
	require.NoError(t, err)
	totals, err := outCalo.Float64("total_energy")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		// Cell 1 loses both contributions and drops; cell 0 keeps pid 1.
		require.Equal(t, 1, contribs.Len(i), "event %d", i)
		assert.Equal(t, []int64{1}, contribs.Event(i)[0], "event %d", i)
		assert.Equal(t, []float64{1.0}, totals.Event(i), "event %d", i)
	}
}

func TestEngineOptions_ZeroKeepsEngineDefault(t *testing.T) {
	// A zero worker cap must not reach engine.WithWorkers: that option maps
	// non-positive values to forced-sequential execution, while the
	// documented default is the engine's own pool size.
	assert.Empty(t, engineOptions(0))
	assert.Empty(t, engineOptions(-1))
	assert.Len(t, engineOptions(3), 1)
}

func TestKeepSet(t *testing.T) {
	s := NewKeepSet(1, 2, 3)
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))

	var empty KeepSet
	assert.False(t, empty.Contains(1))
}
