// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"errors"
	"testing"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	if m.ParticleID != "particle_id" {
		t.Errorf("ParticleID = %q", m.ParticleID)
	}
	if m.ParentID != "parent_id" {
		t.Errorf("ParentID = %q", m.ParentID)
	}
	if m.VertexPrimary != "vertex_primary" {
		t.Errorf("VertexPrimary = %q", m.VertexPrimary)
	}
	// Hit tables reference particles through the same id column name.
	if m.HitParticleID != "particle_id" {
		t.Errorf("HitParticleID = %q", m.HitParticleID)
	}
	if m.TotalEnergy != "total_energy" {
		t.Errorf("TotalEnergy = %q", m.TotalEnergy)
	}
}

func TestManifest_ValidateGenealogy(t *testing.T) {
	m := DefaultManifest()

	t.Run("valid", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("particle_id", NewInt64Column([][]int64{{10}}))
		_ = table.AddColumn("parent_id", NewInt64Column([][]int64{{-1}}))
		if err := m.ValidateGenealogy(table); err != nil {
			t.Errorf("ValidateGenealogy: %v", err)
		}
	})

	t.Run("missing parent column", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("particle_id", NewInt64Column([][]int64{{10}}))
		err := m.ValidateGenealogy(table)
		if !errors.Is(err, ErrColumnMissing) {
			t.Errorf("err = %v, want ErrColumnMissing", err)
		}
	})

	t.Run("both missing reported together", func(t *testing.T) {
		table := NewTable([]int64{1})
		err := m.ValidateGenealogy(table)
		if !errors.Is(err, ErrColumnMissing) {
			t.Fatalf("err = %v, want ErrColumnMissing", err)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("particle_id", NewFloat64Column([][]float64{{10}}))
		_ = table.AddColumn("parent_id", NewInt64Column([][]int64{{-1}}))
		err := m.ValidateGenealogy(table)
		if !errors.Is(err, ErrColumnType) {
			t.Errorf("err = %v, want ErrColumnType", err)
		}
	})
}

func TestManifest_ValidateParticles(t *testing.T) {
	m := DefaultManifest()

	t.Run("valid", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("particle_id", NewInt64Column([][]int64{{10}}))
		_ = table.AddColumn("vertex_primary", NewInt64Column([][]int64{{1}}))
		if err := m.ValidateParticles(table); err != nil {
			t.Errorf("ValidateParticles: %v", err)
		}
	})

	t.Run("missing vertex column", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("particle_id", NewInt64Column([][]int64{{10}}))
		err := m.ValidateParticles(table)
		if !errors.Is(err, ErrColumnMissing) {
			t.Errorf("err = %v, want ErrColumnMissing", err)
		}
	})
}

func TestManifest_ValidateTrackerHits(t *testing.T) {
	m := DefaultManifest()
	table := NewTable([]int64{1})
	_ = table.AddColumn("particle_id", NewInt64Column([][]int64{{10}}))
	if err := m.ValidateTrackerHits(table); err != nil {
		t.Errorf("ValidateTrackerHits: %v", err)
	}

	empty := NewTable([]int64{1})
	if err := m.ValidateTrackerHits(empty); !errors.Is(err, ErrColumnMissing) {
		t.Errorf("err = %v, want ErrColumnMissing", err)
	}
}

func TestManifest_ValidateCaloCells(t *testing.T) {
	m := DefaultManifest()

	t.Run("valid without aggregate", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("contrib_particle_ids", NewInt64ListColumn([][][]int64{{{10}}}))
		_ = table.AddColumn("contrib_energies", NewFloat64ListColumn([][][]float64{{{0.5}}}))
		_ = table.AddColumn("contrib_times", NewFloat64ListColumn([][][]float64{{{1.0}}}))
		// total_energy is recomputed on output, never required on input.
		if err := m.ValidateCaloCells(table); err != nil {
			t.Errorf("ValidateCaloCells: %v", err)
		}
	})

	t.Run("missing contribution column", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("contrib_particle_ids", NewInt64ListColumn([][][]int64{{{10}}}))
		err := m.ValidateCaloCells(table)
		if !errors.Is(err, ErrColumnMissing) {
			t.Errorf("err = %v, want ErrColumnMissing", err)
		}
	})

	t.Run("scalar column where list expected", func(t *testing.T) {
		table := NewTable([]int64{1})
		_ = table.AddColumn("contrib_particle_ids", NewInt64Column([][]int64{{10}}))
		_ = table.AddColumn("contrib_energies", NewFloat64ListColumn([][][]float64{{{0.5}}}))
		_ = table.AddColumn("contrib_times", NewFloat64ListColumn([][][]float64{{{1.0}}}))
		err := m.ValidateCaloCells(table)
		if !errors.Is(err, ErrColumnType) {
			t.Errorf("err = %v, want ErrColumnType", err)
		}
	})
}

func TestManifest_CustomNames(t *testing.T) {
	m := DefaultManifest()
	m.ParticleID = "pid"
	m.ParentID = "mother_id"

	table := NewTable([]int64{1})
	_ = table.AddColumn("pid", NewInt64Column([][]int64{{10}}))
	_ = table.AddColumn("mother_id", NewInt64Column([][]int64{{-1}}))
	if err := m.ValidateGenealogy(table); err != nil {
		t.Errorf("ValidateGenealogy with custom names: %v", err)
	}
}
