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

import "errors"

// Default column names matching the ColliderML dataset schema.
const (
	DefaultParticleIDColumn    = "particle_id"
	DefaultParentIDColumn      = "parent_id"
	DefaultVertexPrimaryColumn = "vertex_primary"
	DefaultContribParticleIDs  = "contrib_particle_ids"
	DefaultContribEnergies     = "contrib_energies"
	DefaultContribTimes        = "contrib_times"
	DefaultTotalEnergyColumn   = "total_energy"
)

// Manifest names the columns the processing packages operate on.
//
// It replaces call-time schema introspection with an explicit declaration
// validated once per batch operation: callers either take the defaults or
// override individual names, and every required field is checked before the
// first event is touched.
type Manifest struct {
	// ParticleID names the particle id list column of the particle table.
	ParticleID string

	// ParentID names the parent pointer list column of the particle table.
	ParentID string

	// VertexPrimary names the vertex generation list column used by the
	// pileup cutoff.
	VertexPrimary string

	// HitParticleID names the particle reference column of single-reference
	// hit tables (tracker hits).
	HitParticleID string

	// ContribParticleIDs, ContribEnergies, and ContribTimes name the three
	// lock-step contribution columns of two-level cell tables.
	ContribParticleIDs string
	ContribEnergies    string
	ContribTimes       string

	// TotalEnergy names the per-cell aggregate recomputed after
	// contribution filtering.
	TotalEnergy string
}

// DefaultManifest returns the manifest for the standard ColliderML column
// names.
func DefaultManifest() Manifest {
	return Manifest{
		ParticleID:         DefaultParticleIDColumn,
		ParentID:           DefaultParentIDColumn,
		VertexPrimary:      DefaultVertexPrimaryColumn,
		HitParticleID:      DefaultParticleIDColumn,
		ContribParticleIDs: DefaultContribParticleIDs,
		ContribEnergies:    DefaultContribEnergies,
		ContribTimes:       DefaultContribTimes,
		TotalEnergy:        DefaultTotalEnergyColumn,
	}
}

// ValidateGenealogy checks that the particle table carries the id and
// parent columns the ancestor resolver needs.
func (m Manifest) ValidateGenealogy(particles *Table) error {
	var errs []error
	if _, err := particles.Int64(m.ParticleID); err != nil {
		errs = append(errs, err)
	}
	if _, err := particles.Int64(m.ParentID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateParticles checks the columns the vertex-cutoff particle filter
// needs.
func (m Manifest) ValidateParticles(particles *Table) error {
	var errs []error
	if _, err := particles.Int64(m.ParticleID); err != nil {
		errs = append(errs, err)
	}
	if _, err := particles.Int64(m.VertexPrimary); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateParticleIDs checks only the particle id column, for filters driven
// by an externally supplied kept-id set.
func (m Manifest) ValidateParticleIDs(particles *Table) error {
	_, err := particles.Int64(m.ParticleID)
	return err
}

// ValidateTrackerHits checks the particle reference column of a
// single-reference hit table.
func (m Manifest) ValidateTrackerHits(hits *Table) error {
	_, err := hits.Int64(m.HitParticleID)
	return err
}

// ValidateCaloCells checks the three lock-step contribution columns of a
// two-level cell table. The aggregate column is not required on input; it
// is recomputed and written on output.
func (m Manifest) ValidateCaloCells(cells *Table) error {
	var errs []error
	if _, err := cells.Int64List(m.ContribParticleIDs); err != nil {
		errs = append(errs, err)
	}
	if _, err := cells.Float64List(m.ContribEnergies); err != nil {
		errs = append(errs, err)
	}
	if _, err := cells.Float64List(m.ContribTimes); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
