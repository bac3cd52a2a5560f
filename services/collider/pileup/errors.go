// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pileup removes pileup activity from event batches with a
// cascading consistency filter.
//
// Removing a particle from an event invalidates every record that refers
// to it, so the filter cascades: particles outside the kept set are removed
// from the particle table, tracker hits referencing removed particles are
// dropped, and calo-cell contributions from removed particles are pruned
// with the cell aggregate recomputed from the survivors. Cells left with no
// contributions disappear entirely. Surviving rows keep their original
// relative order.
//
// The kept-id set is derived either from a vertex-generation cutoff
// (Subsample) or supplied directly (FilterByKeptIDs). Every transform is a
// pure per-event function over new nested sequences; input tables are never
// mutated.
//
// Configuration and schema problems abort the whole batch before any event
// is touched: there is no partial output. An empty kept set is not an
// error; it simply yields empty particle, hit, and cell sequences.
package pileup

import "errors"

// Sentinel errors reported before any event is processed.
var (
	// ErrNonPositiveTarget is returned when the vertex cutoff is not a
	// positive integer.
	ErrNonPositiveTarget = errors.New("target vertex count must be positive")

	// ErrMissingParticlesTable is returned when the table map lacks the
	// particle truth table the cascade is driven by.
	ErrMissingParticlesTable = errors.New("particles table not found")

	// ErrKeepSetCountMismatch is returned when the number of supplied
	// kept-id sets does not match the batch's event count.
	ErrKeepSetCountMismatch = errors.New("keep-set count does not match event count")
)
