// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch provides the in-memory columnar event-batch model used by
// the collider processing packages.
//
// A Table holds one row per physics event. Every column stores one nested
// sequence per event: scalar list columns (one value per particle, hit, or
// cell) and two-level list columns (one inner list per cell, one value per
// contribution). All columns of a table span the same events, and all list
// columns describing the same entity share per-event lengths (positional
// alignment).
//
// # Ownership Model
//
// Columns store the slices they were constructed with and do NOT copy them:
//   - Backing slices MUST NOT be mutated after being handed to a column
//   - Filtering operations allocate fresh slices and never touch the input
//
// # Thread Safety
//
// Tables and columns are immutable after assembly. AddColumn is for the
// single-writer assembly phase; afterwards a table can be read from any
// number of goroutines. Transformations (FilterRows, WithColumn) return new
// tables and leave the receiver untouched.
package batch

import "errors"

// Sentinel errors for schema violations. These surface before any event is
// processed; per-event shape anomalies are normalized instead.
var (
	// ErrColumnMissing is returned when a required column is absent from a
	// table's declared columns.
	ErrColumnMissing = errors.New("column not found")

	// ErrColumnType is returned when a column exists but does not have the
	// element type the operation requires.
	ErrColumnType = errors.New("column has unexpected type")

	// ErrEventCountMismatch is returned when a column added to a table does
	// not span the table's events.
	ErrEventCountMismatch = errors.New("column event count does not match table")

	// ErrDuplicateColumn is returned when adding a column under a name that
	// is already taken. Use WithColumn to replace a column.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrMaskMismatch is returned when a row-selection mask does not span
	// the table's events.
	ErrMaskMismatch = errors.New("selection mask does not span table events")
)
