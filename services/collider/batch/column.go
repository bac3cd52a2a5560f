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

// NoParent is the reserved sentinel for "no parent" and, under the null
// missing-parent policy, for "no ancestor". The sentinel is preserved at the
// table boundary for compatibility with the upstream datasets; the resolver
// converts it to a tagged optional internally.
const NoParent int64 = -1

// Column is one named nested sequence of a Table: one list per event.
//
// Concrete implementations are Int64Column, Float64Column, BoolColumn
// (scalar lists) and Int64ListColumn, Float64ListColumn (two-level lists,
// one inner list per row). The set is closed on purpose: the processing
// packages are statically typed against these shapes and perform no runtime
// schema introspection.
type Column interface {
	// NumEvents returns the number of events the column spans.
	NumEvents() int

	// Len returns the number of rows the column holds for one event.
	Len(event int) int

	// filtered returns a copy keeping, per event, only the rows whose mask
	// entry is true. Rows beyond the mask are dropped. The caller (Table)
	// guarantees one mask per event.
	filtered(keep [][]bool) Column
}

// filterEventRows applies per-event keep masks to row-major data. Rows with
// no mask entry are treated as not kept, mirroring zip truncation in the
// upstream data tooling.
func filterEventRows[T any](rows [][]T, keep [][]bool) [][]T {
	out := make([][]T, len(rows))
	for i, vals := range rows {
		var mask []bool
		if i < len(keep) {
			mask = keep[i]
		}
		kept := make([]T, 0, len(vals))
		for j, v := range vals {
			if j < len(mask) && mask[j] {
				kept = append(kept, v)
			}
		}
		out[i] = kept
	}
	return out
}

// Int64Column stores one []int64 per event.
type Int64Column struct {
	rows [][]int64
}

// NewInt64Column wraps per-event integer lists in a column. The slices are
// retained, not copied.
func NewInt64Column(rows [][]int64) *Int64Column {
	return &Int64Column{rows: rows}
}

// NumEvents returns the number of events the column spans.
func (c *Int64Column) NumEvents() int { return len(c.rows) }

// Len returns the number of rows in one event.
func (c *Int64Column) Len(event int) int { return len(c.rows[event]) }

// Event returns the values for one event. The returned slice is shared with
// the column and must not be mutated.
func (c *Int64Column) Event(event int) []int64 { return c.rows[event] }

func (c *Int64Column) filtered(keep [][]bool) Column {
	return &Int64Column{rows: filterEventRows(c.rows, keep)}
}

// Float64Column stores one []float64 per event.
type Float64Column struct {
	rows [][]float64
}

// NewFloat64Column wraps per-event float lists in a column. The slices are
// retained, not copied.
func NewFloat64Column(rows [][]float64) *Float64Column {
	return &Float64Column{rows: rows}
}

// NumEvents returns the number of events the column spans.
func (c *Float64Column) NumEvents() int { return len(c.rows) }

// Len returns the number of rows in one event.
func (c *Float64Column) Len(event int) int { return len(c.rows[event]) }

// Event returns the values for one event. The returned slice is shared with
// the column and must not be mutated.
func (c *Float64Column) Event(event int) []float64 { return c.rows[event] }

func (c *Float64Column) filtered(keep [][]bool) Column {
	return &Float64Column{rows: filterEventRows(c.rows, keep)}
}

// BoolColumn stores one []bool per event. Used for derived tag columns such
// as the resolver's loop-broken markers.
type BoolColumn struct {
	rows [][]bool
}

// NewBoolColumn wraps per-event bool lists in a column. The slices are
// retained, not copied.
func NewBoolColumn(rows [][]bool) *BoolColumn {
	return &BoolColumn{rows: rows}
}

// NumEvents returns the number of events the column spans.
func (c *BoolColumn) NumEvents() int { return len(c.rows) }

// Len returns the number of rows in one event.
func (c *BoolColumn) Len(event int) int { return len(c.rows[event]) }

// Event returns the values for one event. The returned slice is shared with
// the column and must not be mutated.
func (c *BoolColumn) Event(event int) []bool { return c.rows[event] }

func (c *BoolColumn) filtered(keep [][]bool) Column {
	return &BoolColumn{rows: filterEventRows(c.rows, keep)}
}

// Int64ListColumn stores a two-level sequence per event: one inner []int64
// per row (typically one list of contributing particle ids per calo cell).
type Int64ListColumn struct {
	rows [][][]int64
}

// NewInt64ListColumn wraps per-event lists of integer lists in a column.
// The slices are retained, not copied.
func NewInt64ListColumn(rows [][][]int64) *Int64ListColumn {
	return &Int64ListColumn{rows: rows}
}

// NumEvents returns the number of events the column spans.
func (c *Int64ListColumn) NumEvents() int { return len(c.rows) }

// Len returns the number of rows (outer lists) in one event.
func (c *Int64ListColumn) Len(event int) int { return len(c.rows[event]) }

// Event returns the inner lists for one event. The returned slices are
// shared with the column and must not be mutated.
func (c *Int64ListColumn) Event(event int) [][]int64 { return c.rows[event] }

func (c *Int64ListColumn) filtered(keep [][]bool) Column {
	return &Int64ListColumn{rows: filterEventRows(c.rows, keep)}
}

// Float64ListColumn stores a two-level sequence per event: one inner
// []float64 per row (contribution energies or times per calo cell).
type Float64ListColumn struct {
	rows [][][]float64
}

// NewFloat64ListColumn wraps per-event lists of float lists in a column.
// The slices are retained, not copied.
func NewFloat64ListColumn(rows [][][]float64) *Float64ListColumn {
	return &Float64ListColumn{rows: rows}
}

// NumEvents returns the number of events the column spans.
func (c *Float64ListColumn) NumEvents() int { return len(c.rows) }

// Len returns the number of rows (outer lists) in one event.
func (c *Float64ListColumn) Len(event int) int { return len(c.rows[event]) }

// Event returns the inner lists for one event. The returned slices are
// shared with the column and must not be mutated.
func (c *Float64ListColumn) Event(event int) [][]float64 { return c.rows[event] }

func (c *Float64ListColumn) filtered(keep [][]bool) Column {
	return &Float64ListColumn{rows: filterEventRows(c.rows, keep)}
}
