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

import "fmt"

// Table is an event-indexed collection of named nested-sequence columns.
//
// Every row is one event; the scalar event_id key lives alongside the
// columns. Column order is preserved so filtered tables round-trip with the
// same layout they came in with.
type Table struct {
	eventIDs []int64
	names    []string
	columns  map[string]Column
}

// NewTable creates an empty table keyed by the given event ids. Event ids
// are batch-local and need not be globally unique.
func NewTable(eventIDs []int64) *Table {
	return &Table{
		eventIDs: eventIDs,
		columns:  make(map[string]Column),
	}
}

// NumEvents returns the number of events in the table.
func (t *Table) NumEvents() int { return len(t.eventIDs) }

// EventIDs returns the event id for every row. The returned slice is shared
// with the table and must not be mutated.
func (t *Table) EventIDs() []int64 { return t.eventIDs }

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// AddColumn attaches a column during table assembly.
//
// Returns ErrEventCountMismatch if the column does not span the table's
// events and ErrDuplicateColumn if the name is taken. Not safe for
// concurrent use; assemble on a single goroutine, then share freely.
func (t *Table) AddColumn(name string, col Column) error {
	if col.NumEvents() != t.NumEvents() {
		return fmt.Errorf("%w: column %q has %d events, table has %d",
			ErrEventCountMismatch, name, col.NumEvents(), t.NumEvents())
	}
	if _, exists := t.columns[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	t.names = append(t.names, name)
	t.columns[name] = col
	return nil
}

// Column returns the named column, or false if absent.
func (t *Table) Column(name string) (Column, bool) {
	col, ok := t.columns[name]
	return col, ok
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Int64 returns the named column as an integer list column.
func (t *Table) Int64(name string) (*Int64Column, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
	}
	typed, ok := col.(*Int64Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want *batch.Int64Column", ErrColumnType, name, col)
	}
	return typed, nil
}

// Float64 returns the named column as a float list column.
func (t *Table) Float64(name string) (*Float64Column, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
	}
	typed, ok := col.(*Float64Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want *batch.Float64Column", ErrColumnType, name, col)
	}
	return typed, nil
}

// Bool returns the named column as a bool list column.
func (t *Table) Bool(name string) (*BoolColumn, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
	}
	typed, ok := col.(*BoolColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want *batch.BoolColumn", ErrColumnType, name, col)
	}
	return typed, nil
}

// Int64List returns the named column as a two-level integer list column.
func (t *Table) Int64List(name string) (*Int64ListColumn, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
	}
	typed, ok := col.(*Int64ListColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want *batch.Int64ListColumn", ErrColumnType, name, col)
	}
	return typed, nil
}

// Float64List returns the named column as a two-level float list column.
func (t *Table) Float64List(name string) (*Float64ListColumn, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnMissing, name)
	}
	typed, ok := col.(*Float64ListColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want *batch.Float64ListColumn", ErrColumnType, name, col)
	}
	return typed, nil
}

// WithColumn returns a copy of the table with the named column added or
// replaced. The receiver is not modified.
func (t *Table) WithColumn(name string, col Column) (*Table, error) {
	if col.NumEvents() != t.NumEvents() {
		return nil, fmt.Errorf("%w: column %q has %d events, table has %d",
			ErrEventCountMismatch, name, col.NumEvents(), t.NumEvents())
	}
	out := t.shallowCopy()
	if _, exists := out.columns[name]; !exists {
		out.names = append(out.names, name)
	}
	out.columns[name] = col
	return out, nil
}

// FilterRows returns a copy of the table keeping, per event, only the rows
// whose mask entry is true. Every column is filtered lock-step so
// positionally aligned fields stay aligned; relative row order is
// preserved. Event ids and event count are unchanged.
//
// Returns ErrMaskMismatch if the mask does not span the table's events.
func (t *Table) FilterRows(keep [][]bool) (*Table, error) {
	if len(keep) != t.NumEvents() {
		return nil, fmt.Errorf("%w: %d masks for %d events", ErrMaskMismatch, len(keep), t.NumEvents())
	}
	out := NewTable(t.eventIDs)
	out.names = make([]string, len(t.names))
	copy(out.names, t.names)
	for _, name := range t.names {
		out.columns[name] = t.columns[name].filtered(keep)
	}
	return out, nil
}

// shallowCopy duplicates the table header and column map; column data is
// shared with the receiver.
func (t *Table) shallowCopy() *Table {
	out := &Table{
		eventIDs: t.eventIDs,
		names:    make([]string, len(t.names)),
		columns:  make(map[string]Column, len(t.columns)),
	}
	copy(out.names, t.names)
	for name, col := range t.columns {
		out.columns[name] = col
	}
	return out
}
