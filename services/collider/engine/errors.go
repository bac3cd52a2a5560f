// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine schedules per-event work across a bounded worker pool.
//
// Event processing in this codebase is embarrassingly parallel: every
// event's transform reads only that event's nested sequences, and results
// are written into preallocated output slots by event index. The engine
// therefore needs no locking in the transform path; it only bounds
// concurrency, propagates cancellation, and contains worker panics.
//
// Output ordering is the caller's by construction: workers write by index,
// so output event order always matches input order regardless of which
// worker finishes first.
package engine

import "errors"

// ErrWorkerPanic is returned when an event worker panicked. The panic is
// logged with its stack; the batch operation fails as a whole since partial
// output is never surfaced.
var ErrWorkerPanic = errors.New("event worker panicked")
