// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package genealogy assigns a primary ancestor to every particle of every
// event by walking parent-pointer chains embedded in nested sequences.
//
// Each event's particles form a functional graph: every particle has at
// most one outgoing parent edge, but the graph is neither guaranteed
// acyclic nor fully connected (pruned datasets routinely carry dangling
// parent references). The resolver walks each particle's chain until it
// reaches a true root, a dangling reference, or an id it has already
// visited in that walk, so termination is bounded by the event's particle
// count.
//
// Per-event anomalies - cycles, dangling parents, length-mismatched parent
// sequences, empty events - are never errors. They resolve by documented
// policy: dangling and rootless chains stop at the current id, cycles break
// at the starting particle, and parent sequences are padded or truncated to
// the particle sequence. Only an invalid configuration aborts, and it does
// so before any event is touched.
package genealogy

import "errors"

// ErrUnknownPolicy is returned when a missing-parent policy is neither
// self nor null. Reported before any event is processed.
var ErrUnknownPolicy = errors.New("unknown missing-parent policy")
