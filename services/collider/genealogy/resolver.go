// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package genealogy

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

// Default output column names.
const (
	// DefaultOutputColumn is the name of the ancestor list column added to
	// the particle table.
	DefaultOutputColumn = "primary_ancestor_id"

	// DefaultLoopTagColumn is the name of the optional bool column marking
	// particles whose chain was broken by cycle detection.
	DefaultLoopTagColumn = "loop_broken"
)

// Policy selects the value assigned when a walk terminates at a root,
// dangling reference, or cycle.
type Policy int

const (
	// PolicySelf assigns the terminating particle id (the particle's own id
	// for broken cycles). This is the default.
	PolicySelf Policy = iota

	// PolicyNull assigns the no-parent sentinel instead of an id.
	PolicyNull
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicySelf:
		return "self"
	case PolicyNull:
		return "null"
	default:
		return "unknown"
	}
}

func (p Policy) valid() bool {
	return p == PolicySelf || p == PolicyNull
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "self":
		return PolicySelf, nil
	case "null":
		return PolicyNull, nil
	default:
		return PolicySelf, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Options configures ancestor resolution.
type Options struct {
	// Policy is the missing-parent policy. Default: PolicySelf.
	Policy Policy

	// ParticleIDColumn and ParentIDColumn name the input columns.
	ParticleIDColumn string
	ParentIDColumn   string

	// OutputColumn names the ancestor column added to the result.
	OutputColumn string

	// LoopTags enables the loop-broken tag column so downstream consumers
	// can distinguish a true root from a broken-cycle root.
	LoopTags bool

	// LoopTagColumn names the tag column when LoopTags is set.
	LoopTagColumn string

	// Workers caps the event worker pool. 0 means the engine default.
	Workers int
}

// Option mutates Options.
type Option func(*Options)

// WithPolicy sets the missing-parent policy.
func WithPolicy(p Policy) Option {
	return func(o *Options) { o.Policy = p }
}

// WithParticleIDColumn overrides the particle id column name.
func WithParticleIDColumn(name string) Option {
	return func(o *Options) { o.ParticleIDColumn = name }
}

// WithParentIDColumn overrides the parent pointer column name.
func WithParentIDColumn(name string) Option {
	return func(o *Options) { o.ParentIDColumn = name }
}

// WithOutputColumn overrides the ancestor output column name.
func WithOutputColumn(name string) Option {
	return func(o *Options) { o.OutputColumn = name }
}

// WithLoopTags adds the loop-broken tag column to the result.
func WithLoopTags() Option {
	return func(o *Options) { o.LoopTags = true }
}

// WithLoopTagColumn enables loop tags under a custom column name.
func WithLoopTagColumn(name string) Option {
	return func(o *Options) {
		o.LoopTags = true
		o.LoopTagColumn = name
	}
}

// WithWorkers caps the event worker pool.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func defaultOptions() Options {
	return Options{
		Policy:           PolicySelf,
		ParticleIDColumn: batch.DefaultParticleIDColumn,
		ParentIDColumn:   batch.DefaultParentIDColumn,
		OutputColumn:     DefaultOutputColumn,
		LoopTagColumn:    DefaultLoopTagColumn,
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

// AssignPrimaryAncestor resolves the primary ancestor of every particle in
// every event of the particle table.
//
// Description:
//
//	For each event, builds an id-to-index lookup over the particle id
//	sequence (last occurrence wins if an id is duplicated) and walks each
//	particle's parent chain until a stopping condition: a null parent, a
//	parent id absent from the event (common after upstream pruning), or an
//	id already visited in the current walk. The result is a new table with
//	an ancestor list column positionally aligned with the particle ids;
//	the input table is not modified. Resolution is deterministic, so
//	running it twice yields identical output.
//
// Inputs:
//   - ctx: Context for coarse cancellation. Must not be nil.
//   - particles: Particle table carrying the id and parent columns.
//   - opts: Column names, policy, loop tags, worker cap.
//
// Outputs:
//   - *batch.Table: Input table plus the ancestor column (and the
//     loop-broken tag column when enabled).
//   - error: ErrUnknownPolicy or a schema error, reported before any event
//     is processed; otherwise only a cancellation error.
//
// Thread Safety: Safe for concurrent use; the input table is read-only.
func AssignPrimaryAncestor(ctx context.Context, particles *batch.Table, opts ...Option) (*batch.Table, error) {
	options := applyOptions(opts)
	if !options.Policy.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(options.Policy))
	}

	ctx, span := tracer.Start(ctx, "genealogy.AssignPrimaryAncestor")
	defer span.End()
	span.SetAttributes(
		attribute.String("policy", options.Policy.String()),
		attribute.Int("events", particles.NumEvents()),
	)

	manifest := batch.DefaultManifest()
	manifest.ParticleID = options.ParticleIDColumn
	manifest.ParentID = options.ParentIDColumn
	if err := manifest.ValidateGenealogy(particles); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("particle table schema: %w", err)
	}

	pidCol, err := particles.Int64(options.ParticleIDColumn)
	if err != nil {
		return nil, err
	}
	parentCol, err := particles.Int64(options.ParentIDColumn)
	if err != nil {
		return nil, err
	}

	n := particles.NumEvents()
	ancestors := make([][]int64, n)
	broken := make([][]bool, n)
	loopCounts := make([]int64, n)

	start := time.Now()
	err = engine.ForEachEvent(ctx, n, func(_ context.Context, event int) error {
		anc, loops := resolveEvent(pidCol.Event(event), parentCol.Event(event), options.Policy)
		ancestors[event] = anc
		broken[event] = loops
		for _, b := range loops {
			if b {
				loopCounts[event]++
			}
		}
		return nil
	}, engineOptions(options.Workers)...)
	if err != nil {
		recordResolveMetrics(ctx, time.Since(start), n, 0, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out, err := particles.WithColumn(options.OutputColumn, batch.NewInt64Column(ancestors))
	if err != nil {
		return nil, err
	}
	if options.LoopTags {
		out, err = out.WithColumn(options.LoopTagColumn, batch.NewBoolColumn(broken))
		if err != nil {
			return nil, err
		}
	}

	var totalLoops int64
	for _, c := range loopCounts {
		totalLoops += c
	}
	recordResolveMetrics(ctx, time.Since(start), n, totalLoops, true)
	span.SetAttributes(attribute.Int64("loops_broken", totalLoops))
	span.SetStatus(codes.Ok, "")

	slog.Debug("primary ancestors assigned",
		slog.Int("events", n),
		slog.String("policy", options.Policy.String()),
		slog.Int64("loops_broken", totalLoops),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// resolveEvent walks every particle's parent chain within one event.
//
// Returns the ancestor assignment and the loop-broken flags, both aligned
// with pids. A visited set scoped to the current walk bounds every chain by
// the event's particle count, so termination is guaranteed.
func resolveEvent(pids, parents []int64, policy Policy) ([]int64, []bool) {
	index := buildIndex(pids)
	norm := normalizeParents(pids, parents)

	ancestors := make([]int64, len(pids))
	broken := make([]bool, len(pids))

	for i, pid := range pids {
		seen := make(map[int64]struct{}, 8)
		cur := pid
		for {
			if _, visited := seen[cur]; visited {
				// Cycle: the starting particle becomes its own root.
				ancestors[i] = terminal(pid, policy)
				broken[i] = true
				break
			}
			seen[cur] = struct{}{}

			j, ok := index[cur]
			if !ok {
				// The walk only moves to ids known to be present, so this
				// can occur on the first hop at most when a duplicated id
				// shadowed the row.
				ancestors[i] = terminal(pid, policy)
				break
			}

			parent := norm[j]
			if parent == batch.NoParent {
				// True root.
				ancestors[i] = terminal(cur, policy)
				break
			}
			if _, present := index[parent]; !present {
				// Dangling reference: cur is effectively a root (common
				// after pruning of unstable parents upstream).
				ancestors[i] = terminal(cur, policy)
				break
			}
			cur = parent
		}
	}
	return ancestors, broken
}

// terminal maps a stopping id through the missing-parent policy.
func terminal(id int64, policy Policy) int64 {
	if policy == PolicyNull {
		return batch.NoParent
	}
	return id
}

// buildIndex maps particle id to row index, last occurrence winning.
// Duplicate ids are not expected but must not crash.
func buildIndex(pids []int64) map[int64]int {
	index := make(map[int64]int, len(pids))
	for i, pid := range pids {
		index[pid] = i
	}
	return index
}

// normalizeParents pads a short parent sequence with the no-parent sentinel
// and truncates a long one, so both sequences share the particle
// cardinality. Length mismatches are legitimate after upstream pruning and
// are normalized rather than rejected.
func normalizeParents(pids, parents []int64) []int64 {
	if len(parents) == len(pids) {
		return parents
	}
	norm := make([]int64, len(pids))
	copied := copy(norm, parents)
	for i := copied; i < len(norm); i++ {
		norm[i] = batch.NoParent
	}
	return norm
}

// RootCount returns the number of root particles in one event: particles
// whose parent is null or dangling, plus particles whose walk was broken by
// cycle detection. Under the self policy the count equals the number of
// distinct ancestor values the event resolves to, which makes it a useful
// cross-check.
func RootCount(pids, parents []int64) int {
	index := buildIndex(pids)
	norm := normalizeParents(pids, parents)
	_, broken := resolveEvent(pids, parents, PolicySelf)

	count := 0
	for i := range pids {
		parent := norm[i]
		if parent == batch.NoParent {
			count++
			continue
		}
		if _, present := index[parent]; !present {
			count++
			continue
		}
		if broken[i] {
			count++
		}
	}
	return count
}
