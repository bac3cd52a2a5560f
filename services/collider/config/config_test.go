// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/colliderml/pkg/logging"
	"github.com/AleutianAI/colliderml/services/collider/batch"
	"github.com/AleutianAI/colliderml/services/collider/genealogy"
	"github.com/AleutianAI/colliderml/services/collider/pileup"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "self", cfg.Genealogy.MissingParentPolicy)
	assert.Equal(t, "particle_id", cfg.Genealogy.ParticleIDColumn)
	assert.Equal(t, "parent_id", cfg.Genealogy.ParentIDColumn)
	assert.Equal(t, "primary_ancestor_id", cfg.Genealogy.OutputColumn)
	assert.False(t, cfg.Genealogy.LoopTags)

	assert.Equal(t, 1, cfg.Pileup.TargetVertices)
	assert.Equal(t, "particles", cfg.Pileup.ParticlesKey)
	assert.Equal(t, "tracker_hits", cfg.Pileup.TrackerHitsKey)
	assert.Equal(t, "calo_hits", cfg.Pileup.CaloHitsKey)
	assert.Equal(t, "total_energy", cfg.Pileup.Columns.TotalEnergy)

	assert.Equal(t, 0, cfg.Engine.Workers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "collider", cfg.Logging.Service)
}

func TestParse_OverridesDefaults(t *testing.T) {
	data := []byte(`
genealogy:
  missing_parent_policy: "null"
  loop_tags: true
pileup:
  target_vertices: 3
  columns:
    vertex_primary: vertex_gen
engine:
  workers: 4
logging:
  level: debug
  quiet: true
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "null", cfg.Genealogy.MissingParentPolicy)
	assert.True(t, cfg.Genealogy.LoopTags)
	// Untouched fields keep their defaults.
	assert.Equal(t, "particle_id", cfg.Genealogy.ParticleIDColumn)

	assert.Equal(t, 3, cfg.Pileup.TargetVertices)
	assert.Equal(t, "vertex_gen", cfg.Pileup.Columns.VertexPrimary)
	assert.Equal(t, "particle_id", cfg.Pileup.Columns.ParticleID)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Quiet)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad policy", "genealogy:\n  missing_parent_policy: orphan\n"},
		{"zero target", "pileup:\n  target_vertices: 0\n"},
		{"negative target", "pileup:\n  target_vertices: -2\n"},
		{"negative workers", "engine:\n  workers: -1\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"empty particles key", "pileup:\n  particles_key: \"\"\n"},
		{"empty output column", "genealogy:\n  output_column: \"\"\n"},
		{"malformed yaml", "genealogy: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "collider.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pileup:\n  target_vertices: 5\n"), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Pileup.TargetVertices)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestGenealogyConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.Genealogy.MissingParentPolicy = "null"
	cfg.Genealogy.LoopTags = true
	cfg.Engine.Workers = 2

	opts, err := cfg.Genealogy.Options(cfg.Engine)
	require.NoError(t, err)

	// Run the options through the resolver to confirm they bind.
	table := batch.NewTable([]int64{0})
	require.NoError(t, table.AddColumn("particle_id", batch.NewInt64Column([][]int64{{10, 11}})))
	require.NoError(t, table.AddColumn("parent_id", batch.NewInt64Column([][]int64{{batch.NoParent, 10}})))

	out, err := genealogy.AssignPrimaryAncestor(context.Background(), table, opts...)
	require.NoError(t, err)

	anc, err := out.Int64(cfg.Genealogy.OutputColumn)
	require.NoError(t, err)
	assert.Equal(t, []int64{batch.NoParent, batch.NoParent}, anc.Event(0))
	assert.True(t, out.HasColumn(cfg.Genealogy.LoopTagColumn))
}

func TestGenealogyConfig_Options_BadPolicy(t *testing.T) {
	g := GenealogyConfig{MissingParentPolicy: "orphan"}
	_, err := g.Options(EngineConfig{})
	require.ErrorIs(t, err, genealogy.ErrUnknownPolicy)
}

func TestPileupConfig_Manifest(t *testing.T) {
	cfg := Default()
	cfg.Pileup.Columns.VertexPrimary = "vertex_gen"

	m := cfg.Pileup.Manifest()
	assert.Equal(t, "vertex_gen", m.VertexPrimary)
	assert.Equal(t, batch.DefaultParticleIDColumn, m.ParticleID)
	assert.Equal(t, batch.DefaultContribEnergies, m.ContribEnergies)
}

func TestPileupConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.Pileup.ParticlesKey = "truth"
	opts := cfg.Pileup.Options(cfg.Engine)

	particles := batch.NewTable([]int64{0})
	require.NoError(t, particles.AddColumn("particle_id", batch.NewInt64Column([][]int64{{10, 11}})))
	require.NoError(t, particles.AddColumn("vertex_primary", batch.NewInt64Column([][]int64{{1, 2}})))

	out, err := pileup.Subsample(context.Background(), map[string]*batch.Table{"truth": particles},
		cfg.Pileup.TargetVertices, opts...)
	require.NoError(t, err)

	pids, err := out["truth"].Int64("particle_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, pids.Event(0))
}

func TestEngineConfig_Options(t *testing.T) {
	var e EngineConfig
	assert.Empty(t, e.Options())

	e = EngineConfig{Workers: 4, ParallelThreshold: 16}
	assert.Len(t, e.Options(), 2)
}

func TestLoggingConfig_Logger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := LoggingConfig{Level: "warn", Service: "collider-test", Quiet: true}
	logger := l.Logger()
	require.NotNil(t, logger)
	defer logger.Close()

	// The configured logger becomes the slog default, so the processing
	// packages' run-level logs share its destinations.
	assert.Same(t, logger.Slog(), slog.Default())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logging.LevelDebug, parseLevel("debug"))
	assert.Equal(t, logging.LevelInfo, parseLevel("info"))
	assert.Equal(t, logging.LevelWarn, parseLevel("warn"))
	assert.Equal(t, logging.LevelError, parseLevel("error"))
	// Validation rejects anything else; the fallback is Info.
	assert.Equal(t, logging.LevelInfo, parseLevel("other"))
}
