// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the typed configuration surface for the collider
// processing packages.
//
// Configuration errors are always reported before any event is processed:
// Parse and Load validate eagerly, and the option builders only consume
// validated values. A zero value is not usable; start from Default().
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/colliderml/pkg/logging"
	"github.com/AleutianAI/colliderml/services/collider/batch"
	"github.com/AleutianAI/colliderml/services/collider/engine"
	"github.com/AleutianAI/colliderml/services/collider/genealogy"
	"github.com/AleutianAI/colliderml/services/collider/pileup"
)

// Config is the root configuration for collider batch processing.
type Config struct {
	// Genealogy configures primary ancestor resolution.
	Genealogy GenealogyConfig `yaml:"genealogy"`

	// Pileup configures the cascading pileup filter.
	Pileup PileupConfig `yaml:"pileup"`

	// Engine configures event-parallel scheduling.
	Engine EngineConfig `yaml:"engine"`

	// Logging configures the shared structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// GenealogyConfig configures the ancestor resolver.
type GenealogyConfig struct {
	// MissingParentPolicy selects the value assigned to roots: "self" or
	// "null".
	MissingParentPolicy string `yaml:"missing_parent_policy" validate:"oneof=self null"`

	// ParticleIDColumn and ParentIDColumn name the input columns.
	ParticleIDColumn string `yaml:"particle_id_column" validate:"required"`
	ParentIDColumn   string `yaml:"parent_id_column" validate:"required"`

	// OutputColumn names the ancestor column added to the output.
	OutputColumn string `yaml:"output_column" validate:"required"`

	// LoopTags adds a bool column distinguishing broken-cycle roots from
	// true roots.
	LoopTags bool `yaml:"loop_tags"`

	// LoopTagColumn names the tag column when LoopTags is set.
	LoopTagColumn string `yaml:"loop_tag_column" validate:"required"`
}

// PileupConfig configures the cascading filter.
type PileupConfig struct {
	// TargetVertices is the highest vertex generation kept by Subsample.
	TargetVertices int `yaml:"target_vertices" validate:"gt=0"`

	// ParticlesKey, TrackerHitsKey, and CaloHitsKey locate the tables in
	// the batch map.
	ParticlesKey   string `yaml:"particles_key" validate:"required"`
	TrackerHitsKey string `yaml:"tracker_hits_key" validate:"required"`
	CaloHitsKey    string `yaml:"calo_hits_key" validate:"required"`

	// Columns overrides the referenced column names.
	Columns ColumnsConfig `yaml:"columns"`
}

// ColumnsConfig names every column the filter references.
type ColumnsConfig struct {
	ParticleID         string `yaml:"particle_id" validate:"required"`
	ParentID           string `yaml:"parent_id" validate:"required"`
	VertexPrimary      string `yaml:"vertex_primary" validate:"required"`
	HitParticleID      string `yaml:"hit_particle_id" validate:"required"`
	ContribParticleIDs string `yaml:"contrib_particle_ids" validate:"required"`
	ContribEnergies    string `yaml:"contrib_energies" validate:"required"`
	ContribTimes       string `yaml:"contrib_times" validate:"required"`
	TotalEnergy        string `yaml:"total_energy" validate:"required"`
}

// EngineConfig configures event scheduling.
type EngineConfig struct {
	// Workers caps the event worker pool. 0 uses the engine default.
	Workers int `yaml:"workers" validate:"min=0"`

	// ParallelThreshold is the minimum batch size for parallel execution.
	// 0 uses the engine default.
	ParallelThreshold int `yaml:"parallel_threshold" validate:"min=0"`
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when non-empty. Supports ~ expansion.
	Dir string `yaml:"dir"`

	// Service tags every log entry.
	Service string `yaml:"service" validate:"required"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Quiet disables stderr output.
	Quiet bool `yaml:"quiet"`
}

// Default returns the configuration matching the standard ColliderML
// schema and conservative scheduling.
func Default() Config {
	return Config{
		Genealogy: GenealogyConfig{
			MissingParentPolicy: "self",
			ParticleIDColumn:    batch.DefaultParticleIDColumn,
			ParentIDColumn:      batch.DefaultParentIDColumn,
			OutputColumn:        genealogy.DefaultOutputColumn,
			LoopTagColumn:       genealogy.DefaultLoopTagColumn,
		},
		Pileup: PileupConfig{
			TargetVertices: 1,
			ParticlesKey:   pileup.DefaultParticlesKey,
			TrackerHitsKey: pileup.DefaultTrackerHitsKey,
			CaloHitsKey:    pileup.DefaultCaloHitsKey,
			Columns: ColumnsConfig{
				ParticleID:         batch.DefaultParticleIDColumn,
				ParentID:           batch.DefaultParentIDColumn,
				VertexPrimary:      batch.DefaultVertexPrimaryColumn,
				HitParticleID:      batch.DefaultParticleIDColumn,
				ContribParticleIDs: batch.DefaultContribParticleIDs,
				ContribEnergies:    batch.DefaultContribEnergies,
				ContribTimes:       batch.DefaultContribTimes,
				TotalEnergy:        batch.DefaultTotalEnergyColumn,
			},
		},
		Engine: EngineConfig{},
		Logging: LoggingConfig{
			Level:   "info",
			Service: "collider",
		},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Validate checks every constraint tag. The returned error names each
// violated field.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Options converts the genealogy section into resolver options. The policy
// string has been validated, but the conversion still surfaces a parse
// error rather than panicking on a hand-built config.
func (g GenealogyConfig) Options(eng EngineConfig) ([]genealogy.Option, error) {
	policy, err := genealogy.ParsePolicy(g.MissingParentPolicy)
	if err != nil {
		return nil, err
	}
	opts := []genealogy.Option{
		genealogy.WithPolicy(policy),
		genealogy.WithParticleIDColumn(g.ParticleIDColumn),
		genealogy.WithParentIDColumn(g.ParentIDColumn),
		genealogy.WithOutputColumn(g.OutputColumn),
	}
	if g.LoopTags {
		opts = append(opts, genealogy.WithLoopTagColumn(g.LoopTagColumn))
	}
	if eng.Workers > 0 {
		opts = append(opts, genealogy.WithWorkers(eng.Workers))
	}
	return opts, nil
}

// Manifest converts the column section into a batch manifest.
func (p PileupConfig) Manifest() batch.Manifest {
	return batch.Manifest{
		ParticleID:         p.Columns.ParticleID,
		ParentID:           p.Columns.ParentID,
		VertexPrimary:      p.Columns.VertexPrimary,
		HitParticleID:      p.Columns.HitParticleID,
		ContribParticleIDs: p.Columns.ContribParticleIDs,
		ContribEnergies:    p.Columns.ContribEnergies,
		ContribTimes:       p.Columns.ContribTimes,
		TotalEnergy:        p.Columns.TotalEnergy,
	}
}

// Options converts the pileup section into filter options.
func (p PileupConfig) Options(eng EngineConfig) []pileup.Option {
	opts := []pileup.Option{
		pileup.WithParticlesKey(p.ParticlesKey),
		pileup.WithTrackerHitsKey(p.TrackerHitsKey),
		pileup.WithCaloHitsKey(p.CaloHitsKey),
		pileup.WithManifest(p.Manifest()),
	}
	if eng.Workers > 0 {
		opts = append(opts, pileup.WithWorkers(eng.Workers))
	}
	return opts
}

// Options converts the engine section into scheduling options.
func (e EngineConfig) Options() []engine.Option {
	var opts []engine.Option
	if e.Workers > 0 {
		opts = append(opts, engine.WithWorkers(e.Workers))
	}
	if e.ParallelThreshold > 0 {
		opts = append(opts, engine.WithParallelThreshold(e.ParallelThreshold))
	}
	return opts
}

// Logger builds the shared logger for this configuration and installs it
// as the slog default, so the processing packages' run-level logs flow
// through the configured destinations.
func (l LoggingConfig) Logger() *logging.Logger {
	logger := logging.New(logging.Config{
		Level:   parseLevel(l.Level),
		LogDir:  l.Dir,
		Service: l.Service,
		JSON:    l.JSON,
		Quiet:   l.Quiet,
	})
	logger.SetDefault()
	return logger
}

// parseLevel maps the validated level string to a logging level.
func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
