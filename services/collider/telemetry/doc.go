// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry providers for the collider
// processing packages.
//
// The processing packages instrument themselves against the global
// otel.Tracer and otel.Meter; until Init is called those are no-ops, so a
// library consumer that does not care about observability pays nothing.
// Applications that do care call Init once at startup:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// Trace exporters: otlp (gRPC), stdout, none. Metric exporters: prometheus
// (exposed via MetricsHandler), stdout, none.
package telemetry
