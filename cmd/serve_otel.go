package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/agentgate/internal/config"
	"github.com/nextlevelbuilder/agentgate/internal/tracing/otelexport"
)

// initOTelExporter installs the OTLP exporter when telemetry is enabled.
// It returns nil when export is off or cannot be set up; spans then go to
// the no-op provider.
func initOTelExporter(ctx context.Context, cfg *config.Config) *otelexport.Exporter {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("otel export available but not enabled (set telemetry.enabled + telemetry.endpoint)")
		return nil
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Headers:     cfg.Telemetry.Headers,
		Version:     Version,
	})
	if err != nil {
		slog.Warn("failed to create otel exporter", "error", err)
		return nil
	}
	return exp
}
