// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry-based observability for typecore.
//
// The analysis packages only use the otel API (otel.Tracer, otel.Meter).
// Until Init is called those resolve to no-op providers, so library users
// pay nothing. The typecore CLI calls Init to select real exporters.
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - TYPECORE_ENV: environment name (default: development)
//
// Init is meant to run once at startup; everything else may be called from
// any goroutine.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the exporters Init installs.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name" validate:"required"`

	// ServiceVersion is the version string for this process.
	ServiceVersion string `yaml:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `yaml:"environment"`

	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the collector address used by the otlp exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// DefaultConfig returns defaults suitable for a local CLI run.
//
// Tracing is off unless OTEL_TRACES_EXPORTER says otherwise; a short-lived
// analysis command should not block on an absent collector.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "typecore",
		ServiceVersion: "0.1.0",
		Environment:    getEnvOr("TYPECORE_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "none"),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", "prometheus"),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Init installs the global tracer and meter providers selected by cfg.
//
// Description:
//
//	An exporter set to "none" leaves the matching otel global untouched, so
//	graph, product and memo keep recording into the no-op provider.
//
// Inputs:
//
//   - ctx: Used while dialing the OTLP exporter. Must not be nil.
//   - cfg: Exporter selection. DefaultConfig reads the OTEL_* environment.
//
// Outputs:
//
//   - shutdown: Flushes and stops every installed provider.
//   - error: ErrNilContext, ErrUnknownExporter or an exporter failure.
//
// Example:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var stops []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		errs := make([]error, 0, len(stops))
		for _, stop := range stops {
			errs = append(errs, stop(ctx))
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	if cfg.TraceExporter != "none" {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		stops = append(stops, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("init meter: %w", err), shutdown(ctx))
		}
		otel.SetMeterProvider(mp)
		stops = append(stops, mp.Shutdown)
	}

	return shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var (
		exporter trace.SpanExporter
		err      error
	)
	switch cfg.TraceExporter {
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: trace %q", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("%s span exporter: %w", cfg.TraceExporter, err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

func newMeterProvider(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	var reader metric.Reader
	switch cfg.MetricExporter {
	case "prometheus":
		// Shares the default registry with the memo hit/miss counters.
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus metric exporter: %w", err)
		}
		reader = exporter

		metricsMu.Lock()
		metricsHandler = promhttp.Handler()
		metricsMu.Unlock()
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		reader = metric.NewPeriodicReader(exporter)
	default:
		return nil, fmt.Errorf("%w: metric %q", ErrUnknownExporter, cfg.MetricExporter)
	}

	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	metricsMu      sync.RWMutex
	metricsHandler http.Handler
)

// MetricsHandler serves the prometheus registry. It is nil until Init runs
// with MetricExporter "prometheus".
func MetricsHandler() http.Handler {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metricsHandler
}
