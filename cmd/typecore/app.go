// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/typecore/cmd/typecore/config"
	"github.com/AleutianAI/typecore/pkg/logging"
	"github.com/AleutianAI/typecore/pkg/telemetry"
	"github.com/AleutianAI/typecore/pkg/typegraph"
)

const (
	shutdownTimeout = 5 * time.Second
	cliTracerName   = "typecore.cli"
)

// app holds the state of one invocation: flags, loaded config, and the
// resources torn down by close.
type app struct {
	configPath  string
	fixturePath string
	logLevel    string
	logFormat   string
	metricsAddr string

	cfg     config.Config
	fixture *typegraph.Fixture

	logger     *logging.Logger
	restoreLog func()
	shutdown   func(context.Context) error
	server     *http.Server
	serving    *errgroup.Group
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "typecore",
		Short:         "Order control-flow graphs and enumerate variable products",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.typecore/typecore.yaml)")
	flags.StringVarP(&a.fixturePath, "fixture", "f", "", "YAML program fixture")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "console log format: auto, text, json")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve prometheus /metrics on this address")

	root.AddCommand(
		a.predecessorsCmd(),
		a.orderCmd(),
		a.toposortCmd(),
		a.productCmd(),
		a.deepProductCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads configuration, then starts logging, telemetry and the
// metrics endpoint in that order.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	// Nothing scrapes the prometheus exporter without an endpoint.
	if cfg.MetricsAddr == "" && cfg.Telemetry.MetricExporter == "prometheus" {
		cfg.Telemetry.MetricExporter = "none"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger, err = logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.LogFormat),
		LogDir:  cfg.LogDir,
		Service: cfg.Telemetry.ServiceName,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.restoreLog = a.logger.InstallDefault()

	a.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	if cfg.MetricsAddr != "" {
		if err := a.serveMetrics(cfg.MetricsAddr); err != nil {
			return err
		}
	}

	slog.Debug("typecore: started",
		slog.String("command", cmd.Name()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("trace_exporter", cfg.Telemetry.TraceExporter),
		slog.String("metric_exporter", cfg.Telemetry.MetricExporter),
	)
	return nil
}

// serveMetrics binds addr and serves /metrics until close.
func (a *app) serveMetrics(addr string) error {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		return fmt.Errorf("metrics endpoint %s needs the prometheus metric exporter", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.serving = &errgroup.Group{}
	a.serving.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	slog.Info("typecore: serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

// close tears down in reverse setup order. Safe when setup stopped early.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx), a.serving.Wait())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.restoreLog != nil {
		a.restoreLog()
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// loadFixture reads --fixture once per invocation.
func (a *app) loadFixture(ctx context.Context) (*typegraph.Fixture, error) {
	if a.fixture != nil {
		return a.fixture, nil
	}
	if a.fixturePath == "" {
		return nil, errors.New("--fixture is required")
	}
	f, err := typegraph.LoadFixtureFile(a.fixturePath)
	if err != nil {
		return nil, err
	}
	a.fixture = f

	telemetry.LoggerWithProgram(ctx, slog.Default(), f.Program.ID().String()).Debug("typecore: fixture loaded",
		slog.String("path", a.fixturePath),
		slog.Int("nodes", len(f.Nodes)),
		slog.Int("variables", len(f.Variables)),
		slog.Int("sort_items", len(f.Items)),
	)
	return f, nil
}

// startCommand loads the fixture and opens the command span.
//
// The returned logger carries the trace and the program id. finish ends
// the span, recording err, and returns err unchanged.
func (a *app) startCommand(cmd *cobra.Command) (ctx context.Context, f *typegraph.Fixture, logger *slog.Logger, finish func(error) error, err error) {
	f, err = a.loadFixture(cmd.Context())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	programID := f.Program.ID().String()
	ctx, span := telemetry.StartSpan(cmd.Context(), cliTracerName, "typecore."+cmd.Name(),
		trace.WithAttributes(attribute.String("program_id", programID)),
	)
	logger = telemetry.LoggerWithProgram(ctx, slog.Default(), programID)
	startTime := time.Now()

	finish = func(err error) error {
		defer span.End()
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		telemetry.SetSpanOK(span)
		logger.Debug("typecore: command done",
			slog.String("command", cmd.Name()),
			slog.Duration("duration", time.Since(startTime)),
		)
		return nil
	}
	return ctx, f, logger, finish, nil
}
