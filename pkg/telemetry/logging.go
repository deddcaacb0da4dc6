// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns a logger with trace context injected.
//
// Description:
//
//	Extracts trace_id and span_id from the context and adds them as
//	structured log fields, so debug output of an analysis pass can be
//	correlated with its spans.
//
// Inputs:
//
//	ctx - Context containing span context. May be nil or have no active span.
//	logger - Base logger to enhance. Falls back to slog.Default() if nil.
//
// Outputs:
//
//	*slog.Logger - Logger with trace_id and span_id fields added if available.
//	              Returns the original logger if no valid span context.
//
// Thread Safety: Safe for concurrent use.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

// LoggerWithProgram returns a logger with trace context and the id of the
// program under analysis.
func LoggerWithProgram(ctx context.Context, logger *slog.Logger, programID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(
		slog.String("program_id", programID),
	)
}
