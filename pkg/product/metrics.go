// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package product

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for product enumeration.
var (
	productTracer = otel.Tracer("typecore.product")
	productMeter  = otel.Meter("typecore.product")
)

var (
	combinationsEmitted metric.Int64Counter
	expansionMemoHits   metric.Int64Counter
	expansionsComputed  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		combinationsEmitted, err = productMeter.Int64Counter(
			"product_combinations_total",
			metric.WithDescription("Total number of deep product combinations emitted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionMemoHits, err = productMeter.Int64Counter(
			"product_expansion_memo_hits_total",
			metric.WithDescription("Total number of parameter expansions answered from the memo table"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionsComputed, err = productMeter.Int64Counter(
			"product_expansions_total",
			metric.WithDescription("Total number of parameter expansions computed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCombination(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	combinationsEmitted.Add(ctx, 1)
}

func recordExpansion(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if hit {
		expansionMemoHits.Add(ctx, 1)
		return
	}
	expansionsComputed.Add(ctx, 1)
}
