// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes, used as the "outcome" label of runsTotal.
const (
	outcomeOK        = "ok"        // program ran to completion
	outcomeFailed    = "failed"    // program raised an error
	outcomeCancelled = "cancelled" // context, timeout or step limit
	outcomeInvalid   = "invalid"   // program could not be prepared
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "typetrace",
		Subsystem: "runner",
		Name:      "runs_total",
		Help:      "Analysis runs by outcome",
	}, []string{"outcome"})

	observationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "typetrace",
		Subsystem: "runner",
		Name:      "observations_total",
		Help:      "Values recorded by instrumented programs",
	})

	sitesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "typetrace",
		Subsystem: "runner",
		Name:      "instrumented_sites_total",
		Help:      "Assignments rewritten to record their values",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "typetrace",
		Subsystem: "runner",
		Name:      "run_duration_seconds",
		Help:      "Time to prepare and execute one program",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)
