// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics counts coverage tracing events. Every counter is exported through the
// OpenTelemetry metric API and additionally kept as a process local total.
package metrics // import "go.opentelemetry.io/minitrace/metrics"

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var definitions = []MetricDefinition{
	{IDTraceStart, "minitrace.start", "Successful tracing starts", "{start}"},
	{IDTraceStartRefused, "minitrace.start.refused",
		"Start requests refused due to a missing or unreadable trigger file", "{request}"},
	{IDTraceStartWhileActive, "minitrace.start.while_active",
		"Start requests while tracing was active", "{request}"},
	{IDTraceStop, "minitrace.stop", "Successful tracing stops", "{stop}"},
	{IDTraceStopWhileInactive, "minitrace.stop.while_inactive",
		"Stop requests while tracing was inactive", "{request}"},
	{IDClassEligible, "minitrace.class.eligible", "Classes marked eligible", "{class}"},
	{IDClassExcluded, "minitrace.class.excluded", "Classes excluded from tracing",
		"{class}"},
	{IDDumpSuccess, "minitrace.dump.success", "Coverage records written", "{record}"},
	{IDDumpFailure, "minitrace.dump.failure", "Coverage records abandoned", "{record}"},
	{IDDumpMethods, "minitrace.dump.methods", "Coverage lines written", "{line}"},
	{IDDumpBytes, "minitrace.dump.bytes", "Bytes written to coverage files", "By"},
}

var (
	meter = otel.Meter("go.opentelemetry.io/minitrace")

	counters [IDMax]metric.Int64Counter
	totals   [IDMax]atomic.Int64
)

func init() {
	for _, md := range definitions {
		counter, err := meter.Int64Counter(md.Name,
			metric.WithDescription(md.Description),
			metric.WithUnit(md.Unit))
		if err != nil {
			log.Errorf("Creating Int64Counter %s: %v", md.Name, err)
			continue
		}
		counters[md.ID] = counter
	}
}

// Definitions returns the definitions of all metrics.
func Definitions() []MetricDefinition {
	return definitions
}

// Add increments the counter id by value.
func Add(id MetricID, value MetricValue) {
	if id <= IDInvalid || id >= IDMax {
		log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
			id, IDInvalid+1, IDMax-1)
		return
	}
	if value == 0 {
		return
	}
	totals[id].Add(int64(value))
	if counter := counters[id]; counter != nil {
		counter.Add(context.Background(), int64(value))
	}
}

// Get returns the process local total of counter id.
func Get(id MetricID) MetricValue {
	if id <= IDInvalid || id >= IDMax {
		return 0
	}
	return MetricValue(totals[id].Load())
}
