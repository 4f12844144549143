// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/minitrace/metrics"

// Below are the different metric IDs that we currently implement.
// ONLY APPEND ! IDs are stable across releases.
const (
	// Leave out the 0 value. It's an indication of not explicitly initialized variables.
	IDInvalid MetricID = iota

	// Number of successful tracing starts
	IDTraceStart

	// Number of start requests refused because the trigger file was missing or unreadable
	IDTraceStartRefused

	// Number of start requests ignored because tracing was already active
	IDTraceStartWhileActive

	// Number of successful tracing stops
	IDTraceStop

	// Number of stop requests while tracing was not active
	IDTraceStopWhileInactive

	// Number of classes marked eligible for tracing
	IDClassEligible

	// Number of classes excluded from tracing
	IDClassExcluded

	// Number of coverage records written completely
	IDDumpSuccess

	// Number of coverage records abandoned due to I/O errors
	IDDumpFailure

	// Number of coverage lines written
	IDDumpMethods

	// Number of bytes written to the coverage file
	IDDumpBytes

	// Max number of metric IDs, keep this entry last.
	IDMax
)
