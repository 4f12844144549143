// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/minitrace/metrics"

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// MetricDefinition describes a metric exported through OpenTelemetry.
type MetricDefinition struct {
	ID          MetricID
	Name        string
	Description string
	Unit        string
}
