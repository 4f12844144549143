// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package classfilter decides which loaded classes take part in coverage tracing.
package classfilter // import "go.opentelemetry.io/minitrace/classfilter"

import (
	"strings"

	"go.opentelemetry.io/minitrace/vm"
)

// DefaultSystemPrefix is the location prefix of the platform framework code containers.
const DefaultSystemPrefix = "/system/framework/"

// Verdict is the outcome of classifying a class.
type Verdict uint8

const (
	Eligible Verdict = iota
	ExcludedArray
	ExcludedInterface
	ExcludedPrimitive
	ExcludedProxy
	// ExcludedSystem is returned for classes loaded from a platform code container.
	ExcludedSystem
)

var verdictNames = [...]string{
	Eligible:          "eligible",
	ExcludedArray:     "array",
	ExcludedInterface: "interface",
	ExcludedPrimitive: "primitive",
	ExcludedProxy:     "proxy",
	ExcludedSystem:    "system",
}

func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return "unknown"
}

// Filter classifies classes. It holds no mutable state and is safe for concurrent use.
type Filter struct {
	systemPrefix string
}

// New returns a Filter excluding classes whose code container location starts with
// systemPrefix. An empty prefix disables the location check.
func New(systemPrefix string) *Filter {
	return &Filter{systemPrefix: systemPrefix}
}

// Classify returns why c is excluded from tracing, or Eligible.
func (f *Filter) Classify(c vm.Class) Verdict {
	switch {
	case c.IsArray():
		return ExcludedArray
	case c.IsInterface():
		return ExcludedInterface
	case c.IsPrimitive():
		return ExcludedPrimitive
	case c.IsProxy():
		return ExcludedProxy
	}
	if f.systemPrefix != "" && strings.HasPrefix(c.Location(), f.systemPrefix) {
		return ExcludedSystem
	}
	return Eligible
}

// Eligible reports whether the methods of c may be instrumented and reported.
func (f *Filter) Eligible(c vm.Class) bool {
	return f.Classify(c) == Eligible
}
