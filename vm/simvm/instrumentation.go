// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package simvm // import "go.opentelemetry.io/minitrace/vm/simvm"

import (
	"slices"
	"sync"

	"go.opentelemetry.io/minitrace/coverage"
	"go.opentelemetry.io/minitrace/vm"
)

// Instrumentation keeps track of listeners, method tracing clients and stubbed classes.
type Instrumentation struct {
	mu        sync.Mutex
	listeners map[vm.InstrumentationListener]vm.EventMask
	tracing   map[string]struct{}
	stubbed   map[*Class]struct{}
	installs  int
}

// Compile time check for interface adherence
var _ vm.Instrumentation = &Instrumentation{}

func newInstrumentation() *Instrumentation {
	return &Instrumentation{
		listeners: make(map[vm.InstrumentationListener]vm.EventMask),
		tracing:   make(map[string]struct{}),
		stubbed:   make(map[*Class]struct{}),
	}
}

func (i *Instrumentation) AddListener(l vm.InstrumentationListener, events vm.EventMask) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners[l] |= events
}

func (i *Instrumentation) RemoveListener(l vm.InstrumentationListener, _ vm.EventMask) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.listeners, l)
}

func (i *Instrumentation) EnableMethodTracing(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tracing[key] = struct{}{}
}

// DisableMethodTracing removes key. Once the last client is gone, all stubs are
// removed and the coverage arrays stop being updated.
func (i *Instrumentation) DisableMethodTracing(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.tracing, key)
	if len(i.tracing) == 0 {
		clear(i.stubbed)
	}
}

// InstallStubsForClass allocates the coverage arrays of all methods of c with code and
// makes execution update them. It is ignored while method tracing is disabled.
func (i *Instrumentation) InstallStubsForClass(c vm.Class) {
	class, ok := c.(*Class)
	if !ok {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.tracing) == 0 {
		return
	}
	for _, m := range class.methods {
		if m.HasCode() {
			m.(*Method).allocate(coverage.GranuleCount(m.InsnsSize()))
		}
	}
	i.stubbed[class] = struct{}{}
	i.installs++
}

// Stubbed reports whether stubs are installed for c.
func (i *Instrumentation) Stubbed(c *Class) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.stubbed[c]
	return ok
}

// Installs returns the number of InstallStubsForClass calls that installed stubs.
func (i *Instrumentation) Installs() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installs
}

// Listeners returns the number of registered listeners.
func (i *Instrumentation) Listeners() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.listeners)
}

// TracingKeys returns the sorted keys of the method tracing clients.
func (i *Instrumentation) TracingKeys() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	keys := make([]string, 0, len(i.tracing))
	for k := range i.tracing {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
