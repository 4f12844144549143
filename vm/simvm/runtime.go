// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package simvm implements an in-memory managed runtime. It provides the class linker,
// instrumentation and safepoint semantics coverage tracing relies on, and an execution
// engine that flags the coverage granules of executed code units.
//
// Mutator operations (LoadClass, Execute) run concurrently with each other. SuspendAll
// waits for all of them to reach a safepoint and blocks new ones until resumed. A mutator
// operation must not be started from within another one.
package simvm // import "go.opentelemetry.io/minitrace/vm/simvm"

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/minitrace/coverage"
	"go.opentelemetry.io/minitrace/vm"
)

var (
	// ErrNoCode is returned by Execute for methods without code.
	ErrNoCode = errors.New("method has no code")
	// ErrBadPC is returned by Execute for a code unit outside of the method body.
	ErrBadPC = errors.New("dex pc out of range")
)

// Runtime is an in-memory vm.Runtime.
type Runtime struct {
	// mutators is held shared by running mutator operations and exclusively while
	// all threads are suspended.
	mutators    sync.RWMutex
	suspensions atomic.Uint64

	gcMu       sync.Mutex
	gcCond     *sync.Cond
	gcCritical int
	gcRuns     uint64

	classMu   sync.RWMutex
	classes   []*Class
	callbacks []vm.ClassLoadCallback
	nextID    uint64

	inst *Instrumentation
}

// Compile time check for interface adherence
var _ vm.Runtime = &Runtime{}

// New returns an empty Runtime.
func New() *Runtime {
	r := &Runtime{
		nextID: 0x1000,
		inst:   newInstrumentation(),
	}
	r.gcCond = sync.NewCond(&r.gcMu)
	return r
}

func (r *Runtime) StartGCCriticalSection(cause string) func() {
	r.gcMu.Lock()
	r.gcCritical++
	r.gcMu.Unlock()
	log.Debugf("Entered GC critical section: %s", cause)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.gcMu.Lock()
			r.gcCritical--
			r.gcMu.Unlock()
			r.gcCond.Broadcast()
		})
	}
}

// CollectGarbage runs a collection once no GC critical section is held.
func (r *Runtime) CollectGarbage() {
	r.gcMu.Lock()
	defer r.gcMu.Unlock()
	for r.gcCritical > 0 {
		r.gcCond.Wait()
	}
	r.gcRuns++
}

// GCRuns returns the number of completed collections.
func (r *Runtime) GCRuns() uint64 {
	r.gcMu.Lock()
	defer r.gcMu.Unlock()
	return r.gcRuns
}

func (r *Runtime) SuspendAll(cause string) func() {
	r.mutators.Lock()
	r.suspensions.Add(1)
	log.Debugf("Suspended all threads: %s", cause)

	var once sync.Once
	return func() {
		once.Do(r.mutators.Unlock)
	}
}

// Suspensions returns the number of SuspendAll calls.
func (r *Runtime) Suspensions() uint64 {
	return r.suspensions.Load()
}

func (r *Runtime) Instrumentation() vm.Instrumentation {
	return r.inst
}

// Instrumented returns the concrete instrumentation for inspection.
func (r *Runtime) Instrumented() *Instrumentation {
	return r.inst
}

func (r *Runtime) ClassLinker() vm.ClassLinker {
	return r
}

// VisitClasses visits the classes loaded so far in load order.
func (r *Runtime) VisitClasses(visitor vm.ClassVisitor) {
	r.classMu.RLock()
	classes := r.classes
	r.classMu.RUnlock()

	for _, c := range classes {
		if !visitor(c) {
			return
		}
	}
}

// AddClassLoadCallback registers cb for all classes loaded from now on.
func (r *Runtime) AddClassLoadCallback(cb vm.ClassLoadCallback) {
	r.classMu.Lock()
	defer r.classMu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// LoadClass loads, links and publishes the class described by def. It is a
// mutator operation.
func (r *Runtime) LoadClass(def ClassDef) *Class {
	r.mutators.RLock()
	defer r.mutators.RUnlock()

	c := &Class{def: def}
	c.methods = make([]vm.Method, 0, len(def.Methods))

	r.classMu.Lock()
	for _, ms := range def.Methods {
		c.methods = append(c.methods, &Method{id: r.nextID, class: c, def: ms})
		r.nextID++
	}
	callbacks := r.callbacks
	r.classMu.Unlock()

	for _, cb := range callbacks {
		cb.ClassLoad(c)
	}

	r.classMu.Lock()
	r.classes = append(r.classes, c)
	r.classMu.Unlock()

	for _, cb := range callbacks {
		cb.ClassPrepare(c, c)
	}
	return c
}

// Execute runs the code units at dexPCs of m. It is a mutator operation.
func (r *Runtime) Execute(m *Method, dexPCs ...uint32) error {
	if !m.HasCode() {
		return fmt.Errorf("%s.%s: %w", m.DeclaringClassDescriptor(), m.Name(), ErrNoCode)
	}

	for _, pc := range dexPCs {
		if pc >= uint32(m.InsnsSize()) {
			return fmt.Errorf("%s.%s at %d: %w",
				m.DeclaringClassDescriptor(), m.Name(), pc, ErrBadPC)
		}
	}

	r.mutators.RLock()
	defer r.mutators.RUnlock()

	if !r.inst.Stubbed(m.class) {
		return nil
	}
	data := m.CoverageData()
	for _, pc := range dexPCs {
		markGranule(data, coverage.GranuleIndex(pc))
	}
	return nil
}
