// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package minitrace implements the coverage tracing lifecycle of a managed runtime.
//
// A Tracer moves between two states. While inactive it only marks newly prepared
// application classes as eligible. Start, gated by the per-user trigger file, suspends the
// runtime, registers with the instrumentation subsystem and installs coverage stubs into
// every eligible class loaded so far. Stop reverts this and appends all coverage recorded
// since the previous dump to the per-user coverage file.
//
// Whether tracing is active is published through a single atomic pointer and can be
// queried from any thread without locking. Transitions are serialized by a mutex and
// happen while all other mutator threads are suspended, so executing code never sees
// instrumentation partially installed.
package minitrace // import "go.opentelemetry.io/minitrace/minitrace"

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/minitrace/classfilter"
	"go.opentelemetry.io/minitrace/coverage"
	"go.opentelemetry.io/minitrace/dumpfile"
	"go.opentelemetry.io/minitrace/metrics"
	"go.opentelemetry.io/minitrace/vm"
)

// session exists while tracing is active.
type session struct {
	id      string
	started time.Time
}

// Tracer is the coverage tracing controller of one runtime.
type Tracer struct {
	rt     vm.Runtime
	cfg    Config
	filter *classfilter.Filter
	names  *coverage.Descriptors
	writer *dumpfile.Writer

	// listener is the value registered with the instrumentation.
	listener vm.InstrumentationListener

	// mu serializes the mutations of session. It is only taken inside the critical
	// section.
	mu sync.Mutex
	// session is non-nil while tracing is active.
	session atomic.Pointer[session]
}

// New creates an inactive Tracer for rt.
func New(rt vm.Runtime, cfg Config) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FS == nil {
		cfg.FS = dumpfile.OS{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	names, err := coverage.NewDescriptors()
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor cache: %w", err)
	}

	return &Tracer{
		rt:       rt,
		cfg:      cfg,
		filter:   classfilter.New(cfg.SystemPrefix),
		names:    names,
		writer:   dumpfile.NewWriter(cfg.FS, cfg.CoveragePath()),
		listener: listener{},
	}, nil
}

// IsActive reports whether tracing is active. It is safe to call from any thread.
func (t *Tracer) IsActive() bool {
	return t.session.Load() != nil
}

// Session returns the identifier of the active tracing session.
func (t *Tracer) Session() (id string, ok bool) {
	s := t.session.Load()
	if s == nil {
		return "", false
	}
	return s.id, true
}

// ClassLoadCallback returns the callback to register with the class linker.
func (t *Tracer) ClassLoadCallback() vm.ClassLoadCallback {
	return classLoadCallback{t: t}
}

// Start activates tracing. It does nothing if tracing is already active or if the
// trigger file does not exist or can't be opened.
func (t *Tracer) Start() {
	log.Info("MiniTrace: Try to start")

	if t.IsActive() {
		log.Error("Trace already in progress, ignoring this request")
		metrics.Add(metrics.IDTraceStartWhileActive, 1)
		return
	}

	triggerPath := t.cfg.TriggerPath()
	if err := dumpfile.CheckTrigger(triggerPath); err != nil {
		log.Infof("MiniTrace: config file %s: %v", triggerPath, err)
		metrics.Add(metrics.IDTraceStartRefused, 1)
		return
	}

	if !t.activate() {
		log.Error("Trace already in progress, ignoring this request")
		metrics.Add(metrics.IDTraceStartWhileActive, 1)
		return
	}
	metrics.Add(metrics.IDTraceStart, 1)

	// The start record carries no coverage data and needs no safepoint.
	if err := t.dump(coverage.KindStart); err != nil {
		log.Infof("MiniTrace: %v", err)
	}
}

// activate creates the session and retrofits the loaded classes with instrumentation.
// It returns false if another caller activated tracing first.
func (t *Tracer) activate() bool {
	// Stubs are installed while visiting the class linker classes, which must not move.
	endGC := t.rt.StartGCCriticalSection("minitrace start")
	defer endGC()
	resume := t.rt.SuspendAll("minitrace start")
	defer resume()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.Load() != nil {
		return false
	}

	s := &session{id: uuid.NewString(), started: t.cfg.Now()}
	t.session.Store(s)

	inst := t.rt.Instrumentation()
	inst.AddListener(t.listener, vm.EventNone)
	inst.EnableMethodTracing(t.cfg.InstrumentationKey)

	t.rt.ClassLinker().VisitClasses(func(c vm.Class) bool {
		t.PostClassPrepare(c)
		return true
	})

	log.WithField("session", s.id).Info("MiniTrace: started")
	return true
}

// Stop deactivates tracing and dumps the recorded coverage. The dump is written even if
// tracing was not active.
func (t *Tracer) Stop() {
	if s := t.deactivate(); s == nil {
		log.Error("Trace stop requested, but no trace currently running")
		metrics.Add(metrics.IDTraceStopWhileInactive, 1)
	} else {
		metrics.Add(metrics.IDTraceStop, 1)
		log.WithField("session", s.id).Infof("MiniTrace: stopped after %v",
			t.cfg.Now().Sub(s.started))
	}

	if err := t.dump(coverage.KindDump); err != nil {
		log.Infof("MiniTrace: %v", err)
	}
}

// deactivate ends the session and removes the instrumentation. It returns the ended
// session, or nil if tracing was not active.
//
// The session is cleared inside the safepoint rather than before it, so a concurrent
// Start can never observe a nil session while the instrumentation is still installed.
func (t *Tracer) deactivate() *session {
	if !t.IsActive() {
		return nil
	}

	endGC := t.rt.StartGCCriticalSection("minitrace stop")
	defer endGC()
	resume := t.rt.SuspendAll("minitrace stop")
	defer resume()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session.Swap(nil)
	if s == nil {
		return nil
	}
	inst := t.rt.Instrumentation()
	inst.DisableMethodTracing(t.cfg.InstrumentationKey)
	inst.RemoveListener(t.listener, vm.EventNone)
	return s
}

// Shutdown stops tracing if it is active. It may be called any number of times.
func (t *Tracer) Shutdown() {
	if t.IsActive() {
		t.Stop()
	}
}

// Dump appends a dump record with the coverage recorded since the previous dump,
// independent of whether tracing is active.
func (t *Tracer) Dump() error {
	return t.dump(coverage.KindDump)
}

// PostClassPrepare marks c eligible for tracing if it passes the class filter and, while
// tracing is active, installs the coverage stubs for it.
func (t *Tracer) PostClassPrepare(c vm.Class) {
	if verdict := t.filter.Classify(c); verdict != classfilter.Eligible {
		log.Debugf("MiniTrace: not tracing %s class %s", verdict, c.Descriptor())
		metrics.Add(metrics.IDClassExcluded, 1)
		return
	}

	if !c.IsMiniTraceable() {
		c.SetMiniTraceable()
		metrics.Add(metrics.IDClassEligible, 1)
	}
	if t.IsActive() {
		t.rt.Instrumentation().InstallStubsForClass(c)
	}
}

// dump builds the record of the given kind and appends it to the coverage file.
func (t *Tracer) dump(kind coverage.Kind) error {
	blob := coverage.AppendEnvelope(nil, kind, t.cfg.PID, t.cfg.Now().UnixMilli())
	lines := 0

	if kind == coverage.KindStart {
		log.Info("MiniTrace: Try to start coverage data")
	} else {
		log.Info("MiniTrace: Try to dump coverage data")
		t.rt.ClassLinker().VisitClasses(func(c vm.Class) bool {
			if !c.IsMiniTraceable() {
				return true
			}
			for _, m := range c.DeclaredMethods() {
				var ok bool
				if blob, ok = coverage.AppendMethod(blob, m, t.names); ok {
					lines++
				}
			}
			return true
		})
	}

	if err := t.writer.Append(blob); err != nil {
		metrics.Add(metrics.IDDumpFailure, 1)
		return err
	}

	metrics.Add(metrics.IDDumpSuccess, 1)
	metrics.Add(metrics.IDDumpMethods, metrics.MetricValue(lines))
	metrics.Add(metrics.IDDumpBytes, metrics.MetricValue(len(blob)))
	log.Debugf("MiniTrace: wrote %s record with %d methods to %s",
		kind, lines, t.writer.Path())
	return nil
}
