// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vm describes the parts of a managed runtime that coverage tracing consumes and
// the callbacks it exposes back to that runtime.
//
// The tracer never owns runtime objects. Classes and methods are handed to it by the class
// linker and are only queried for a small set of properties; the per-method coverage array
// is owned by the method itself and is merely read and cleared by the tracer.
//
// Functionality is divided as follows:
//
//  1. Runtime is the process-wide entry point. It provides the critical section used for
//     global state transitions (holding off garbage collection and suspending every other
//     mutator thread), the Instrumentation subsystem and the ClassLinker.
//
//  2. Instrumentation dispatches execution events to registered listeners and installs the
//     per-method stubs that make the execution engine update coverage arrays.
//
//  3. ClassLinker enumerates the loaded classes. The tracer registers a ClassLoadCallback
//     with it to learn about classes prepared after tracing was configured.
package vm // import "go.opentelemetry.io/minitrace/vm"

// Class is a loaded class as seen by the tracer.
type Class interface {
	// Descriptor returns the type descriptor, e.g. "Lcom/example/Foo;".
	Descriptor() string

	IsArray() bool
	IsInterface() bool
	IsPrimitive() bool
	// IsProxy reports whether the class was generated at runtime as a proxy.
	IsProxy() bool

	// Location returns the location of the code container (dex file) the class was
	// loaded from.
	Location() string

	// DeclaredMethods returns the methods declared by this class. The returned slice must
	// not be modified by the caller.
	DeclaredMethods() []Method

	// IsMiniTraceable reports whether the class was marked eligible for coverage tracing.
	IsMiniTraceable() bool
	// SetMiniTraceable marks the class eligible. The flag is never cleared.
	SetMiniTraceable()
}

// Method is a method declared by a Class.
type Method interface {
	// ID returns a value that uniquely identifies the method within the process.
	ID() uint64
	Name() string
	// Signature returns the method descriptor, e.g. "(ILjava/lang/String;)V".
	Signature() string
	DeclaringClassDescriptor() string
	// DeclaringClassSourceFile returns the source file name recorded for the declaring
	// class, or the empty string if the class carries none.
	DeclaringClassSourceFile() string

	// HasCode reports whether the method has a bytecode body.
	HasCode() bool
	// InsnsSize returns the size of the bytecode body in 16-bit code units.
	InsnsSize() uint16
	// CoverageData returns the coverage array, or nil if none was allocated. Each byte
	// covers one granule of two code units. The array is shared with the execution engine
	// which writes it without synchronization.
	CoverageData() []byte

	// IsMiniTraceable reports whether the declaring class is eligible for coverage tracing.
	IsMiniTraceable() bool
}

// ClassVisitor is called for each class visited by ClassLinker.VisitClasses. Returning false
// stops the iteration.
type ClassVisitor func(Class) bool

// ClassLinker provides access to the loaded classes.
type ClassLinker interface {
	VisitClasses(visitor ClassVisitor)
}

// ClassLoadCallback is notified by the class linker about newly loaded classes.
type ClassLoadCallback interface {
	// ClassLoad is called once the class was loaded but before it is linked.
	ClassLoad(c Class)
	// ClassPrepare is called once the class is linked. For classes that required a
	// temporary class during linking, temp is that temporary class.
	ClassPrepare(temp, c Class)
}

// Instrumentation is the execution event dispatch and stub installation subsystem.
type Instrumentation interface {
	AddListener(l InstrumentationListener, events EventMask)
	RemoveListener(l InstrumentationListener, events EventMask)

	// EnableMethodTracing switches the runtime into method tracing mode on behalf of the
	// client identified by key.
	EnableMethodTracing(key string)
	// DisableMethodTracing undoes EnableMethodTracing for key.
	DisableMethodTracing(key string)

	// InstallStubsForClass installs the instrumentation stubs for all methods of c.
	InstallStubsForClass(c Class)
}

// Runtime is the managed runtime hosting the tracer.
type Runtime interface {
	// StartGCCriticalSection prevents garbage collection from running until the returned
	// function is called.
	StartGCCriticalSection(cause string) (end func())
	// SuspendAll suspends every mutator thread except the caller at a safepoint and
	// returns the function that resumes them.
	SuspendAll(cause string) (resume func())

	Instrumentation() Instrumentation
	ClassLinker() ClassLinker
}
