// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vm // import "go.opentelemetry.io/minitrace/vm"

// EventMask selects the execution events a listener is registered for.
type EventMask uint32

const (
	EventMethodEntered EventMask = 1 << iota
	EventMethodExited
	EventMethodUnwind
	EventDexPcMoved
	EventFieldRead
	EventFieldWritten
	EventExceptionThrown
	EventExceptionHandled
	EventBranch
	EventInvokeVirtualOrInterface
	EventWatchedFramePop

	// EventNone registers a listener without subscribing to any execution event.
	EventNone EventMask = 0
)

// Thread is an opaque handle to a runtime thread.
type Thread any

// Object is an opaque handle to a heap object.
type Object any

// Field is an opaque handle to a field.
type Field any

// Value is an opaque primitive or reference value.
type Value any

// Frame is an opaque handle to an interpreter frame.
type Frame any

// InstrumentationListener receives execution events dispatched by Instrumentation.
type InstrumentationListener interface {
	MethodEntered(thread Thread, this Object, method Method, dexPC uint32)
	MethodExited(thread Thread, this Object, method Method, dexPC uint32, ret Value)
	MethodUnwind(thread Thread, this Object, method Method, dexPC uint32)
	DexPcMoved(thread Thread, this Object, method Method, newDexPC uint32)
	FieldRead(thread Thread, this Object, method Method, dexPC uint32, field Field)
	FieldWritten(thread Thread, this Object, method Method, dexPC uint32, field Field,
		value Value)
	ExceptionThrown(thread Thread, exception Object)
	ExceptionHandled(thread Thread, exception Object)
	Branch(thread Thread, method Method, dexPC uint32, dexPCOffset int32)
	InvokeVirtualOrInterface(thread Thread, this Object, caller Method, dexPC uint32,
		callee Method)
	WatchedFramePop(thread Thread, frame Frame)
}
