// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package minitrace // import "go.opentelemetry.io/minitrace/minitrace"

import "go.opentelemetry.io/minitrace/vm"

// listener is registered with the instrumentation while tracing is active. Coverage is
// recorded by the stubs installed per class, so every execution event hook is inert.
type listener struct{}

// Compile time check for interface adherence
var _ vm.InstrumentationListener = listener{}

func (listener) MethodEntered(vm.Thread, vm.Object, vm.Method, uint32)          {}
func (listener) MethodExited(vm.Thread, vm.Object, vm.Method, uint32, vm.Value) {}
func (listener) MethodUnwind(vm.Thread, vm.Object, vm.Method, uint32)           {}
func (listener) DexPcMoved(vm.Thread, vm.Object, vm.Method, uint32)             {}
func (listener) FieldRead(vm.Thread, vm.Object, vm.Method, uint32, vm.Field)    {}
func (listener) ExceptionThrown(vm.Thread, vm.Object)                           {}
func (listener) ExceptionHandled(vm.Thread, vm.Object)                          {}
func (listener) Branch(vm.Thread, vm.Method, uint32, int32)                     {}
func (listener) WatchedFramePop(vm.Thread, vm.Frame)                            {}
func (listener) InvokeVirtualOrInterface(vm.Thread, vm.Object, vm.Method, uint32,
	vm.Method) {
}
func (listener) FieldWritten(vm.Thread, vm.Object, vm.Method, uint32, vm.Field,
	vm.Value) {
}

// classLoadCallback routes class preparation to the eligibility filter.
type classLoadCallback struct {
	t *Tracer
}

// ClassLoad is ignored: eligibility needs the linked class.
func (classLoadCallback) ClassLoad(vm.Class) {}

func (cb classLoadCallback) ClassPrepare(_, c vm.Class) {
	cb.t.PostClassPrepare(c)
}
