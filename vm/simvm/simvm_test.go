// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package simvm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/minitrace/vm"
)

func workerDef() ClassDef {
	return ClassDef{
		Descriptor: "Lcom/example/Worker;",
		Location:   "/data/app/com.example/base.apk",
		SourceFile: "Worker.java",
		Methods: []MethodDef{
			{Name: "run", Signature: "()V", Insns: 4},
			{Name: "call", Signature: "(I)I", Insns: 9},
			{Name: "stop", Signature: "()V", Abstract: true},
		},
	}
}

type recordingCallback struct {
	loaded, prepared []string
}

func (cb *recordingCallback) ClassLoad(c vm.Class) {
	cb.loaded = append(cb.loaded, c.Descriptor())
}

func (cb *recordingCallback) ClassPrepare(_, c vm.Class) {
	cb.prepared = append(cb.prepared, c.Descriptor())
}

func TestLoadClass(t *testing.T) {
	r := New()
	cb := &recordingCallback{}
	r.AddClassLoadCallback(cb)

	c := r.LoadClass(workerDef())
	other := r.LoadClass(ClassDef{Descriptor: "Lcom/example/Other;"})

	assert.Equal(t, []string{"Lcom/example/Worker;", "Lcom/example/Other;"}, cb.loaded)
	assert.Equal(t, cb.loaded, cb.prepared)

	require.Len(t, c.DeclaredMethods(), 3)
	run := c.Method("run")
	require.NotNil(t, run)
	assert.Equal(t, "Lcom/example/Worker;", run.DeclaringClassDescriptor())
	assert.Equal(t, "Worker.java", run.DeclaringClassSourceFile())
	assert.True(t, run.HasCode())
	assert.False(t, c.Method("stop").HasCode())
	assert.Nil(t, c.Method("missing"))
	assert.NotEqual(t, run.ID(), c.Method("call").ID())
	assert.Nil(t, run.CoverageData())

	assert.False(t, run.IsMiniTraceable())
	c.SetMiniTraceable()
	assert.True(t, run.IsMiniTraceable())

	var visited []vm.Class
	r.VisitClasses(func(c vm.Class) bool {
		visited = append(visited, c)
		return true
	})
	assert.Equal(t, []vm.Class{c, other}, visited)

	visited = nil
	r.VisitClasses(func(c vm.Class) bool {
		visited = append(visited, c)
		return false
	})
	assert.Len(t, visited, 1)
}

func TestStubsAndExecute(t *testing.T) {
	r := New()
	c := r.LoadClass(workerDef())
	run := c.Method("run")
	call := c.Method("call")
	inst := r.Instrumented()

	// Without method tracing stubs are not installed.
	inst.InstallStubsForClass(c)
	assert.False(t, inst.Stubbed(c))
	require.NoError(t, r.Execute(run, 0))
	assert.Nil(t, run.CoverageData())

	inst.EnableMethodTracing("test")
	inst.InstallStubsForClass(c)
	assert.True(t, inst.Stubbed(c))
	assert.Equal(t, 1, inst.Installs())
	assert.Equal(t, []byte{0, 0, 0}, run.CoverageData())
	assert.Len(t, call.CoverageData(), 5)
	assert.Nil(t, c.Method("stop").CoverageData())

	require.NoError(t, r.Execute(run, 2, 3))
	assert.Equal(t, []byte{0, 1, 0}, run.CoverageData())
	require.NoError(t, r.Execute(call, 8))
	assert.Equal(t, byte(1), call.CoverageData()[4])

	require.ErrorIs(t, r.Execute(run, 4), ErrBadPC)
	require.ErrorIs(t, r.Execute(c.Method("stop")), ErrNoCode)

	// Reinstalling keeps the existing array.
	data := run.CoverageData()
	inst.InstallStubsForClass(c)
	assert.Same(t, &data[0], &run.CoverageData()[0])

	inst.DisableMethodTracing("test")
	assert.False(t, inst.Stubbed(c))
	require.NoError(t, r.Execute(run, 0))
	assert.Equal(t, []byte{0, 1, 0}, run.CoverageData())
}

func TestTracingKeysAndListeners(t *testing.T) {
	r := New()
	inst := r.Instrumented()
	c := r.LoadClass(workerDef())

	inst.EnableMethodTracing("b")
	inst.EnableMethodTracing("a")
	inst.InstallStubsForClass(c)
	assert.Equal(t, []string{"a", "b"}, inst.TracingKeys())

	// Stubs stay as long as any client traces.
	inst.DisableMethodTracing("a")
	assert.True(t, inst.Stubbed(c))
	inst.DisableMethodTracing("b")
	assert.False(t, inst.Stubbed(c))
	assert.Empty(t, inst.TracingKeys())

	var l nopListener
	inst.AddListener(l, vm.EventMethodEntered)
	inst.AddListener(l, vm.EventNone)
	assert.Equal(t, 1, inst.Listeners())
	inst.RemoveListener(l, vm.EventNone)
	assert.Equal(t, 0, inst.Listeners())
}

func TestSuspendAllBlocksMutators(t *testing.T) {
	r := New()
	resume := r.SuspendAll("test")
	assert.Equal(t, uint64(1), r.Suspensions())

	loaded := make(chan *Class)
	go func() {
		loaded <- r.LoadClass(workerDef())
	}()

	select {
	case <-loaded:
		t.Fatal("class loaded while threads are suspended")
	case <-time.After(50 * time.Millisecond):
	}

	resume()
	// Resuming twice is harmless.
	resume()
	require.NotNil(t, <-loaded)
}

func TestGCCriticalSection(t *testing.T) {
	r := New()
	end := r.StartGCCriticalSection("test")

	done := make(chan struct{})
	go func() {
		r.CollectGarbage()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("garbage collected inside critical section")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, uint64(0), r.GCRuns())

	end()
	end()
	<-done
	assert.Equal(t, uint64(1), r.GCRuns())
}

type nopListener struct{}

func (nopListener) MethodEntered(vm.Thread, vm.Object, vm.Method, uint32)          {}
func (nopListener) MethodExited(vm.Thread, vm.Object, vm.Method, uint32, vm.Value) {}
func (nopListener) MethodUnwind(vm.Thread, vm.Object, vm.Method, uint32)           {}
func (nopListener) DexPcMoved(vm.Thread, vm.Object, vm.Method, uint32)             {}
func (nopListener) FieldRead(vm.Thread, vm.Object, vm.Method, uint32, vm.Field)    {}
func (nopListener) ExceptionThrown(vm.Thread, vm.Object)                           {}
func (nopListener) ExceptionHandled(vm.Thread, vm.Object)                          {}
func (nopListener) Branch(vm.Thread, vm.Method, uint32, int32)                     {}
func (nopListener) WatchedFramePop(vm.Thread, vm.Frame)                            {}
func (nopListener) InvokeVirtualOrInterface(vm.Thread, vm.Object, vm.Method, uint32,
	vm.Method) {
}
func (nopListener) FieldWritten(vm.Thread, vm.Object, vm.Method, uint32, vm.Field,
	vm.Value) {
}
