// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package simvm // import "go.opentelemetry.io/minitrace/vm/simvm"

import (
	"sync/atomic"

	"go.opentelemetry.io/minitrace/vm"
)

// ClassDef describes a class to load into the Runtime.
type ClassDef struct {
	Descriptor string
	Location   string
	SourceFile string

	Array     bool
	Interface bool
	Primitive bool
	Proxy     bool

	Methods []MethodDef
}

// MethodDef describes a method declared by a ClassDef.
type MethodDef struct {
	Name      string
	Signature string
	// Insns is the size of the method body in code units.
	Insns uint16
	// Abstract methods have no code.
	Abstract bool
}

// Class is a loaded class.
type Class struct {
	def       ClassDef
	methods   []vm.Method
	traceable atomic.Bool
}

// Compile time check for interface adherence
var _ vm.Class = &Class{}

func (c *Class) Descriptor() string           { return c.def.Descriptor }
func (c *Class) IsArray() bool                { return c.def.Array }
func (c *Class) IsInterface() bool            { return c.def.Interface }
func (c *Class) IsPrimitive() bool            { return c.def.Primitive }
func (c *Class) IsProxy() bool                { return c.def.Proxy }
func (c *Class) Location() string             { return c.def.Location }
func (c *Class) DeclaredMethods() []vm.Method { return c.methods }
func (c *Class) IsMiniTraceable() bool        { return c.traceable.Load() }
func (c *Class) SetMiniTraceable()            { c.traceable.Store(true) }

// Method returns the declared method called name, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.methods {
		if m.Name() == name {
			return m.(*Method)
		}
	}
	return nil
}

// Method is a method of a loaded class.
type Method struct {
	id    uint64
	class *Class
	def   MethodDef

	// data is the coverage array. It is allocated on first stub installation and
	// kept for the lifetime of the method.
	data atomic.Pointer[[]byte]
}

// Compile time check for interface adherence
var _ vm.Method = &Method{}

func (m *Method) ID() uint64                       { return m.id }
func (m *Method) Name() string                     { return m.def.Name }
func (m *Method) Signature() string                { return m.def.Signature }
func (m *Method) DeclaringClassDescriptor() string { return m.class.def.Descriptor }
func (m *Method) DeclaringClassSourceFile() string { return m.class.def.SourceFile }
func (m *Method) HasCode() bool                    { return !m.def.Abstract }
func (m *Method) InsnsSize() uint16                { return m.def.Insns }
func (m *Method) IsMiniTraceable() bool            { return m.class.IsMiniTraceable() }

func (m *Method) CoverageData() []byte {
	if p := m.data.Load(); p != nil {
		return *p
	}
	return nil
}

// allocate creates the coverage array unless it exists already.
func (m *Method) allocate(size int) {
	data := make([]byte, size)
	m.data.CompareAndSwap(nil, &data)
}

// markGranule flags the granule at index. The execution engine and the dump race on the
// array, which a binary flag tolerates.
//
//go:norace
func markGranule(data []byte, index int) {
	if index < len(data) {
		data[index] = 1
	}
}
