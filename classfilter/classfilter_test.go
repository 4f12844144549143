// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/minitrace/vm"
)

type fakeClass struct {
	array, iface, primitive, proxy bool
	location                       string
}

func (c *fakeClass) Descriptor() string           { return "LFake;" }
func (c *fakeClass) IsArray() bool                { return c.array }
func (c *fakeClass) IsInterface() bool            { return c.iface }
func (c *fakeClass) IsPrimitive() bool            { return c.primitive }
func (c *fakeClass) IsProxy() bool                { return c.proxy }
func (c *fakeClass) Location() string             { return c.location }
func (c *fakeClass) DeclaredMethods() []vm.Method { return nil }
func (c *fakeClass) IsMiniTraceable() bool        { return false }
func (c *fakeClass) SetMiniTraceable()            {}

func TestClassify(t *testing.T) {
	const app = "/data/app/com.example/base.apk"

	tests := map[string]struct {
		class   fakeClass
		verdict Verdict
	}{
		"application class": {fakeClass{location: app}, Eligible},
		"array":             {fakeClass{array: true, location: app}, ExcludedArray},
		"interface":         {fakeClass{iface: true, location: app}, ExcludedInterface},
		"primitive":         {fakeClass{primitive: true}, ExcludedPrimitive},
		"proxy":             {fakeClass{proxy: true, location: app}, ExcludedProxy},
		"framework": {fakeClass{location: "/system/framework/framework.jar"},
			ExcludedSystem},
		"framework lookalike": {fakeClass{location: "/system/frameworks/x.jar"}, Eligible},
		"kind before location": {fakeClass{iface: true,
			location: "/system/framework/core.jar"}, ExcludedInterface},
	}

	f := New(DefaultSystemPrefix)
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.verdict, f.Classify(&tc.class))
			assert.Equal(t, tc.verdict == Eligible, f.Eligible(&tc.class))
		})
	}
}

func TestEmptyPrefix(t *testing.T) {
	f := New("")
	assert.True(t, f.Eligible(&fakeClass{location: "/system/framework/core.jar"}))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "eligible", Eligible.String())
	assert.Equal(t, "system", ExcludedSystem.String())
	assert.Equal(t, "unknown", Verdict(200).String())
}
