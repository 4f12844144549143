// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package coverage // import "go.opentelemetry.io/minitrace/coverage"

import (
	"strconv"

	"go.opentelemetry.io/minitrace/vm"
)

// Kind identifies the type of a dump file line.
type Kind string

const (
	// KindStart is the envelope written when tracing starts.
	KindStart Kind = "Start"
	// KindDump is the envelope preceding the coverage lines of one dump.
	KindDump Kind = "Dump"
	// KindMethod is a coverage line of one method.
	KindMethod Kind = "Method"
)

const fieldSeparator = '\t'

// AppendEnvelope appends the envelope line "<kind>\t<pid>\t<millis>\n".
func AppendEnvelope(dst []byte, kind Kind, pid int, millis int64) []byte {
	dst = append(dst, kind...)
	dst = append(dst, fieldSeparator)
	dst = strconv.AppendInt(dst, int64(pid), 10)
	dst = append(dst, fieldSeparator)
	dst = strconv.AppendInt(dst, millis, 10)
	return append(dst, '\n')
}

// AppendMethod appends the coverage line of m and clears the reported granules. Nothing is
// appended if m is not eligible, has no code, has no coverage array or was not executed
// since its last dump. The returned bool tells whether a line was appended.
//
// The line has the form
//
//	<id>\t<declaring type>\t<name>\t<signature>\t<source file>\t<insns>\t<bits>
//
// where bits holds insns characters, character i being the flag of granule i.
func AppendMethod(dst []byte, m vm.Method, names *Descriptors) ([]byte, bool) {
	if m == nil || !m.IsMiniTraceable() || !m.HasCode() {
		return dst, false
	}
	data := m.CoverageData()
	if data == nil {
		return dst, false
	}
	insns := m.InsnsSize()
	if insns == 0 {
		return dst, false
	}
	if !Visited(data, insns) {
		return dst, false
	}

	dst = append(dst, "0x"...)
	dst = strconv.AppendUint(dst, m.ID(), 16)
	dst = append(dst, fieldSeparator)
	dst = append(dst, names.Pretty(m.DeclaringClassDescriptor())...)
	dst = append(dst, fieldSeparator)
	dst = append(dst, m.Name()...)
	dst = append(dst, fieldSeparator)
	dst = append(dst, m.Signature()...)
	dst = append(dst, fieldSeparator)
	dst = append(dst, m.DeclaringClassSourceFile()...)
	dst = append(dst, fieldSeparator)
	dst = strconv.AppendUint(dst, uint64(insns), 10)
	dst = append(dst, fieldSeparator)
	dst = appendBits(dst, data, insns)
	return append(dst, '\n'), true
}
