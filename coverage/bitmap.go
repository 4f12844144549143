// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package coverage implements the coverage bitmap codec: it turns the per-method
// execution flags maintained by the execution engine into the text lines of the
// coverage dump file, and parses those lines back for offline analysis.
//
// A coverage array holds one byte per granule of two 16-bit code units. A byte is zero
// until an instruction in its granule is executed. Dumping a method consumes its array:
// every byte reported as executed is reset to zero, so that the next dump only contains
// granules executed in the meantime.
//
// The execution engine writes the array without synchronization and dumping reads and
// clears it the same way. A granule flagged concurrently with a dump is either contained
// in that dump or in the next one. A dump is thus a best effort snapshot, which is all
// that a binary visited flag needs.
package coverage // import "go.opentelemetry.io/minitrace/coverage"

// unitsPerGranule is the number of code units covered by one coverage byte.
const unitsPerGranule = 2

// GranuleIndex returns the index of the coverage byte covering the code unit at dexPC.
func GranuleIndex(dexPC uint32) int {
	return int(dexPC / unitsPerGranule)
}

// GranuleCount returns the number of coverage bytes to allocate for a method body of
// insns code units. Granules 0 to insns/2 are tracked, both bounds inclusive.
func GranuleCount(insns uint16) int {
	return int(insns/unitsPerGranule) + 1
}

// scanLength returns the number of bytes inspected to decide whether a method was
// executed at all. The scan covers insns/2+1 words of four bytes, which always includes
// every byte that ends up in the bitstring.
func scanLength(insns uint16) int {
	return 4 * (int(insns/unitsPerGranule) + 1)
}

// Visited reports whether any granule of a method with insns code units was executed.
// The first byte doubles as a fast path flag; only if it is zero the rest of the array
// is scanned.
//
//go:norace
func Visited(data []byte, insns uint16) bool {
	if len(data) == 0 || insns == 0 {
		return false
	}
	if data[0] != 0 {
		return true
	}
	// The scan may reach past the insns bytes appendBits reports and clears.
	n := min(len(data), scanLength(insns))
	for _, b := range data[1:n] {
		if b != 0 {
			return true
		}
	}
	return false
}

// appendBits appends one '0' or '1' character for each of the first insns bytes of
// data and clears every byte reported as '1'. Character i is the flag of granule i, so
// characters past GranuleCount(insns) are padding. Indices past the end of data are
// reported as '0'.
//
//go:norace
func appendBits(dst, data []byte, insns uint16) []byte {
	for i := range int(insns) {
		if i < len(data) && data[i] != 0 {
			dst = append(dst, '1')
			data[i] = 0
		} else {
			dst = append(dst, '0')
		}
	}
	return dst
}

// CoveredUnits returns the number of the insns code units of a method whose granule is
// set in bits, where bits[i] is the flag of granule i.
func CoveredUnits(bits []bool, insns uint16) int {
	n := 0
	for pc := range uint32(insns) {
		if g := GranuleIndex(pc); g < len(bits) && bits[g] {
			n++
		}
	}
	return n
}
