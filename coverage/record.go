// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package coverage // import "go.opentelemetry.io/minitrace/coverage"

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineSize bounds a single dump line: the bitstring of the largest possible method
// body plus generous room for names.
const maxLineSize = 1<<16 + 1<<14

var (
	// ErrMalformedLine is returned for lines that are neither an envelope nor a
	// coverage line.
	ErrMalformedLine = errors.New("malformed coverage line")
)

// Record is one decoded line of a dump file.
type Record struct {
	Kind Kind

	// Envelope fields, set for KindStart and KindDump.
	PID    int
	Millis int64

	// Coverage line fields, set for KindMethod.
	MethodID   uint64
	Type       string
	Name       string
	Signature  string
	SourceFile string
	Insns      uint16
	// Bits has Insns entries, entry i is the flag of granule i.
	Bits []bool
}

// Covered returns the number of code units in executed granules.
func (r *Record) Covered() int {
	return CoveredUnits(r.Bits, r.Insns)
}

// ParseLine decodes a single line without its trailing newline.
func ParseLine(line string) (Record, error) {
	fields := strings.Split(line, string(fieldSeparator))
	switch {
	case len(fields) == 3 && (fields[0] == string(KindStart) || fields[0] == string(KindDump)):
		return parseEnvelope(fields)
	case len(fields) == 7:
		return parseMethod(fields)
	default:
		return Record{}, fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}
}

func parseEnvelope(fields []string) (Record, error) {
	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid pid %q", ErrMalformedLine, fields[1])
	}
	millis, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedLine, fields[2])
	}
	return Record{Kind: Kind(fields[0]), PID: pid, Millis: millis}, nil
}

func parseMethod(fields []string) (Record, error) {
	id, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid method id %q", ErrMalformedLine, fields[0])
	}
	insns, err := strconv.ParseUint(fields[5], 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid instruction count %q",
			ErrMalformedLine, fields[5])
	}
	bitstring := fields[6]
	if len(bitstring) != int(insns) {
		return Record{}, fmt.Errorf("%w: bitstring of length %d for insns %d",
			ErrMalformedLine, len(bitstring), insns)
	}
	bits := make([]bool, len(bitstring))
	for i := range len(bitstring) {
		switch bitstring[i] {
		case '0':
		case '1':
			bits[i] = true
		default:
			return Record{}, fmt.Errorf("%w: invalid bit %q", ErrMalformedLine, bitstring[i])
		}
	}
	return Record{
		Kind:       KindMethod,
		MethodID:   id,
		Type:       fields[1],
		Name:       fields[2],
		Signature:  fields[3],
		SourceFile: fields[4],
		Insns:      uint16(insns),
		Bits:       bits,
	}, nil
}

// Scanner reads the records of a dump file.
type Scanner struct {
	scanner *bufio.Scanner
	record  Record
	line    int
	err     error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Scanner{scanner: s}
}

// Scan advances to the next record. Empty lines are skipped. It returns false at the end
// of input or on the first error, which is then available from Err.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		s.line++
		text := s.scanner.Text()
		if text == "" {
			continue
		}
		record, err := ParseLine(text)
		if err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		s.record = record
		return true
	}
	s.err = s.scanner.Err()
	return false
}

// Record returns the record read by the last successful Scan.
func (s *Scanner) Record() Record {
	return s.record
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	return s.err
}
