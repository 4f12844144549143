// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package report analyzes coverage files offline. It merges the coverage lines of any
// number of dumps, processes and files into a per method union of executed granules.
package report // import "go.opentelemetry.io/minitrace/report"

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/minitrace/coverage"
)

// ZstdSuffix marks compressed coverage files.
const ZstdSuffix = ".zst"

// cancelCheckInterval is the number of records read between two context checks.
const cancelCheckInterval = 1024

// MethodCoverage is the merged coverage of one method.
type MethodCoverage struct {
	Type       string
	Name       string
	Signature  string
	SourceFile string
	Insns      uint16
	// Bits holds the flag of granule i at index i. It is set if the granule was
	// reported as executed by any merged line.
	Bits []bool
	// Lines is the number of merged coverage lines.
	Lines int
}

// Covered returns the number of code units in executed granules.
func (m *MethodCoverage) Covered() int {
	return coverage.CoveredUnits(m.Bits, m.Insns)
}

// Ratio returns the fraction of code units in executed granules.
func (m *MethodCoverage) Ratio() float64 {
	if m.Insns == 0 {
		return 0
	}
	return float64(m.Covered()) / float64(m.Insns)
}

func (m *MethodCoverage) merge(bits []bool) {
	if len(bits) > len(m.Bits) {
		m.Bits = append(m.Bits, make([]bool, len(bits)-len(m.Bits))...)
	}
	for i, b := range bits {
		m.Bits[i] = m.Bits[i] || b
	}
}

// methodKey identifies a method independent of the process that reported it. Method
// IDs are only unique within one process.
func methodKey(typ, name, signature string) xxh3.Uint128 {
	return xxh3.HashString128(typ + "\x00" + name + "\x00" + signature)
}

// Summary accumulates coverage records.
type Summary struct {
	// Starts and Dumps count the envelopes.
	Starts int
	Dumps  int

	processes map[int]struct{}
	methods   map[xxh3.Uint128]*MethodCoverage
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		processes: make(map[int]struct{}),
		methods:   make(map[xxh3.Uint128]*MethodCoverage),
	}
}

// Add accumulates rec.
func (s *Summary) Add(rec *coverage.Record) {
	switch rec.Kind {
	case coverage.KindStart:
		s.Starts++
		s.processes[rec.PID] = struct{}{}
	case coverage.KindDump:
		s.Dumps++
		s.processes[rec.PID] = struct{}{}
	case coverage.KindMethod:
		s.addMethod(&MethodCoverage{
			Type:       rec.Type,
			Name:       rec.Name,
			Signature:  rec.Signature,
			SourceFile: rec.SourceFile,
			Insns:      rec.Insns,
			Bits:       rec.Bits,
			Lines:      1,
		})
	}
}

func (s *Summary) addMethod(mc *MethodCoverage) {
	key := methodKey(mc.Type, mc.Name, mc.Signature)
	m, ok := s.methods[key]
	if !ok {
		s.methods[key] = &MethodCoverage{
			Type:       mc.Type,
			Name:       mc.Name,
			Signature:  mc.Signature,
			SourceFile: mc.SourceFile,
			Insns:      mc.Insns,
			Bits:       slices.Clone(mc.Bits),
			Lines:      mc.Lines,
		}
		return
	}
	m.Insns = max(m.Insns, mc.Insns)
	if m.SourceFile == "" {
		m.SourceFile = mc.SourceFile
	}
	m.Lines += mc.Lines
	m.merge(mc.Bits)
}

// Merge accumulates all records of other.
func (s *Summary) Merge(other *Summary) {
	s.Starts += other.Starts
	s.Dumps += other.Dumps
	for pid := range other.processes {
		s.processes[pid] = struct{}{}
	}
	for _, m := range other.methods {
		s.addMethod(m)
	}
}

// Processes returns the number of distinct process IDs seen in envelopes.
func (s *Summary) Processes() int {
	return len(s.processes)
}

// Methods returns the merged methods sorted by type, name and signature.
func (s *Summary) Methods() []*MethodCoverage {
	out := make([]*MethodCoverage, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *MethodCoverage) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Signature, b.Signature))
	})
	return out
}

// Read accumulates all records of a coverage file.
func Read(ctx context.Context, r io.Reader) (*Summary, error) {
	s := NewSummary()
	sc := coverage.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := sc.Record()
		s.Add(&rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and merges the coverage files at paths in parallel. Files ending in
// ZstdSuffix are decompressed.
func Load(ctx context.Context, paths ...string) (*Summary, error) {
	summaries := make([]*Summary, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			s, err := loadFile(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := NewSummary()
	for _, s := range summaries {
		total.Merge(s)
	}
	log.Debugf("Loaded %d coverage files with %d methods", len(paths), len(total.methods))
	return total, nil
}

func loadFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ZstdSuffix) {
		return Read(ctx, f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return Read(ctx, dec)
}

// Archive compresses the coverage file read from src into dst.
func Archive(dst io.Writer, src io.Reader) error {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if _, err = io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}
