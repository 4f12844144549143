// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package report // import "go.opentelemetry.io/minitrace/report"

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders s as a human readable table.
func WriteText(w io.Writer, s *Summary) error {
	methods := s.Methods()
	if _, err := fmt.Fprintf(w, "processes: %d  starts: %d  dumps: %d  methods: %d\n",
		s.Processes(), s.Starts, s.Dumps, len(methods)); err != nil {
		return err
	}
	if len(methods) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tMETHOD\tSOURCE\tCOVERED\tINSNS\tRATIO")
	for _, m := range methods {
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%d\t%d\t%.1f%%\n",
			m.Type, m.Name, m.Signature, m.SourceFile, m.Covered(), m.Insns,
			100*m.Ratio())
	}
	return tw.Flush()
}
