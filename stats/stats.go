// Package stats renders the post-transfer report output_stats() prints
// in the original source: a line-level diff against the source file and
// the six "# <name> --> <value>" summary lines.
package stats

import (
	"fmt"
	"strings"
)

// DiffLine is one line that differs between the received and source
// files, numbered the way `diff -y --suppress-common-lines` would.
type DiffLine struct {
	Line     int
	Received string
	Source   string
}

// Diff compares received against source line by line and returns every
// line where they disagree, including a trailing length mismatch.
func Diff(received, source []string) []DiffLine {
	var diffs []DiffLine
	n := len(received)
	if len(source) > n {
		n = len(source)
	}
	for i := 0; i < n; i++ {
		var r, s string
		if i < len(received) {
			r = received[i]
		}
		if i < len(source) {
			s = source[i]
		}
		if r != s {
			diffs = append(diffs, DiffLine{Line: i + 1, Received: r, Source: s})
		}
	}
	return diffs
}

// SplitLines splits file content into lines the way readlines() does:
// every line keeps its trailing newline except possibly the last.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Report holds everything output_stats() prints, beyond the diff itself.
type Report struct {
	TotalEcnPackets      int
	TotalServerPackets   int
	TotalRounds          int
	AdditionalSrvPackets int
	Duration             float64 // seconds
}

// Format renders the report as the six "# <name> --> <value>" lines,
// with the diff listing (when there is one) printed right after the
// first of them, matching output_stats()'s output shape line for line.
func Format(diffs []DiffLine, r Report) string {
	var b strings.Builder
	b.WriteString("\nStats for file transfer\n")
	if len(diffs) == 0 {
		b.WriteString("# different lines in client file --> 0\n")
	} else {
		fmt.Fprintf(&b, "# different lines in client file --> %d\n", len(diffs))
		b.WriteString("diff between client (left) and server (right) files:\n")
		for _, d := range diffs {
			fmt.Fprintf(&b, "%d: %q | %q\n", d.Line, d.Received, d.Source)
		}
	}
	fmt.Fprintf(&b, "# server-triggered ECN packets --> %d\n", r.TotalEcnPackets)
	fmt.Fprintf(&b, "# total server packets --> %d\n", r.TotalServerPackets)
	fmt.Fprintf(&b, "# RTTs to complete flow --> %d\n", r.TotalRounds)
	fmt.Fprintf(&b, "# server packets after the file transfer completed --> %d\n", r.AdditionalSrvPackets)
	fmt.Fprintf(&b, "# Total time to complete transfer --> %f seconds\n", r.Duration)
	return b.String()
}
