package replay

import (
	"fmt"
	"io"
	"strings"
)

// #region output

// WriteComparison prints a per-cycle table of expected versus replayed
// outcomes followed by a summary line, and returns how many cycles diverge.
func WriteComparison(w io.Writer, results []ReplayResult, expected []FixtureExpectedResult) int {
	fmt.Fprintf(w, "%-10s| %-10s| %-10s| %-40s| %s\n", "Cycle", "Expected", "Replayed", "Reasons", "Match")
	fmt.Fprintf(w, "%s+%s+%s+%s+%s\n",
		strings.Repeat("-", 10), strings.Repeat("-", 11), strings.Repeat("-", 11), strings.Repeat("-", 41), "------")

	mismatched := make(map[int]bool)
	for _, m := range Compare(results, expected) {
		mismatched[m.Index] = true
	}

	for i, e := range expected {
		id, got, reasons := e.CycleID, "-", ""
		if i < len(results) {
			id = results[i].CycleID
			got = results[i].Decision.Level.String()
			reasons = results[i].Decision.ReasonString()
		}
		match := "OK"
		if mismatched[i] {
			match = "DIFF"
		}
		fmt.Fprintf(w, "%-10s| %-10s| %-10s| %-40s| %s\n", id, strings.ToUpper(e.Level), got, reasons, match)
	}

	s := Summarize(results)
	diverge := len(mismatched)
	fmt.Fprintf(w, "\nSummary: %d cycles, %d checked, %d match, %d diverge (peak %s)\n",
		s.TotalCycles, len(expected), len(expected)-diverge, diverge, s.Peak)
	return diverge
}

// #endregion output
