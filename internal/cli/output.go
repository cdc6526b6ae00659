package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/copyleftdev/uiprobe/internal/probe"
)

// writeReport prints a run report as indented JSON or as a short text
// summary.
func writeReport(w io.Writer, format string, report *probe.Report) error {
	if format == "json" {
		return writeJSON(w, report)
	}

	verdict := "PASSED"
	if !report.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(w, "Run %s against %s: %s\n", report.ID, report.TargetURL, verdict)
	for _, s := range report.Stages {
		line := fmt.Sprintf("  %-22s %-9s %s", s.Stage, s.Outcome, s.Duration.Round(1e6))
		if s.UsedFallback {
			line += " (fallback locator)"
		}
		if s.Evidence != "" {
			line += " evidence=" + s.Evidence
		}
		fmt.Fprintln(w, line)
		if s.Detail != "" {
			fmt.Fprintf(w, "    %s\n", s.Detail)
		}
	}
	writeAssertions(w, report.Assertions)
	if len(report.Evidence) > 0 {
		fmt.Fprintln(w, "Evidence:")
		for _, path := range report.Evidence {
			fmt.Fprintf(w, "  %s\n", path)
		}
	}
	if report.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", report.Error)
	}
	return nil
}

func writeAssertions(w io.Writer, results []probe.AssertionResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "Assertions:")
	for _, r := range results {
		fmt.Fprintf(w, "  %d. %-26s %s\n", r.Index, r.Name, r.Status)
		if r.Mismatch != nil {
			fmt.Fprintf(w, "     expected %s on %s, got %s\n", r.Mismatch.Expected, r.Mismatch.Selector, r.Mismatch.Actual)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
