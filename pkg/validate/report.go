package validate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Report writes a human-readable run summary: one aligned line per check,
// counts, and the details of any failures.
func Report(w io.Writer, run *Run) error {
	fmt.Fprintf(w, "Validation report for %s (model %s)\n", run.BaseURL, run.Model)
	fmt.Fprintf(w, "Run %s, started %s, took %s\n\n",
		run.ID,
		run.StartedAt.Format(time.RFC3339),
		run.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range run.Results {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			res.Status,
			res.Name,
			res.Category,
			res.Duration.Round(time.Millisecond),
			res.Details)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d checks: %d passed, %d warned, %d failed, %d skipped\n",
		len(run.Results), run.Passed, run.Warned, run.Failed, run.Skipped)

	if run.Failed > 0 {
		fmt.Fprintln(w, "\nFailed checks:")
		for _, res := range run.Results {
			if res.Status == StatusFail {
				fmt.Fprintf(w, "  %s: %s\n", res.Name, res.Details)
			}
		}
	}
	return nil
}

// ReportString renders the report into a string, for transports that
// carry text instead of writing to a terminal.
func ReportString(run *Run) string {
	var sb strings.Builder
	Report(&sb, run)
	return sb.String()
}
