package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/codescan-io/codescan/internal/scanner"
)

func PrintTable(w io.Writer, result scanner.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CodeScan Results")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Exit Code:  %d\n", result.Code)
	if !result.StartTime.IsZero() {
		fmt.Fprintf(w, "Duration:   %.1fs\n", result.Duration().Seconds())
	}
	if result.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", result.Error)
	}

	qg := result.QualityGate
	if qg == nil {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	if qg.Passed() {
		fmt.Fprintln(w, "Quality Gate passed")
	} else {
		fmt.Fprintln(w, "Quality Gate failed")
	}

	if len(qg.Conditions) > 0 {
		fmt.Fprintln(w)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Status", "Metric", "Comparator", "Threshold", "Actual"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)

		for _, c := range qg.Conditions {
			table.Append([]string{c.Status, c.MetricKey, c.Comparator, c.ErrorThreshold, c.ActualValue})
		}

		table.Render()
	}

	fmt.Fprintln(w)
}
