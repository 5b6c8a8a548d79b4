// internal/adapters/output/table.go
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"mira/internal/core/domain"
)

// WriteTable imprime el reporte como tabla legible en terminal.
func WriteTable(w io.Writer, report *domain.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "\n=== mira Run Report ===\n")
	fmt.Fprintf(tw, "Run:\t%s\n", report.RunID)
	fmt.Fprintf(tw, "Duration:\t%s\n", report.Duration)
	fmt.Fprintf(tw, "Records:\t%d\n", len(report.Records))
	fmt.Fprintf(tw, "Units:\t%d total, %d ok, %d failed, %d cancelled\n\n",
		report.Stats.TotalUnits, report.Stats.Succeeded, report.Stats.Failed, report.Stats.Cancelled)

	if len(report.Records) > 0 {
		fmt.Fprintln(tw, "TARGET\tFIELD\tVALUE\tMODULE")
		fmt.Fprintln(tw, "------\t-----\t-----\t------")

		for _, record := range report.Records {
			fields := record.FieldNames()
			if len(fields) == 0 {
				fmt.Fprintf(tw, "%s\t-\t(%s)\t-\n", record.Target.Identity, record.Status)
				continue
			}
			for _, field := range fields {
				for _, fv := range record.Fields[field] {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						record.Target.Identity,
						field,
						renderValue(fv.Value),
						fv.Module,
					)
				}
			}
		}
	} else {
		fmt.Fprintln(tw, "No records produced.")
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(report.Skipped))
		for i, warning := range report.Skipped {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, warning.Input, warning.Message)
		}
	}

	failures := collectFailures(report)
	if len(failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d):\n", len(failures))
		for i, f := range failures {
			fmt.Fprintf(w, "  %d. [%s] %s: %s (%s, %d attempts)\n",
				i+1, f.target, f.failure.Module, f.failure.Message, f.failure.Class, f.failure.Attempts)
		}
	}

	fmt.Fprintln(w)
	return nil
}

type targetFailure struct {
	target  string
	failure domain.UnitFailure
}

func collectFailures(report *domain.Report) []targetFailure {
	var out []targetFailure
	for _, record := range report.Records {
		for _, f := range record.Failures {
			out = append(out, targetFailure{target: record.Target.Identity, failure: f})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].target < out[j].target })
	return out
}

// renderValue aplana valores compuestos para la celda de la tabla.
func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
