package replay

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteReport prints the detections table followed by a summary table.
func WriteReport(w io.Writer, res Result) {
	if len(res.Signals) == 0 {
		fmt.Fprintln(w, "No detections.")
	} else {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Detected", "Group", "Instrument", "Direction", "Magnitude", "Rate", "Valid until"})
		table.SetAutoWrapText(false)
		for _, s := range res.Signals {
			table.Append([]string{
				s.DetectedAt.Format("2006-01-02 15:04:05.000"),
				s.GroupID.String()[:8],
				s.InstrumentID,
				strings.ToUpper(string(s.Direction)),
				strconv.FormatFloat(s.Magnitude, 'f', -1, 64),
				strconv.FormatFloat(s.Rate, 'f', 6, 64),
				s.ExpiresAt().Format(time.TimeOnly),
			})
		}
		table.Render()
	}

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.SetAlignment(tablewriter.ALIGN_LEFT)
	summary.AppendBulk([][]string{
		{"Ticks", strconv.Itoa(res.Ticks)},
		{"Span", res.Last.Sub(res.First).String()},
		{"Rejected", rejectedBreakdown(res)},
		{"Untracked", strconv.Itoa(res.Ignored)},
		{"Rate updates", strconv.Itoa(res.RateUpdates)},
		{"Rate range", fmt.Sprintf("%.6f - %.6f", res.MinRate, res.MaxRate)},
		{"Detections", strconv.Itoa(res.Detections())},
		{"Signals", strconv.Itoa(len(res.Signals))},
	})
	summary.Render()
}

func rejectedBreakdown(res Result) string {
	total := res.RejectedTotal()
	if total == 0 {
		return "0"
	}
	stages := make([]string, 0, len(res.Rejected))
	for stage := range res.Rejected {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	parts := make([]string, 0, len(stages))
	for _, stage := range stages {
		parts = append(parts, fmt.Sprintf("%s=%d", stage, res.Rejected[stage]))
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}
