package display

import (
	"fmt"
	"io"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/quota"
)

// simpleFormatter formats output as simple text, one line per
// indicator.
type simpleFormatter struct {
	config Config
}

// FormatReport implements Formatter.FormatReport.
func (f *simpleFormatter) FormatReport(w io.Writer, report quota.Report) error {
	barWidth := 20
	if f.config.Compact {
		barWidth = 10
	}

	for _, r := range report.Results() {
		line := fmt.Sprintf("%-16s %s %s %s",
			resultTitle(r.Label),
			bar(r.Ratio, barWidth),
			f.config.colorize(formatPercent(r.Ratio), r.Ratio),
			usedOverLimit(r))

		if !r.ResetAt.IsZero() {
			line += fmt.Sprintf(" (resets %s)", r.ResetAt.Local().Format("Jan 2 15:04"))
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *simpleFormatter) FormatBlocks(w io.Writer, blks []blocks.Block, now time.Time) error {
	for _, b := range blks {
		if b.IsGap {
			if _, err := fmt.Fprintf(w, "gap    %s - %s\n",
				b.StartTime.Local().Format("Jan 2 15:04"),
				b.EndTime.Local().Format("Jan 2 15:04")); err != nil {
				return err
			}
			continue
		}

		state := "done"
		if b.IsActive {
			state = "active"
		}

		line := fmt.Sprintf("%-6s %s  %s tokens  $%s",
			state,
			b.StartTime.Local().Format("Jan 2 15:04"),
			formatNumber(b.Tokens.Total()),
			formatFloat(b.CostUSD, 2))

		if b.IsActive {
			rate := b.BurnRate(now)
			line += fmt.Sprintf("  %s tok/min", formatFloat(rate.TokensPerMinute, 1))
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// resultTitle maps a result label to its display name.
func resultTitle(label string) string {
	switch label {
	case quota.LabelSession:
		return "Session"
	case quota.LabelWeeklyAll:
		return "Weekly (all)"
	case quota.LabelWeeklyFiltered:
		return "Weekly (filter)"
	case quota.LabelCost:
		return "Monthly cost"
	default:
		return label
	}
}

// usedOverLimit renders "used/limit" with cost results in dollars.
func usedOverLimit(r quota.Result) string {
	if r.Label == quota.LabelCost {
		return fmt.Sprintf("$%s/$%s", formatFloat(r.Used, 2), formatFloat(r.Limit, 2))
	}
	return fmt.Sprintf("%s/%s", formatNumber(int(r.Used)), formatNumber(int(r.Limit)))
}
