package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/quota"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatReport implements Formatter.FormatReport.
func (f *tableFormatter) FormatReport(w io.Writer, report quota.Report) error {
	if err := writeHeader(w, "Quota Usage", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Quota", "Used", "Limit", "Usage", "Resets"}

	rows := make([][]string, 0, 4)
	for _, r := range report.Results() {
		used := formatNumber(int(r.Used))
		limit := formatNumber(int(r.Limit))
		if r.Label == quota.LabelCost {
			used = "$" + formatFloat(r.Used, 2)
			limit = "$" + formatFloat(r.Limit, 2)
		}

		resets := "-"
		if !r.ResetAt.IsZero() {
			resets = r.ResetAt.Local().Format("2006-01-02 15:04")
		}

		rows = append(rows, []string{
			resultTitle(r.Label),
			used,
			limit,
			f.config.colorize(formatPercent(r.Ratio), r.Ratio),
			resets,
		})
	}

	return f.writeTable(w, header, rows)
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *tableFormatter) FormatBlocks(w io.Writer, blks []blocks.Block, now time.Time) error {
	if err := writeHeader(w, "Billing Windows", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Start", "End", "State", "Entries", "Tokens", "Cost", "Models", "Rate"}

	rows := make([][]string, 0, len(blks))
	for _, b := range blks {
		state := "done"
		switch {
		case b.IsGap:
			state = "gap"
		case b.IsActive:
			state = "active"
		}

		rate := "-"
		if b.IsActive {
			rate = formatFloat(b.BurnRate(now).TokensPerMinute, 1) + " tok/min"
		}

		rows = append(rows, []string{
			b.StartTime.Local().Format("2006-01-02 15:04"),
			b.EndTime.Local().Format("2006-01-02 15:04"),
			state,
			formatNumber(len(b.Entries)),
			formatNumber(b.Tokens.Total()),
			"$" + formatFloat(b.CostUSD, 2),
			strings.Join(b.Models, ","),
			rate,
		})
	}

	return f.writeTable(w, header, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	for i, cell := range cells {
		if i > 0 {
			gap := "  "
			if f.config.Compact {
				gap = " "
			}
			if _, err := fmt.Fprint(w, gap); err != nil {
				return err
			}
		}

		pad := widths[i] - visibleLen(cell)
		if pad < 0 {
			pad = 0
		}
		if _, err := fmt.Fprint(w, cell+strings.Repeat(" ", pad)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

// visibleLen is the cell length excluding ANSI color sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\033':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
