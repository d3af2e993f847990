// Package display provides output formatting for quota reports.
//
// It supports multiple output formats (simple text, table, JSON) and
// renders usage ratios as progress bars with optional ANSI colors.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/quota"
)

// Format represents an output format.
type Format string

const (
	// FormatSimple displays one line per quota indicator.
	FormatSimple Format = "simple"

	// FormatTable displays the report in formatted tables.
	FormatTable Format = "table"

	// FormatJSON displays the report as JSON.
	FormatJSON Format = "json"
)

// Formatter formats and displays quota reports.
type Formatter interface {
	// FormatReport formats the four quota indicators.
	//
	// Parameters:
	//   - w: Output writer
	//   - report: Report to format
	//
	// Returns error if formatting fails.
	FormatReport(w io.Writer, report quota.Report) error

	// FormatBlocks formats the billing-window sequence.
	//
	// Parameters:
	//   - w: Output writer
	//   - blks: Window sequence, oldest first
	//   - now: Reference instant for burn rate and time remaining
	//
	// Returns error if formatting fails.
	FormatBlocks(w io.Writer, blks []blocks.Block, now time.Time) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatSimple.
	Format Format

	// ColorEnabled enables ANSI colors for usage ratios.
	ColorEnabled bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// Width is the render width in characters. Zero means detect the
	// terminal width, falling back to 80.
	Width int
}
