package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI color sequences for usage ratios.
const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

// New creates a new formatter based on configuration.
//
// Parameters:
//   - cfg: Formatter configuration
//
// Returns a configured Formatter.
func New(cfg Config) Formatter {
	// Set defaults.
	if cfg.Format == "" {
		cfg.Format = FormatSimple
	}
	if cfg.Width == 0 {
		cfg.Width = terminalWidth()
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatTable:
		return &tableFormatter{config: cfg}
	case FormatSimple:
		fallthrough
	default:
		return &simpleFormatter{config: cfg}
	}
}

// terminalWidth returns the width of the attached terminal, or 80 when
// output is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 80
	}

	return width
}

// ratioColor picks the color for a usage ratio.
func ratioColor(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return colorRed
	case ratio >= 0.7:
		return colorYellow
	default:
		return colorGreen
	}
}

// colorize wraps s in the ratio's color when colors are enabled.
func (c Config) colorize(s string, ratio float64) string {
	if !c.ColorEnabled {
		return s
	}
	return ratioColor(ratio) + s + colorReset
}

// bar renders a progress bar of the given width. Ratios above 1 fill
// the bar completely.
func bar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}

	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Convert to string and add commas.
	s := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatFloat formats a float with specified precision.
func formatFloat(f float64, precision int) string {
	format := fmt.Sprintf("%%.%df", precision)
	return fmt.Sprintf(format, f)
}

// formatPercent formats a ratio as a percentage.
func formatPercent(ratio float64) string {
	return formatFloat(ratio*100, 1) + "%"
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}
