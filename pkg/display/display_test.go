package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/quota"
)

func sampleReport() quota.Report {
	reset := time.Date(2026, 1, 19, 4, 0, 0, 0, time.UTC)
	return quota.Report{
		Session:        quota.NewResult(quota.LabelSession, 12_000, 88_000, reset),
		WeeklyAll:      quota.NewResult(quota.LabelWeeklyAll, 190_000, 300_000, reset),
		WeeklyFiltered: quota.NewResult(quota.LabelWeeklyFiltered, 50_000, 1_000_000, reset),
		Cost:           quota.NewResult(quota.LabelCost, 23.5, 50, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		GeneratedAt:    time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func sampleBlocks() []blocks.Block {
	start := time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC)
	return []blocks.Block{
		{
			ID:        start.Format(time.RFC3339),
			StartTime: start,
			EndTime:   start.Add(5 * time.Hour),
			Entries:   make([]parser.UsageRecord, 12),
			Tokens:    blocks.TokenTotals{Input: 500, Output: 6000},
			CostUSD:   1.25,
			Models:    []string{"claude-sonnet-4"},
		},
		{
			ID:        "gap-" + start.Add(5*time.Hour).Format(time.RFC3339),
			StartTime: start.Add(5 * time.Hour),
			EndTime:   start.Add(10 * time.Hour),
			IsGap:     true,
		},
		{
			ID:        start.Add(10 * time.Hour).Format(time.RFC3339),
			StartTime: start.Add(10 * time.Hour),
			EndTime:   start.Add(15 * time.Hour),
			IsActive:  true,
			Entries:   make([]parser.UsageRecord, 3),
			Tokens:    blocks.TokenTotals{Output: 1200},
			CostUSD:   0.4,
			Models:    []string{"claude-sonnet-4"},
		},
	}
}

func TestNewDefaults(t *testing.T) {
	if _, ok := New(Config{Width: 80}).(*simpleFormatter); !ok {
		t.Error("New() default format should be simple")
	}
	if _, ok := New(Config{Format: FormatTable, Width: 80}).(*tableFormatter); !ok {
		t.Error("New(table) should return table formatter")
	}
	if _, ok := New(Config{Format: FormatJSON, Width: 80}).(*jsonFormatter); !ok {
		t.Error("New(json) should return json formatter")
	}
}

func TestSimpleFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple, Width: 80})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()

	for _, want := range []string{
		"Session", "Weekly (all)", "Weekly (filter)", "Monthly cost",
		"63.3%",          // weekly-all ratio
		"$23.50/$50.00",  // cost used/limit
		"12,000/88,000",  // session used/limit
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("simple output has %d lines, want 4", lines)
	}
}

func TestSimpleFormatReportColor(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple, ColorEnabled: true, Width: 80})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\033[") {
		t.Error("colored output contains no ANSI sequences")
	}
}

func TestSimpleFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple, Width: 80})

	now := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)
	if err := f.FormatBlocks(&buf, sampleBlocks(), now); err != nil {
		t.Fatalf("FormatBlocks() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"done", "gap", "active", "tok/min", "6,500"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 80})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Quota Usage", "Used", "Limit", "Resets", "190,000", "300,000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 80})

	now := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)
	if err := f.FormatBlocks(&buf, sampleBlocks(), now); err != nil {
		t.Fatalf("FormatBlocks() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Billing Windows", "active", "gap", "claude-sonnet-4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableColorAlignment(t *testing.T) {
	// Colored cells must not skew column widths.
	var plain, colored bytes.Buffer

	if err := New(Config{Format: FormatTable, Width: 80}).FormatReport(&plain, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}
	if err := New(Config{Format: FormatTable, ColorEnabled: true, Width: 80}).FormatReport(&colored, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	stripped := stripANSI(colored.String())
	if stripped != plain.String() {
		t.Errorf("colored table (ANSI stripped) differs from plain table:\n%q\nvs\n%q", stripped, plain.String())
	}
}

func TestJSONFormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON, Width: 80})

	if err := f.FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	weekly, ok := decoded["weekly_all"].(map[string]interface{})
	if !ok {
		t.Fatal("weekly_all missing from JSON output")
	}
	if weekly["used"].(float64) != 190_000 {
		t.Errorf("weekly_all.used = %v, want 190000", weekly["used"])
	}
}

func TestJSONFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON, Width: 80})

	now := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)
	if err := f.FormatBlocks(&buf, sampleBlocks(), now); err != nil {
		t.Fatalf("FormatBlocks() error = %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(decoded) != 3 {
		t.Fatalf("decoded %d blocks, want 3", len(decoded))
	}
	if decoded[1]["is_gap"] != true {
		t.Error("second block should be a gap")
	}
	if decoded[2]["is_active"] != true {
		t.Error("third block should be active")
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		name   string
		ratio  float64
		width  int
		filled int
	}{
		{"empty", 0, 10, 0},
		{"half", 0.5, 10, 5},
		{"full", 1.0, 10, 10},
		{"over-quota clamps", 1.5, 10, 10},
		{"negative clamps", -0.5, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bar(tt.ratio, tt.width)
			if n := strings.Count(got, "█"); n != tt.filled {
				t.Errorf("bar(%v, %d) has %d filled cells, want %d", tt.ratio, tt.width, n, tt.filled)
			}
			if n := strings.Count(got, "░"); n != tt.width-tt.filled {
				t.Errorf("bar(%v, %d) has %d empty cells, want %d", tt.ratio, tt.width, n, tt.width-tt.filled)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{88000, "88,000"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
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
			b.WriteRune(r)
		}
	}
	return b.String()
}
