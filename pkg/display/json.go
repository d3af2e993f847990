package display

import (
	"encoding/json"
	"io"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/quota"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatReport implements Formatter.FormatReport.
func (f *jsonFormatter) FormatReport(w io.Writer, report quota.Report) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(report)
}

// blockView is the JSON shape of one billing window.
type blockView struct {
	ID              string   `json:"id"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	IsActive        bool     `json:"is_active"`
	IsGap           bool     `json:"is_gap"`
	Entries         int      `json:"entries"`
	TotalTokens     int      `json:"total_tokens"`
	CostUSD         float64  `json:"cost_usd"`
	Models          []string `json:"models,omitempty"`
	TokensPerMinute float64  `json:"tokens_per_minute,omitempty"`
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *jsonFormatter) FormatBlocks(w io.Writer, blks []blocks.Block, now time.Time) error {
	views := make([]blockView, 0, len(blks))
	for _, b := range blks {
		v := blockView{
			ID:          b.ID,
			StartTime:   b.StartTime.Format(time.RFC3339),
			EndTime:     b.EndTime.Format(time.RFC3339),
			IsActive:    b.IsActive,
			IsGap:       b.IsGap,
			Entries:     len(b.Entries),
			TotalTokens: b.Tokens.Total(),
			CostUSD:     b.CostUSD,
			Models:      b.Models,
		}
		if b.IsActive {
			v.TokensPerMinute = b.BurnRate(now).TokensPerMinute
		}
		views = append(views, v)
	}

	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(views)
}
