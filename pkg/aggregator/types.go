// Package aggregator provides usage aggregation and statistics.
//
// It aggregates canonical usage records across sessions, model
// families, and time windows, providing summary statistics for the
// stats command.
//
// Example usage:
//
//	agg := aggregator.New(aggregator.Config{
//	    GroupBy: []aggregator.Dimension{aggregator.DimFamily, aggregator.DimDate},
//	    Pricing: pricing.Default(),
//	})
//
//	for _, rec := range records {
//	    agg.Add(sessionID, rec)
//	}
//
//	stats := agg.Stats()
//	fmt.Printf("Total tokens: %d\n", stats.TotalTokens)
//	fmt.Printf("Cost: $%.2f\n", stats.CostUSD)
package aggregator

import (
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// Dimension represents an aggregation dimension.
type Dimension string

const (
	// DimModel aggregates by raw model identifier.
	DimModel Dimension = "model"

	// DimFamily aggregates by model family (opus, sonnet, haiku).
	DimFamily Dimension = "family"

	// DimSession aggregates by session ID.
	DimSession Dimension = "session"

	// DimDate aggregates by date (YYYY-MM-DD).
	DimDate Dimension = "date"

	// DimHour aggregates by hour (YYYY-MM-DD HH:00).
	DimHour Dimension = "hour"
)

// ParseDimension maps a dimension name to its type.
func ParseDimension(name string) (Dimension, bool) {
	switch Dimension(name) {
	case DimModel, DimFamily, DimSession, DimDate, DimHour:
		return Dimension(name), true
	}
	return "", false
}

// Statistics holds accumulated usage figures.
type Statistics struct {
	// Count is the number of records.
	Count int `json:"count"`

	// Token totals by category.
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	TotalTokens         int `json:"total_tokens"`

	// CostUSD is the estimated cost over all records.
	CostUSD float64 `json:"cost_usd"`

	// AvgTokens is the mean total tokens per record.
	AvgTokens float64 `json:"avg_tokens"`

	// MinTokens and MaxTokens bound the per-record totals.
	MinTokens int `json:"min_tokens"`
	MaxTokens int `json:"max_tokens"`

	// Percentiles of per-record totals, zero unless tracking is on.
	P50Tokens int `json:"p50_tokens,omitempty"`
	P95Tokens int `json:"p95_tokens,omitempty"`
	P99Tokens int `json:"p99_tokens,omitempty"`

	// FirstSeen and LastSeen bound the record timestamps.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionStats pairs a session with its statistics.
type SessionStats struct {
	SessionID  string     `json:"session_id"`
	Statistics Statistics `json:"statistics"`
}

// Aggregator computes usage statistics over canonical records.
type Aggregator interface {
	// Add accumulates one record under the given session.
	Add(sessionID string, rec parser.UsageRecord)

	// Stats returns the overall statistics.
	Stats() Statistics

	// GroupedStats returns statistics per dimension-key combination.
	// Keys join the dimension values with "|" in GroupBy order.
	GroupedStats() map[string]Statistics

	// TopSessions returns the n sessions with the highest total token
	// usage, descending. n <= 0 returns all sessions.
	TopSessions(n int) []SessionStats

	// Reset clears all accumulated state.
	Reset()
}

// Config configures an Aggregator.
type Config struct {
	// GroupBy selects the dimensions of GroupedStats. Empty disables
	// grouping.
	GroupBy []Dimension

	// TrackPercentiles enables P50/P95/P99 of per-record totals.
	TrackPercentiles bool

	// Pricing is the table used for cost estimation. The zero value
	// disables cost tracking.
	Pricing pricing.Table
}
