package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/aggregator"
	"github.com/0xmhha/quota-monitor/pkg/dedup"
	"github.com/0xmhha/quota-monitor/pkg/discovery"
	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
	"github.com/0xmhha/quota-monitor/pkg/reader"
)

// statsCommand displays usage statistics across sessions.
type statsCommand struct {
	sessionID  string
	family     string
	groupBy    []string
	topN       int
	format     string
	configPath string
}

// Execute runs the stats command.
func (c *statsCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	dimensions, err := c.parseDimensions()
	if err != nil {
		return err
	}

	// Stats always cover whole files, so positions stay in memory
	// rather than touching the engine's persisted offsets.
	r, err := reader.New(reader.Config{
		PositionStore: reader.NewMemoryPositionStore(),
		Parser:        parser.New(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize reader: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			log.Error("failed to close reader", "error", closeErr)
		}
	}()

	disc := discovery.New(cfg.ClaudeConfigDirs, log)
	logs, err := disc.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover usage logs: %w", err)
	}

	if len(logs) == 0 {
		fmt.Println("No usage logs found")
		return nil
	}

	agg := aggregator.New(aggregator.Config{
		GroupBy:          dimensions,
		TrackPercentiles: true,
		Pricing:          pricing.Default(),
	})

	if err := c.collect(context.Background(), r, log, logs, agg); err != nil {
		return err
	}

	return c.display(agg)
}

// collect reads every log and feeds canonical records into the
// aggregator.
func (c *statsCommand) collect(ctx context.Context, r reader.Reader, log logger.Logger, logs []discovery.LogFile, agg aggregator.Aggregator) error {
	for _, lf := range logs {
		if c.sessionID != "" && lf.SessionID != c.sessionID {
			continue
		}

		records, _, readErr := r.Read(ctx, lf.ResolvedPath)
		if readErr != nil {
			log.Warn("failed to read usage log",
				"session", lf.SessionID,
				"path", lf.ResolvedPath,
				"error", readErr)
			continue
		}

		for _, rec := range dedup.Deduplicate(records) {
			if c.family != "" && pricing.FamilyOf(rec.Model) != pricing.Family(c.family) {
				continue
			}
			agg.Add(lf.SessionID, rec)
		}
	}

	return nil
}

// parseDimensions converts dimension names to types.
func (c *statsCommand) parseDimensions() ([]aggregator.Dimension, error) {
	var dimensions []aggregator.Dimension
	for _, name := range c.groupBy {
		dim, ok := aggregator.ParseDimension(name)
		if !ok {
			return nil, fmt.Errorf("invalid dimension: %s", name)
		}
		dimensions = append(dimensions, dim)
	}
	return dimensions, nil
}

// display renders the aggregated statistics.
func (c *statsCommand) display(agg aggregator.Aggregator) error {
	if c.format == "json" {
		return c.displayJSON(agg)
	}

	stats := agg.Stats()
	if stats.Count == 0 {
		fmt.Println("No usage recorded")
		return nil
	}

	c.displayStats(stats)

	if c.topN > 0 {
		fmt.Println()
		c.displayTopSessions(agg.TopSessions(c.topN))
	}

	if len(c.groupBy) > 0 {
		fmt.Println()
		c.displayGrouped(agg.GroupedStats())
	}

	return nil
}

// displayJSON encodes the statistics as JSON.
func (c *statsCommand) displayJSON(agg aggregator.Aggregator) error {
	out := struct {
		Overall  aggregator.Statistics            `json:"overall"`
		Groups   map[string]aggregator.Statistics `json:"groups,omitempty"`
		Sessions []aggregator.SessionStats        `json:"top_sessions,omitempty"`
	}{
		Overall: agg.Stats(),
	}

	if len(c.groupBy) > 0 {
		out.Groups = agg.GroupedStats()
	}
	if c.topN > 0 {
		out.Sessions = agg.TopSessions(c.topN)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// displayStats prints the overall statistics.
func (c *statsCommand) displayStats(stats aggregator.Statistics) {
	fmt.Println("Usage Statistics")
	fmt.Println()
	fmt.Printf("Records:          %d\n", stats.Count)
	fmt.Printf("Input Tokens:     %d\n", stats.InputTokens)
	fmt.Printf("Output Tokens:    %d\n", stats.OutputTokens)
	fmt.Printf("Cache Creation:   %d\n", stats.CacheCreationTokens)
	fmt.Printf("Cache Read:       %d\n", stats.CacheReadTokens)
	fmt.Printf("Total Tokens:     %d\n", stats.TotalTokens)
	fmt.Printf("Estimated Cost:   $%.2f\n", stats.CostUSD)
	fmt.Println()
	fmt.Printf("Average/Record:   %.0f\n", stats.AvgTokens)
	fmt.Printf("Min Tokens:       %d\n", stats.MinTokens)
	fmt.Printf("Max Tokens:       %d\n", stats.MaxTokens)

	if stats.P50Tokens > 0 {
		fmt.Printf("P50 Tokens:       %d\n", stats.P50Tokens)
		fmt.Printf("P95 Tokens:       %d\n", stats.P95Tokens)
		fmt.Printf("P99 Tokens:       %d\n", stats.P99Tokens)
	}

	if !stats.FirstSeen.IsZero() {
		fmt.Println()
		fmt.Printf("First Activity:   %s\n", stats.FirstSeen.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Last Activity:    %s\n", stats.LastSeen.Local().Format("2006-01-02 15:04:05"))
		duration := stats.LastSeen.Sub(stats.FirstSeen)
		if duration > 0 {
			fmt.Printf("Span:             %s\n", duration.Round(time.Second))
		}
	}
}

// displayTopSessions prints the top-N session table.
func (c *statsCommand) displayTopSessions(sessions []aggregator.SessionStats) {
	fmt.Printf("Top %d Session(s)\n", len(sessions))
	fmt.Println()

	for i, s := range sessions {
		fmt.Printf("%2d. %s\n", i+1, s.SessionID)
		fmt.Printf("    Tokens: %d  Records: %d  Cost: $%.2f\n",
			s.Statistics.TotalTokens, s.Statistics.Count, s.Statistics.CostUSD)
	}
}

// displayGrouped prints per-group statistics sorted by key.
func (c *statsCommand) displayGrouped(grouped map[string]aggregator.Statistics) {
	fmt.Printf("Grouped by %v\n", c.groupBy)
	fmt.Println()

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		stats := grouped[key]
		fmt.Printf("%-32s tokens: %-10d records: %-6d cost: $%.2f\n",
			key, stats.TotalTokens, stats.Count, stats.CostUSD)
	}
}
