package aggregator

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// aggregator implements the Aggregator interface.
type aggregator struct {
	config Config

	mu       sync.RWMutex
	counts   []int             // Per-record totals for percentiles
	stats    Statistics        // Overall statistics
	groups   map[string]*group // Keyed by dimension combination
	sessions map[string]*group // Keyed by session ID
}

// group holds statistics for one dimension combination or session.
type group struct {
	counts []int
	stats  Statistics
}

// New creates a new aggregator.
func New(cfg Config) Aggregator {
	return &aggregator{
		config:   cfg,
		groups:   make(map[string]*group),
		sessions: make(map[string]*group),
	}
}

// Add implements Aggregator.Add.
func (a *aggregator) Add(sessionID string, rec parser.UsageRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := rec.Tokens.InputValue() + rec.Tokens.OutputValue() +
		rec.Tokens.CacheCreationValue() + rec.Tokens.CacheReadValue()
	cost := a.config.Pricing.RecordCost(rec.Tokens, rec.Model, rec.CostUSD)

	a.updateStats(&a.stats, rec, total, cost)
	if a.config.TrackPercentiles {
		a.counts = append(a.counts, total)
	}

	if len(a.config.GroupBy) > 0 {
		a.addToGroup(a.groups, a.dimensionKey(sessionID, rec), rec, total, cost)
	}
	a.addToGroup(a.sessions, sessionID, rec, total, cost)
}

// addToGroup accumulates one record into the keyed group map.
func (a *aggregator) addToGroup(groups map[string]*group, key string, rec parser.UsageRecord, total int, cost float64) {
	g, exists := groups[key]
	if !exists {
		g = &group{}
		groups[key] = g
	}

	a.updateStats(&g.stats, rec, total, cost)
	if a.config.TrackPercentiles {
		g.counts = append(g.counts, total)
	}
}

// Stats implements Aggregator.Stats.
func (a *aggregator) Stats() Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	fillPercentiles(&stats, a.counts)
	return stats
}

// GroupedStats implements Aggregator.GroupedStats.
func (a *aggregator) GroupedStats() map[string]Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]Statistics, len(a.groups))
	for key, g := range a.groups {
		stats := g.stats
		fillPercentiles(&stats, g.counts)
		result[key] = stats
	}

	return result
}

// TopSessions implements Aggregator.TopSessions.
func (a *aggregator) TopSessions(n int) []SessionStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := lo.MapToSlice(a.sessions, func(id string, g *group) SessionStats {
		stats := g.stats
		fillPercentiles(&stats, g.counts)
		return SessionStats{SessionID: id, Statistics: stats}
	})

	sort.Slice(result, func(i, j int) bool {
		return result[i].Statistics.TotalTokens > result[j].Statistics.TotalTokens
	})

	if n > 0 && n < len(result) {
		result = result[:n]
	}

	return result
}

// Reset implements Aggregator.Reset.
func (a *aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts = nil
	a.stats = Statistics{}
	a.groups = make(map[string]*group)
	a.sessions = make(map[string]*group)
}

// updateStats accumulates one record into stats.
func (a *aggregator) updateStats(stats *Statistics, rec parser.UsageRecord, total int, cost float64) {
	stats.Count++
	stats.TotalTokens += total
	stats.InputTokens += rec.Tokens.InputValue()
	stats.OutputTokens += rec.Tokens.OutputValue()
	stats.CacheCreationTokens += rec.Tokens.CacheCreationValue()
	stats.CacheReadTokens += rec.Tokens.CacheReadValue()
	stats.CostUSD += cost

	stats.AvgTokens = float64(stats.TotalTokens) / float64(stats.Count)

	if stats.Count == 1 {
		stats.MinTokens = total
		stats.MaxTokens = total
	} else {
		if total < stats.MinTokens {
			stats.MinTokens = total
		}
		if total > stats.MaxTokens {
			stats.MaxTokens = total
		}
	}

	if stats.FirstSeen.IsZero() || rec.Timestamp.Before(stats.FirstSeen) {
		stats.FirstSeen = rec.Timestamp
	}
	if stats.LastSeen.IsZero() || rec.Timestamp.After(stats.LastSeen) {
		stats.LastSeen = rec.Timestamp
	}
}

// dimensionKey creates the group key for the configured dimensions.
func (a *aggregator) dimensionKey(sessionID string, rec parser.UsageRecord) string {
	parts := make([]string, len(a.config.GroupBy))
	for i, dim := range a.config.GroupBy {
		switch dim {
		case DimModel:
			parts[i] = rec.Model
		case DimFamily:
			parts[i] = string(pricing.FamilyOf(rec.Model))
		case DimSession:
			parts[i] = sessionID
		case DimDate:
			parts[i] = rec.Timestamp.Format("2006-01-02")
		case DimHour:
			parts[i] = rec.Timestamp.Format("2006-01-02 15:00")
		}
	}

	return strings.Join(parts, "|")
}

// fillPercentiles computes P50/P95/P99 into stats when counts exist.
func fillPercentiles(stats *Statistics, counts []int) {
	if len(counts) == 0 {
		return
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	stats.P50Tokens = percentile(sorted, 50)
	stats.P95Tokens = percentile(sorted, 95)
	stats.P99Tokens = percentile(sorted, 99)
}

// percentile calculates the pth percentile of a sorted slice using
// linear interpolation between closest ranks.
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return int(float64(sorted[lower])*(1-fraction) + float64(sorted[upper])*fraction)
}
