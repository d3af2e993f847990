package aggregator

import (
	"testing"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

func intPtr(v int) *int { return &v }

func rec(ts time.Time, model string, input, output int) parser.UsageRecord {
	return parser.UsageRecord{
		Timestamp: ts,
		Model:     model,
		Tokens: parser.TokenCounts{
			Input:  intPtr(input),
			Output: intPtr(output),
		},
	}
}

var baseTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func TestStats(t *testing.T) {
	agg := New(Config{Pricing: pricing.Default()})

	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 100, 200))
	agg.Add("s1", rec(baseTime.Add(time.Minute), "claude-sonnet-4", 50, 400))
	agg.Add("s2", rec(baseTime.Add(2*time.Minute), "claude-opus-4", 10, 30))

	stats := agg.Stats()

	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.InputTokens != 160 {
		t.Errorf("InputTokens = %d, want 160", stats.InputTokens)
	}
	if stats.OutputTokens != 630 {
		t.Errorf("OutputTokens = %d, want 630", stats.OutputTokens)
	}
	if stats.TotalTokens != 790 {
		t.Errorf("TotalTokens = %d, want 790", stats.TotalTokens)
	}
	if stats.MinTokens != 40 {
		t.Errorf("MinTokens = %d, want 40", stats.MinTokens)
	}
	if stats.MaxTokens != 450 {
		t.Errorf("MaxTokens = %d, want 450", stats.MaxTokens)
	}
	if stats.CostUSD <= 0 {
		t.Errorf("CostUSD = %v, want > 0", stats.CostUSD)
	}
	if !stats.FirstSeen.Equal(baseTime) {
		t.Errorf("FirstSeen = %v, want %v", stats.FirstSeen, baseTime)
	}
	if !stats.LastSeen.Equal(baseTime.Add(2 * time.Minute)) {
		t.Errorf("LastSeen = %v, want %v", stats.LastSeen, baseTime.Add(2*time.Minute))
	}
}

func TestStatsExplicitCostWins(t *testing.T) {
	agg := New(Config{Pricing: pricing.Default()})

	r := rec(baseTime, "claude-sonnet-4", 0, 1000)
	explicit := 1.5
	r.CostUSD = &explicit
	agg.Add("s1", r)

	if got := agg.Stats().CostUSD; got != 1.5 {
		t.Errorf("CostUSD = %v, want explicit 1.5", got)
	}
}

func TestGroupedStatsByFamily(t *testing.T) {
	agg := New(Config{
		GroupBy: []Dimension{DimFamily},
		Pricing: pricing.Default(),
	})

	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 0, 100))
	agg.Add("s1", rec(baseTime, "claude-sonnet-4-5", 0, 200))
	agg.Add("s2", rec(baseTime, "claude-opus-4", 0, 50))

	grouped := agg.GroupedStats()

	if len(grouped) != 2 {
		t.Fatalf("got %d groups, want 2: %v", len(grouped), grouped)
	}
	if got := grouped["sonnet"].OutputTokens; got != 300 {
		t.Errorf("sonnet OutputTokens = %d, want 300", got)
	}
	if got := grouped["opus"].OutputTokens; got != 50 {
		t.Errorf("opus OutputTokens = %d, want 50", got)
	}
}

func TestGroupedStatsCompositeKey(t *testing.T) {
	agg := New(Config{
		GroupBy: []Dimension{DimDate, DimFamily},
	})

	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 0, 100))
	agg.Add("s1", rec(baseTime.Add(24*time.Hour), "claude-sonnet-4", 0, 200))

	grouped := agg.GroupedStats()

	if got := grouped["2026-01-15|sonnet"].OutputTokens; got != 100 {
		t.Errorf("day-one group OutputTokens = %d, want 100", got)
	}
	if got := grouped["2026-01-16|sonnet"].OutputTokens; got != 200 {
		t.Errorf("day-two group OutputTokens = %d, want 200", got)
	}
}

func TestGroupedStatsByHour(t *testing.T) {
	agg := New(Config{GroupBy: []Dimension{DimHour}})

	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 0, 10))
	agg.Add("s1", rec(baseTime.Add(30*time.Minute), "claude-sonnet-4", 0, 20))
	agg.Add("s1", rec(baseTime.Add(90*time.Minute), "claude-sonnet-4", 0, 40))

	grouped := agg.GroupedStats()

	if got := grouped["2026-01-15 10:00"].OutputTokens; got != 30 {
		t.Errorf("10:00 group OutputTokens = %d, want 30", got)
	}
	if got := grouped["2026-01-15 11:00"].OutputTokens; got != 40 {
		t.Errorf("11:00 group OutputTokens = %d, want 40", got)
	}
}

func TestTopSessions(t *testing.T) {
	agg := New(Config{})

	agg.Add("small", rec(baseTime, "claude-sonnet-4", 0, 10))
	agg.Add("large", rec(baseTime, "claude-sonnet-4", 0, 500))
	agg.Add("medium", rec(baseTime, "claude-sonnet-4", 0, 100))

	top := agg.TopSessions(2)

	if len(top) != 2 {
		t.Fatalf("got %d sessions, want 2", len(top))
	}
	if top[0].SessionID != "large" {
		t.Errorf("top[0] = %s, want large", top[0].SessionID)
	}
	if top[1].SessionID != "medium" {
		t.Errorf("top[1] = %s, want medium", top[1].SessionID)
	}

	all := agg.TopSessions(0)
	if len(all) != 3 {
		t.Errorf("TopSessions(0) returned %d sessions, want all 3", len(all))
	}
}

func TestPercentiles(t *testing.T) {
	agg := New(Config{TrackPercentiles: true})

	for i := 1; i <= 100; i++ {
		agg.Add("s1", rec(baseTime.Add(time.Duration(i)*time.Second), "claude-sonnet-4", 0, i))
	}

	stats := agg.Stats()

	if stats.P50Tokens < 49 || stats.P50Tokens > 51 {
		t.Errorf("P50Tokens = %d, want ~50", stats.P50Tokens)
	}
	if stats.P95Tokens < 94 || stats.P95Tokens > 96 {
		t.Errorf("P95Tokens = %d, want ~95", stats.P95Tokens)
	}
	if stats.P99Tokens < 98 || stats.P99Tokens > 100 {
		t.Errorf("P99Tokens = %d, want ~99", stats.P99Tokens)
	}
}

func TestPercentilesDisabled(t *testing.T) {
	agg := New(Config{})
	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 0, 100))

	if got := agg.Stats().P50Tokens; got != 0 {
		t.Errorf("P50Tokens = %d, want 0 when tracking disabled", got)
	}
}

func TestReset(t *testing.T) {
	agg := New(Config{GroupBy: []Dimension{DimFamily}})
	agg.Add("s1", rec(baseTime, "claude-sonnet-4", 10, 20))

	agg.Reset()

	if got := agg.Stats().Count; got != 0 {
		t.Errorf("Count after Reset = %d, want 0", got)
	}
	if got := len(agg.GroupedStats()); got != 0 {
		t.Errorf("groups after Reset = %d, want 0", got)
	}
	if got := len(agg.TopSessions(0)); got != 0 {
		t.Errorf("sessions after Reset = %d, want 0", got)
	}
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		name string
		want Dimension
		ok   bool
	}{
		{"model", DimModel, true},
		{"family", DimFamily, true},
		{"session", DimSession, true},
		{"date", DimDate, true},
		{"hour", DimHour, true},
		{"bogus", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDimension(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDimension(%q) = (%v, %v), want (%v, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPercentileEdgeCases(t *testing.T) {
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %d, want 0", got)
	}
	if got := percentile([]int{7}, 50); got != 7 {
		t.Errorf("percentile single = %d, want 7", got)
	}
	if got := percentile([]int{1, 2, 3}, 0); got != 1 {
		t.Errorf("percentile p=0 = %d, want first", got)
	}
	if got := percentile([]int{1, 2, 3}, 100); got != 3 {
		t.Errorf("percentile p=100 = %d, want last", got)
	}
}
