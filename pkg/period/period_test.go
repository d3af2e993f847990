package period

import (
	"testing"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

func intPtr(v int) *int { return &v }

func rec(ts time.Time, model string, output int) parser.UsageRecord {
	return parser.UsageRecord{
		Timestamp: ts,
		Model:     model,
		Tokens:    parser.TokenCounts{Output: intPtr(output)},
	}
}

func TestSumSince(t *testing.T) {
	boundary := time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC)

	records := []parser.UsageRecord{
		rec(boundary.Add(-time.Hour), "claude-sonnet-4", 1_000), // before boundary
		rec(boundary, "claude-sonnet-4", 140),                   // exactly at boundary counts
		rec(boundary.Add(time.Hour), "claude-opus-4", 50),
		rec(boundary.Add(2*time.Hour), "claude-sonnet-4", 60),
	}

	t.Run("old records excluded even when interleaved", func(t *testing.T) {
		if got := SumSince(records, boundary, CategoryOutput, ""); got != 250 {
			t.Errorf("SumSince = %d, want 250", got)
		}
	})

	t.Run("family filter", func(t *testing.T) {
		if got := SumSince(records, boundary, CategoryOutput, pricing.FamilySonnet); got != 200 {
			t.Errorf("SumSince(sonnet) = %d, want 200", got)
		}
		if got := SumSince(records, boundary, CategoryOutput, pricing.FamilyOpus); got != 50 {
			t.Errorf("SumSince(opus) = %d, want 50", got)
		}
	})

	t.Run("explicit zero contributes zero, not dropped", func(t *testing.T) {
		withZero := append(records, rec(boundary.Add(3*time.Hour), "claude-sonnet-4", 0))
		if got := SumSince(withZero, boundary, CategoryOutput, ""); got != 250 {
			t.Errorf("SumSince = %d, want 250", got)
		}
	})

	t.Run("other categories", func(t *testing.T) {
		r := rec(boundary, "claude-sonnet-4", 1)
		r.Tokens.Input = intPtr(10)
		r.Tokens.CacheCreation = intPtr(20)
		r.Tokens.CacheRead = intPtr(30)
		rs := []parser.UsageRecord{r}

		if got := SumSince(rs, boundary, CategoryInput, ""); got != 10 {
			t.Errorf("input sum = %d, want 10", got)
		}
		if got := SumSince(rs, boundary, CategoryCacheCreation, ""); got != 20 {
			t.Errorf("cache creation sum = %d, want 20", got)
		}
		if got := SumSince(rs, boundary, CategoryCacheRead, ""); got != 30 {
			t.Errorf("cache read sum = %d, want 30", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := SumSince(nil, boundary, CategoryOutput, ""); got != 0 {
			t.Errorf("SumSince(nil) = %d, want 0", got)
		}
	})
}

func TestCostSince(t *testing.T) {
	boundary := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := pricing.Default()

	explicit := 2.5
	withCost := rec(boundary.Add(time.Hour), "claude-sonnet-4", 1_000_000)
	withCost.CostUSD = &explicit

	records := []parser.UsageRecord{
		rec(boundary.Add(-time.Hour), "claude-sonnet-4", 1_000_000), // excluded
		withCost,                                          // explicit cost wins
		rec(boundary.Add(2*time.Hour), "claude-sonnet-4", 1_000_000), // estimated: $15
	}

	got := CostSince(records, boundary, table)
	want := 2.5 + 15.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("CostSince = %v, want %v", got, want)
	}
}

func TestLastWeeklyReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-week resolves to this Monday",
			now:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), // Thursday
			want: time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC),  // Monday 04:00
		},
		{
			name: "Monday after the reset hour resolves to today",
			now:  time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "Monday before the reset hour resolves to last week",
			now:  time.Date(2026, 1, 12, 3, 59, 0, 0, time.UTC),
			want: time.Date(2026, 1, 5, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the boundary resolves to itself",
			now:  time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 12, 4, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LastWeeklyReset(tt.now, time.Monday, 4)
			if !got.Equal(tt.want) {
				t.Errorf("LastWeeklyReset = %v, want %v", got, tt.want)
			}

			// Idempotence: same now, same boundary.
			if again := LastWeeklyReset(tt.now, time.Monday, 4); !again.Equal(got) {
				t.Error("LastWeeklyReset is not idempotent")
			}
		})
	}
}

func TestNextWeeklyReset(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) // Thursday
	want := time.Date(2026, 1, 19, 4, 0, 0, 0, time.UTC) // next Monday

	if got := NextWeeklyReset(now, time.Monday, 4); !got.Equal(want) {
		t.Errorf("NextWeeklyReset = %v, want %v", got, want)
	}
}

func TestMonthBoundaries(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 30, 0, 0, time.UTC)

	if got := MonthStart(now); !got.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthStart = %v", got)
	}
	if got := NextMonthStart(now); !got.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextMonthStart = %v", got)
	}

	// December rolls into the next year.
	dec := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	if got := NextMonthStart(dec); !got.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextMonthStart(dec) = %v", got)
	}
}
