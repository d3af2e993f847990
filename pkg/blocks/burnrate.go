package blocks

import "time"

// BurnRate is the consumption rate of a block, for callers displaying
// time-remaining-in-window information.
type BurnRate struct {
	TokensPerMinute float64
	CostPerHour     float64
}

// Projection extrapolates the current burn rate over the remainder of
// an active window.
type Projection struct {
	TotalTokens      int
	TotalCost        float64
	RemainingMinutes float64
}

// BurnRate computes the block's consumption rate at the given instant.
// Returns a zero rate for gap blocks, empty blocks, or before the
// window has any measurable elapsed time.
func (b Block) BurnRate(now time.Time) BurnRate {
	if b.IsGap || len(b.Entries) == 0 {
		return BurnRate{}
	}

	elapsed := b.DurationElapsed(now).Minutes()
	if elapsed <= 0 {
		return BurnRate{}
	}

	return BurnRate{
		TokensPerMinute: float64(b.Tokens.Total()) / elapsed,
		CostPerHour:     b.CostUSD / elapsed * 60,
	}
}

// Projection extrapolates usage to the end of the window. Returns nil
// for anything other than an active block.
func (b Block) Projection(now time.Time) *Projection {
	if !b.IsActive || b.IsGap {
		return nil
	}

	remaining := b.EndTime.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	rate := b.BurnRate(now)
	remainingMin := remaining.Minutes()

	return &Projection{
		TotalTokens:      b.Tokens.Total() + int(rate.TokensPerMinute*remainingMin),
		TotalCost:        b.CostUSD + rate.CostPerHour*remaining.Hours(),
		RemainingMinutes: remainingMin,
	}
}
