// Package blocks groups canonical usage records into fixed-duration
// rolling consumption windows and estimates window capacity when no
// explicit limit is configured.
//
// A block spans [start, start+duration) where start is the first
// record's timestamp floored to the enclosing UTC hour. The hour
// alignment is a deliberate approximation of the true rolling window
// (which begins at the first-message instant); downstream limit
// calibration assumes it, so it is kept as-is.
//
// Idle intervals of at least one block duration are made explicit as
// synthetic gap blocks, distinguishing "currently idle" from
// "currently active with low usage".
package blocks

import (
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// DefaultDuration is the rolling window length used by the host
// application's session accounting.
const DefaultDuration = 5 * time.Hour

// TokenTotals holds accumulated token counts per category. Unlike
// parser.TokenCounts these are plain totals: absence has already been
// resolved to zero contribution upstream.
type TokenTotals struct {
	Input         int
	Output        int
	CacheCreation int
	CacheRead     int
}

// Total returns the sum across all categories.
func (t TokenTotals) Total() int {
	return t.Input + t.Output + t.CacheCreation + t.CacheRead
}

func (t *TokenTotals) add(counts parser.TokenCounts) {
	t.Input += counts.InputValue()
	t.Output += counts.OutputValue()
	t.CacheCreation += counts.CacheCreationValue()
	t.CacheRead += counts.CacheReadValue()
}

// ModelStats holds per-family accumulation within one block.
type ModelStats struct {
	Tokens  TokenTotals
	CostUSD float64
	Records int
}

// Block is one consumption window.
//
// Blocks are created only by Builder.Build; they are immutable once
// the build completes, except for the limit events the caller may
// attach afterwards.
type Block struct {
	// ID is the start time in RFC3339, prefixed "gap-" for gap blocks.
	ID string

	// StartTime is the window start, aligned to a UTC hour boundary.
	// Gap blocks start at the previous block's last activity instead.
	StartTime time.Time

	// EndTime is StartTime + duration. Gap blocks end at the next
	// block's first activity.
	EndTime time.Time

	// ActualEndTime is the timestamp of the last record in the block,
	// nil for gap blocks.
	ActualEndTime *time.Time

	// IsActive is true for at most one block per build: the
	// chronologically last non-gap block whose span contains "now".
	IsActive bool

	// IsGap marks a synthetic idle-span block with no records.
	IsGap bool

	// Entries are the canonical records in the window, in order.
	Entries []parser.UsageRecord

	// Tokens accumulates per-category totals over Entries.
	Tokens TokenTotals

	// CostUSD is the total estimated cost of the block.
	CostUSD float64

	// PerModel breaks the totals down by model family.
	PerModel map[pricing.Family]*ModelStats

	// Models lists the distinct raw model identifiers seen.
	Models []string

	// LimitEvents are rate-limit notices whose timestamps fall inside
	// this block's span.
	LimitEvents []parser.LimitEvent
}

// Contains reports whether the instant falls within [start, end).
func (b Block) Contains(ts time.Time) bool {
	return !ts.Before(b.StartTime) && ts.Before(b.EndTime)
}

// DurationElapsed returns how much of the window has passed at the
// given instant, clamped to [0, window length].
func (b Block) DurationElapsed(now time.Time) time.Duration {
	if now.Before(b.StartTime) {
		return 0
	}
	if now.After(b.EndTime) {
		return b.EndTime.Sub(b.StartTime)
	}
	return now.Sub(b.StartTime)
}

// AttachLimitEvents distributes rate-limit events onto the blocks
// whose spans contain them.
func AttachLimitEvents(blks []Block, events []parser.LimitEvent) {
	for i := range blks {
		for _, ev := range events {
			if blks[i].Contains(ev.Timestamp) {
				blks[i].LimitEvents = append(blks[i].LimitEvents, ev)
			}
		}
	}
}

// Active returns the active block, or nil when none is marked.
func Active(blks []Block) *Block {
	for i := len(blks) - 1; i >= 0; i-- {
		if blks[i].IsActive && !blks[i].IsGap {
			return &blks[i]
		}
	}
	return nil
}
