package blocks

import (
	"sort"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// Builder groups canonical records into blocks.
type Builder struct {
	duration time.Duration
	table    pricing.Table
}

// NewBuilder creates a block builder.
//
// Parameters:
//   - duration: window length; DefaultDuration when <= 0
//   - table: pricing table used for per-block cost accumulation
func NewBuilder(duration time.Duration, table pricing.Table) *Builder {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Builder{duration: duration, table: table}
}

// Build groups records into an ordered block sequence.
//
// Records are sorted by timestamp first, so callers may pass the
// deduplicated stream directly. Gap blocks are inserted for idle
// intervals of at least one window length, and the chronologically
// last non-gap block containing now is marked active.
//
// Build carries no state between calls: repeated calls with
// overlapping inputs are idempotent.
func (b *Builder) Build(records []parser.UsageRecord, now time.Time) []Block {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]parser.UsageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var result []Block
	var current *Block

	for _, rec := range sorted {
		if current == nil || b.needsNewBlock(current, rec) {
			if current != nil {
				b.finalize(current)
				result = append(result, *current)

				if gap := b.gapAfter(current, rec); gap != nil {
					result = append(result, *gap)
				}
			}
			current = b.newBlock(rec.Timestamp)
		}
		b.addRecord(current, rec)
	}

	if current != nil {
		b.finalize(current)
		result = append(result, *current)
	}

	markActive(result, now)
	return result
}

// needsNewBlock reports whether the record falls outside the current
// window, or follows an idle interval of at least one window length.
func (b *Builder) needsNewBlock(current *Block, rec parser.UsageRecord) bool {
	if !rec.Timestamp.Before(current.EndTime) {
		return true
	}
	if n := len(current.Entries); n > 0 {
		idle := rec.Timestamp.Sub(current.Entries[n-1].Timestamp)
		if idle >= b.duration {
			return true
		}
	}
	return false
}

// newBlock opens a window at the record's timestamp floored to the
// enclosing UTC hour.
func (b *Builder) newBlock(ts time.Time) *Block {
	start := ts.UTC().Truncate(time.Hour)
	return &Block{
		ID:        start.Format(time.RFC3339),
		StartTime: start,
		EndTime:   start.Add(b.duration),
		PerModel:  make(map[pricing.Family]*ModelStats),
	}
}

func (b *Builder) addRecord(block *Block, rec parser.UsageRecord) {
	block.Entries = append(block.Entries, rec)
	block.Tokens.add(rec.Tokens)

	cost := b.table.RecordCost(rec.Tokens, rec.Model, rec.CostUSD)
	block.CostUSD += cost

	family := pricing.FamilyOf(rec.Model)
	stats, ok := block.PerModel[family]
	if !ok {
		stats = &ModelStats{}
		block.PerModel[family] = stats
	}
	stats.Tokens.add(rec.Tokens)
	stats.CostUSD += cost
	stats.Records++

	if rec.Model != "" && !contains(block.Models, rec.Model) {
		block.Models = append(block.Models, rec.Model)
	}
}

func (b *Builder) finalize(block *Block) {
	if n := len(block.Entries); n > 0 {
		last := block.Entries[n-1].Timestamp
		block.ActualEndTime = &last
	}
}

// gapAfter synthesizes a gap block when the idle interval between the
// finished block's last activity and the next record is at least one
// window length.
func (b *Builder) gapAfter(last *Block, next parser.UsageRecord) *Block {
	if last.ActualEndTime == nil {
		return nil
	}
	idle := next.Timestamp.Sub(*last.ActualEndTime)
	if idle < b.duration {
		return nil
	}
	return &Block{
		ID:        "gap-" + last.ActualEndTime.Format(time.RFC3339),
		StartTime: *last.ActualEndTime,
		EndTime:   next.Timestamp,
		IsGap:     true,
	}
}

// markActive marks the chronologically last non-gap block whose span
// contains now. At most one block ends up active.
func markActive(blks []Block, now time.Time) {
	for i := len(blks) - 1; i >= 0; i-- {
		if blks[i].IsGap {
			continue
		}
		if blks[i].Contains(now) {
			blks[i].IsActive = true
		}
		return
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
