// Package dedup selects one canonical record per logical unit of work.
//
// The same exchange may appear as multiple records across one or more
// files: the producer writes incremental snapshots while a response
// streams, each carrying the cumulative totals so far, and separate
// files may re-observe the same unit verbatim. Within a group the
// canonical record is the one with the greatest cumulative token
// counts — NOT the first seen. Files are routinely concatenated out of
// chronological order, so first-occurrence-wins silently under-counts
// any multi-snapshot unit; selection here is order-independent.
//
// Example usage:
//
//	canonical := dedup.Deduplicate(records)
package dedup

import (
	"sort"

	"github.com/0xmhha/quota-monitor/pkg/parser"
)

// Deduplicate reduces a record stream to one canonical record per
// logical id, in timestamp order.
//
// Within a group the record with the greatest cumulative output tokens
// wins (total tokens as tie-break); token fields absent on the winner
// are backfilled from the rest of the group so that an absent field
// never erases a known value. Records without a logical id cannot be
// grouped and pass through unchanged.
//
// The input slice is not modified. Calling with overlapping inputs is
// idempotent: no state is carried between calls.
func Deduplicate(records []parser.UsageRecord) []parser.UsageRecord {
	byID := make(map[string]parser.UsageRecord)
	order := make([]string, 0, len(records))
	standalone := make([]parser.UsageRecord, 0)

	for _, rec := range records {
		id, ok := rec.LogicalID()
		if !ok {
			standalone = append(standalone, rec)
			continue
		}

		current, seen := byID[id]
		if !seen {
			byID[id] = rec
			order = append(order, id)
			continue
		}

		winner := current
		if newer(rec, current) {
			winner = rec
		}
		// Backfill fields the winner is missing from the other
		// snapshot's known values.
		winner.Tokens = winner.Tokens.Merge(current.Tokens).Merge(rec.Tokens)
		if winner.CostUSD == nil {
			winner.CostUSD = firstCost(current.CostUSD, rec.CostUSD)
		}
		byID[id] = winner
	}

	result := make([]parser.UsageRecord, 0, len(order)+len(standalone))
	for _, id := range order {
		result = append(result, byID[id])
	}
	result = append(result, standalone...)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result
}

// newer reports whether a is a later cumulative snapshot than b.
// Cumulative counts are monotone within a unit, so the larger output
// total identifies the later snapshot regardless of arrival order.
func newer(a, b parser.UsageRecord) bool {
	ao, bo := a.Tokens.OutputValue(), b.Tokens.OutputValue()
	if ao != bo {
		return ao > bo
	}
	return a.Tokens.Total() > b.Tokens.Total()
}

func firstCost(costs ...*float64) *float64 {
	for _, c := range costs {
		if c != nil {
			return c
		}
	}
	return nil
}
