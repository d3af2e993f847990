// Package period aggregates consumption since calendar-aligned reset
// boundaries.
//
// Boundary computation is pure in "now": the same instant always
// yields the same boundary, so repeated computation cycles are
// idempotent. The aggregation itself only filters on timestamp and
// sums the requested token category, optionally restricted to one
// model family.
package period

import (
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// Category selects one of the four token categories for aggregation.
type Category int

const (
	CategoryInput Category = iota
	CategoryOutput
	CategoryCacheCreation
	CategoryCacheRead
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryOutput:
		return "output"
	case CategoryCacheCreation:
		return "cache_creation"
	case CategoryCacheRead:
		return "cache_read"
	default:
		return "unknown"
	}
}

func (c Category) valueOf(t parser.TokenCounts) int {
	switch c {
	case CategoryInput:
		return t.InputValue()
	case CategoryOutput:
		return t.OutputValue()
	case CategoryCacheCreation:
		return t.CacheCreationValue()
	case CategoryCacheRead:
		return t.CacheReadValue()
	default:
		return 0
	}
}

// SumSince totals the given token category over records with
// timestamp >= boundary. When family is non-empty only records of that
// model family contribute. Records older than the boundary are
// excluded even when interleaved with recent ones.
func SumSince(records []parser.UsageRecord, boundary time.Time, category Category, family pricing.Family) int {
	inWindow := lo.Filter(records, func(rec parser.UsageRecord, _ int) bool {
		if rec.Timestamp.Before(boundary) {
			return false
		}
		return family == "" || pricing.FamilyOf(rec.Model) == family
	})

	return lo.SumBy(inWindow, func(rec parser.UsageRecord) int {
		return category.valueOf(rec.Tokens)
	})
}

// CostSince totals the estimated cost of records with timestamp >=
// boundary, preferring explicit per-record costs over table estimates.
func CostSince(records []parser.UsageRecord, boundary time.Time, table pricing.Table) float64 {
	inWindow := lo.Filter(records, func(rec parser.UsageRecord, _ int) bool {
		return !rec.Timestamp.Before(boundary)
	})

	return lo.SumBy(inWindow, func(rec parser.UsageRecord) float64 {
		return table.RecordCost(rec.Tokens, rec.Model, rec.CostUSD)
	})
}

// LastWeeklyReset returns the most recent instant at the given weekday
// and hour that is not after now, in now's location. With the default
// policy (Monday, 04:00) a Monday 03:59 "now" resolves to the previous
// week's boundary.
func LastWeeklyReset(now time.Time, weekday time.Weekday, hour int) time.Time {
	daysBack := (int(now.Weekday()) - int(weekday) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	candidate = candidate.AddDate(0, 0, -daysBack)
	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -7)
	}
	return candidate
}

// NextWeeklyReset returns the first instant at the given weekday and
// hour strictly after now.
func NextWeeklyReset(now time.Time, weekday time.Weekday, hour int) time.Time {
	return LastWeeklyReset(now, weekday, hour).AddDate(0, 0, 7)
}

// MonthStart returns midnight on the first of now's month, in now's
// location.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// NextMonthStart returns midnight on the first of the following month.
func NextMonthStart(now time.Time) time.Time {
	return MonthStart(now).AddDate(0, 1, 0)
}
