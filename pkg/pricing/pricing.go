// Package pricing maps model identifiers to per-million-token rates
// and estimates the cost of usage records.
//
// The table is an immutable value built once and injected where
// needed; there is no package-global mutable state. Unknown models
// resolve to a fallback family instead of failing — the accuracy goal
// is "close enough for a live indicator", not billing reconciliation.
//
// Example usage:
//
//	table := pricing.Default()
//	cost := table.Cost(rec.Tokens, rec.Model)
package pricing

import "strings"

// Family is a coarse model grouping used for pricing and for
// family-filtered quota aggregation.
type Family string

const (
	FamilyOpus   Family = "opus"
	FamilySonnet Family = "sonnet"
	FamilyHaiku  Family = "haiku"
	FamilyOther  Family = "other"
)

// FamilyOf maps a raw model identifier to its family by substring
// match. Empty or unrecognized identifiers map to FamilyOther.
func FamilyOf(model string) Family {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "opus"):
		return FamilyOpus
	case strings.Contains(m, "sonnet"):
		return FamilySonnet
	case strings.Contains(m, "haiku"):
		return FamilyHaiku
	default:
		return FamilyOther
	}
}

// Rates holds the USD rates per million tokens for the four token
// categories of a model family.
type Rates struct {
	Input         float64
	Output        float64
	CacheCreation float64
	CacheRead     float64
}

// Table resolves model identifiers to rates. Zero value is unusable;
// construct with Default or NewTable.
type Table struct {
	rates    map[Family]Rates
	fallback Family
}

// NewTable builds a pricing table from the given per-family rates.
//
// Parameters:
//   - rates: rates per family; families not listed resolve to fallback
//   - fallback: family used for unknown or unlisted models
//
// The input map is copied; the table never mutates after construction.
func NewTable(rates map[Family]Rates, fallback Family) Table {
	copied := make(map[Family]Rates, len(rates))
	for f, r := range rates {
		copied[f] = r
	}
	return Table{rates: copied, fallback: fallback}
}

// Default returns the built-in table with 2026 API rates. Cache reads
// carry no rate: empirically they are not billed against the spending
// cap. The fallback is flat sonnet pricing, which tracks the host
// application's extra-usage billing closely regardless of the actual
// model.
func Default() Table {
	return NewTable(map[Family]Rates{
		FamilyOpus:   {Input: 5.0, Output: 25.0, CacheCreation: 6.25},
		FamilySonnet: {Input: 3.0, Output: 15.0, CacheCreation: 3.75},
		FamilyHaiku:  {Input: 1.0, Output: 5.0, CacheCreation: 1.25},
	}, FamilySonnet)
}

// RatesFor returns the rates for the given model identifier, resolving
// unknown models through the fallback family. Never fails.
func (t Table) RatesFor(model string) Rates {
	family := FamilyOf(model)
	if r, ok := t.rates[family]; ok {
		return r
	}
	return t.rates[t.fallback]
}

// TokenCounts is the subset of a usage record the table needs to price.
// pkg/parser's TokenCounts satisfies it.
type TokenCounts interface {
	InputValue() int
	OutputValue() int
	CacheCreationValue() int
	CacheReadValue() int
}

// Cost estimates the USD cost of the given token counts at the model's
// rates. Pure function.
func (t Table) Cost(tokens TokenCounts, model string) float64 {
	r := t.RatesFor(model)
	return (float64(tokens.InputValue())*r.Input +
		float64(tokens.OutputValue())*r.Output +
		float64(tokens.CacheCreationValue())*r.CacheCreation +
		float64(tokens.CacheReadValue())*r.CacheRead) / 1_000_000
}

// RecordCost prices a record, preferring an explicit cost reported by
// the producer over the table estimate.
func (t Table) RecordCost(tokens TokenCounts, model string, explicit *float64) float64 {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	return t.Cost(tokens, model)
}
