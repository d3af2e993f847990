// Package quota assembles the four quota results the renderer
// consumes: current session, weekly all-model, weekly family-filtered,
// and monthly cost.
//
// The assembler is a pure function of its inputs and the supplied
// "now": it holds no mutable state, so repeated calls with overlapping
// inputs are idempotent and safe for polled refresh.
//
// Example usage:
//
//	asm := quota.NewAssembler(limits, pricing.Default())
//	report := asm.Assemble(quota.Inputs{
//	    Records:        canonical,
//	    SessionRecords: sessionCanonical,
//	    Now:            time.Now(),
//	})
//	fmt.Printf("weekly: %.1f%%\n", report.WeeklyAll.Ratio*100)
package quota

import (
	"time"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// Stable semantic labels of the four results.
const (
	LabelSession        = "session"
	LabelWeeklyAll      = "weekly-all"
	LabelWeeklyFiltered = "weekly-filtered"
	LabelCost           = "cost"
)

// Result is one quota indicator value.
//
// Ratio is Used/Limit, 0 when Limit <= 0 — a quota indicator must
// always render something rather than blow up on a missing limit.
// Values above 1 are valid (over-quota) and are never clamped; display
// treatment is the caller's decision.
type Result struct {
	Label   string    `json:"label"`
	Used    float64   `json:"used"`
	Limit   float64   `json:"limit"`
	Ratio   float64   `json:"ratio"`
	ResetAt time.Time `json:"reset_at,omitempty"`
}

// NewResult builds a Result, deriving the ratio.
func NewResult(label string, used, limit float64, resetAt time.Time) Result {
	ratio := 0.0
	if limit > 0 {
		ratio = used / limit
	}
	return Result{
		Label:   label,
		Used:    used,
		Limit:   limit,
		Ratio:   ratio,
		ResetAt: resetAt,
	}
}

// ResetPolicy describes the weekly reset boundary: the most recent
// instant at Weekday/Hour in now's location.
type ResetPolicy struct {
	Weekday time.Weekday
	Hour    int
}

// DefaultResetPolicy is Monday 04:00, matching the host application's
// weekly window.
func DefaultResetPolicy() ResetPolicy {
	return ResetPolicy{Weekday: time.Monday, Hour: 4}
}

// Limits carries the externally resolved caps. Zero values mean "not
// configured": the session limit then comes from the percentile
// estimator, and zero weekly/monthly caps simply yield ratio 0.
type Limits struct {
	// SessionOutputTokens is the plan-tier per-window output limit.
	SessionOutputTokens int

	// WeeklyOutputTokens caps output tokens across all models per week.
	WeeklyOutputTokens int

	// WeeklyFilteredTokens caps output tokens of FilteredFamily per week.
	WeeklyFilteredTokens int

	// FilteredFamily selects the family of the weekly-filtered result.
	// Defaults to sonnet.
	FilteredFamily pricing.Family

	// MonthlyCostUSD is the monthly spending cap.
	MonthlyCostUSD float64

	// WeeklyReset is the weekly boundary policy. Zero value means the
	// default (Monday 04:00).
	WeeklyReset ResetPolicy
}

// Inputs is one computation cycle's snapshot. Records must already be
// deduplicated (one canonical record per logical unit).
type Inputs struct {
	// Records is the full historical corpus in scope.
	Records []parser.UsageRecord

	// SessionRecords is the current session's own canonical stream,
	// distinguished from the corpus for the session result.
	SessionRecords []parser.UsageRecord

	// LimitEvents are rate-limit notices collected during parsing.
	LimitEvents []parser.LimitEvent

	// Now is the reference instant for windows and boundaries.
	Now time.Time
}

// Report is the assembled output of one cycle.
type Report struct {
	Session        Result `json:"session"`
	WeeklyAll      Result `json:"weekly_all"`
	WeeklyFiltered Result `json:"weekly_filtered"`
	Cost           Result `json:"cost"`

	// Blocks is the ordered window sequence, exposed read-only for
	// callers that display burn-rate or time-remaining information.
	Blocks []blocks.Block `json:"-"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Results returns the four results in stable order.
func (r Report) Results() []Result {
	return []Result{r.Session, r.WeeklyAll, r.WeeklyFiltered, r.Cost}
}
