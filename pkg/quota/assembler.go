package quota

import (
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/period"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
)

// Assembler combines blocks, period sums and pricing into a Report.
type Assembler struct {
	limits    Limits
	table     pricing.Table
	builder   *blocks.Builder
	estimator blocks.LimitEstimator
}

// NewAssembler creates an assembler with the given resolved limits and
// pricing table, using the default block duration and estimator.
func NewAssembler(limits Limits, table pricing.Table) *Assembler {
	return NewAssemblerWith(limits, table, blocks.NewBuilder(blocks.DefaultDuration, table), blocks.NewLimitEstimator())
}

// NewAssemblerWith creates an assembler with explicit block builder
// and limit estimator, for callers that tune window duration or
// estimator parameters.
func NewAssemblerWith(limits Limits, table pricing.Table, builder *blocks.Builder, estimator blocks.LimitEstimator) *Assembler {
	if limits.FilteredFamily == "" {
		limits.FilteredFamily = pricing.FamilySonnet
	}
	if limits.WeeklyReset == (ResetPolicy{}) {
		limits.WeeklyReset = DefaultResetPolicy()
	}
	return &Assembler{
		limits:    limits,
		table:     table,
		builder:   builder,
		estimator: estimator,
	}
}

// Assemble computes the four quota results for one cycle.
//
// Empty input is not an error: every result comes back with Used 0 and
// the configured (or estimated) limit.
func (a *Assembler) Assemble(in Inputs) Report {
	blks := a.builder.Build(in.Records, in.Now)
	blocks.AttachLimitEvents(blks, in.LimitEvents)
	active := blocks.Active(blks)

	weekBoundary := period.LastWeeklyReset(in.Now, a.limits.WeeklyReset.Weekday, a.limits.WeeklyReset.Hour)
	weekReset := period.NextWeeklyReset(in.Now, a.limits.WeeklyReset.Weekday, a.limits.WeeklyReset.Hour)
	monthReset := period.NextMonthStart(in.Now)

	return Report{
		Session: a.sessionResult(in, blks, active),
		WeeklyAll: NewResult(LabelWeeklyAll,
			float64(period.SumSince(in.Records, weekBoundary, period.CategoryOutput, "")),
			float64(a.limits.WeeklyOutputTokens),
			weekReset),
		WeeklyFiltered: NewResult(LabelWeeklyFiltered,
			float64(period.SumSince(in.Records, weekBoundary, period.CategoryOutput, a.limits.FilteredFamily)),
			float64(a.limits.WeeklyFilteredTokens),
			weekReset),
		Cost: NewResult(LabelCost,
			period.CostSince(in.Records, period.MonthStart(in.Now), a.table),
			a.limits.MonthlyCostUSD,
			monthReset),
		Blocks:      blks,
		GeneratedAt: in.Now,
	}
}

// sessionResult computes the current-session indicator: output tokens
// of the session's canonical records within the active window, against
// the plan limit or, when none is configured, the percentile estimate.
func (a *Assembler) sessionResult(in Inputs, blks []blocks.Block, active *blocks.Block) Result {
	session := in.SessionRecords
	if active != nil {
		session = lo.Filter(session, func(rec parser.UsageRecord, _ int) bool {
			return !rec.Timestamp.Before(active.StartTime)
		})
	}

	used := lo.SumBy(session, func(rec parser.UsageRecord) int {
		return rec.Tokens.OutputValue()
	})

	limit := a.limits.SessionOutputTokens
	if limit <= 0 {
		limit = a.estimator.OutputTokenLimit(blks, 0)
	}

	var resetAt time.Time
	if active != nil {
		resetAt = active.EndTime
		// A rate-limit notice inside the window carries the
		// authoritative reset instant.
		for _, ev := range active.LimitEvents {
			if ev.ResetAt != nil {
				resetAt = *ev.ResetAt
				break
			}
		}
	}

	return NewResult(LabelSession, float64(used), float64(limit), resetAt)
}
