package blocks

import "sort"

// Estimator defaults. CommonLimits are the output-token window limits
// of the known plan tiers; a completed block that reached 95% of any
// of them is treated as having hit its limit and forms the preferred
// peer group for the percentile estimate.
const (
	DefaultMinOutputLimit = 19_000
	DefaultMinCostLimit   = 18.0
	DefaultHitThreshold   = 0.95
	DefaultCostBuffer     = 1.2
)

// DefaultCommonLimits lists the known per-window output-token limits.
func DefaultCommonLimits() []int {
	return []int{19_000, 88_000, 220_000, 880_000}
}

// LimitEstimator derives a window capacity estimate from historical
// block totals, used when no explicit limit is configured.
//
// The fallback order is fixed and the result is always positive:
//
//  1. P90 of completed blocks that hit a known plan limit.
//  2. P90 of all completed blocks with nonzero output.
//  3. The configured minimum-limit constant.
//  4. The externally supplied static plan limit, floored to the
//     package default.
//
// Percentile method: linear interpolation at rank 0.9*(n-1). The
// interpolation rule is not load-bearing for correctness but must be
// deterministic, so it is fixed here.
type LimitEstimator struct {
	// CommonLimits are the known plan output limits used for hit
	// detection. Defaults to DefaultCommonLimits.
	CommonLimits []int

	// HitThreshold is the fraction of a common limit a block must
	// reach to count as having hit it. Defaults to 0.95.
	HitThreshold float64

	// MinOutputLimit floors every estimate. Defaults to 19000.
	MinOutputLimit int
}

// NewLimitEstimator returns an estimator with default parameters.
func NewLimitEstimator() LimitEstimator {
	return LimitEstimator{
		CommonLimits:   DefaultCommonLimits(),
		HitThreshold:   DefaultHitThreshold,
		MinOutputLimit: DefaultMinOutputLimit,
	}
}

// OutputTokenLimit estimates the per-window output-token capacity from
// completed blocks, falling back to planLimit when no history exists.
// Never returns a value <= 0.
func (e LimitEstimator) OutputTokenLimit(blks []Block, planLimit int) int {
	minLimit := e.MinOutputLimit
	if minLimit <= 0 {
		minLimit = DefaultMinOutputLimit
	}
	threshold := e.HitThreshold
	if threshold <= 0 {
		threshold = DefaultHitThreshold
	}
	common := e.CommonLimits
	if len(common) == 0 {
		common = DefaultCommonLimits()
	}

	var hit, all []float64
	for _, b := range completed(blks) {
		out := b.Tokens.Output
		if out <= 0 {
			continue
		}
		all = append(all, float64(out))
		if hitsLimit(out, common, threshold) {
			hit = append(hit, float64(out))
		}
	}

	values := hit
	if len(values) == 0 {
		values = all
	}

	if len(values) == 0 {
		// No usable history: the configured minimum wins; the static
		// plan limit is the final fallback when no minimum is set.
		if e.MinOutputLimit > 0 {
			return e.MinOutputLimit
		}
		if planLimit > 0 {
			return planLimit
		}
		return DefaultMinOutputLimit
	}

	p90 := int(percentile(values, 0.9))
	if p90 < minLimit {
		return minLimit
	}
	return p90
}

// CostLimit estimates the per-window spending capacity as the P90 of
// completed-block costs times a safety buffer, floored to minLimit.
// Returns minLimit (or the package default when minLimit <= 0) when no
// completed block carries cost.
func (e LimitEstimator) CostLimit(blks []Block, minLimit float64) float64 {
	if minLimit <= 0 {
		minLimit = DefaultMinCostLimit
	}

	var costs []float64
	for _, b := range completed(blks) {
		if b.CostUSD > 0 {
			costs = append(costs, b.CostUSD)
		}
	}

	if len(costs) == 0 {
		return minLimit
	}

	buffered := percentile(costs, 0.9) * DefaultCostBuffer
	if buffered < minLimit {
		return minLimit
	}
	return buffered
}

// completed returns the non-gap, non-active blocks: the historical
// peer group every estimate is computed over.
func completed(blks []Block) []Block {
	result := make([]Block, 0, len(blks))
	for _, b := range blks {
		if !b.IsGap && !b.IsActive {
			result = append(result, b)
		}
	}
	return result
}

func hitsLimit(output int, limits []int, threshold float64) bool {
	for _, lim := range limits {
		if float64(output) >= float64(lim)*threshold {
			return true
		}
	}
	return false
}

// percentile computes the p-th quantile (p in [0,1]) with linear
// interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := p * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
