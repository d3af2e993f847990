// Package parser provides JSONL parsing for Claude Code usage logs.
// It turns raw log lines into normalized usage records carrying token
// counts, a model identifier, and the composite identity used for
// cross-file deduplication.
//
// The parser is designed to handle malformed lines gracefully by
// skipping invalid entries rather than failing: a single corrupt line
// must never abort aggregation of the rest of the file.
//
// Token fields preserve the distinction between "absent" and "present
// with value 0". A missing field means "no information", not "zero
// consumption"; all four counts are therefore carried as pointers and
// read through value accessors.
//
// Example usage:
//
//	p := parser.New()
//	records, events, offset, err := p.ParseFile("/path/to/session.jsonl", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range records {
//	    fmt.Printf("output tokens: %d\n", rec.Tokens.OutputValue())
//	}
package parser

import (
	"time"
)

// TokenCounts holds the four token categories of a usage record.
//
// Each field is nil when the source line did not carry the field at
// all. A non-nil pointer to 0 means the producer explicitly reported
// zero consumption.
//
// Invariant: non-nil counts are >= 0.
type TokenCounts struct {
	Input         *int
	Output        *int
	CacheCreation *int
	CacheRead     *int
}

// InputValue returns the input token count, or 0 when absent.
func (t TokenCounts) InputValue() int { return intValue(t.Input) }

// OutputValue returns the output token count, or 0 when absent.
func (t TokenCounts) OutputValue() int { return intValue(t.Output) }

// CacheCreationValue returns the cache-write token count, or 0 when absent.
func (t TokenCounts) CacheCreationValue() int { return intValue(t.CacheCreation) }

// CacheReadValue returns the cache-read token count, or 0 when absent.
func (t TokenCounts) CacheReadValue() int { return intValue(t.CacheRead) }

// Total returns the sum of all token categories, treating absent as 0.
func (t TokenCounts) Total() int {
	return t.InputValue() + t.OutputValue() +
		t.CacheCreationValue() + t.CacheReadValue()
}

// HasUsage reports whether at least one token field was present on the
// source line. A record with no token field at all is not a usage
// record; a record with an explicit all-zero usage object is.
func (t TokenCounts) HasUsage() bool {
	return t.Input != nil || t.Output != nil ||
		t.CacheCreation != nil || t.CacheRead != nil
}

// Merge combines two snapshots of the same logical unit field by field.
//
// Cumulative snapshots are monotone, so when both sides know a field
// the larger value wins. An absent field never overwrites a known
// value in either direction.
func (t TokenCounts) Merge(other TokenCounts) TokenCounts {
	return TokenCounts{
		Input:         mergeCount(t.Input, other.Input),
		Output:        mergeCount(t.Output, other.Output),
		CacheCreation: mergeCount(t.CacheCreation, other.CacheCreation),
		CacheRead:     mergeCount(t.CacheRead, other.CacheRead),
	}
}

// Validate checks that all present token counts are non-negative.
func (t TokenCounts) Validate() error {
	for _, v := range []*int{t.Input, t.Output, t.CacheCreation, t.CacheRead} {
		if v != nil && *v < 0 {
			return ErrNegativeTokenCount
		}
	}
	return nil
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func mergeCount(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

// UsageRecord is one normalized usage log line.
//
// Many records may share a logical id when the producer wrote
// incremental snapshots of the same exchange; deduplication selects
// one canonical record per id downstream.
//
// Invariant: Timestamp is never the zero value.
// Invariant: token counts, when present, are non-negative.
// Records are immutable once constructed.
type UsageRecord struct {
	Timestamp time.Time
	MessageID string
	RequestID string
	Model     string
	Tokens    TokenCounts
	CostUSD   *float64
}

// LogicalID returns the composite identity of the exchange this record
// belongs to. Two records describe the same logical unit iff both the
// message identity and the request identity match. ok is false when
// either half is missing; such records cannot be grouped and are
// treated as standalone.
func (r UsageRecord) LogicalID() (string, bool) {
	if r.MessageID == "" || r.RequestID == "" {
		return "", false
	}
	return r.MessageID + ":" + r.RequestID, true
}

// Validate checks the record invariants.
//
// Returns an error if:
//   - Timestamp is the zero value
//   - Any present token count is negative
func (r *UsageRecord) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return r.Tokens.Validate()
}

// LimitEvent is a rate-limit notice found in a log file. The host
// application records these as system messages ("wait N minutes") or
// tool results ("limit reached|<unix>"); when one falls inside the
// active block it pins the session reset instant.
type LimitEvent struct {
	Timestamp time.Time
	ResetAt   *time.Time
	Message   string
}
