package dedup

import (
	"testing"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/parser"
)

func intPtr(v int) *int { return &v }

func rec(ts time.Time, msgID, reqID string, output int) parser.UsageRecord {
	return parser.UsageRecord{
		Timestamp: ts,
		MessageID: msgID,
		RequestID: reqID,
		Tokens:    parser.TokenCounts{Output: intPtr(output)},
	}
}

func TestDeduplicateKeepsMaxCumulative(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	snapshots := []parser.UsageRecord{
		rec(base, "m1", "r1", 10),
		rec(base.Add(time.Second), "m1", "r1", 25),
		rec(base.Add(2*time.Second), "m1", "r1", 40),
	}

	// Every arrival order must select the 40-token snapshot: never the
	// first seen (10), never the sum (75).
	orders := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 2, 0},
		{2, 0, 1},
	}

	for _, order := range orders {
		input := make([]parser.UsageRecord, 0, len(order))
		for _, i := range order {
			input = append(input, snapshots[i])
		}

		got := Deduplicate(input)
		if len(got) != 1 {
			t.Fatalf("order %v: got %d records, want 1", order, len(got))
		}
		if out := got[0].Tokens.OutputValue(); out != 40 {
			t.Errorf("order %v: output = %d, want 40", order, out)
		}
	}
}

func TestDeduplicateExactDuplicates(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// The same final snapshot re-observed in a second file.
	got := Deduplicate([]parser.UsageRecord{
		rec(base, "m1", "r1", 140),
		rec(base, "m1", "r1", 140),
	})

	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if out := got[0].Tokens.OutputValue(); out != 140 {
		t.Errorf("output = %d, want 140 (not doubled)", out)
	}
}

func TestDeduplicateDistinctUnits(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// Same message id but different request id is a different unit,
	// and vice versa.
	got := Deduplicate([]parser.UsageRecord{
		rec(base, "m1", "r1", 10),
		rec(base, "m1", "r2", 20),
		rec(base, "m2", "r1", 30),
	})

	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}

func TestDeduplicateMissingIdentityPassesThrough(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	got := Deduplicate([]parser.UsageRecord{
		rec(base, "m1", "", 10),
		rec(base.Add(time.Second), "m1", "", 10),
		rec(base.Add(2*time.Second), "", "r1", 5),
	})

	// Without both identity halves there is no grouping; each record
	// stands alone even when fields repeat.
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}

func TestDeduplicateBackfillsAbsentFields(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	early := rec(base, "m1", "r1", 10)
	early.Tokens.Input = intPtr(200)

	late := rec(base.Add(time.Second), "m1", "r1", 40)
	// The later snapshot never carried input tokens; the early one's
	// known value must survive.

	got := Deduplicate([]parser.UsageRecord{late, early})
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if in := got[0].Tokens.InputValue(); in != 200 {
		t.Errorf("input = %d, want 200 (backfilled)", in)
	}
	if out := got[0].Tokens.OutputValue(); out != 40 {
		t.Errorf("output = %d, want 40", out)
	}
}

func TestDeduplicateSortsByTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	got := Deduplicate([]parser.UsageRecord{
		rec(base.Add(time.Hour), "m2", "r2", 2),
		rec(base, "m1", "r1", 1),
	})

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("first record at %v, want %v", got[0].Timestamp, base)
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Errorf("Deduplicate(nil) = %d records, want 0", len(got))
	}
}
