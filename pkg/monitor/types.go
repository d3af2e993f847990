// Package monitor computes quota reports from discovered usage logs.
//
// The Engine performs one computation cycle: discover log files, read
// new data incrementally, deduplicate the corpus, and assemble the
// quota report. LiveMonitor runs the Engine continuously, re-computing
// on file changes and on a periodic ticker.
//
// Example usage:
//
//	eng, err := monitor.NewEngine(monitor.Config{}, disc, r, asm, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := eng.Compute(ctx, time.Now())
package monitor

import (
	"time"

	"github.com/0xmhha/quota-monitor/pkg/quota"
)

// Config holds the configuration for the engine and live monitor.
type Config struct {
	// SessionID selects the log treated as the current session.
	// Empty means the most recently modified log.
	SessionID string

	// RefreshInterval is the interval between periodic re-computations
	// in live mode. Default: 1s.
	RefreshInterval time.Duration

	// Workers is the number of concurrent file readers. Default: 5.
	Workers int
}

// Update represents one live monitoring cycle's output.
type Update struct {
	// Timestamp of the update
	Timestamp time.Time

	// Report is the freshly assembled quota report
	Report quota.Report

	// NewRecords is the number of usage records added since the
	// previous update
	NewRecords int
}

// LiveMonitor provides continuous quota monitoring.
type LiveMonitor interface {
	// Start begins monitoring. It performs an initial computation and
	// then recomputes on file changes and on the refresh ticker.
	Start() error

	// Stop stops the monitor gracefully.
	Stop() error

	// Updates returns the channel carrying report updates.
	Updates() <-chan Update

	// Report returns the most recent quota report.
	Report() quota.Report

	// Close closes the monitor and releases resources.
	Close() error
}
