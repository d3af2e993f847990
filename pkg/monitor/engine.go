package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/dedup"
	"github.com/0xmhha/quota-monitor/pkg/discovery"
	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/quota"
	"github.com/0xmhha/quota-monitor/pkg/reader"
)

// fileState holds the accumulated records of one log file across
// incremental reads.
type fileState struct {
	sessionID string
	records   []parser.UsageRecord
	events    []parser.LimitEvent
	modTime   int64
}

// Engine performs one quota computation cycle at a time.
//
// The engine keeps per-file record accumulations between calls, so
// repeated Compute calls only read data appended since the previous
// call. It is safe for concurrent use.
type Engine struct {
	config    Config
	discovery discovery.Discoverer
	reader    reader.Reader
	assembler *quota.Assembler
	logger    logger.Logger

	mu    sync.Mutex
	files map[string]*fileState // keyed by resolved path
}

// NewEngine creates a quota computation engine.
//
// Parameters:
//   - cfg: Engine configuration
//   - disc: Log file discovery
//   - r: Incremental reader
//   - asm: Quota assembler
//   - log: Logger instance
//
// Returns:
//   - Configured Engine
//   - Error if a dependency is missing
func NewEngine(cfg Config, disc discovery.Discoverer, r reader.Reader, asm *quota.Assembler, log logger.Logger) (*Engine, error) {
	if disc == nil || r == nil || asm == nil {
		return nil, ErrInvalidConfig
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}

	return &Engine{
		config:    cfg,
		discovery: disc,
		reader:    r,
		assembler: asm,
		logger:    log,
		files:     make(map[string]*fileState),
	}, nil
}

// Compute runs one full cycle: discover logs, read appended data,
// deduplicate, and assemble the quota report for the given instant.
//
// Returns a fresh Report; the engine never mutates a returned report
// afterwards.
func (e *Engine) Compute(ctx context.Context, now time.Time) (quota.Report, error) {
	logs, err := e.discovery.Discover()
	if err != nil {
		return quota.Report{}, fmt.Errorf("failed to discover logs: %w", err)
	}

	if err := e.refresh(ctx, logs); err != nil {
		return quota.Report{}, err
	}

	e.mu.Lock()
	records, events := e.collect()
	sessionRecords := e.sessionRecords()
	e.mu.Unlock()

	report := e.assembler.Assemble(quota.Inputs{
		Records:        dedup.Deduplicate(records),
		SessionRecords: dedup.Deduplicate(sessionRecords),
		LimitEvents:    events,
		Now:            now,
	})

	e.logger.Debug("computation cycle complete",
		"files", len(logs),
		"records", len(records),
		"limit_events", len(events))

	return report, nil
}

// RecordCount returns the number of raw records accumulated so far.
func (e *Engine) RecordCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, st := range e.files {
		total += len(st.records)
	}
	return total
}

// refresh reads appended data from every discovered log using a small
// worker pool.
func (e *Engine) refresh(ctx context.Context, logs []discovery.LogFile) error {
	jobs := make(chan discovery.LogFile)

	var wg sync.WaitGroup
	for i := 0; i < e.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lf := range jobs {
				e.readFile(ctx, lf)
			}
		}()
	}

	for _, lf := range logs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- lf:
		}
	}
	close(jobs)
	wg.Wait()

	return nil
}

// readFile reads one log's appended data into its accumulated state.
func (e *Engine) readFile(ctx context.Context, lf discovery.LogFile) {
	records, events, err := e.reader.Read(ctx, lf.ResolvedPath)
	if err != nil {
		e.logger.Warn("failed to read log file",
			"path", lf.FilePath,
			"error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.files[lf.ResolvedPath]
	if !ok {
		st = &fileState{sessionID: lf.SessionID}
		e.files[lf.ResolvedPath] = st
	}
	st.records = append(st.records, records...)
	st.events = append(st.events, events...)
	st.modTime = lf.ModTime
}

// collect flattens the per-file accumulations. Caller must hold e.mu.
func (e *Engine) collect() ([]parser.UsageRecord, []parser.LimitEvent) {
	var records []parser.UsageRecord
	var events []parser.LimitEvent

	for _, st := range e.files {
		records = append(records, st.records...)
		events = append(events, st.events...)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return records, events
}

// sessionRecords returns the raw records of the current session's log:
// the configured session ID, or the most recently modified log when
// none is configured. Caller must hold e.mu.
func (e *Engine) sessionRecords() []parser.UsageRecord {
	if e.config.SessionID != "" {
		for _, st := range e.files {
			if st.sessionID == e.config.SessionID {
				return st.records
			}
		}
		return nil
	}

	var latest *fileState
	for _, st := range e.files {
		if latest == nil || st.modTime > latest.modTime {
			latest = st
		}
	}
	if latest == nil {
		return nil
	}
	return latest.records
}
