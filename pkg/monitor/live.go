package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/quota"
	"github.com/0xmhha/quota-monitor/pkg/watcher"
)

// liveMonitor implements the LiveMonitor interface.
type liveMonitor struct {
	config     Config
	logger     logger.Logger
	engine     *Engine
	watcher    watcher.Watcher
	watchPaths []string

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	lastReport quota.Report
	lastCount  int

	// Update channel for consumers
	updates chan Update
}

// NewLive creates a live monitor over an engine and a file watcher.
//
// Parameters:
//   - cfg: Monitor configuration
//   - eng: Computation engine
//   - w: File watcher
//   - watchPaths: Directories to watch for log changes
//   - log: Logger instance
//
// Returns:
//   - Configured LiveMonitor
//   - Error if a dependency is missing
func NewLive(cfg Config, eng *Engine, w watcher.Watcher, watchPaths []string, log logger.Logger) (LiveMonitor, error) {
	if eng == nil || w == nil {
		return nil, ErrInvalidConfig
	}

	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Second
	}

	m := &liveMonitor{
		config:     cfg,
		logger:     log,
		engine:     eng,
		watcher:    w,
		watchPaths: watchPaths,
		stopChan:   make(chan struct{}),
		updates:    make(chan Update, 10),
	}

	log.Info("live monitor created",
		"refresh_interval", cfg.RefreshInterval,
		"watch_paths", watchPaths)

	return m, nil
}

// Start implements LiveMonitor.Start.
func (m *liveMonitor) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	m.mu.Unlock()

	ctx := context.Background()

	// Initial computation
	if err := m.recompute(ctx); err != nil {
		return fmt.Errorf("initial computation failed: %w", err)
	}

	// Start file watcher
	if err := m.watcher.Start(ctx, m.watchPaths); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Start event processing
	go m.processEvents(ctx)

	// Start periodic updates
	go m.periodicUpdates(ctx)

	m.logger.Info("live monitor started")
	return nil
}

// Stop implements LiveMonitor.Stop.
func (m *liveMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if !m.running {
		return ErrMonitorNotRunning
	}

	// Signal stop
	close(m.stopChan)
	m.running = false

	// Stop watcher
	if err := m.watcher.Stop(); err != nil {
		m.logger.Warn("failed to stop watcher", "error", err)
	}

	m.logger.Info("live monitor stopped")
	return nil
}

// Updates implements LiveMonitor.Updates.
func (m *liveMonitor) Updates() <-chan Update {
	return m.updates
}

// Report implements LiveMonitor.Report.
func (m *liveMonitor) Report() quota.Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastReport
}

// processEvents handles file change events from the watcher.
func (m *liveMonitor) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-m.stopChan:
			return

		case event, ok := <-m.watcher.Events():
			if !ok {
				m.logger.Info("watcher events channel closed")
				return
			}

			m.logger.Debug("file change detected",
				"path", event.Path,
				"op", event.Op)

			if err := m.recompute(ctx); err != nil {
				m.logger.Warn("recomputation failed", "error", err)
			}

		case err, ok := <-m.watcher.Errors():
			if !ok {
				m.logger.Info("watcher errors channel closed")
				return
			}

			m.logger.Error("watcher error", "error", err)
		}
	}
}

// periodicUpdates recomputes on the refresh ticker. The report changes
// over time even without new data: windows expire and burn rates decay.
func (m *liveMonitor) periodicUpdates(ctx context.Context) {
	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return

		case <-ticker.C:
			if err := m.recompute(ctx); err != nil {
				m.logger.Warn("periodic recomputation failed", "error", err)
			}
		}
	}
}

// recompute runs one engine cycle and publishes the resulting update.
func (m *liveMonitor) recompute(ctx context.Context) error {
	report, err := m.engine.Compute(ctx, time.Now())
	if err != nil {
		return err
	}

	count := m.engine.RecordCount()

	m.mu.Lock()
	newRecords := count - m.lastCount
	m.lastReport = report
	m.lastCount = count
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return nil
	}

	update := Update{
		Timestamp:  time.Now(),
		Report:     report,
		NewRecords: newRecords,
	}

	// Send update (non-blocking)
	select {
	case m.updates <- update:
	default:
		m.logger.Warn("updates channel full, dropping update")
	}

	return nil
}

// Close implements LiveMonitor.Close.
func (m *liveMonitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	// Stop if running
	if m.running {
		close(m.stopChan)
		m.running = false
	}

	// Close update channel
	close(m.updates)

	m.logger.Info("live monitor closed")
	return nil
}
