package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/quota-monitor/pkg/discovery"
	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
	"github.com/0xmhha/quota-monitor/pkg/quota"
	"github.com/0xmhha/quota-monitor/pkg/reader"
	"github.com/0xmhha/quota-monitor/pkg/watcher"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) // Thursday

const (
	sessionA = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	sessionB = "b2c3d4e5-f6a7-8901-bcde-f12345678901"
)

func usageLine(ts time.Time, msgID, reqID string, output int) string {
	return fmt.Sprintf(`{"timestamp":%q,"type":"assistant","requestId":%q,"message":{"id":%q,"model":"claude-sonnet-4","usage":{"input_tokens":10,"output_tokens":%d}}}`,
		ts.Format(time.RFC3339), reqID, msgID, output) + "\n"
}

func writeLog(t *testing.T, baseDir, project, sessionID, content string) string {
	t.Helper()

	dir := filepath.Join(baseDir, project)
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func testLimits() quota.Limits {
	return quota.Limits{
		SessionOutputTokens:  88_000,
		WeeklyOutputTokens:   300_000,
		WeeklyFilteredTokens: 1_000_000,
		MonthlyCostUSD:       50.0,
	}
}

func newTestEngine(t *testing.T, cfg Config, baseDir string) *Engine {
	t.Helper()

	log := logger.Noop()
	disc := discovery.New([]string{baseDir}, log)

	r, err := reader.New(reader.Config{
		PositionStore: reader.NewMemoryPositionStore(),
		Parser:        parser.New(),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	asm := quota.NewAssembler(testLimits(), pricing.Default())

	eng, err := NewEngine(cfg, disc, r, asm, log)
	require.NoError(t, err)
	return eng
}

func TestNewEngineValidation(t *testing.T) {
	log := logger.Noop()
	disc := discovery.New(nil, log)
	asm := quota.NewAssembler(testLimits(), pricing.Default())

	r, err := reader.New(reader.Config{
		PositionStore: reader.NewMemoryPositionStore(),
		Parser:        parser.New(),
	}, log)
	require.NoError(t, err)
	defer r.Close()

	_, err = NewEngine(Config{}, nil, r, asm, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(Config{}, disc, nil, asm, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(Config{}, disc, r, nil, log)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngineCompute(t *testing.T) {
	baseDir := t.TempDir()
	ts := testNow.Add(-time.Hour)

	writeLog(t, baseDir, "proj1", sessionA,
		usageLine(ts, "m1", "r1", 100)+usageLine(ts.Add(time.Minute), "m2", "r2", 50))
	writeLog(t, baseDir, "proj2", sessionB,
		usageLine(ts.Add(2*time.Minute), "m3", "r3", 40))

	eng := newTestEngine(t, Config{}, baseDir)

	report, err := eng.Compute(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 190.0, report.WeeklyAll.Used)
	assert.Equal(t, 3, eng.RecordCount())
}

func TestEngineComputeDeduplicatesAcrossFiles(t *testing.T) {
	baseDir := t.TempDir()
	ts := testNow.Add(-time.Hour)

	// The same logical unit appears in two logs with cumulative
	// snapshots 100 and 140; the larger one must win.
	writeLog(t, baseDir, "proj1", sessionA, usageLine(ts, "m1", "r1", 100))
	writeLog(t, baseDir, "proj2", sessionB, usageLine(ts.Add(time.Second), "m1", "r1", 140))

	eng := newTestEngine(t, Config{}, baseDir)

	report, err := eng.Compute(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 140.0, report.WeeklyAll.Used)
}

func TestEngineComputeIncremental(t *testing.T) {
	baseDir := t.TempDir()
	ts := testNow.Add(-time.Hour)

	path := writeLog(t, baseDir, "proj1", sessionA, usageLine(ts, "m1", "r1", 100))

	eng := newTestEngine(t, Config{}, baseDir)
	ctx := context.Background()

	report, err := eng.Compute(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.WeeklyAll.Used)

	appendLog(t, path, usageLine(ts.Add(time.Minute), "m2", "r2", 30))

	report, err = eng.Compute(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 130.0, report.WeeklyAll.Used)
	assert.Equal(t, 2, eng.RecordCount())
}

func TestEngineComputeEmptyBaseDir(t *testing.T) {
	eng := newTestEngine(t, Config{}, t.TempDir())

	report, err := eng.Compute(context.Background(), testNow)
	require.NoError(t, err)

	assert.Zero(t, report.WeeklyAll.Used)
	assert.Zero(t, report.Session.Used)
}

func TestEngineSessionSelection(t *testing.T) {
	baseDir := t.TempDir()
	ts := testNow.Add(-time.Hour)

	pathA := writeLog(t, baseDir, "proj1", sessionA, usageLine(ts, "m1", "r1", 100))
	pathB := writeLog(t, baseDir, "proj1", sessionB, usageLine(ts.Add(time.Minute), "m2", "r2", 70))

	// Make session B unambiguously the most recently modified.
	older := testNow.Add(-30 * time.Minute)
	require.NoError(t, os.Chtimes(pathA, older, older))
	require.NoError(t, os.Chtimes(pathB, testNow, testNow))

	t.Run("defaults to most recent log", func(t *testing.T) {
		eng := newTestEngine(t, Config{}, baseDir)

		report, err := eng.Compute(context.Background(), testNow)
		require.NoError(t, err)

		assert.Equal(t, 70.0, report.Session.Used)
	})

	t.Run("explicit session ID wins", func(t *testing.T) {
		eng := newTestEngine(t, Config{SessionID: sessionA}, baseDir)

		report, err := eng.Compute(context.Background(), testNow)
		require.NoError(t, err)

		assert.Equal(t, 100.0, report.Session.Used)
	})
}

func newTestLive(t *testing.T, baseDir string) LiveMonitor {
	t.Helper()

	log := logger.Noop()
	eng := newTestEngine(t, Config{}, baseDir)

	w, err := watcher.New(watcher.Config{
		DebounceInterval: 50 * time.Millisecond,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	m, err := NewLive(Config{RefreshInterval: time.Hour}, eng, w, []string{baseDir}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestLiveMonitorLifecycle(t *testing.T) {
	baseDir := t.TempDir()
	ts := time.Now().Add(-time.Hour)
	writeLog(t, baseDir, "proj1", sessionA, usageLine(ts, "m1", "r1", 100))

	m := newTestLive(t, baseDir)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrMonitorRunning)

	// Initial computation published an update.
	select {
	case up := <-m.Updates():
		assert.Equal(t, 1, up.NewRecords)
		assert.Equal(t, 100.0, up.Report.WeeklyAll.Used)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial update")
	}

	assert.Equal(t, 100.0, m.Report().WeeklyAll.Used)

	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Stop(), ErrMonitorNotRunning)
}

func TestLiveMonitorFileChange(t *testing.T) {
	baseDir := t.TempDir()
	ts := time.Now().Add(-time.Hour)
	path := writeLog(t, baseDir, "proj1", sessionA, usageLine(ts, "m1", "r1", 100))

	m := newTestLive(t, baseDir)
	require.NoError(t, m.Start())
	defer m.Stop() // nolint:errcheck

	// Drain the initial update.
	select {
	case <-m.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial update")
	}

	appendLog(t, path, usageLine(ts.Add(time.Minute), "m2", "r2", 30))

	// The watcher-triggered recomputation must pick up the new record.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case up := <-m.Updates():
			if up.Report.WeeklyAll.Used == 130.0 {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for file-change update")
		}
	}
}

func TestLiveMonitorClosed(t *testing.T) {
	m := newTestLive(t, t.TempDir())

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Start(), ErrMonitorClosed)
	assert.ErrorIs(t, m.Stop(), ErrMonitorClosed)

	// Close is idempotent.
	assert.NoError(t, m.Close())
}
