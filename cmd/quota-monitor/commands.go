package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/quota-monitor/pkg/blocks"
	"github.com/0xmhha/quota-monitor/pkg/config"
	"github.com/0xmhha/quota-monitor/pkg/discovery"
	"github.com/0xmhha/quota-monitor/pkg/display"
	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/monitor"
	"github.com/0xmhha/quota-monitor/pkg/parser"
	"github.com/0xmhha/quota-monitor/pkg/pricing"
	"github.com/0xmhha/quota-monitor/pkg/quota"
	"github.com/0xmhha/quota-monitor/pkg/reader"
	"github.com/0xmhha/quota-monitor/pkg/watcher"
)

// app bundles the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	db     *bolt.DB
	reader reader.Reader
	disc   discovery.Discoverer
	engine *monitor.Engine
}

// newApp loads configuration and wires the computation pipeline.
//
// Parameters:
//   - configPath: explicit config file path, empty for the search path
//   - sessionID: session pinned as current, empty for most recent
//   - logLevel: override for the configured log level, empty to keep it
func newApp(configPath, sessionID, logLevel string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}
	log := logger.New(logger.Config{
		Level:  logLevel,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	a := &app{cfg: cfg, log: log}

	positionStore := a.openPositionStore()

	r, err := reader.New(reader.Config{
		PositionStore: positionStore,
		Parser:        parser.New(),
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize reader: %w", err)
	}
	a.reader = r

	asm, err := newAssembler(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.disc = discovery.New(cfg.ClaudeConfigDirs, log)

	engine, err := monitor.NewEngine(monitor.Config{
		SessionID: sessionID,
		Workers:   cfg.Performance.WorkerPoolSize,
	}, a.disc, a.reader, asm, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = engine

	return a, nil
}

// openPositionStore opens the BoltDB-backed position store, falling
// back to an in-memory store when the database is unavailable (for
// example, when another process holds the lock).
func (a *app) openPositionStore() reader.PositionStore {
	dbPath := a.cfg.Storage.DBPath
	if dbPath == "" {
		return reader.NewMemoryPositionStore()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		a.log.Warn("failed to create storage directory, positions will not persist",
			"path", dbPath, "error", err)
		return reader.NewMemoryPositionStore()
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		a.log.Warn("failed to open position database, positions will not persist",
			"path", dbPath, "error", err)
		return reader.NewMemoryPositionStore()
	}

	store, err := reader.NewBoltPositionStore(db)
	if err != nil {
		a.log.Warn("failed to initialize position store, positions will not persist",
			"path", dbPath, "error", err)
		_ = db.Close()
		return reader.NewMemoryPositionStore()
	}

	a.db = db
	return store
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.reader != nil {
		if err := a.reader.Close(); err != nil {
			a.log.Error("failed to close reader", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("failed to close position database", "error", err)
		}
	}
}

// loadConfig loads from the explicit path when given, otherwise from
// the search path.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// buildLimits resolves the quota caps from configuration.
func buildLimits(cfg *config.Config) (quota.Limits, error) {
	weekday, err := config.ParseWeekday(cfg.Quota.ResetWeekday)
	if err != nil {
		return quota.Limits{}, err
	}

	return quota.Limits{
		SessionOutputTokens:  cfg.SessionOutputLimit(),
		WeeklyOutputTokens:   cfg.Quota.WeeklyOutputTokens,
		WeeklyFilteredTokens: cfg.Quota.WeeklyFilteredTokens,
		FilteredFamily:       pricing.Family(cfg.Quota.FilteredFamily),
		MonthlyCostUSD:       cfg.Quota.MonthlyCostUSD,
		WeeklyReset:          quota.ResetPolicy{Weekday: weekday, Hour: cfg.Quota.ResetHour},
	}, nil
}

// newAssembler builds the report assembler from configuration.
func newAssembler(cfg *config.Config) (*quota.Assembler, error) {
	limits, err := buildLimits(cfg)
	if err != nil {
		return nil, err
	}

	table := pricing.Default()
	builder := blocks.NewBuilder(cfg.Blocks.Duration, table)

	estimator := blocks.NewLimitEstimator()
	if cfg.Blocks.HitThreshold > 0 {
		estimator.HitThreshold = cfg.Blocks.HitThreshold
	}
	if len(cfg.Blocks.CommonLimits) > 0 {
		estimator.CommonLimits = cfg.Blocks.CommonLimits
	}

	return quota.NewAssemblerWith(limits, table, builder, estimator), nil
}

// displayFormat resolves the output format from the flag and the
// configured default.
func displayFormat(flagValue, configured string) display.Format {
	name := flagValue
	if name == "" {
		name = configured
	}

	switch name {
	case "json":
		return display.FormatJSON
	case "table":
		return display.FormatTable
	default:
		return display.FormatSimple
	}
}

// quotaCommand computes and displays the one-shot quota report.
type quotaCommand struct {
	sessionID  string
	format     string
	compact    bool
	noColor    bool
	configPath string
}

// Execute runs the quota command.
func (c *quotaCommand) Execute() error {
	a, err := newApp(c.configPath, c.sessionID, "")
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Compute(context.Background(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to compute quota report: %w", err)
	}

	formatter := display.New(display.Config{
		Format:       displayFormat(c.format, a.cfg.Display.DefaultMode),
		ColorEnabled: a.cfg.Display.ColorEnabled && !c.noColor,
		Compact:      c.compact,
	})

	return formatter.FormatReport(os.Stdout, report)
}

// blocksCommand displays the billing-window sequence.
type blocksCommand struct {
	format     string
	compact    bool
	noColor    bool
	configPath string
}

// Execute runs the blocks command.
func (c *blocksCommand) Execute() error {
	a, err := newApp(c.configPath, "", "")
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	report, err := a.engine.Compute(context.Background(), now)
	if err != nil {
		return fmt.Errorf("failed to compute billing windows: %w", err)
	}

	if len(report.Blocks) == 0 {
		fmt.Println("No usage recorded")
		return nil
	}

	formatter := display.New(display.Config{
		Format:       displayFormat(c.format, a.cfg.Display.DefaultMode),
		ColorEnabled: a.cfg.Display.ColorEnabled && !c.noColor,
		Compact:      c.compact,
	})

	return formatter.FormatBlocks(os.Stdout, report.Blocks, now)
}

// listCommand lists all discovered usage logs.
type listCommand struct {
	configPath string
}

// Execute runs the list command.
func (c *listCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	disc := discovery.New(cfg.ClaudeConfigDirs, log)
	logs, err := disc.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover usage logs: %w", err)
	}

	if len(logs) == 0 {
		fmt.Println("No usage logs found")
		return nil
	}

	fmt.Printf("Found %d usage log(s):\n\n", len(logs))
	for _, lf := range logs {
		fmt.Printf("  %s\n", lf.SessionID)
		fmt.Printf("    Path: %s\n", lf.FilePath)
		if lf.ProjectPath != "" {
			fmt.Printf("    Project: %s\n", lf.ProjectPath)
		}
		fmt.Printf("    Modified: %s\n", formatModTime(lf.ModTime))
		fmt.Println()
	}

	return nil
}

// watchCommand provides live quota monitoring.
type watchCommand struct {
	sessionID   string
	refresh     time.Duration
	format      string
	noColor     bool
	clearScreen bool
	configPath  string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	// Quiet logs so the live display stays readable.
	a, err := newApp(c.configPath, c.sessionID, "error")
	if err != nil {
		return err
	}
	defer a.Close()

	refresh := c.refresh
	if refresh <= 0 {
		refresh = a.cfg.Monitoring.WatchInterval
	}

	w, err := watcher.New(watcher.Config{
		DebounceInterval: a.cfg.Monitoring.DebounceWindow,
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			a.log.Error("failed to close watcher", "error", closeErr)
		}
	}()

	mon, err := monitor.NewLive(monitor.Config{
		SessionID:       c.sessionID,
		RefreshInterval: refresh,
		Workers:         a.cfg.Performance.WorkerPoolSize,
	}, a.engine, w, a.cfg.ClaudeConfigDirs, a.log)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	defer func() {
		if closeErr := mon.Close(); closeErr != nil {
			a.log.Error("failed to close monitor", "error", closeErr)
		}
	}()

	if err := mon.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	formatter := display.New(display.Config{
		Format:       displayFormat(c.format, a.cfg.Display.DefaultMode),
		ColorEnabled: a.cfg.Display.ColorEnabled && !c.noColor,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if c.clearScreen {
		fmt.Print("\033[2J\033[H")
	}

	fmt.Println("Live Quota Monitor - Press Ctrl+C to stop")
	if c.sessionID != "" {
		fmt.Printf("Session: %s | ", c.sessionID)
	} else {
		fmt.Print("Most recent session | ")
	}
	fmt.Printf("Refresh: %s\n", refresh)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println()

	for {
		select {
		case <-sigChan:
			fmt.Print("\n\n")
			fmt.Println("Stopping monitor...")
			if err := mon.Stop(); err != nil {
				a.log.Error("failed to stop monitor", "error", err)
			}
			return nil

		case update := <-mon.Updates():
			c.displayUpdate(formatter, update)
		}
	}
}

// displayUpdate renders a live monitoring update.
func (c *watchCommand) displayUpdate(formatter display.Formatter, update monitor.Update) {
	if c.clearScreen {
		// Move cursor below the header and clear from there.
		fmt.Print("\033[5;1H\033[J")
	}

	fmt.Printf("Updated %s", update.Timestamp.Format("15:04:05"))
	if update.NewRecords > 0 {
		fmt.Printf(" (+%d records)", update.NewRecords)
	}
	fmt.Println()
	fmt.Println()

	if err := formatter.FormatReport(os.Stdout, update.Report); err != nil {
		fmt.Fprintf(os.Stderr, "display error: %v\n", err)
	}
}
