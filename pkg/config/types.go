// Package config provides configuration management for quota-monitor.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Claude dirs: %v\n", cfg.ClaudeConfigDirs)
package config

import (
	"strings"
	"time"
)

// Plan identifies a subscription tier with known quota limits.
type Plan string

// Known subscription plans. PlanCustom carries no built-in limits;
// the session limit then comes from the percentile estimator.
const (
	PlanPro    Plan = "pro"
	PlanMax5   Plan = "max5"
	PlanMax20  Plan = "max20"
	PlanCustom Plan = "custom"
)

// PlanLimits holds the built-in per-window caps of a subscription tier.
type PlanLimits struct {
	// SessionOutputTokens is the output-token cap of one billing window.
	SessionOutputTokens int

	// SessionCostUSD is the cost cap of one billing window.
	SessionCostUSD float64
}

// planLimits maps known plans to their caps.
var planLimits = map[Plan]PlanLimits{
	PlanPro:   {SessionOutputTokens: 19_000, SessionCostUSD: 18.0},
	PlanMax5:  {SessionOutputTokens: 88_000, SessionCostUSD: 35.0},
	PlanMax20: {SessionOutputTokens: 220_000, SessionCostUSD: 140.0},
}

// Limits returns the built-in caps of the plan. The second return is
// false for PlanCustom and unknown plans.
func (p Plan) Limits() (PlanLimits, bool) {
	l, ok := planLimits[Plan(strings.ToLower(string(p)))]
	return l, ok
}

// Config represents the complete application configuration.
//
// Invariants:
// - ClaudeConfigDirs must have at least one directory
// - Quota weekly/monthly caps must be >= 0
// - Blocks.Duration must be > 0
// - WatchInterval and DebounceWindow must be > 0
// - WorkerPoolSize must be > 0.
type Config struct {
	// Claude data directories to scan for usage logs
	ClaudeConfigDirs []string `yaml:"claude_config_dirs"`

	// Subscription plan (pro, max5, max20, custom)
	Plan Plan `yaml:"plan"`

	// Quota limits and reset policy
	Quota QuotaConfig `yaml:"quota"`

	// Billing-window settings
	Blocks BlocksConfig `yaml:"blocks"`

	// Monitoring settings
	Monitoring MonitoringConfig `yaml:"monitoring"`

	// Performance settings
	Performance PerformanceConfig `yaml:"performance"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// QuotaConfig contains the quota caps and the weekly reset policy.
type QuotaConfig struct {
	// SessionOutputTokens overrides the plan's per-window output cap.
	// Zero means "use the plan's cap, or estimate from history".
	SessionOutputTokens int `yaml:"session_output_tokens"`

	// WeeklyOutputTokens caps output tokens across all models per week.
	WeeklyOutputTokens int `yaml:"weekly_output_tokens"`

	// WeeklyFilteredTokens caps output tokens of FilteredFamily per week.
	WeeklyFilteredTokens int `yaml:"weekly_filtered_tokens"`

	// FilteredFamily selects the model family of the filtered weekly
	// quota (opus, sonnet, haiku). Defaults to sonnet.
	FilteredFamily string `yaml:"filtered_family"`

	// MonthlyCostUSD is the monthly spending cap.
	MonthlyCostUSD float64 `yaml:"monthly_cost_usd"`

	// ResetWeekday is the weekday of the weekly reset (monday..sunday).
	ResetWeekday string `yaml:"reset_weekday"`

	// ResetHour is the local hour of the weekly reset (0-23).
	ResetHour int `yaml:"reset_hour"`
}

// BlocksConfig contains billing-window settings.
type BlocksConfig struct {
	// Duration of one billing window
	Duration time.Duration `yaml:"duration"`

	// HitThreshold is the fraction of the estimated limit at which a
	// window counts as having hit the cap (0 < t <= 1).
	HitThreshold float64 `yaml:"hit_threshold"`

	// CommonLimits are the well-known output caps the estimator snaps
	// hit windows against.
	CommonLimits []int `yaml:"common_limits"`
}

// MonitoringConfig contains live-monitoring settings.
type MonitoringConfig struct {
	// How often to poll for file changes when the watcher falls back
	WatchInterval time.Duration `yaml:"watch_interval"`

	// DebounceWindow coalesces bursts of file events into one refresh
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// PerformanceConfig contains performance tuning settings.
type PerformanceConfig struct {
	// Number of concurrent file readers
	WorkerPoolSize int `yaml:"worker_pool_size"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default display mode (simple, table, json)
	DefaultMode string `yaml:"default_mode"`

	// Enable colored output
	ColorEnabled bool `yaml:"color_enabled"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to the BoltDB file holding per-file read positions
	DBPath string `yaml:"db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated:
//   - No Claude config directories specified
//   - Unknown plan name
//   - Negative quota caps or out-of-range reset settings
//   - Invalid window duration or hit threshold
//   - Invalid durations or worker pool size
//   - Invalid display mode or log level
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.ClaudeConfigDirs) == 0 {
		return ErrNoClaudeDirs
	}

	switch Plan(strings.ToLower(string(c.Plan))) {
	case PlanPro, PlanMax5, PlanMax20, PlanCustom:
	default:
		return ErrInvalidPlan
	}

	// Validate quota config
	if c.Quota.SessionOutputTokens < 0 ||
		c.Quota.WeeklyOutputTokens < 0 ||
		c.Quota.WeeklyFilteredTokens < 0 ||
		c.Quota.MonthlyCostUSD < 0 {
		return ErrNegativeQuotaLimit
	}
	if _, err := ParseWeekday(c.Quota.ResetWeekday); err != nil {
		return err
	}
	if c.Quota.ResetHour < 0 || c.Quota.ResetHour > 23 {
		return ErrInvalidResetHour
	}

	validFamilies := map[string]bool{
		"": true, "opus": true, "sonnet": true, "haiku": true,
	}
	if !validFamilies[strings.ToLower(c.Quota.FilteredFamily)] {
		return ErrInvalidFamily
	}

	// Validate blocks config
	if c.Blocks.Duration <= 0 {
		return ErrInvalidBlockDuration
	}
	if c.Blocks.HitThreshold <= 0 || c.Blocks.HitThreshold > 1 {
		return ErrInvalidHitThreshold
	}

	// Validate monitoring config
	if c.Monitoring.WatchInterval <= 0 {
		return ErrInvalidWatchInterval
	}
	if c.Monitoring.DebounceWindow <= 0 {
		return ErrInvalidDebounceWindow
	}

	// Validate performance config
	if c.Performance.WorkerPoolSize <= 0 {
		return ErrInvalidWorkerPoolSize
	}

	// Validate display config
	validModes := map[string]bool{
		"simple": true,
		"table":  true,
		"json":   true,
	}
	if !validModes[c.Display.DefaultMode] {
		return ErrInvalidDisplayMode
	}

	// Validate logging config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// SessionOutputLimit resolves the effective per-window output cap:
// the explicit override if set, otherwise the plan's built-in cap.
// Returns 0 when neither is configured.
func (c *Config) SessionOutputLimit() int {
	if c.Quota.SessionOutputTokens > 0 {
		return c.Quota.SessionOutputTokens
	}
	if l, ok := c.Plan.Limits(); ok {
		return l.SessionOutputTokens
	}
	return 0
}

// ParseWeekday parses a lowercase weekday name. Empty input maps to
// Monday, the default weekly reset day.
func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(name) {
	case "", "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	case "sunday":
		return time.Sunday, nil
	default:
		return time.Sunday, ErrInvalidResetWeekday
	}
}
