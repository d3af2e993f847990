package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default returns a configuration with sensible default values.
//
// The quota caps match the max5 subscription tier and the host
// application's published weekly and monthly allowances.
func Default() *Config {
	return &Config{
		ClaudeConfigDirs: defaultClaudeDirs(),
		Plan:             PlanMax5,
		Quota: QuotaConfig{
			WeeklyOutputTokens:   300_000,
			WeeklyFilteredTokens: 1_000_000,
			FilteredFamily:       "sonnet",
			MonthlyCostUSD:       50.0,
			ResetWeekday:         "monday",
			ResetHour:            4,
		},
		Blocks: BlocksConfig{
			Duration:     5 * time.Hour,
			HitThreshold: 0.95,
			CommonLimits: []int{19_000, 88_000, 220_000, 880_000},
		},
		Monitoring: MonitoringConfig{
			WatchInterval:  1 * time.Second,
			DebounceWindow: 500 * time.Millisecond,
		},
		Performance: PerformanceConfig{
			WorkerPoolSize: 5,
		},
		Display: DisplayConfig{
			DefaultMode:  "simple",
			ColorEnabled: true,
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

// defaultClaudeDirs returns the default Claude Code data directories.
//
// Searches in order:
// 1. ~/.config/claude/projects/ (new default)
// 2. ~/.claude/projects/ (legacy)
//
// Returns all directories that exist on the filesystem.
func defaultClaudeDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir not available
		return []string{"."}
	}

	candidates := []string{
		filepath.Join(homeDir, ".config", "claude", "projects"),
		filepath.Join(homeDir, ".claude", "projects"),
	}

	var dirs []string
	for _, dir := range candidates {
		if _, err := os.Stat(dir); err == nil {
			dirs = append(dirs, dir)
		}
	}

	// If no directories found, return the new default path
	// (will be created by the application if needed)
	if len(dirs) == 0 {
		return []string{filepath.Join(homeDir, ".config", "claude", "projects")}
	}

	return dirs
}

// defaultDBPath returns the default position-store file path.
//
// Returns: ~/.config/quota-monitor/positions.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./positions.db"
	}

	return filepath.Join(homeDir, ".config", "quota-monitor", "positions.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/quota-monitor/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "quota-monitor", "config.yaml")
}
