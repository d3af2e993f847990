package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoClaudeDirs is returned when no Claude config directories are specified.
	ErrNoClaudeDirs = errors.New("no Claude config directories specified")

	// ErrInvalidPlan is returned when the plan name is not recognized.
	ErrInvalidPlan = errors.New("invalid plan: must be pro, max5, max20, or custom")

	// ErrNegativeQuotaLimit is returned when a quota cap is negative.
	ErrNegativeQuotaLimit = errors.New("invalid quota limit: must be >= 0")

	// ErrInvalidResetWeekday is returned when the reset weekday is not recognized.
	ErrInvalidResetWeekday = errors.New("invalid reset weekday: must be monday through sunday")

	// ErrInvalidResetHour is returned when the reset hour is out of range.
	ErrInvalidResetHour = errors.New("invalid reset hour: must be 0-23")

	// ErrInvalidFamily is returned when the filtered model family is not recognized.
	ErrInvalidFamily = errors.New("invalid model family: must be opus, sonnet, or haiku")

	// ErrInvalidBlockDuration is returned when the window duration is <= 0.
	ErrInvalidBlockDuration = errors.New("invalid block duration: must be > 0")

	// ErrInvalidHitThreshold is returned when the hit threshold is out of range.
	ErrInvalidHitThreshold = errors.New("invalid hit threshold: must be in (0, 1]")

	// ErrInvalidWatchInterval is returned when watch interval is <= 0.
	ErrInvalidWatchInterval = errors.New("invalid watch interval: must be > 0")

	// ErrInvalidDebounceWindow is returned when the debounce window is <= 0.
	ErrInvalidDebounceWindow = errors.New("invalid debounce window: must be > 0")

	// ErrInvalidWorkerPoolSize is returned when worker pool size is <= 0.
	ErrInvalidWorkerPoolSize = errors.New("invalid worker pool size: must be > 0")

	// ErrInvalidDisplayMode is returned when display mode is not recognized.
	ErrInvalidDisplayMode = errors.New("invalid display mode: must be simple, table, or json")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
