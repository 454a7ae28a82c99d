package config

import "time"

// GlobalOptions holds engine settings from the settings file and CLI overrides.
type GlobalOptions struct {
	Binary        string
	ProbeDeadline time.Duration
	HardTimeout   time.Duration
	Grace         time.Duration
	Drain         time.Duration
	HistorySize   int
	HighWaterMark int
	MetricsListen string
	UIDisable     bool
	LogLevel      string
	LogFile       string
}

// Settings is the probe target configuration. Changing either field resets
// collected statistics.
type Settings struct {
	Host     string
	Interval time.Duration
}

// CLIOverrides holds optional CLI values that override file values.
type CLIOverrides struct {
	Binary        *string
	ProbeDeadline *time.Duration
	HardTimeout   *time.Duration
	Grace         *time.Duration
	Drain         *time.Duration
	HistorySize   *int
	HighWaterMark *int
	MetricsListen *string
	UIDisable     *bool
	LogLevel      *string
	LogFile       *string
	Host          *string
	Interval      *time.Duration
}

// KV is a flat string key-value store for persisted settings.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}
