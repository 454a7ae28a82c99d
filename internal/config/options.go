package config

import (
	"fmt"
	"strconv"
	"time"
)

// Option keys read from the settings file alongside the probe settings.
const (
	KeyBinary        = "engine.binary"
	KeyProbeDeadline = "engine.probe_deadline"
	KeyHardTimeout   = "engine.hard_timeout"
	KeyGrace         = "engine.grace"
	KeyDrain         = "engine.drain"
	KeyHistorySize   = "history.size"
	KeyHighWaterMark = "guard.high_water"
	KeyMetricsListen = "metrics.listen"
	KeyUIDisable     = "ui.disable"
	KeyLogLevel      = "log.level"
	KeyLogFile       = "log.file"
)

// DefaultGlobalOptions returns baseline settings used before file and CLI
// overrides. An empty Binary means /sbin/ping with a PATH fallback.
func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Binary:        "",
		ProbeDeadline: 1 * time.Second,
		HardTimeout:   3 * time.Second,
		Grace:         500 * time.Millisecond,
		Drain:         100 * time.Millisecond,
		HistorySize:   120,
		HighWaterMark: 3,
		MetricsListen: "",
		UIDisable:     false,
		LogLevel:      "info",
		LogFile:       "",
	}
}

// LoadOptions builds engine options from persisted entries, then applies CLI
// overrides and validates the result.
func LoadOptions(entries map[string]string, overrides CLIOverrides) (GlobalOptions, error) {
	global := DefaultGlobalOptions()
	if err := applyDirective(&global, entries); err != nil {
		return GlobalOptions{}, err
	}
	applyCLIOverrides(&global, overrides)
	if err := global.Validate(); err != nil {
		return GlobalOptions{}, err
	}
	return global, nil
}

// Validate rejects option combinations the probe engine cannot run with.
func (g GlobalOptions) Validate() error {
	if g.HardTimeout <= 0 {
		return fmt.Errorf("hard timeout must be positive, got %v", g.HardTimeout)
	}
	if g.Grace <= 0 {
		return fmt.Errorf("grace period must be positive, got %v", g.Grace)
	}
	if g.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1, got %d", g.HistorySize)
	}
	if g.ProbeDeadline <= 0 {
		return fmt.Errorf("probe deadline must be positive, got %v", g.ProbeDeadline)
	}
	if g.Drain <= 0 {
		return fmt.Errorf("drain window must be positive, got %v", g.Drain)
	}
	return nil
}

func applyDirective(global *GlobalOptions, pairs map[string]string) error {
	for key, val := range pairs {
		switch key {
		case KeyBinary:
			global.Binary = val
		case KeyProbeDeadline:
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.ProbeDeadline = d
		case KeyHardTimeout:
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.HardTimeout = d
		case KeyGrace:
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.Grace = d
		case KeyDrain:
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.Drain = d
		case KeyHistorySize:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.HistorySize = n
		case KeyHighWaterMark:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.HighWaterMark = n
		case KeyMetricsListen:
			global.MetricsListen = normalizeListen(val)
		case KeyUIDisable:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			global.UIDisable = b
		case KeyLogLevel:
			global.LogLevel = val
		case KeyLogFile:
			global.LogFile = val
		default:
			// Probe settings and unknown keys are handled elsewhere.
		}
	}
	return nil
}

func applyCLIOverrides(global *GlobalOptions, overrides CLIOverrides) {
	if overrides.Binary != nil {
		global.Binary = *overrides.Binary
	}
	if overrides.ProbeDeadline != nil {
		global.ProbeDeadline = *overrides.ProbeDeadline
	}
	if overrides.HardTimeout != nil {
		global.HardTimeout = *overrides.HardTimeout
	}
	if overrides.Grace != nil {
		global.Grace = *overrides.Grace
	}
	if overrides.Drain != nil {
		global.Drain = *overrides.Drain
	}
	if overrides.HistorySize != nil {
		global.HistorySize = *overrides.HistorySize
	}
	if overrides.HighWaterMark != nil {
		global.HighWaterMark = *overrides.HighWaterMark
	}
	if overrides.MetricsListen != nil {
		global.MetricsListen = normalizeListen(*overrides.MetricsListen)
	}
	if overrides.UIDisable != nil {
		global.UIDisable = *overrides.UIDisable
	}
	if overrides.LogLevel != nil {
		global.LogLevel = *overrides.LogLevel
	}
	if overrides.LogFile != nil {
		global.LogFile = *overrides.LogFile
	}
}

// normalizeListen turns a bare port into a listen address.
func normalizeListen(val string) string {
	if isDigits(val) {
		return ":" + val
	}
	return val
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
