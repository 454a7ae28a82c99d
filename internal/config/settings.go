package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

const (
	KeyHost     = "probe.host"
	KeyInterval = "probe.interval"

	DefaultHost     = "1.1.1.1"
	DefaultInterval = 1 * time.Second

	MinInterval = 100 * time.Millisecond
	MaxInterval = time.Hour
)

// PresetHosts and PresetIntervals are the choices cycled through in the UI.
var (
	PresetHosts     = []string{"google.com", "1.1.1.1", "8.8.8.8"}
	PresetIntervals = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 5 * time.Second}
)

var ErrInvalidSettings = errors.New("invalid settings")

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{Host: DefaultHost, Interval: DefaultInterval}
}

// LoadSettings reads the probe settings from kv, filling in defaults for
// missing keys.
func LoadSettings(kv KV) (Settings, error) {
	s := DefaultSettings()
	if v, ok := kv.Get(KeyHost); ok && strings.TrimSpace(v) != "" {
		s.Host = strings.TrimSpace(v)
	}
	if v, ok := kv.Get(KeyInterval); ok && strings.TrimSpace(v) != "" {
		d, err := parseInterval(strings.TrimSpace(v))
		if err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, KeyInterval, err)
		}
		s.Interval = d
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// SaveSettings writes s to kv.
func SaveSettings(kv KV, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := kv.Set(KeyHost, s.Host); err != nil {
		return fmt.Errorf("save %s: %w", KeyHost, err)
	}
	if err := kv.Set(KeyInterval, s.Interval.String()); err != nil {
		return fmt.Errorf("save %s: %w", KeyInterval, err)
	}
	return nil
}

// ApplySettingsOverrides replaces the fields set on the command line.
func ApplySettingsOverrides(s Settings, overrides CLIOverrides) Settings {
	if overrides.Host != nil {
		s.Host = strings.TrimSpace(*overrides.Host)
	}
	if overrides.Interval != nil {
		s.Interval = *overrides.Interval
	}
	return s
}

// Validate checks the host and interval.
func (s Settings) Validate() error {
	if err := ValidateHost(s.Host); err != nil {
		return err
	}
	if s.Interval < MinInterval || s.Interval > MaxInterval {
		return fmt.Errorf("%w: interval %v outside [%v, %v]", ErrInvalidSettings, s.Interval, MinInterval, MaxInterval)
	}
	return nil
}

// ValidateHost accepts an IP literal or a hostname valid under IDNA lookup rules.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidSettings)
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("%w: host %q looks like a flag", ErrInvalidSettings, host)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return fmt.Errorf("%w: host %q: %v", ErrInvalidSettings, host, err)
	}
	return nil
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(val string) (time.Duration, error) {
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", val)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
