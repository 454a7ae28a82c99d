package cli

import (
	"strconv"
	"time"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/spf13/cobra"
)

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Type() string {
	return "duration"
}

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// OptionalInt records an int flag and whether it was set.
type OptionalInt struct {
	value int
	set   bool
}

func (o *OptionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *OptionalInt) Type() string {
	return "int"
}

func (o *OptionalInt) Value() (int, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Type() string {
	return "string"
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) Type() string {
	return "bool"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

// Flags holds every command-line override shared by the monitor and probe
// commands.
type Flags struct {
	SettingsPath string

	Host          OptionalString
	Interval      OptionalDuration
	Binary        OptionalString
	ProbeDeadline OptionalDuration
	HardTimeout   OptionalDuration
	Grace         OptionalDuration
	Drain         OptionalDuration
	HistorySize   OptionalInt
	HighWaterMark OptionalInt
	MetricsListen OptionalString
	NoUI          OptionalBool
	LogLevel      OptionalString
	LogFile       OptionalString
}

// AddFlags registers the shared flags as persistent flags on cmd.
func AddFlags(cmd *cobra.Command, f *Flags) {
	fs := cmd.PersistentFlags()
	fs.StringVar(&f.SettingsPath, "settings", "", "settings file (default $XDG_CONFIG_HOME/latencybar/settings.yaml)")
	fs.VarP(&f.Host, "host", "H", "host to probe (override settings)")
	fs.VarP(&f.Interval, "interval", "i", "probe interval (override settings)")
	fs.Var(&f.Binary, "binary", "ping executable (default /sbin/ping, then ping on PATH)")
	fs.Var(&f.ProbeDeadline, "probe-deadline", "reply deadline passed to ping -W")
	fs.Var(&f.HardTimeout, "hard-timeout", "maximum runtime of one probe process")
	fs.Var(&f.Grace, "grace", "wait between terminate and kill")
	fs.Var(&f.Drain, "drain", "output drain window after the probe exits")
	fs.Var(&f.HistorySize, "history", "number of samples kept for the sparkline")
	fs.Var(&f.HighWaterMark, "high-water", "warn when this many probes run at once")
	fs.Var(&f.MetricsListen, "metrics-listen", "serve Prometheus metrics on this address (e.g. :9100)")
	noUI := fs.VarPF(&f.NoUI, "no-ui", "", "disable the terminal UI and log samples instead")
	noUI.NoOptDefVal = "true"
	fs.Var(&f.LogLevel, "log-level", "debug|info|warn|error")
	fs.Var(&f.LogFile, "log-file", "append logs to this file instead of stderr")
}

// Overrides converts the flags that were set into config overrides.
func (f *Flags) Overrides() config.CLIOverrides {
	overrides := config.CLIOverrides{}

	if v, ok := f.Host.Value(); ok && v != "" {
		value := v
		overrides.Host = &value
	}
	if v, ok := f.Interval.Value(); ok {
		value := v
		overrides.Interval = &value
	}
	if v, ok := f.Binary.Value(); ok && v != "" {
		value := v
		overrides.Binary = &value
	}
	if v, ok := f.ProbeDeadline.Value(); ok {
		value := v
		overrides.ProbeDeadline = &value
	}
	if v, ok := f.HardTimeout.Value(); ok {
		value := v
		overrides.HardTimeout = &value
	}
	if v, ok := f.Grace.Value(); ok {
		value := v
		overrides.Grace = &value
	}
	if v, ok := f.Drain.Value(); ok {
		value := v
		overrides.Drain = &value
	}
	if v, ok := f.HistorySize.Value(); ok {
		value := v
		overrides.HistorySize = &value
	}
	if v, ok := f.HighWaterMark.Value(); ok {
		value := v
		overrides.HighWaterMark = &value
	}
	if v, ok := f.MetricsListen.Value(); ok && v != "" {
		value := v
		overrides.MetricsListen = &value
	}
	if v, ok := f.NoUI.Value(); ok {
		value := v
		overrides.UIDisable = &value
	}
	if v, ok := f.LogLevel.Value(); ok && v != "" {
		value := v
		overrides.LogLevel = &value
	}
	if v, ok := f.LogFile.Value(); ok && v != "" {
		value := v
		overrides.LogFile = &value
	}

	return overrides
}
