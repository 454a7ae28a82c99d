package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/metrics"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/doridoridoriand/latencybar/internal/scheduler"
	"github.com/doridoridoriand/latencybar/internal/state"
	"github.com/doridoridoriand/latencybar/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// pathBinary is tried when the default binary cannot be launched.
const pathBinary = "ping"

// runtimeConfig is everything loaded before the engine starts.
type runtimeConfig struct {
	kv       *config.FileKV
	options  config.GlobalOptions
	settings config.Settings
}

func loadRuntime(f *Flags) (runtimeConfig, error) {
	path := f.SettingsPath
	if path == "" {
		p, err := config.DefaultSettingsPath()
		if err != nil {
			return runtimeConfig{}, err
		}
		path = p
	}
	kv, err := config.OpenFileKV(path)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("read settings: %w", err)
	}

	overrides := f.Overrides()
	options, err := config.LoadOptions(kv.Entries(), overrides)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load options from %s: %w", path, err)
	}
	settings, err := config.LoadSettings(kv)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load settings from %s: %w", path, err)
	}
	settings = config.ApplySettingsOverrides(settings, overrides)
	if err := settings.Validate(); err != nil {
		return runtimeConfig{}, err
	}
	return runtimeConfig{kv: kv, options: options, settings: settings}, nil
}

// newLogger writes to the configured log file, or to out when none is set.
// The returned close func is always non-nil.
func newLogger(options config.GlobalOptions, out io.Writer) (*log.Logger, func() error, error) {
	logger := log.NewLogger(log.ParseLevel(options.LogLevel))
	if options.LogFile == "" {
		logger.SetOutput(out)
		return logger, func() error { return nil }, nil
	}
	file, err := os.OpenFile(options.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(file)
	return logger, file.Close, nil
}

// newProber builds the probe engine. Without an explicit binary the default
// path is tried first, then ping from PATH.
func newProber(options config.GlobalOptions, guard *ping.Guard, logger *log.Logger) ping.Prober {
	opts := ping.RunnerOptions{
		Binary:        options.Binary,
		ProbeDeadline: options.ProbeDeadline,
		HardTimeout:   options.HardTimeout,
		GracePeriod:   options.Grace,
		DrainWindow:   options.Drain,
	}
	if opts.Binary != "" {
		return ping.NewRunner(opts, guard, logger)
	}

	opts.Binary = ping.DefaultBinary
	primary := ping.NewRunner(opts, guard, logger)
	opts.Binary = pathBinary
	secondary := ping.NewRunner(opts, guard, logger)
	return ping.NewFallbackProber(primary, secondary)
}

func runMonitor(cmd *cobra.Command, f *Flags) error {
	rt, err := loadRuntime(f)
	if err != nil {
		return err
	}

	// The terminal UI owns the screen; logs go only to a file while it runs.
	logOut := cmd.ErrOrStderr()
	if !rt.options.UIDisable {
		logOut = io.Discard
	}
	logger, closeLog, err := newLogger(rt.options, logOut)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.LogConfigLoad(true, rt.kv.Path(), nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	guard := ping.NewGuard(rt.options.HighWaterMark, logger)
	prober := newProber(rt.options, guard, logger)
	store := state.NewStore(rt.options.HistorySize, logger)

	var view *ui.UI
	var renderer scheduler.Renderer = scheduler.LogRenderer{Logger: logger}
	if !rt.options.UIDisable {
		renderer = scheduler.RendererFunc(func(u scheduler.Update) { view.Render(u) })
	}
	sched := scheduler.NewScheduler(rt.settings, prober, store, renderer, logger)
	if !rt.options.UIDisable {
		view = ui.New(sched, rt.kv, logger)
	}

	logger.Info("monitor starting", map[string]interface{}{
		"host":     rt.settings.Host,
		"interval": rt.settings.Interval.String(),
		"ui":       !rt.options.UIDisable,
		"metrics":  rt.options.MetricsListen,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(sched.Run(gctx))
	})
	g.Go(func() error {
		// A broken watcher only loses live reloads.
		if err := config.Watch(gctx, rt.kv, logger, sched.Reconfigure); err != nil {
			logger.LogError("config", err, map[string]interface{}{"path": rt.kv.Path()})
		}
		return nil
	})
	if rt.options.MetricsListen != "" {
		collector := metrics.NewCollector(store, sched, guard)
		addr := rt.options.MetricsListen
		g.Go(func() error {
			if err := ignoreCanceled(metrics.Serve(gctx, addr, collector)); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	if view != nil {
		g.Go(func() error {
			defer cancel()
			if err := ignoreCanceled(view.Run(gctx)); err != nil {
				return fmt.Errorf("terminal ui: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("monitor stopped", map[string]interface{}{
		"probes_peak": guard.Peak(),
	})
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
