package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/doridoridoriand/latencybar/internal/state"
	"github.com/spf13/cobra"
)

var errNoReply = errors.New("no reply")

func newProbeCommand(f *Flags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "probe <host>",
		Short: "Probe a host and print each latency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, f, args[0], count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of probes to send")
	return cmd
}

func runProbe(cmd *cobra.Command, f *Flags, host string, count int) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}
	if err := config.ValidateHost(host); err != nil {
		return err
	}
	rt, err := loadRuntime(f)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(rt.options, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	guard := ping.NewGuard(rt.options.HighWaterMark, logger)
	prober := newProber(rt.options, guard, logger)
	stats := state.NewStats(logger)
	out := cmd.OutOrStdout()

	lost := 0
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rt.settings.Interval):
			}
		}
		start := time.Now()
		sample, err := prober.Probe(ctx, host)
		logger.LogProbeResult(host, sample.OK, sample.Millis, time.Since(start), err)
		stats.Update(sample)
		if !sample.OK {
			lost++
		}
		fmt.Fprintf(out, "%s: %s\n", host, sample)
	}

	snap := stats.Snapshot()
	if count > 1 {
		fmt.Fprintf(out, "--- %s ---\n", host)
		fmt.Fprintf(out, "%d sent, %d lost\n", count, lost)
		if snap.Average != nil {
			fmt.Fprintf(out, "min/avg/max = %.1f/%.1f/%.1f ms\n", *snap.Minimum, *snap.Average, *snap.Maximum)
		}
	}
	if snap.Count == 0 {
		return fmt.Errorf("%w from %s", errNoReply, host)
	}
	return nil
}
