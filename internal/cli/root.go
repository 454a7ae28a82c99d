package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the latencybar command tree.
func NewRootCommand() *cobra.Command {
	flags := &Flags{}
	root := &cobra.Command{
		Use:   "latencybar",
		Short: "Watch round-trip latency to a single host",
		Long: `latencybar pings one host at a fixed interval and shows the current,
average, minimum and maximum latency together with a sparkline of recent
samples. Keys: q quit, r reset, t next target, i next interval.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      formatVersion(version),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, flags)
		},
	}
	AddFlags(root, flags)

	root.AddCommand(newProbeCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
