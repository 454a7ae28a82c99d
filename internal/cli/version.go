package cli

import (
	"fmt"
	"runtime"

	"github.com/doridoridoriand/latencybar/internal/update"
	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var releasesURL = update.DefaultReleasesURL

func newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "latencybar %s\n", formatVersion(version))
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built: %s\n", date)
			fmt.Fprintf(out, "go: %s\n", runtime.Version())
			fmt.Fprintf(out, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if !check {
				return nil
			}

			rel, err := update.NewChecker(releasesURL).Check(cmd.Context(), version)
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			if rel.Newer {
				fmt.Fprintf(out, "\nA new version is available: %s -> %s\n", formatVersion(version), formatVersion(rel.Version))
				if rel.URL != "" {
					fmt.Fprintf(out, "%s\n", rel.URL)
				}
				return nil
			}
			fmt.Fprintln(out, "\nlatencybar is up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check for a newer release")
	return cmd
}

// formatVersion ensures version has a 'v' prefix for display.
func formatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// SetVersionInfo sets the version information (called from main).
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
