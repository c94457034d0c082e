// Command cacheflight runs a Redis-backed remote cache behind the operation
// recorder, either as a one-shot demo workload or as an HTTP service.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cacheflight",
		Short:        "Remote cache operation telemetry",
		SilenceUsage: true,
	}

	root.AddCommand(demoCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cacheflight %s (commit %s, %s)\n", version, commit, runtime.Version())
		},
	}
}
