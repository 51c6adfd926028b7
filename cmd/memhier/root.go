package main

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memhier",
		Short: "memhier simulates a single-core memory hierarchy.",
		Long: `memhier simulates a core that issues fetches, loads, and stores ` +
			`into private L1 caches, a shared L2, and a fixed-latency memory. ` +
			`Every parameter can be set in a YAML file, in the environment, ` +
			`or on the command line.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newParamsCmd(), newShowCmd())

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
