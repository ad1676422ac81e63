// ════════════════════════════════════════════════════════════════════════════════════════════════
// SSPlus Hasher Bridge - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: Command Line & Process Orchestration
//
// Description:
//   Wires configuration, logging, the memory windows, the sorter service and the pair
//   consumers into one process. Every command follows the same phases.
//
// Architecture:
//   - Phase 1: Load configuration and build the process logger
//   - Phase 2: Map (or emulate) the hasher windows and program the first job
//   - Phase 3: Run the sorter loop and pair consumers until cancelled
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ssplus/config"
	"ssplus/debug"
)

// rootOptions holds the persistent flags and what PersistentPreRunE derives from them.
type rootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg *config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ssplus:", err)
		debug.Sync()
		os.Exit(1)
	}
	debug.Sync()
}

// newRootCommand assembles the CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ssplus",
		Short: "SSPlus hasher bridge",
		Long: `Drives the SSPlus double-SHA-256 hasher: programs it with mining jobs,
sorts its result stream for tail collisions and hands out the pairs found.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// PHASE 1: configuration and logging
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			level, dev := cfg.Log.Level, cfg.Log.Development
			if opts.Verbose {
				level, dev = "debug", true
			}
			if _, err := debug.Init(level, dev); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "ssplus.yaml", "path to the YAML configuration")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on the console")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	cmd.AddCommand(newProgramCommand(opts))
	cmd.AddCommand(newSelftestCommand(opts))

	return cmd
}
