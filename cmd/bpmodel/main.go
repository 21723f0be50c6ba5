// Command bpmodel loads, validates, packages, and projects bpmodel data
// models from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	bplog "go.bpmodel.dev/model/log"
	"go.bpmodel.dev/model/profiler"
)

func main() {
	os.Exit(run())
}

func run() int {
	logCfg := bplog.NewConfig()
	prof := profiler.New()

	rootCmd := &cobra.Command{
		Use:           "bpmodel",
		Short:         "Load, validate, package, and project bpmodel data models",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return fmt.Errorf("log config: %w", err)
			}

			slog.SetDefault(slog.New(handler))

			return prof.Start()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return prof.Stop()
		},
	}

	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	prof.RegisterFlags(rootCmd.PersistentFlags())

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newDescribeCmd(),
		newPackCmd(),
		newUnpackCmd(),
		newProjectCmd(),
		newIngestDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return 1
	}

	return 0
}
