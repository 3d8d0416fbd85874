package cmd

import (
	"github.com/buoyantio/strest-echo/sweep"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "run the benchmark over a grid of worker and command counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := sweep.DefaultConfig()
		cfg.Client = benchmarkConfig(cfg.Client)

		var err error
		if cfg.WorkerCounts, err = sweep.ParseCounts(viper.GetString("workerCounts")); err != nil {
			return err
		}
		if cfg.CommandCounts, err = sweep.ParseCounts(viper.GetString("commandCounts")); err != nil {
			return err
		}
		cfg.Output = viper.GetString("output")
		return cfg.Run(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	RootCmd.AddCommand(sweepCmd)
	defaults := sweep.DefaultConfig()
	flags := sweepCmd.Flags()
	addConnectionFlags(flags)
	addBenchmarkFlags(flags, defaults.Client)
	flags.String("workerCounts", sweep.FormatCounts(defaults.WorkerCounts), "worker counts to sweep")
	flags.String("commandCounts", sweep.FormatCounts(defaults.CommandCounts), "commands per transaction to sweep")
	flags.String("output", defaults.Output, "CSV file to write the results to")
}
