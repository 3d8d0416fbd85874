package cmd

import (
	maxrps "github.com/buoyantio/strest-echo/max-rps"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var maxrpsCmd = &cobra.Command{
	Use:   "max-rps",
	Short: "estimate the maximum throughput with the Universal Scalability Law",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := maxrps.DefaultConfig()
		cfg.Client = benchmarkConfig(cfg.Client)
		cfg.ConcurrencyLevels = viper.GetString("concurrencyLevels")
		return cfg.Run(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	RootCmd.AddCommand(maxrpsCmd)
	defaults := maxrps.DefaultConfig()
	flags := maxrpsCmd.Flags()
	addConnectionFlags(flags)
	addBenchmarkFlags(flags, defaults.Client)
	flags.String("concurrencyLevels", defaults.ConcurrencyLevels, "levels of concurrency to test with")
}
