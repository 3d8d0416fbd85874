package cmd

import (
	"github.com/buoyantio/strest-echo/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "run the echo benchmark client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return benchmarkConfig(client.DefaultConfig()).Run(cmd.Context(), cmd.OutOrStdout())
	},
}

// addConnectionFlags registers the flags every dialing command shares.
func addConnectionFlags(flags *pflag.FlagSet) {
	defaults := client.DefaultConfig()
	flags.String("address", defaults.Address, "address of the echo service or intermediary")
	flags.Bool("unix", false, "use Unix Domain Sockets instead of TCP")
	flags.String("tlsTrustChainFile", "", "the path to the certificate used to validate the remote's signature")
	flags.Duration("connectTimeout", defaults.ConnectTimeout, "how long each worker waits for its connection")
}

// addBenchmarkFlags registers the flags shaping a benchmark run.
func addBenchmarkFlags(flags *pflag.FlagSet, defaults client.Config) {
	flags.Uint("clients", defaults.Workers, "number of concurrent workers, each with its own connection")
	flags.Uint("txns", defaults.Transactions, "transactions per worker")
	flags.Uint("commands", defaults.Commands, "commands per transaction")
	flags.Bool("stream", false, "send the commands of a transaction over one bidirectional stream")
	flags.Uint("window", defaults.Window, "stream messages in flight before the sender waits for a response")
	flags.Duration("txnTimeout", 0, "timeout for a streaming transaction. Default: no timeout")
	flags.Float64("targetTps", 0, "target transactions per second per worker. Default: unlimited")
	flags.Bool("failFast", false, "stop every worker as soon as one fails")
	flags.String("metricAddr", "", "address to serve metrics on")
}

// connectionConfig reads the dialing settings into cfg after flags,
// environment and config file have been merged.
func connectionConfig(cfg client.Config) client.Config {
	cfg.Address = viper.GetString("address")
	cfg.UseUnixAddr = viper.GetBool("unix")
	cfg.TLSTrustChainFile = viper.GetString("tlsTrustChainFile")
	cfg.ConnectTimeout = viper.GetDuration("connectTimeout")
	return cfg
}

// benchmarkConfig reads the dialing and benchmark settings into cfg.
func benchmarkConfig(cfg client.Config) client.Config {
	cfg = connectionConfig(cfg)
	cfg.Workers = viper.GetUint("clients")
	cfg.Transactions = viper.GetUint("txns")
	cfg.Commands = viper.GetUint("commands")
	if viper.GetBool("stream") {
		cfg.Mode = client.Streaming
	}
	if viper.GetBool("json") {
		cfg.Format = client.Structured
	}
	cfg.Window = viper.GetUint("window")
	cfg.TransactionTimeout = viper.GetDuration("txnTimeout")
	cfg.TargetTps = viper.GetFloat64("targetTps")
	cfg.FailFast = viper.GetBool("failFast")
	cfg.MetricAddr = viper.GetString("metricAddr")
	return cfg
}

func init() {
	RootCmd.AddCommand(clientCmd)
	flags := clientCmd.Flags()
	addConnectionFlags(flags)
	addBenchmarkFlags(flags, client.DefaultConfig())
	flags.Bool("json", false, "print the final report as JSON")
}
