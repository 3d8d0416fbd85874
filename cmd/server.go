package cmd

import (
	"github.com/buoyantio/strest-echo/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "run the echo server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := server.DefaultConfig()
		cfg.Address = viper.GetString("address")
		cfg.UseUnixAddr = viper.GetBool("unix")
		cfg.MetricAddr = viper.GetString("metricAddr")
		cfg.TLSCertFile = viper.GetString("tlsCertFile")
		cfg.TLSPrivKeyFile = viper.GetString("tlsPrivKeyFile")
		cfg.LatencyPercentiles = viper.GetString("latencyPercentiles")
		cfg.MaxConnections = viper.GetInt("maxConnections")
		cfg.GracePeriod = viper.GetDuration("gracePeriod")
		return cfg.Run()
	},
}

func init() {
	RootCmd.AddCommand(serverCmd)
	defaults := server.DefaultConfig()
	flags := serverCmd.Flags()
	flags.String("address", defaults.Address, "address to serve on")
	flags.Bool("unix", false, "use Unix Domain Sockets instead of TCP")
	flags.String("metricAddr", "", "address to serve metrics on")
	flags.String("tlsCertFile", "", "the path to the trust certificate")
	flags.String("tlsPrivKeyFile", "", "the path to the server's private key")
	flags.String("latencyPercentiles", defaults.LatencyPercentiles, "per message delay percentile distribution in microseconds. (e.g. 50=10,100=100)")
	flags.Int("maxConnections", 0, "maximum concurrent connections. Default: unlimited")
	flags.Duration("gracePeriod", defaults.GracePeriod, "how long in-flight streams may finish after a stop signal")
}
