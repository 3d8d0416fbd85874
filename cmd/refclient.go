package cmd

import (
	"github.com/buoyantio/strest-echo/refclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var refClientCmd = &cobra.Command{
	Use:   "ref-client",
	Short: "check that the echo stream contract holds end to end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := refclient.DefaultConfig()
		cfg.Client = connectionConfig(cfg.Client)
		cfg.Count = viper.GetUint("count")
		cfg.PprofAddr = viper.GetString("pprofAddr")
		return cfg.Run(cmd.Context())
	},
}

func init() {
	RootCmd.AddCommand(refClientCmd)
	defaults := refclient.DefaultConfig()
	flags := refClientCmd.Flags()
	addConnectionFlags(flags)
	flags.Uint("count", defaults.Count, "messages to send on the stream")
	flags.String("pprofAddr", "", "address to serve pprof on")
}
