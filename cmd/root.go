package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd is the strest-echo command line.
var RootCmd = &cobra.Command{
	Use:   "strest-echo [client | server | sweep | max-rps | ref-client]",
	Short: "A load tester for gRPC echo services and intermediaries.",
	Long: `A load tester for gRPC echo services and intermediaries.

Every flag can also be set with a STREST_ECHO_<FLAG> environment variable
or in the file given by --config.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return configure(cmd)
	}
	flags := RootCmd.PersistentFlags()
	flags.String("logLevel", "info", "log level, one of panic, fatal, error, warn, info, debug, trace")
	flags.String("config", "", "config file (yaml, json or toml) with flag values")
}

// configure loads settings for cmd and then sets up logging, so the log
// level may come from a flag, the environment or the config file.
func configure(cmd *cobra.Command) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if err := setupLogging(viper.GetString("logLevel")); err != nil {
		return err
	}
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debugf("using config file %s", f)
	}
	return nil
}

// Logs go to stderr so that the report on stdout stays parseable.
func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// loadConfig layers the config file and environment under the flags of
// the command being run. Flags given on the command line win.
func loadConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("STREST_ECHO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// root flags are only merged into cmd.Flags() once cobra parses them
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %s", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}
