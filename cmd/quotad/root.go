package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KOMKZ/go-yogan-quota/config"
)

// envPrefix QUOTAD_API_SERVER_PORT overrides api_server.port
const envPrefix = "QUOTAD"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "quotad",
		Short:         "Tiered request quotas for HTTP services",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "f", "configs/quotad.yaml", "config file path")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSimulateCmd(opts))
	return cmd
}

// loadConfig file, then QUOTAD_* environment, then explicitly set flags
func (o *rootOptions) loadConfig(flags *pflag.FlagSet, bindings map[string]string) (*config.Loader, error) {
	return config.NewLoaderBuilder().
		WithConfigFile(o.configPath).
		WithEnvPrefix(envPrefix).
		WithFlags(flags, bindings).
		Build()
}
