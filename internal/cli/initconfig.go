package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lootex/aggregatord/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write an example configuration file",
	Long: `Write an example aggregatord.toml to the given path (default:
` + config.DefaultConfigPath + `). Edit the chain RPC endpoints, aggregator
addresses and database DSN before starting the daemon.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.SaveExampleConfig(path); err != nil {
			return err
		}
		fmt.Printf("Wrote example configuration to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}
