package main

import (
	"fmt"
	"strings"

	"github.com/diogo/perplexity-web-api-go/internal/config"
	"github.com/diogo/perplexity-web-api-go/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and modify perplexity CLI configuration settings.

Every key can also be set through the environment, e.g.
PERPLEXITY_DEFAULT_MODE=pro or PERPLEXITY_TIMEOUTS_QUERY=60.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		render.RenderTitle("Configuration")

		fmt.Fprintf(out, "Config file: %s\n\n", cfgMgr.GetConfigFile())
		for _, key := range config.Keys {
			value, err := config.Get(cfg, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-18s %s\n", key+":", value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Keys: ` + strings.Join(config.Keys, ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.Set(cfg, key, value); err != nil {
			return err
		}

		if err := cfgMgr.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		render.RenderSuccess(fmt.Sprintf("Set %s = %s", key, value))
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		fresh := cfgMgr.Defaults()
		if err := cfgMgr.Save(fresh); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}
		cfg = fresh

		render.RenderSuccess("Configuration reset to defaults")
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ui.RunInteractiveConfig(cfg, cfgMgr)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cfgMgr.GetConfigFile())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
}
