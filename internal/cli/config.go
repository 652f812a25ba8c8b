package cli

import (
	"fmt"
	"os"

	"github.com/bl791/chat-logger/internal/config"
	"github.com/spf13/cobra"
)

var (
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after defaults, the config file, CHATLOGGER_* environment variables and flags are applied.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if rootDir != "" {
		cfg.Chatlog.RootDir = rootDir
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
	return nil
}
