package cli

import (
	"fmt"

	"github.com/bl791/chat-logger/internal/config"
	"github.com/bl791/chat-logger/internal/logger"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	rootDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlogger",
	Short: "chatlogger - chat session capture and archive",
	Long: `chatlogger records the chat messages a host application receives into one
JSON document per connection session, grouped by server or world.
It can run as a daemon fed over a local websocket/HTTP gateway, replay
recorded event streams, and list, show, verify, export and search the
archived sessions.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chatlogger.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "chat log directory; overrides chatlog.root_dir")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if rootDir != "" {
		cfg.Chatlog.RootDir = rootDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger. Console output goes to the command's
// stderr so stdout stays parseable.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Output:    cmd.ErrOrStderr(),
	})
}
