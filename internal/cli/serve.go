package cli

import (
	"fmt"

	"github.com/bl791/chat-logger/internal/daemon"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat logger daemon",
	Long: `Run the chat logger daemon in the foreground.
Host events are accepted on the local gateway (websocket /ws, POST /events)
and written to session documents under the chat log directory. On SIGINT or
SIGTERM queued events are delivered and the active session is flushed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return err
	}

	status := d.Status()
	if status.GatewayAddr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Gateway listening on %s\n", status.GatewayAddr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Writing chat logs to %s\n", cfg.Chatlog.RootDir)

	d.Wait()
	return nil
}
