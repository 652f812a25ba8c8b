package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/bl791/chat-logger/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running chat logger daemon",
	Long: `Stop a running chat logger daemon gracefully.
Sends SIGTERM to the daemon and waits for it to flush and shut down.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for daemon to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := daemon.PIDFilePath(cfg)
	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon is not running (no PID file at %s)", pidFile)
		}
		return err
	}

	if !daemon.ProcessAlive(pid) {
		os.Remove(pidFile)
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running, removed stale PID file")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to stop with timeout
	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.ProcessAlive(pid) {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped successfully")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Timeout reached, sending SIGKILL...")

	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	os.Remove(pidFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Daemon killed")
	return nil
}
