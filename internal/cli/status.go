package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bl791/chat-logger/internal/daemon"
	"github.com/bl791/chat-logger/pkg/gateway"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show whether a chat logger daemon is running and, when its gateway is enabled, how many producers are connected.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pidFile := daemon.PIDFilePath(cfg)
	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessAlive(pid) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)

	// PID file modification time approximates the start time.
	if info, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	if cfg.Gateway.Enabled {
		addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
		clients, err := fetchClients(addr, cfg.Gateway.SharedSecret)
		if err != nil {
			fmt.Fprintf(out, "Gateway: %s (unreachable: %v)\n", addr, err)
		} else {
			fmt.Fprintf(out, "Gateway: %s (%d clients)\n", addr, len(clients))
			for _, c := range clients {
				state := "idle"
				if c.InSession {
					state = "in session"
				}
				fmt.Fprintf(out, "  %s  %s  events=%d (last minute %d) messages=%d  %s\n",
					c.ID, c.IPAddress, c.Events, c.WindowEvents, c.Messages, state)
			}
		}
	}

	return nil
}

func fetchClients(addr, secret string) ([]gateway.ClientInfo, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/clients", nil)
	if err != nil {
		return nil, err
	}
	if secret != "" {
		req.Header.Set(gateway.SecretHeader, secret)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var clients []gateway.ClientInfo
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
