package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/spf13/cobra"
)

var (
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list [destination]",
	Short: "List recorded sessions",
	Long: `List session documents under the chat log directory, newest first.
Pass a destination (server address or world name, raw or sanitized) to list
only its sessions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print sessions as JSON")
	rootCmd.AddCommand(listCmd)
}

type listEntry struct {
	Destination string `json:"destination"`
	SessionID   string `json:"sessionId"`
	Started     string `json:"started"`
	Messages    int    `json:"messages"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	Error       string `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	destination := ""
	if len(args) == 1 {
		destination = args[0]
	}

	files, err := session.ListSessions(cfg.Chatlog.RootDir, destination)
	if err != nil {
		return err
	}

	entries := make([]listEntry, 0, len(files))
	for _, f := range files {
		entry := listEntry{
			Destination: f.Destination,
			SessionID:   f.SessionID,
			Started:     f.StartedAt.Format("2006-01-02 15:04:05"),
			Messages:    -1,
			Size:        f.Size,
			Path:        f.Path,
		}
		if doc, err := session.LoadDocument(f.Path); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Messages = doc.MessageCount
		}
		entries = append(entries, entry)
	}

	out := cmd.OutOrStdout()

	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DESTINATION\tSESSION\tSTARTED\tMESSAGES\tSIZE")
	for _, e := range entries {
		messages := strconv.Itoa(e.Messages)
		if e.Error != "" {
			messages = "invalid"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Destination, e.SessionID, e.Started, messages, formatSize(e.Size))
	}
	return w.Flush()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGT"[exp])
}
