package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/bl791/chat-logger/pkg/index"
	"github.com/spf13/cobra"
)

var (
	searchDestination string
	searchSender      string
	searchLimit       int
	searchJSON        bool
	searchNoSync      bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the message search index",
	Long: `Index every session document under the chat log directory into a
SQLite database (.chatlog-index.db in the chat log directory). Unchanged files
are skipped and rows for deleted files are dropped.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search recorded messages",
	Long:  `Search indexed messages for text, newest first. The index is refreshed before searching unless --no-sync is set.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchDestination, "destination", "d", "", "only search this destination")
	searchCmd.Flags().StringVarP(&searchSender, "sender", "s", "", "only messages from this sender name or id")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "maximum results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	searchCmd.Flags().BoolVar(&searchNoSync, "no-sync", false, "search the index as is")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
}

func openIndex(cmd *cobra.Command) (*index.Index, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	idx, err := index.Open(index.Config{RootDir: cfg.Chatlog.RootDir, Logger: log.GetZerolog()})
	if err != nil {
		log.Close()
		return nil, nil, err
	}

	return idx, func() {
		idx.Close()
		log.Close()
	}, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, closeFn, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := idx.Sync(cmd.Context())
	if err != nil {
		return err
	}
	status, err := idx.Status()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d, unchanged %d, pruned %d, failed %d; %d messages in %d sessions\n",
		stats.Indexed, stats.Skipped, stats.Pruned, stats.Failed, status.Messages, status.Files)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	idx, closeFn, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if !searchNoSync {
		if _, err := idx.Sync(cmd.Context()); err != nil {
			return err
		}
	}

	hits, err := idx.Search(cmd.Context(), args[0], index.SearchOptions{
		Limit:       searchLimit,
		Destination: searchDestination,
		Sender:      searchSender,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tDESTINATION\tSENDER\tMESSAGE")
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Timestamp, h.Destination, h.SenderName, h.Text)
	}
	return w.Flush()
}
