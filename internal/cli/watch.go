package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bl791/chat-logger/pkg/index"
	"github.com/bl791/chat-logger/pkg/watcher"
	"github.com/spf13/cobra"
)

var (
	watchIndex bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow session documents as they are written",
	Long: `Watch the chat log directory and print a line every time a session
document is written or removed. With --index the search index is kept in
step with the files.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchIndex, "index", false, "update the search index on every change")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var idx *index.Index
	if watchIndex {
		idx, err = index.Open(index.Config{RootDir: cfg.Chatlog.RootDir, Logger: log.GetZerolog()})
		if err != nil {
			return err
		}
		defer idx.Close()

		if _, err := idx.Sync(ctx); err != nil {
			return err
		}
	}

	w, err := watcher.New(watcher.Config{
		RootDir:  cfg.Chatlog.RootDir,
		OnUpdate: watchPrinter(ctx, cmd.OutOrStdout(), idx),
		Logger:   log.GetZerolog(),
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", cfg.Chatlog.RootDir)
	<-ctx.Done()
	return nil
}

// watchPrinter reports each update on out and mirrors it into idx when set.
func watchPrinter(ctx context.Context, out io.Writer, idx *index.Index) watcher.UpdateCallback {
	return func(u watcher.Update) error {
		name := filepath.Base(u.Path)

		if u.Removed {
			fmt.Fprintf(out, "[%s] %s removed\n", u.Destination, name)
			if idx != nil {
				return idx.Remove(ctx, u.Path)
			}
			return nil
		}

		doc := u.Document
		line := fmt.Sprintf("[%s] %s: %d messages", u.Destination, name, doc.MessageCount)
		if n := len(doc.Messages); n > 0 {
			last := doc.Messages[n-1]
			line += fmt.Sprintf(", last %s %s: %s", last.Timestamp, last.SenderName, last.Text)
		}
		fmt.Fprintln(out, line)

		if idx != nil {
			if _, err := idx.IndexFile(ctx, u.Path); err != nil {
				return err
			}
		}
		return nil
	}
}
