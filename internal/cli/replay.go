package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/bl791/chat-logger/pkg/events"
	"github.com/bl791/chat-logger/pkg/session"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl|->",
	Short: "Write sessions from a recorded event stream",
	Long: `Replay newline-delimited host events (connection_established,
message_received, connection_lost) through the session manager, exactly as
the daemon would receive them. Use "-" to read from stdin.

Sessions still open at the end of the stream are flushed. A malformed line
stops the replay; sessions captured up to that line are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	var in io.Reader
	if args[0] == "-" {
		in = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open event stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	sm, err := session.New(session.Config{
		RootDir: cfg.Chatlog.RootDir,
		Pretty:  cfg.Chatlog.Pretty,
		Logger:  log.GetZerolog(),
	})
	if err != nil {
		return err
	}

	dispatcher := events.NewDispatcher(sm, events.DispatcherConfig{
		FallbackDestination: cfg.Chatlog.FallbackDestination,
		Logger:              log.GetZerolog(),
	})

	ctx := tracing.NewRequestContext(cmd.Context())
	count, replayErr := events.DecodeStream(in, func(ev events.Event) error {
		return dispatcher.Deliver(ctx, ev)
	})

	closeErr := sm.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d events into %s\n", count, sm.RootDir())

	if replayErr != nil {
		return fmt.Errorf("replay stopped: %w", replayErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to flush final session: %w", closeErr)
	}
	return nil
}
