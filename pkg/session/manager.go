package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultRootDir is the chat log root relative to the host's working directory.
const DefaultRootDir = "chatlogs"

const destinationDirMode = 0755

// Config holds SessionManager settings. Zero values select defaults.
type Config struct {
	RootDir string
	Pretty  bool
	Logger  zerolog.Logger
	Now     func() time.Time
	NewID   func() (string, error)
}

// SessionManager owns the single active chat logging session.
//
// It performs no locking: the host must deliver connection and message
// events serially, from one goroutine at a time.
type SessionManager struct {
	rootDir string
	pretty  bool
	now     func() time.Time
	newID   func() (string, error)
	logger  zerolog.Logger

	active *Session
}

// New creates a SessionManager. Nothing is written until the first message.
func New(cfg Config) (*SessionManager, error) {
	observability.EnsureRegistered()

	if cfg.RootDir == "" {
		cfg.RootDir = DefaultRootDir
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = NewSessionID
	}

	rootDir, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat log directory: %w", err)
	}

	sm := &SessionManager{
		rootDir: rootDir,
		pretty:  cfg.Pretty,
		now:     cfg.Now,
		newID:   cfg.NewID,
		logger:  cfg.Logger.With().Str("component", "session-manager").Logger(),
	}

	sm.logger.Info().Str("dir", rootDir).Msg("Chat session manager initialized")
	observability.SetActiveSession(false)

	return sm, nil
}

// RootDir returns the absolute chat log root.
func (sm *SessionManager) RootDir() string {
	return sm.rootDir
}

// Active returns the active session, if any.
func (sm *SessionManager) Active() (Snapshot, bool) {
	if sm.active == nil {
		return Snapshot{}, false
	}
	return sm.active.snapshot(), true
}

// HandleConnectionEstablished starts a session for destination unless one is
// already active for the same sanitized destination. A session for another
// destination is finalized first. An empty destination is ignored.
func (sm *SessionManager) HandleConnectionEstablished(ctx context.Context, destination string) {
	if ctx == nil {
		ctx = context.Background()
	}

	if destination == "" {
		sm.logger.Debug().Msg("Connection without destination, ignoring")
		return
	}

	dest := Sanitize(destination)
	if sm.active != nil && sm.active.Destination == dest {
		return
	}

	_ = sm.finalize(ctx)

	if err := sm.startSession(ctx, dest); err != nil {
		observability.RecordSessionSetupError()
		sm.logger.Error().
			Err(err).
			Str("destination", dest).
			Msg("Failed to start chat logging session")
	}
}

// HandleMessageReceived appends msg to the active session and flushes it.
// Without an active session the message is dropped.
func (sm *SessionManager) HandleMessageReceived(ctx context.Context, msg Message) {
	if ctx == nil {
		ctx = context.Background()
	}

	if sm.active == nil {
		observability.RecordMessageDropped("no_session")
		sm.logger.Debug().Msg("Message without active session, dropping")
		return
	}

	sm.active.Messages = append(sm.active.Messages, newChatEntry(sm.now(), msg))
	observability.RecordMessageCaptured()

	if err := sm.Flush(ctx); err != nil {
		logger := sm.sessionLogger(ctx)
		logger.Error().Err(err).Msg("Failed to save chat log")
	}
}

// HandleConnectionLost finalizes the active session. Calling it while idle
// is a no-op.
func (sm *SessionManager) HandleConnectionLost(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = sm.finalize(ctx)
}

// Flush writes the full active session to its file. It is a no-op when no
// session is active or nothing has been logged yet. The buffer is kept on
// failure so the next flush retries.
func (sm *SessionManager) Flush(ctx context.Context) error {
	s := sm.active
	if s == nil || s.FilePath == "" || len(s.Messages) == 0 {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, s.ID)
	ctx = tracing.WithDestination(ctx, s.Destination)
	ctx, span := tracing.StartSpan(
		ctx,
		"chatlogger.session",
		"session.flush",
		attribute.Int("chatlog.message_count", len(s.Messages)),
	)
	defer span.End()

	start := time.Now()
	err := sm.write(s)
	observability.RecordFlush(time.Since(start), err == nil)

	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	logger := tracing.LoggerFromContext(ctx, sm.logger)
	logger.Debug().
		Int("messages", len(s.Messages)).
		Msg("Chat log saved")

	return nil
}

// Close finalizes the active session and returns the final flush error.
func (sm *SessionManager) Close() error {
	return sm.finalize(context.Background())
}

func (sm *SessionManager) write(s *Session) error {
	data, err := EncodeDocument(s.document(sm.now()), sm.pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return writeFileAtomic(s.FilePath, data)
}

func (sm *SessionManager) startSession(ctx context.Context, destination string) error {
	id, err := sm.newID()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}

	dir := filepath.Join(sm.rootDir, destination)
	if err := os.MkdirAll(dir, destinationDirMode); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	sm.active = newSession(sm.rootDir, destination, id, sm.now())
	observability.RecordSessionStarted()
	observability.SetActiveSession(true)

	logger := sm.sessionLogger(ctx)
	logger.Info().
		Str("file", sm.active.FilePath).
		Msg("Started new chat logging session")

	return nil
}

// finalize flushes and clears the active session.
func (sm *SessionManager) finalize(ctx context.Context) error {
	if sm.active == nil {
		return nil
	}

	logger := sm.sessionLogger(ctx)
	err := sm.Flush(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save chat log")
	}

	logger.Info().
		Int("messages", len(sm.active.Messages)).
		Msg("Chat logging session finalized")

	sm.active = nil
	observability.RecordSessionFinalized()
	observability.SetActiveSession(false)

	return err
}

func (sm *SessionManager) sessionLogger(ctx context.Context) zerolog.Logger {
	logger := tracing.LoggerFromContext(ctx, sm.logger)
	if sm.active == nil {
		return logger
	}
	return logger.With().
		Str("destination", sm.active.Destination).
		Str("session_id", sm.active.ID).
		Logger()
}
