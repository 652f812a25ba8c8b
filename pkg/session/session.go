package session

import (
	"fmt"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	sessionIDAlphabet = "0123456789abcdef"
	sessionIDLength   = 8

	fileNamePrefix = "session_"
	fileNameExt    = ".json"
)

// Session is one continuous logging period for one destination.
type Session struct {
	Destination string
	ID          string
	StartedAt   time.Time
	Messages    []ChatEntry
	FilePath    string
}

// Snapshot is a read-only view of the active session.
type Snapshot struct {
	Destination  string
	ID           string
	StartedAt    time.Time
	FilePath     string
	MessageCount int
}

// NewSessionID returns a random 8 character hex token (32 bits).
func NewSessionID() (string, error) {
	return gonanoid.Generate(sessionIDAlphabet, sessionIDLength)
}

// SessionFileName returns the file name for a session started at startedAt.
// Names sort chronologically within a destination directory.
func SessionFileName(startedAt time.Time, sessionID string) string {
	return fmt.Sprintf("%s%s_%s%s", fileNamePrefix, startedAt.Format(fileTimeFormat), sessionID, fileNameExt)
}

func newSession(rootDir, destination, id string, startedAt time.Time) *Session {
	return &Session{
		Destination: destination,
		ID:          id,
		StartedAt:   startedAt,
		Messages:    []ChatEntry{},
		FilePath:    filepath.Join(rootDir, destination, SessionFileName(startedAt, id)),
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Destination:  s.Destination,
		ID:           s.ID,
		StartedAt:    s.StartedAt,
		FilePath:     s.FilePath,
		MessageCount: len(s.Messages),
	}
}

// document renders the session as it is persisted, stamped with lastUpdated.
func (s *Session) document(lastUpdated time.Time) *Document {
	messages := make([]ChatEntry, len(s.Messages))
	copy(messages, s.Messages)

	return &Document{
		Server:       s.Destination,
		SessionID:    s.ID,
		SessionStart: s.StartedAt.Format(logTimeFormat),
		LastUpdated:  lastUpdated.Format(logTimeFormat),
		MessageCount: len(messages),
		Messages:     messages,
	}
}
