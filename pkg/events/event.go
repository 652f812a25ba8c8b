package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bl791/chat-logger/pkg/session"
)

// Kind identifies a host event
type Kind string

const (
	ConnectionEstablished Kind = "connection_established"
	ConnectionLost        Kind = "connection_lost"
	MessageReceived       Kind = "message_received"
)

var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownEventType = errors.New("unknown event type")
)

// maxLineSize bounds a single JSONL event line.
const maxLineSize = 1 << 20

// Event is the wire form of a host event.
type Event struct {
	Type       Kind   `json:"type"`
	Server     string `json:"server,omitempty"`
	Local      bool   `json:"local,omitempty"`
	World      string `json:"world,omitempty"`
	Text       string `json:"text,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

// Handler receives host events. *session.SessionManager satisfies it.
type Handler interface {
	HandleConnectionEstablished(ctx context.Context, destination string)
	HandleConnectionLost(ctx context.Context)
	HandleMessageReceived(ctx context.Context, msg session.Message)
}

// Validate checks that the event type is known.
func (e Event) Validate() error {
	switch e.Type {
	case ConnectionEstablished, ConnectionLost, MessageReceived:
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedEvent)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
}

// Destination resolves the raw destination carried by the event.
func (e Event) Destination(fallback string) string {
	return ResolveDestination(e.Server, e.Local, e.World, fallback)
}

// Message converts a message_received event into the session input.
func (e Event) Message() session.Message {
	return session.Message{
		Text:       e.Text,
		SenderID:   strings.TrimSpace(e.SenderID),
		SenderName: strings.TrimSpace(e.SenderName),
	}
}

// ResolveDestination picks the human-readable destination for a connection.
// Local worlds use the world name, or fallback when the host reports none.
// Remote connections use the server address and resolve to "" when it is empty.
func ResolveDestination(server string, local bool, world, fallback string) string {
	if local {
		if name := strings.TrimSpace(world); name != "" {
			return name
		}
		return fallback
	}
	return strings.TrimSpace(server)
}

// Decode parses and validates a single JSON event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// DecodeStream reads newline-delimited JSON events from r and calls fn for
// each one in order. Blank lines are skipped. Decoding stops at the first
// malformed line or fn error.
func DecodeStream(r io.Reader, fn func(Event) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(ev); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read events: %w", err)
	}
	return count, nil
}
