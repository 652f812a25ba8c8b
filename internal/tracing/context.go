package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// EventIDKey is the context key for the host event being processed
	EventIDKey ContextKey = "event_id"
	// SessionIDKey is the context key for the active chat session ID
	SessionIDKey ContextKey = "session_id"
	// DestinationKey is the context key for the sanitized destination name
	DestinationKey ContextKey = "destination"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID     string
	EventID     string
	SessionID   string
	Destination string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewEventID generates a new event ID
func NewEventID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithEventID adds an event ID to the context
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithDestination adds a destination name to the context
func WithDestination(ctx context.Context, destination string) context.Context {
	return context.WithValue(ctx, DestinationKey, destination)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetEventID retrieves the event ID from the context
func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetDestination retrieves the destination from the context
func GetDestination(ctx context.Context) string {
	if destination, ok := ctx.Value(DestinationKey).(string); ok {
		return destination
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:     GetTraceID(ctx),
		EventID:     GetEventID(ctx),
		SessionID:   GetSessionID(ctx),
		Destination: GetDestination(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.EventID != "" {
		ctx = WithEventID(ctx, tc.EventID)
	}
	if tc.SessionID != "" {
		ctx = WithSessionID(ctx, tc.SessionID)
	}
	if tc.Destination != "" {
		ctx = WithDestination(ctx, tc.Destination)
	}
	return ctx
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewEventContext tags ctx with a fresh event ID, keeping an existing trace ID
// or starting a new one.
func NewEventContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithEventID(ctx, NewEventID())
}
