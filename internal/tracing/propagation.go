package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.EventID != "" {
		logger = logger.With().Str("event_id", tc.EventID).Logger()
	}
	if tc.SessionID != "" {
		logger = logger.With().Str("session_id", tc.SessionID).Logger()
	}
	if tc.Destination != "" {
		logger = logger.With().Str("destination", tc.Destination).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values from source into target where target has none.
// Used when a detached context must keep the request's trace.
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.EventID != "" && GetEventID(target) == "" {
		target = WithEventID(target, tc.EventID)
	}
	if tc.SessionID != "" && GetSessionID(target) == "" {
		target = WithSessionID(target, tc.SessionID)
	}
	if tc.Destination != "" && GetDestination(target) == "" {
		target = WithDestination(target, tc.Destination)
	}

	return target
}

// CloneContext creates a new background context with the same tracing information
func CloneContext(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
