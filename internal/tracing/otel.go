package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures the process tracer provider.
type Settings struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the fraction of root spans recorded, clamped to [0, 1].
	SampleRatio float64
}

var (
	setupOnce sync.Once
	setupErr  error

	providerMu sync.RWMutex
	provider   *sdktrace.TracerProvider
)

// Setup installs the global tracer provider. Only the first call has an
// effect; later calls return the first call's error.
func Setup(s Settings) error {
	setupOnce.Do(func() {
		attrs := []attribute.KeyValue{semconv.ServiceName(s.ServiceName)}
		if s.ServiceVersion != "" {
			attrs = append(attrs, semconv.ServiceVersion(s.ServiceVersion))
		}

		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			setupErr = fmt.Errorf("failed to create trace resource: %w", err)
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(s.SampleRatio)))),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return setupErr
}

// Shutdown flushes and stops the provider installed by Setup.
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span tagged with the session and destination carried by
// ctx, and records the span's trace id in ctx when none is set.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if id := GetSessionID(ctx); id != "" {
		attrs = append(attrs, attribute.String("chatlog.session_id", id))
	}
	if dest := GetDestination(ctx); dest != "" {
		attrs = append(attrs, attribute.String("chatlog.destination", dest))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
