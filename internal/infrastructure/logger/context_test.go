package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestWithRequestIDAndRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	ctx, _ = WithRunID(ctx, FromContext(ctx), "run-9")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "run-9", GetRunID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))

	FromContext(ctx).Info("syncing")
	entry := recorded.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "run-9", fields["run_id"])
}

func TestL_AddsTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(WithContext(context.Background(), base), sc)

	L(ctx).Info("with trace")
	L(WithContext(context.Background(), base)).Info("without trace")

	logs := recorded.All()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", logs[0].ContextMap()["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", logs[0].ContextMap()["span_id"])
	assert.NotContains(t, logs[1].ContextMap(), "trace_id")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))
}
