// Package tracing holds the span conventions shared by the dispatch and
// session paths. Spans go to the global OpenTelemetry tracer provider, which
// is a no-op unless otelexport installed one.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nextlevelbuilder/agentgate"

// Attribute keys. Keys and ciphertext are never recorded.
const (
	AttrProvider  = "gen_ai.system"
	AttrModel     = "gen_ai.request.model"
	AttrUserID    = "agentgate.user_id"
	AttrSessionID = "agentgate.session_id"
	AttrTransport = "agentgate.transport"
	AttrEvents    = "agentgate.events"
	AttrStatus    = "agentgate.status"
)

// TaskAttrs describes one task for span attributes.
type TaskAttrs struct {
	Transport string // "http" or "ws"
	Model     string
	Provider  string
	UserID    string
	SessionID string
}

func (a TaskAttrs) kv() []attribute.KeyValue {
	kv := []attribute.KeyValue{attribute.String(AttrTransport, a.Transport)}
	if a.Model != "" {
		kv = append(kv, attribute.String(AttrModel, a.Model))
	}
	if a.Provider != "" {
		kv = append(kv, attribute.String(AttrProvider, a.Provider))
	}
	if a.UserID != "" {
		kv = append(kv, attribute.String(AttrUserID, a.UserID))
	}
	if a.SessionID != "" {
		kv = append(kv, attribute.String(AttrSessionID, a.SessionID))
	}
	return kv
}

// StartTask starts the span covering one task execution.
func StartTask(ctx context.Context, name string, attrs TaskAttrs) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs.kv()...),
	)
}

// End records err (if any) and ends span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
