package telemetry

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/SightKit/events"
)

type attemptSpan struct {
	span   trace.Span
	frames int64
	bytes  int64
}

// AttemptListener records one span per connect attempt, from
// session.connecting to session.closed, with frame and result events on it.
// Events arrive in order from the bus, so no reordering is needed.
type AttemptListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	inflight map[string]*attemptSpan
}

// NewAttemptListener creates a listener that emits spans through tracer.
func NewAttemptListener(tracer trace.Tracer) *AttemptListener {
	return &AttemptListener{tracer: tracer, inflight: make(map[string]*attemptSpan)}
}

func attemptKey(e *events.Event) string {
	return e.SessionID + "/" + strconv.FormatUint(e.Attempt, 10)
}

// OnEvent handles one bus event. Subscribe it with bus.SubscribeAll.
func (l *AttemptListener) OnEvent(e *events.Event) {
	switch data := e.Data.(type) {
	case events.SessionConnectingData:
		_, span := l.tracer.Start(context.Background(), "sightkit.attempt",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithTimestamp(e.Timestamp),
			trace.WithAttributes(
				attribute.String("session.id", e.SessionID),
				attribute.Int64("attempt.id", int64(e.Attempt)),
				attribute.String("target_lang", e.Language),
				attribute.String("url.full", data.URL),
				attribute.Int("reconnect", data.Reconnect),
			),
		)
		l.mu.Lock()
		l.inflight[attemptKey(e)] = &attemptSpan{span: span}
		l.mu.Unlock()

	case events.SessionStreamingData:
		l.with(e, func(a *attemptSpan) {
			a.span.AddEvent("handshake.sent", trace.WithTimestamp(e.Timestamp))
		})

	case events.FrameSentData:
		l.with(e, func(a *attemptSpan) {
			a.frames++
			a.bytes += int64(data.Bytes)
		})

	case events.FrameCaptureFailedData:
		l.with(e, func(a *attemptSpan) {
			a.span.AddEvent("capture.failed", trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(attribute.String("error", errString(data.Error))))
		})

	case events.ServiceErrorData:
		l.with(e, func(a *attemptSpan) {
			a.span.AddEvent("service.error", trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(attribute.String("error", data.Message)))
		})

	case events.ProtocolErrorData:
		l.with(e, func(a *attemptSpan) {
			a.span.AddEvent("protocol.error", trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(attribute.String("error", errString(data.Error))))
		})

	case events.SessionClosedData:
		l.mu.Lock()
		a, ok := l.inflight[attemptKey(e)]
		delete(l.inflight, attemptKey(e))
		l.mu.Unlock()
		if !ok {
			return
		}
		a.span.SetAttributes(
			attribute.Int64("frames.sent", a.frames),
			attribute.Int64("frames.bytes", a.bytes),
			attribute.Bool("close.requested", data.Requested),
		)
		if data.Error != nil {
			a.span.RecordError(data.Error)
			a.span.SetStatus(codes.Error, data.Error.Error())
		}
		a.span.End(trace.WithTimestamp(e.Timestamp))
	}
}

// Flush ends every span still open, e.g. on shutdown.
func (l *AttemptListener) Flush() {
	l.mu.Lock()
	open := l.inflight
	l.inflight = make(map[string]*attemptSpan)
	l.mu.Unlock()
	for _, a := range open {
		a.span.End()
	}
}

func (l *AttemptListener) with(e *events.Event, fn func(*attemptSpan)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.inflight[attemptKey(e)]; ok {
		fn(a)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
