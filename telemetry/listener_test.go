package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AltairaLabs/SightKit/events"
)

func newTestListener(t *testing.T) (*AttemptListener, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return NewAttemptListener(tp.Tracer(InstrumentationName)), exp, tp
}

func flushAndGetSpans(t *testing.T, tp *sdktrace.TracerProvider, exp *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := exp.GetSpans()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	return spans
}

func attr(span tracetest.SpanStub, key string) (string, int64, bool) {
	for _, a := range span.Attributes {
		if string(a.Key) == key {
			return a.Value.Emit(), a.Value.AsInt64(), true
		}
	}
	return "", 0, false
}

func TestAttemptListener_SpanPerAttempt(t *testing.T) {
	l, exp, tp := newTestListener(t)

	bus := events.NewEventBus()
	bus.SubscribeAll(l.OnEvent)

	em := events.NewEmitter(bus, "sess-1", "hi")
	em.SessionConnecting(1, "ws://h:8000/ws/video", 0)
	em.SessionStreaming(1, time.Millisecond)
	em.FrameSent(1, 1, 100)
	em.FrameSent(1, 2, 150)
	em.FrameCaptureFailed(1, errors.New("busy"))
	em.ServiceError(1, "model not loaded")
	em.ProtocolError(1, errors.New("bad json"), 3)
	em.SessionClosed(1, false, errors.New("connection reset"), time.Second)

	em.SessionConnecting(2, "ws://h:8000/ws/video", 1)
	em.SessionClosed(2, true, nil, time.Second)
	bus.Close()

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	first := spans[0]
	if first.Name != "sightkit.attempt" {
		t.Errorf("unexpected span name %q", first.Name)
	}
	if _, n, _ := attr(first, "frames.sent"); n != 2 {
		t.Errorf("expected 2 frames, got %d", n)
	}
	if _, n, _ := attr(first, "frames.bytes"); n != 250 {
		t.Errorf("expected 250 bytes, got %d", n)
	}
	if s, _, _ := attr(first, "target_lang"); s != "hi" {
		t.Errorf("expected target_lang hi, got %q", s)
	}
	if first.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", first.Status.Code)
	}
	names := map[string]bool{}
	for _, ev := range first.Events {
		names[ev.Name] = true
	}
	for _, want := range []string{"handshake.sent", "capture.failed", "service.error", "protocol.error", "exception"} {
		if !names[want] {
			t.Errorf("missing span event %q in %v", want, names)
		}
	}

	second := spans[1]
	if second.Status.Code == codes.Error {
		t.Error("requested close should not be an error")
	}
	if s, _, _ := attr(second, "close.requested"); s != "true" {
		t.Errorf("expected close.requested true, got %q", s)
	}
}

func TestAttemptListener_IgnoresUnknownAttempts(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(&events.Event{Type: events.EventFrameSent, SessionID: "x", Attempt: 9, Data: events.FrameSentData{Seq: 1}})
	l.OnEvent(&events.Event{Type: events.EventSessionClosed, SessionID: "x", Attempt: 9, Data: events.SessionClosedData{}})
	l.OnEvent(&events.Event{Type: events.EventLanguageChanged, Data: events.LanguageChangedData{From: "en", To: "hi"}})

	if spans := flushAndGetSpans(t, tp, exp); len(spans) != 0 {
		t.Fatalf("expected no spans, got %d", len(spans))
	}
}

func TestAttemptListener_Flush(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(&events.Event{
		Type: events.EventSessionConnecting, SessionID: "s", Attempt: 1,
		Timestamp: time.Now(), Data: events.SessionConnectingData{URL: "ws://x"},
	})
	l.Flush()

	if spans := flushAndGetSpans(t, tp, exp); len(spans) != 1 {
		t.Fatalf("expected 1 span after flush, got %d", len(spans))
	}
}
