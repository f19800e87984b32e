package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_NilProvider(t *testing.T) {
	if Tracer(nil) == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestTracer_WithProvider(t *testing.T) {
	if Tracer(noop.NewTracerProvider()) == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()

	fields := otel.GetTextMapPropagator().Fields()
	want := map[string]bool{"traceparent": false, "X-Amzn-Trace-Id": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, found := range want {
		if !found {
			t.Errorf("expected propagator to handle %q, got fields: %v", f, fields)
		}
	}
}

func TestInstall(t *testing.T) {
	origTP := otel.GetTracerProvider()
	origProp := otel.GetTextMapPropagator()
	defer func() {
		otel.SetTracerProvider(origTP)
		otel.SetTextMapPropagator(origProp)
	}()

	tp := noop.NewTracerProvider()
	Install(tp)
	if otel.GetTracerProvider() != tp {
		t.Fatal("expected global tracer provider to be replaced")
	}
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), "http://127.0.0.1:4318/v1/traces", "sightkit-test")
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	// Nothing was recorded, so shutdown does not need the collector.
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
