package emit

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingEmitter() (*OTelEmitter, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewOTelEmitter(provider.Tracer("test")), recorder
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTelEmitter_Emit(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	emitter.Emit(Event{
		RunID:  "run-001",
		Step:   2,
		StepID: "draft",
		Msg:    "step_end",
		Meta: map[string]interface{}{
			"kind":        "model_call",
			"duration_ms": int64(42),
		},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name() != "step_end" {
		t.Errorf("span name = %s", span.Name())
	}

	if v, ok := attrValue(span, "graphflow.run_id"); !ok || v.AsString() != "run-001" {
		t.Errorf("run_id attribute = %v", v)
	}
	if v, ok := attrValue(span, "graphflow.step"); !ok || v.AsInt64() != 2 {
		t.Errorf("step attribute = %v", v)
	}
	if v, ok := attrValue(span, "graphflow.kind"); !ok || v.AsString() != "model_call" {
		t.Errorf("kind attribute = %v", v)
	}
	if v, ok := attrValue(span, "graphflow.duration_ms"); !ok || v.AsInt64() != 42 {
		t.Errorf("duration_ms attribute = %v", v)
	}
}

func TestOTelEmitter_ErrorStatus(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	emitter.Emit(Event{
		RunID: "run-001",
		Msg:   "step_error",
		Meta:  map[string]interface{}{"error": "backend exploded"},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	status := spans[0].Status()
	if status.Code != codes.Error {
		t.Errorf("status code = %v", status.Code)
	}
	if status.Description != "backend exploded" {
		t.Errorf("status description = %q", status.Description)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestOTelEmitter_SpanPerEvent(t *testing.T) {
	emitter, recorder := newRecordingEmitter()

	for _, msg := range []string{"run_start", "step_start", "step_end", "run_end"} {
		emitter.Emit(Event{RunID: "run-001", Msg: msg})
	}

	spans := recorder.Ended()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}
	for i, want := range []string{"run_start", "step_start", "step_end", "run_end"} {
		if spans[i].Name() != want {
			t.Errorf("span[%d] = %s, want %s", i, spans[i].Name(), want)
		}
	}
}
