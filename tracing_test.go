package growthledger_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/store/memory"
)

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSyncSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	engine := newEngine(scenarioSource(), memory.New(),
		growthledger.WithTracer(tp.Tracer("test")))
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "growthledger.Sync" {
		t.Errorf("span name = %q", span.Name())
	}
	if v, ok := spanAttr(span, "growthledger.synced"); !ok || v.AsInt64() != 1 {
		t.Errorf("growthledger.synced = %v (present %v), want 1", v.AsInt64(), ok)
	}
	if v, ok := spanAttr(span, "growthledger.failure_policy"); !ok || v.AsString() != "abort" {
		t.Errorf("growthledger.failure_policy = %q", v.AsString())
	}
	if span.Status().Code == codes.Error {
		t.Errorf("successful sync span has error status: %s", span.Status().Description)
	}
}

func TestSyncSpanRecordsFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	src := memory.NewSource(rec("1", "real", "not-a-number", ""))
	engine := newEngine(src, memory.New(), growthledger.WithTracer(tp.Tracer("test")))
	if _, err := engine.Sync(context.Background()); err == nil {
		t.Fatal("expected conversion error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].Status().Code; got != codes.Error {
		t.Errorf("status = %v, want Error", got)
	}
}
