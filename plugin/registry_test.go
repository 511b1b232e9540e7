package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/plugin"
)

type recorder struct {
	name string

	mu     sync.Mutex
	calls  []string
	failOn string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) note(hook string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, hook)
	if hook == r.failOn {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) OnSyncStarted(context.Context, string) error { return r.note("started") }
func (r *recorder) OnEntryRecorded(context.Context, string, *entry.Entry) error {
	return r.note("recorded")
}
func (r *recorder) OnSyncCompleted(context.Context, string, int, int, int, time.Duration) error {
	return r.note("completed")
}

type slow struct{}

func (slow) Name() string { return "slow" }
func (slow) OnSyncFailed(ctx context.Context, _ string, _ error) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegisterDuplicate(t *testing.T) {
	r := plugin.NewRegistry().WithLogger(quiet())
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Error("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Error("Get returned unexpected result")
	}
}

func TestEmitDispatchesOnlyImplementedHooks(t *testing.T) {
	rec := &recorder{name: "rec", failOn: "recorded"}
	r := plugin.NewRegistry().WithLogger(quiet())
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitSyncStarted(ctx, "sync_1")
	r.EmitEntryRecorded(ctx, "sync_1", &entry.Entry{TransactionID: "SKU-5"})
	r.EmitEntrySkipped(ctx, "sync_1", "SKU-5", "duplicate")
	r.EmitSyncCompleted(ctx, "sync_1", 1, 0, 0, time.Millisecond)
	r.EmitSyncFailed(ctx, "sync_1", errors.New("x"))

	want := []string{"started", "recorded", "completed"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, rec.calls[i], want[i])
		}
	}
}

func TestHookTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithLogger(quiet()).WithTimeout(20 * time.Millisecond)
	if err := r.Register(slow{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitSyncFailed(context.Background(), "sync_1", errors.New("x"))
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("slow hook blocked emission for %s", elapsed)
	}
}
