package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/growthledger/store"
)

var (
	errFlaky = errors.New("connection reset")
	errFatal = errors.New("unique violation")
)

func fastPolicy(tries uint) store.RetryPolicy {
	return store.RetryPolicy{
		MaxTries:        tries,
		Timeout:         time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Transient:       func(err error) bool { return errors.Is(err, errFlaky) },
	}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	got, err := store.Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := store.Exec(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Errorf("err = %v, want %v", err, errFatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoStopsAtMaxTries(t *testing.T) {
	calls := 0
	err := store.Exec(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Errorf("err = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	p := fastPolicy(1)
	p.Timeout = 10 * time.Millisecond
	err := store.Exec(context.Background(), p, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	_ = store.Exec(context.Background(), store.RetryPolicy{}, func(context.Context) error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
