package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntilSucceeds(t *testing.T) {
	calls := 0
	err := Until(context.Background(), "thing ready", time.Millisecond, 10, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestUntilExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Until(context.Background(), "thing ready", time.Millisecond, 4, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if terr.Attempts != 4 || terr.What != "thing ready" {
		t.Errorf("unexpected timeout detail: %+v", terr)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestUntilPropagatesError(t *testing.T) {
	boom := errors.New("describe failed")
	err := Until(context.Background(), "x", time.Millisecond, 10, func(ctx context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped predicate error, got %v", err)
	}
}

func TestUntilRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, "x", time.Hour, 5, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
