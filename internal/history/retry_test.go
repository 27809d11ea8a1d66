package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	v, err := retry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, zap.NewNop(), "test", func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	if err != nil || v != 42 || attempts != 3 {
		t.Fatalf("unexpected result: v=%d err=%v attempts=%d", v, err, attempts)
	}
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	_, err := retry(context.Background(), RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}, zap.NewNop(), "test", func(context.Context) (string, error) {
		attempts++
		return "", boom
	})
	if !errors.Is(err, boom) || attempts != 2 {
		t.Fatalf("expected boom after 2 attempts, got %v after %d", err, attempts)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := retry(ctx, RetryPolicy{MaxRetries: 10, BaseDelay: time.Hour}, zap.NewNop(), "test", func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
