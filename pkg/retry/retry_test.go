package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 2 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{5, 2 * time.Second},
		{60, 2 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("token not present yet")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	waits := 0
	sentinel := errors.New("persistent error")

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry:     func(int, error, time.Duration) { waits++ },
		Context:     context.Background(),
	}

	err := Do(func() error {
		attempts++
		return sentinel
	}, cfg)

	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if waits != 2 {
		t.Errorf("Expected 2 waits between 3 attempts, got %d", waits)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	fatal := errors.New("fatal")

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return !errors.Is(err, fatal) },
		Context:     context.Background(),
	}

	err := Do(func() error {
		attempts++
		return fatal
	}, cfg)

	if err != fatal {
		t.Errorf("Expected fatal error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		Context:     ctx,
	}

	err := Do(func() error {
		attempts++
		cancel()
		return errors.New("error")
	}, cfg)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(10*time.Millisecond, cancel)

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		Context:     ctx,
	}

	start := time.Now()
	err := Do(func() error { return errors.New("error") }, cfg)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected the backoff wait to stop on cancel, took %v", elapsed)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(nil) {
		t.Error("nil should not be retried")
	}
	if DefaultRetryIf(context.Canceled) {
		t.Error("context.Canceled should not be retried")
	}
	if !DefaultRetryIf(errors.New("other")) {
		t.Error("ordinary errors should be retried")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "csrf-token", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "csrf-token" {
		t.Errorf("Expected 'csrf-token', got '%s'", result)
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait should return promptly on a cancelled context")
	}
	if err := Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("zero wait on cancelled context should report cancellation, got %v", err)
	}
}
