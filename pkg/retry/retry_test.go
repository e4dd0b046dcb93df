package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("transient failure")

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, fastConfig(4))

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, fastConfig(4))

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errFlaky
	}, fastConfig(4))

	if !errors.Is(err, errFlaky) {
		t.Errorf("Do() = %v, want %v", err, errFlaky)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_RetryIfStopsEarly(t *testing.T) {
	cfg := fastConfig(4)
	cfg.RetryIf = func(err error) bool { return false }

	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errFlaky
	}, cfg)

	if !errors.Is(err, errFlaky) {
		t.Errorf("Do() = %v, want %v", err, errFlaky)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should stop after 1 call, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	cfg := fastConfig(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), func() error { return errFlaky }, cfg)

	// 3 попытки = 2 ретрая
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		t.Error("operation should not run with cancelled context")
		return nil
	}, fastConfig(4))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want %v", err, context.Canceled)
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig(0) // без ограничения попыток
	cfg.InitialDelay = time.Hour

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func() error { return errFlaky }, cfg)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errFlaky) {
			t.Errorf("Do() = %v, want last error %v", err, errFlaky)
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after context cancel")
	}
}

func TestDo_RetryIfSeesAttemptError(t *testing.T) {
	cfg := fastConfig(4)
	var seen []error
	cfg.RetryIf = func(err error) bool {
		seen = append(seen, err)
		return true
	}

	_ = Do(context.Background(), func() error { return errFlaky }, cfg)

	if len(seen) != 4 {
		t.Fatalf("RetryIf called %d times, want 4", len(seen))
	}
	for _, err := range seen {
		if !errors.Is(err, errFlaky) {
			t.Errorf("RetryIf got %v, want %v", err, errFlaky)
		}
	}
}

func TestCalculateDelay_Bounds(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0,
	}
	cfg.validate()

	if d := cfg.calculateDelay(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: got %v, want 100ms", d)
	}
	if d := cfg.calculateDelay(2); d != 400*time.Millisecond {
		t.Errorf("attempt 2: got %v, want 400ms", d)
	}
	// Экспонента упирается в MaxDelay
	if d := cfg.calculateDelay(10); d != time.Second {
		t.Errorf("attempt 10: got %v, want 1s cap", d)
	}
}
