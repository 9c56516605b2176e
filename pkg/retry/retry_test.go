package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			delay := backoff.NextDelay(test.attempt)
			if delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestDefaultExponentialBackoffIsPowerOfTwoSeconds(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	for attempt := 1; attempt <= 10; attempt++ {
		expected := time.Duration(1<<attempt) * time.Second
		if delay := backoff.NextDelay(attempt); delay != expected {
			t.Errorf("Attempt %d: expected %v, got %v", attempt, expected, delay)
		}
	}

	// No cap: the delay keeps growing
	if backoff.NextDelay(12) != 4096*time.Second {
		t.Errorf("Expected uncapped delay of 4096s, got %v", backoff.NextDelay(12))
	}

	// No jitter: repeated calls are identical
	if backoff.NextDelay(3) != backoff.NextDelay(3) {
		t.Error("Expected deterministic delay without jitter")
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Errorf("Expected jittered delay within 30%% of 200ms, got %v", delay)
		}
	}
}

func TestWait(t *testing.T) {
	t.Run("zero delay returns immediately", func(t *testing.T) {
		if err := Wait(context.Background(), 0); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	})

	t.Run("waits for delay", func(t *testing.T) {
		start := time.Now()
		if err := Wait(context.Background(), 20*time.Millisecond); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
		if time.Since(start) < 20*time.Millisecond {
			t.Error("Expected Wait to block for the delay")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Wait(ctx, time.Hour)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}
