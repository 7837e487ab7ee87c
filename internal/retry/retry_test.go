package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		Increment:    time.Millisecond,
	}
}

func TestWithBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("expected success")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestWithBackoffRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if !result.Success {
		t.Errorf("expected success, last error: %v", result.LastError)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithBackoffExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("permanent")
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return wantErr
	})

	if result.Success {
		t.Error("expected failure")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("LastError = %v, want %v", result.LastError, wantErr)
	}
}

func TestWithBackoffStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	config := &RetryConfig{MaxAttempts: 5, InitialDelay: time.Minute}
	result := WithBackoff(ctx, config, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	if result.Success {
		t.Error("expected failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls)
	}
	if !errors.Is(result.LastError, context.Canceled) {
		t.Errorf("LastError = %v, want context.Canceled", result.LastError)
	}
}

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		config  *RetryConfig
		attempt int
		want    time.Duration
	}{
		{
			name:    "linear first delay",
			config:  DefaultRetryConfig(),
			attempt: 1,
			want:    3 * time.Second,
		},
		{
			name:    "linear second delay",
			config:  DefaultRetryConfig(),
			attempt: 2,
			want:    4 * time.Second,
		},
		{
			name: "exponential",
			config: &RetryConfig{
				InitialDelay: time.Second,
				Multiplier:   2,
			},
			attempt: 3,
			want:    4 * time.Second,
		},
		{
			name: "capped by max delay",
			config: &RetryConfig{
				InitialDelay: time.Second,
				Multiplier:   10,
				MaxDelay:     5 * time.Second,
			},
			attempt: 4,
			want:    5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateDelay(tt.config, tt.attempt); got != tt.want {
				t.Errorf("calculateDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoReturnsLastErrorOnExhaustion(t *testing.T) {
	wantErr := errors.New("boom")
	err := DoWithConfig(context.Background(), fastConfig(2), func(ctx context.Context, attempt int) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}
