package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flaggedError struct{ retryable bool }

func (e *flaggedError) Error() string     { return "flagged" }
func (e *flaggedError) IsRetryable() bool { return e.retryable }

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp 10.0.0.1:7687: connection refused")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_AttemptsExhausted(t *testing.T) {
	calls := 0
	transient := &flaggedError{retryable: true}
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return transient
	}, nil)

	assert.Same(t, transient, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return &flaggedError{retryable: false}
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	calls := 0
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return &flaggedError{retryable: true}
	}, func(int, error, time.Duration) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_KeepsLastResult(t *testing.T) {
	n, err := DoWithResult(context.Background(), fastConfig(2), func(context.Context) (int, error) {
		return 7, errors.New("503 service unavailable")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 7, n)
}

func TestDoWithResult_NilConfigAndZeroAttempts(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), &Config{}, func(context.Context) (string, error) {
		calls++
		return "", &flaggedError{retryable: true}
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	v, err := DoWithResult(context.Background(), nil, func(context.Context) (string, error) {
		return "ok", nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"explicit retryable", &flaggedError{retryable: true}, true},
		{"explicit permanent", &flaggedError{retryable: false}, false},
		{"wrapped explicit", errors.Join(errors.New("ctx"), &flaggedError{retryable: true}), true},
		{"connection refused", errors.New("connection refused"), true},
		{"bolt service unavailable", errors.New("Neo.TransientError.General.DatabaseUnavailable"), true},
		{"session expired", errors.New("SessionExpired: leader switch"), true},
		{"syntax error", errors.New("Neo.ClientError.Statement.SyntaxError: Invalid input"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestApplyJitter(t *testing.T) {
	assert.Equal(t, time.Second, applyJitter(time.Second, 0))
	for i := 0; i < 100; i++ {
		d := applyJitter(time.Second, 0.1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}
