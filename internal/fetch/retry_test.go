package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNetError struct {
	timeout bool
}

func (e fakeNetError) Error() string   { return "fake net error" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

func TestShouldRetryClassification(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(3, time.Millisecond, 10*time.Millisecond)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"decode failure", &DecodeError{URL: "u", Charset: "euc-kr", Err: errors.New("bad")}, false},
		{"status 404", &TransportError{URL: "u", Status: 404, Err: errors.New("not found")}, false},
		{"status 429", &TransportError{URL: "u", Status: 429, Err: errors.New("throttled")}, true},
		{"status 500", &TransportError{URL: "u", Status: 500, Err: errors.New("boom")}, true},
		{"status 503", &TransportError{URL: "u", Status: 503, Err: errors.New("down")}, true},
		{"net timeout", &TransportError{URL: "u", Err: fakeNetError{timeout: true}}, true},
		{"net non-timeout", &TransportError{URL: "u", Err: fakeNetError{timeout: false}}, false},
		{"opaque error", errors.New("mystery"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, policy.ShouldRetry(tc.err, 1))
		})
	}
}

func TestShouldRetryRespectsAttemptBound(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(2, time.Millisecond, 10*time.Millisecond)
	err := &TransportError{URL: "u", Status: 500, Err: errors.New("boom")}

	require.True(t, policy.ShouldRetry(err, 1))
	require.False(t, policy.ShouldRetry(err, 2))
	require.False(t, policy.ShouldRetry(err, 3))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	cap := 400 * time.Millisecond
	policy := NewExponentialRetryPolicy(5, base, cap)

	for attempt := 0; attempt < 6; attempt++ {
		delay := float64(base) * float64(int(1)<<attempt)
		if delay > float64(cap) {
			delay = float64(cap)
		}
		got := policy.Backoff(attempt)
		require.GreaterOrEqual(t, got, time.Duration(delay/2), "attempt %d", attempt)
		require.Less(t, got, time.Duration(delay)+time.Millisecond, "attempt %d", attempt)
	}
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, 3, policy.MaxAttempts())
	require.Greater(t, policy.Backoff(0), time.Duration(0))
}
