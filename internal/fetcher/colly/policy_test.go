package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, time.Millisecond, time.Second)
	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil", err: nil, attempt: 1, want: false},
		{name: "server error", err: &StatusError{Code: http.StatusServiceUnavailable}, attempt: 1, want: true},
		{name: "not found", err: &StatusError{Code: http.StatusNotFound}, attempt: 1, want: false},
		{name: "exhausted", err: &StatusError{Code: http.StatusServiceUnavailable}, attempt: 3, want: false},
		{name: "canceled", err: context.Canceled, attempt: 1, want: false},
		{name: "net timeout", err: timeoutErr{timeout: true}, attempt: 1, want: true},
		{name: "net refused", err: timeoutErr{timeout: false}, attempt: 1, want: false},
		{name: "other", err: errors.New("eof"), attempt: 2, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestBackoffIsBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

func TestThrottleFixedDelay(t *testing.T) {
	t.Parallel()

	th := NewThrottle(2*time.Second, ThrottleConfig{})
	th.Observe(30*time.Second, http.StatusOK)
	assert.Equal(t, 2*time.Second, th.Delay())
}

func TestThrottleAdapts(t *testing.T) {
	t.Parallel()

	th := NewThrottle(time.Second, ThrottleConfig{
		Enabled:           true,
		StartDelay:        4 * time.Second,
		MaxDelay:          10 * time.Second,
		TargetConcurrency: 1,
	})
	require.Equal(t, 4*time.Second, th.Delay())

	// fast responses pull the delay down, never below the download delay
	for i := 0; i < 10; i++ {
		th.Observe(100*time.Millisecond, http.StatusOK)
	}
	assert.Equal(t, time.Second, th.Delay())

	// slow responses push it up, never above the maximum
	th.Observe(8*time.Second, http.StatusOK)
	assert.Equal(t, 8*time.Second, th.Delay())
	th.Observe(60*time.Second, http.StatusOK)
	assert.Equal(t, 10*time.Second, th.Delay())

	// error responses cannot lower the delay
	th.Observe(10*time.Millisecond, http.StatusInternalServerError)
	assert.Equal(t, 10*time.Second, th.Delay())
}

func TestThrottleWaitHonorsContext(t *testing.T) {
	t.Parallel()

	th := NewThrottle(time.Hour, ThrottleConfig{})
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(ctx))
}
