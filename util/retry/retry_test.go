package retry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = Retry{MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond, MaxRetries: 4}

func TestRetryRequestRecoversFromServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := RetryRequestWithRetry(server.Client(), req, fastRetry)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestRetryRequestDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := RetryRequestWithRetry(server.Client(), req, fastRetry)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestRetryRequestGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = RetryRequestWithRetry(server.Client(), req, fastRetry)
	assert.ErrorIs(t, err, ErrOutOfRetries)
	assert.Equal(t, fastRetry.MaxRetries, attempts)
}

func TestRetryFuncStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	fatal := fmt.Errorf("fatal")

	err := RetryFunc(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	}, func(err error) bool { return false }, fastRetry)

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryFuncEventuallySucceeds(t *testing.T) {
	calls := 0

	err := RetryFunc(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	}, func(err error) bool { return true }, fastRetry)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSleepHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := Retry{MinWait: time.Minute, MaxWait: time.Minute, MaxRetries: 1}
	start := time.Now()
	err := slow.Sleep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
