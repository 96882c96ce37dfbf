package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

var (
	// DefaultRetry backs off exponentially from MinWait, capped per attempt at
	// MaxWait and overall at TotalCap.
	DefaultRetry = Retry{MinWait: 100 * time.Millisecond, MaxWait: 2 * time.Second, MaxRetries: 10, TotalCap: 10 * time.Second}

	ErrOutOfRetries = errors.New("tried too many times")
)

type Retry struct {
	MinWait    time.Duration // Min amount of time to sleep per iteration
	MaxWait    time.Duration // Max amount of time to sleep per iteration
	MaxRetries int           // Number of times to retry
	TotalCap   time.Duration // Max amount of time to spend sleeping across all iterations; 0 means no cap
}

// Wait returns the backoff duration for attempt i with jitter.
func (r Retry) Wait(i int) time.Duration {
	wait := r.MinWait << uint(i)
	if wait > r.MaxWait || wait <= 0 {
		wait = r.MaxWait
	}
	// Full jitter within [MinWait, wait]
	if wait > r.MinWait {
		wait = r.MinWait + time.Duration(rand.Int63n(int64(wait-r.MinWait)))
	}
	return wait
}

// Sleep blocks for the attempt's backoff or until the context is done.
func (r Retry) Sleep(ctx context.Context, i int) error {
	t := time.NewTimer(r.Wait(i))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryRequest retries the request on 429s, 5xxs and transport errors.
// The request body must be rewindable via req.GetBody when retried.
func RetryRequest(c *http.Client, req *http.Request) (*http.Response, error) {
	return RetryRequestWithRetry(c, req, DefaultRetry)
}

func RetryRequestWithRetry(c *http.Client, req *http.Request, r Retry) (*http.Response, error) {
	ctx := req.Context()
	deadline := time.Now().Add(r.TotalCap)

	var resp *http.Response
	var err error
	for i := 0; i < r.MaxRetries; i++ {
		if i > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			req.Body = body
		}

		resp, err = c.Do(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if resp != nil {
			resp.Body.Close()
		}

		if r.TotalCap > 0 && time.Now().After(deadline) {
			break
		}

		if sleepErr := r.Sleep(ctx, i); sleepErr != nil {
			return nil, sleepErr
		}
	}

	if err != nil {
		return nil, err
	}
	return nil, ErrOutOfRetries
}

// RetryFunc retries f while shouldRetry approves of the returned error.
func RetryFunc(ctx context.Context, f func(ctx context.Context) error, shouldRetry func(error) bool, r Retry) error {
	var err error
	for i := 0; i < r.MaxRetries; i++ {
		err = f(ctx)
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return err
		}

		if sleepErr := r.Sleep(ctx, i); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
