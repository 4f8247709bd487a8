package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// retryPolicy decides how often an exchange is attempted and how long to
// wait in between. Network errors, 429 and 5xx are retried; every other
// status is returned as is.
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration // wait before the second attempt, doubled after
	maxBackoff  time.Duration // cap on any single wait, Retry-After included
}

func newRetryPolicy(maxAttempts int) retryPolicy {
	return retryPolicy{
		maxAttempts: max(maxAttempts, 1),
		backoff:     time.Second,
		maxBackoff:  30 * time.Second,
	}
}

// do sends the request produced by build until it gets a final answer or
// runs out of attempts. build is called once per attempt so every attempt
// carries a fresh body. The last retryable response is returned open when
// attempts are exhausted; the wait between attempts ends early when ctx is
// done.
func (p retryPolicy) do(ctx context.Context, client *http.Client, build func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	wait := p.backoff

	for attempt := 1; ; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		final := attempt >= p.maxAttempts

		var next time.Duration
		switch {
		case err != nil:
			if final || ctx.Err() != nil {
				return nil, err
			}
			next = wait
		case !isRetryableStatus(resp.StatusCode) || final:
			return resp, nil
		default:
			next = p.retryAfter(resp.Header.Get("Retry-After"), wait)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		logger.Debug("http retry",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"attempt", attempt+1,
			"wait", next,
			"cause", retryCause(resp, err),
		)
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, p.maxBackoff)
	}
}

// retryAfter honours a Retry-After header given in seconds, capped at
// maxBackoff, and falls back to the computed wait.
func (p retryPolicy) retryAfter(header string, fallback time.Duration) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return fallback
	}
	return min(time.Duration(secs)*time.Second, p.maxBackoff)
}

func retryCause(resp *http.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return resp.Status
}

// isRetryableStatus returns true for HTTP status codes that should be retried.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
