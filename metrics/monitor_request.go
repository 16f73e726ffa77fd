package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Retries accumulates the outcome of each attempt retryablehttp makes for a
// single logical request. HttpRetryHook, installed as a client's CheckRetry,
// writes into it; MonitorRequest reads it back once the request settles.
type Retries struct {
	count          int
	lastStatusCode int
}

// MonitorRequest performs req through client and records the outcome
// against clientMetrics: a RequestDuration/RetryCount observation once the
// final attempt succeeds, a FailureCount increment if it didn't.
// client.CheckRetry must be HttpRetryHook, or the Retries value this
// attaches to the request's context is never populated.
func MonitorRequest(clientMetrics ClientMetrics, client *retryablehttp.Client, req *retryablehttp.Request) (*http.Response, error) {
	ctx := context.WithValue(req.Context(), RetriesKey, &Retries{count: -1})
	req.Request = req.Request.WithContext(ctx)

	start := time.Now()
	res, err := client.Do(req)
	duration := time.Since(start)

	retries := ctx.Value(RetriesKey).(*Retries)
	if retries.lastStatusCode >= 400 {
		clientMetrics.FailureCount.WithLabelValues(req.URL.Host, fmt.Sprint(retries.lastStatusCode)).Inc()
		return res, err
	}

	clientMetrics.RequestDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())
	clientMetrics.RetryCount.WithLabelValues(req.URL.Host).Set(float64(retries.count))
	return res, err
}

// HttpRetryHook wraps retryablehttp's default retry policy, recording each
// attempt's status onto the Retries value MonitorRequest placed in the
// request's context before deferring to the default policy.
func HttpRetryHook(ctx context.Context, res *http.Response, err error) (bool, error) {
	if retries, ok := ctx.Value(RetriesKey).(*Retries); ok {
		if res == nil {
			retries.lastStatusCode = 999
		} else {
			retries.lastStatusCode = res.StatusCode
		}
		retries.count++
	}
	return retryablehttp.DefaultRetryPolicy(ctx, res, err)
}
