package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrFetchFailed is the generic failure a request surfaces as once the
// retry budget is exhausted. Callers record it against the account that
// issued the request; the vendor-specific cause stays wrapped inside.
var ErrFetchFailed = errors.New("fetch failed")

// Statuses retried alongside connection and read errors.
var retryStatuses = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusGatewayTimeout:      {},
}

// Client performs GET requests with bounded exponential-backoff retry
// on transient transport failures.
type Client struct {
	http    *http.Client
	retries uint64
}

func NewClient(httpClient *http.Client, retries int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{http: httpClient, retries: uint64(retries)}
}

// GetJSON fetches rawURL with the given query string and decodes the
// JSON response into out. Connection errors, read errors and a fixed
// set of 5xx statuses are retried; anything else fails immediately.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	logrus.Debugf("Downloading rates from %s", rawURL)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request for %s: %w", rawURL, err))
		}
		req.URL.RawQuery = query.Encode()
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request for %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if _, retryable := retryStatuses[resp.StatusCode]; retryable {
			return fmt.Errorf("server error for %s: %s", rawURL, resp.Status)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("unexpected status for %s: %s", rawURL, resp.Status))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response for %s: %w", rawURL, err)
		}
		if err = json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response for %s: %w", rawURL, err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)); err != nil {
		logrus.WithError(err).Debugf("Get request to %s has failed", rawURL)
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return nil
}
