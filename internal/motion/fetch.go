package motion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	mocaperrors "github.com/tessro/mocap/internal/errors"
)

const (
	// Retry configuration for transient errors
	defaultRetries = 3
	baseRetryWait  = 500 * time.Millisecond

	// maxRecordingSize bounds a downloaded recording.
	maxRecordingSize = 256 << 20
)

// Fetcher downloads remote recordings.
type Fetcher struct {
	httpClient *http.Client
	retries    int
	retryWait  time.Duration
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		f.retries = n
	}
}

// WithRetryWait sets the initial backoff between retries.
func WithRetryWait(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryWait = d
	}
}

// WithFetchLogger sets the logger for request tracing.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher with a per-request timeout.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		retries:    defaultRetries,
		retryWait:  baseRetryWait,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "fetch")
	return f
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetch downloads url, retrying network errors and 5xx responses with
// exponential backoff. A 404 is reported as ErrRecordingNotFound.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.logger.Debug("fetch", "url", url)

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			wait := f.retryWait * time.Duration(1<<(attempt-1))
			f.logger.Debug("retry", "attempt", attempt, "max", f.retries, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "text/csv, text/plain, */*")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", mocaperrors.ErrNetworkError, err)
			f.logger.Debug("network error", "err", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingSize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			f.logger.Debug("read error", "err", err)
			continue
		}

		f.logger.Debug("response", "status", resp.StatusCode, "bytes", len(body))

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", url, mocaperrors.ErrRecordingNotFound)
		case resp.StatusCode >= 500:
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode}
			continue
		case resp.StatusCode >= 400:
			return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
		}

		return body, nil
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", f.retries, lastErr)
}
