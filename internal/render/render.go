// Package render abstracts the page-rendering collaborator behind a narrow
// interface so the scraper's parsing logic stays unit-testable against fixed
// HTML fixtures.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Renderer produces fully rendered markup for a URL. Implementations must
// honor ctx and bound the render with a timeout; the cache layer never
// serializes renders for different zones, so implementations that wrap a
// single shared browser process handle their own queueing.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BackoffConfig controls exponential backoff behaviour for transport-level
// retries inside a single render.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// HTTPRenderer fetches pages over plain HTTP with retries, exponential
// backoff, and a circuit breaker. It serves sources that deliver their data
// in the initial response; a browser-engine Renderer can be swapped in
// without touching the scraper.
type HTTPRenderer struct {
	client    *http.Client
	backoff   BackoffConfig
	circuit   *gobreaker.CircuitBreaker
	userAgent string
}

// Option customizes an HTTPRenderer.
type Option func(*HTTPRenderer)

// WithBackoff overrides the default retry/backoff settings.
func WithBackoff(cfg BackoffConfig) Option {
	return func(r *HTTPRenderer) {
		r.backoff = cfg
	}
}

// WithUserAgent overrides the User-Agent header sent to the source.
func WithUserAgent(ua string) Option {
	return func(r *HTTPRenderer) {
		r.userAgent = ua
	}
}

// NewHTTPRenderer creates an HTTPRenderer around the given client. The
// client's timeout bounds each attempt.
func NewHTTPRenderer(client *http.Client, opts ...Option) *HTTPRenderer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "renderer",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	r := &HTTPRenderer{
		client: client,
		backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit:   cb,
		userAgent: "avy-forecast-cache/1.0",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render fetches the URL and returns the response body as markup.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	resp, err := r.doWithResilience(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading rendered body: %w", err)
	}
	return string(body), nil
}

// doWithResilience executes the GET with retries, exponential backoff, and a
// circuit breaker.
func (r *HTTPRenderer) doWithResilience(ctx context.Context, url string) (*http.Response, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", r.userAgent)

		result, err := r.circuit.Execute(func() (interface{}, error) {
			resp, execErr := r.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			// Handle rate limiting and server errors explicitly.
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= r.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := r.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if r.backoff.MaxInterval > 0 && delay > r.backoff.MaxInterval {
			delay = r.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}
