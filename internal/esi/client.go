package esi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/metrics"
)

// DefaultBaseURL is the public ESI endpoint.
const DefaultBaseURL = "https://esi.evetech.net/latest"

const maxErrorBody = 512

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL        string
	UserAgent      string
	MinInterval    time.Duration // minimum spacing between outbound requests
	Burst          int
	MaxAttempts    int
	BaseDelay      time.Duration // first retry delay, doubled per attempt
	RequestTimeout time.Duration // per attempt
	OrderCacheTTL  time.Duration // fallback when ESI sends no Expires header
	HTTPClient     *http.Client
}

// Client is a rate-limited ESI HTTP client.
// One limiter is shared by every caller, so metadata lookups and market
// queries draw from the same request budget.
type Client struct {
	http        *http.Client
	baseURL     string
	userAgent   string
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	orderCache  *OrderCache
}

// NewClient creates an ESI client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "eve-hullscout/1.0 (github.com)"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Client{
		http:        opts.HTTPClient,
		baseURL:     opts.BaseURL,
		userAgent:   opts.UserAgent,
		limiter:     rate.NewLimiter(limit, opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		timeout:     opts.RequestTimeout,
		orderCache:  NewOrderCache(opts.OrderCacheTTL),
	}
}

// response is a fully read 200 response.
type response struct {
	body   []byte
	header http.Header
}

// get performs a GET with rate limiting, a per-attempt timeout and
// exponential backoff. Exhausted retries become *RemoteUnavailableError;
// cancellation of ctx is returned as ctx.Err(), and a request the limiter
// cannot admit before the deadline as context.DeadlineExceeded.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*response, error) {
	op := "GET " + path
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.2
	policy.MaxElapsedTime = 0

	attempts := 0
	var resp *response
	err := backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next token lands past the deadline.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(context.DeadlineExceeded)
		}
		attempts++
		r, err := c.do(ctx, target)
		if err == nil {
			metrics.ESIRequests.WithLabelValues(metrics.OutcomeOK).Inc()
			resp = r
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			metrics.ESIRequests.WithLabelValues(metrics.OutcomeError).Inc()
			return backoff.Permanent(err)
		}
		metrics.ESIRequests.WithLabelValues(metrics.OutcomeRetry).Inc()
		logger.Debug("ESI", fmt.Sprintf("%s attempt %d/%d failed: %v", op, attempts, c.maxAttempts, err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx))
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if attempts == 0 {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nil, &RemoteUnavailableError{Op: op, Attempts: attempts, Err: err}
}

// do runs a single attempt. A timed-out attempt is an ordinary error and is
// retried like any other transport failure.
func (c *Client) do(ctx context.Context, target string) (*response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &response{body: body, header: resp.Header}, nil
}

// GetJSON fetches path and decodes JSON into dst.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dst any) error {
	resp, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// getPaginated fetches every page of a paginated endpoint in order and
// hands each decoded page to collect. Pages are requested until X-Pages is
// reached or a page comes back empty, whichever happens first.
func getPaginated[T any](ctx context.Context, c *Client, path string, query url.Values, collect func([]T)) (http.Header, error) {
	var first http.Header
	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))

		resp, err := c.get(ctx, path, q)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if page == 1 {
			first = resp.header
			if p := resp.header.Get("X-Pages"); p != "" {
				if n, err := strconv.Atoi(p); err == nil && n > 0 {
					totalPages = n
				}
			}
		}

		var data []T
		if err := json.Unmarshal(resp.body, &data); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", path, page, err)
		}
		if len(data) == 0 {
			break
		}
		collect(data)
	}
	return first, nil
}
