// Package client provides the HTTP client for the national entity registry API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"konkursradar_backend/internal/registry/transport"
	"konkursradar_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	// MaxPageSize is the upstream API's page size ceiling.
	MaxPageSize = 1000
	// MaxWindow is the deepest record the upstream API will paginate to
	// for a single filter. Requests past it return errors upstream, so the
	// client refuses to issue them.
	MaxWindow = 10000

	defaultPageSize = 500
	baseBackoff     = 500 * time.Millisecond
)

// ErrWindowCeiling is returned when pagination would exceed the upstream
// 10,000-record window. The caller should narrow the filter, e.g. collect
// per postal code instead of per municipality.
var ErrWindowCeiling = errors.New("registry pagination window ceiling reached, narrow the filter")

// UnavailableError wraps network failures and 5xx responses. Retried by the
// client with backoff up to its retry cap, then surfaced to the caller.
type UnavailableError struct {
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry unavailable: %v", e.Err)
	}
	return fmt.Sprintf("registry unavailable: status %d", e.Status)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError wraps 4xx responses other than 429. The filter itself is
// wrong, so the request is never retried.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("registry rejected request: status %d", e.Status)
}

// PageFilter selects one page of entities.
type PageFilter struct {
	KommuneNumber string
	// PostalCode narrows the filter below municipality level, used when the
	// pagination window ceiling is hit.
	PostalCode string
	// Since restricts results to entities registered on or after the date.
	Since    *time.Time
	Page     int
	PageSize int
}

// Page is one fetched page plus the pagination state needed to continue.
type Page struct {
	Entities       []transport.RawEntity
	HasMore        bool
	TotalAvailable int
}

// Config holds client construction settings.
type Config interface {
	GetRegistryBaseURL() string
	GetRegistryRPS() float64
	GetRegistryBurst() int
	GetRegistryTimeout() time.Duration
	GetRegistryMaxRetries() int
}

// Client fetches entity pages from the registry. The fetch itself is pure:
// no state is kept beyond the shared rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	log        *logger.Logger
}

// New creates a registry client with a shared token-bucket limiter. All
// callers, including concurrent collection streams, go through the same
// bucket so the configured requests-per-second holds globally.
func New(cfg Config, log *logger.Logger) *Client {
	burst := cfg.GetRegistryBurst()
	if burst < 1 {
		burst = 1
	}
	retries := cfg.GetRegistryMaxRetries()
	if retries < 0 {
		retries = 0
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetRegistryTimeout()},
		baseURL:    cfg.GetRegistryBaseURL(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.GetRegistryRPS()), burst),
		maxRetries: retries,
		log:        log,
	}
}

// FetchPage fetches one page of entities for the filter. 5xx, 429 and
// network failures are retried with exponential backoff up to the retry cap;
// other 4xx responses fail immediately with a RejectedError.
func (c *Client) FetchPage(ctx context.Context, filter PageFilter) (Page, error) {
	size := filter.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	// Refuse to paginate past the upstream window: requesting page+1 later
	// would need records beyond the ceiling.
	if size*(filter.Page+2) > MaxWindow {
		return Page{}, ErrWindowCeiling
	}

	reqURL := c.buildURL(filter, size)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Page{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return Page{}, err
		}

		start := time.Now()
		page, err := c.doFetch(ctx, reqURL)
		if err == nil {
			c.log.RegistryFetch(filter.KommuneNumber, filter.Page, len(page.Entities), time.Since(start))
			return page, nil
		}

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return Page{}, err
		}
		lastErr = err
	}

	return Page{}, lastErr
}

func (c *Client) buildURL(filter PageFilter, size int) string {
	params := url.Values{}
	if filter.KommuneNumber != "" {
		params.Set("kommunenummer", filter.KommuneNumber)
	}
	if filter.PostalCode != "" {
		params.Set("postnummer", filter.PostalCode)
	}
	if filter.Since != nil {
		params.Set("fraRegistreringsdatoEnhetsregisteret", filter.Since.Format("2006-01-02"))
	}
	params.Set("page", strconv.Itoa(filter.Page))
	params.Set("size", strconv.Itoa(size))

	return fmt.Sprintf("%s/enheter?%s", c.baseURL, params.Encode())
}

func (c *Client) doFetch(ctx context.Context, reqURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("registry request failed", "error", err, "url", reqURL)
		return Page{}, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Success - continue to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		// Throttling is transient, not a filter problem. Retried like 5xx.
		c.log.Warn("registry throttled request", "url", reqURL)
		return Page{}, &UnavailableError{Status: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.log.Error("registry rejected request", "status", resp.StatusCode, "url", reqURL)
		return Page{}, &RejectedError{Status: resp.StatusCode}
	default:
		c.log.Warn("registry upstream error", "status", resp.StatusCode, "url", reqURL)
		return Page{}, &UnavailableError{Status: resp.StatusCode}
	}

	var payload transport.PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Error("registry decode failed", "error", err)
		return Page{}, &UnavailableError{Err: fmt.Errorf("decode response: %w", err)}
	}

	return Page{
		Entities:       payload.Entities,
		HasMore:        payload.Page.Number+1 < payload.Page.TotalPages,
		TotalAvailable: payload.Page.TotalElements,
	}, nil
}
