// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

/*
http_client.go - Remote Catalog HTTP Client

This file provides the HTTPClient struct and HTTP communication layer for
the SteamSpy-compatible catalog API.

Client Features:
  - HTTP client with configurable timeout
  - Outbound rate limiting (golang.org/x/time/rate)
  - Automatic HTTP 429 handling with exponential backoff and Retry-After
  - JSON response parsing via goccy/go-json
  - Context support for cancellation and timeouts

Resilience Mechanisms:
  - Rate Limiting: exponential backoff (1s, 2s, 4s, 8s, 16s) on HTTP 429
  - Retries: configurable max attempts for rate-limited requests
  - Context: all methods accept context for cancellation

Related Files:
  - breaker.go: circuit breaker wrapper around this client
*/

//nolint:staticcheck // File documentation, not package doc
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/models"
)

// maxErrorBodySize limits the amount of response body read for error reporting.
// Prevents unbounded memory allocation when reading large error responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// itemPayload is the wire format of one item in the SteamSpy-compatible API.
// Price comes back as a string of cents; genre is a comma-separated list.
type itemPayload struct {
	AppID    int64  `json:"appid"`
	Name     string `json:"name"`
	Positive int64  `json:"positive"`
	Negative int64  `json:"negative"`
	Price    string `json:"price"`
	Genre    string `json:"genre"`
}

// toCatalogItem converts a wire payload into the domain model.
// fetchedAt becomes the item's UpdatedAt since the upstream API does not
// report one.
func (p *itemPayload) toCatalogItem(fetchedAt time.Time) models.CatalogItem {
	return models.CatalogItem{
		ID:              p.AppID,
		Name:            p.Name,
		Price:           parsePriceCents(p.Price),
		Categories:      parseGenres(p.Genre),
		PositiveReviews: p.Positive,
		NegativeReviews: p.Negative,
		UpdatedAt:       fetchedAt,
	}
}

// parsePriceCents converts the upstream price string (integer cents) to a
// decimal amount. Empty or malformed values are treated as free.
func parsePriceCents(s string) float64 {
	if s == "" {
		return 0
	}
	cents, err := strconv.ParseInt(s, 10, 64)
	if err != nil || cents < 0 {
		return 0
	}
	return float64(cents) / 100
}

// parseGenres splits the upstream comma-separated genre string into a
// deduplicated tag list, preserving first-seen order.
func parseGenres(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		genres = append(genres, p)
	}
	return genres
}

// HTTPClient handles communication with the remote catalog HTTP API.
//
// Implements the Client interface. Includes built-in outbound rate
// limiting and automatic retry with exponential backoff for HTTP 429
// responses.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// HTTP request; the rate limiter coordinates across goroutines.
type HTTPClient struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewHTTPClient creates a catalog client from configuration.
func NewHTTPClient(cfg *config.CatalogConfig) *HTTPClient {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        limiter,
		maxRetries:     cfg.RetryAttempts,
		retryBaseDelay: 1 * time.Second,
	}
}

// doRequestWithRateLimit performs a GET with outbound rate limiting and
// automatic HTTP 429 handling. Backoff doubles per attempt (1s, 2s, 4s,
// 8s, 16s); a Retry-After header overrides the computed delay. The
// context is honored during waits.
func (c *HTTPClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429) - close body and retry with backoff
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Retry-After header (RFC 6585) overrides computed backoff
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// getJSON performs a request against the API and decodes the JSON body.
// Any transport-level failure maps to ErrUnavailable; non-200 responses
// other than 404 do too.
func (c *HTTPClient) getJSON(ctx context.Context, params url.Values, result interface{}) error {
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	return nil
}

// metricErrorType maps a call outcome to the error_type label on
// catalog request metrics. Empty string means success.
func metricErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errorsIsNotFound(err):
		return "not_found"
	default:
		return "unavailable"
	}
}

// Fetch returns the item with the given id, or ErrNotFound.
// The upstream API answers unknown ids with a zero appid and empty name
// rather than a 404; both are treated as authoritative NotFound.
func (c *HTTPClient) Fetch(ctx context.Context, id int64) (*models.CatalogItem, error) {
	start := time.Now()
	item, err := c.fetchItem(ctx, id)
	metrics.RecordCatalogRequest("fetch", time.Since(start), metricErrorType(err))
	return item, err
}

func (c *HTTPClient) fetchItem(ctx context.Context, id int64) (*models.CatalogItem, error) {
	params := url.Values{}
	params.Set("request", "appdetails")
	params.Set("appid", strconv.FormatInt(id, 10))

	var payload itemPayload
	if err := c.getJSON(ctx, params, &payload); err != nil {
		return nil, fmt.Errorf("fetch %d: %w", id, err)
	}

	if payload.AppID == 0 || payload.Name == "" {
		return nil, fmt.Errorf("fetch %d: %w", id, ErrNotFound)
	}

	item := payload.toCatalogItem(time.Now().UTC())
	return &item, nil
}

// FetchMany returns the subset of requested ids that exist, keyed by id.
// Missing ids are silently omitted. Fails with ErrUnavailable as soon as
// the remote store stops answering; partial tolerance across ids is the
// cache coordinator's job, not this client's.
func (c *HTTPClient) FetchMany(ctx context.Context, ids []int64) (map[int64]*models.CatalogItem, error) {
	start := time.Now()
	found := make(map[int64]*models.CatalogItem, len(ids))
	for _, id := range ids {
		item, err := c.fetchItem(ctx, id)
		if err != nil {
			if errorsIsNotFound(err) {
				continue
			}
			metrics.RecordCatalogRequest("fetch_many", time.Since(start), metricErrorType(err))
			return nil, err
		}
		found[id] = item
	}
	metrics.RecordCatalogRequest("fetch_many", time.Since(start), "")
	return found, nil
}

// ListTop returns up to n items ranked by the remote store's recent
// popularity listing.
func (c *HTTPClient) ListTop(ctx context.Context, n int) ([]models.CatalogItem, error) {
	start := time.Now()
	params := url.Values{}
	params.Set("request", "top100in2weeks")

	// Keyed by stringified appid
	var payload map[string]itemPayload
	if err := c.getJSON(ctx, params, &payload); err != nil {
		err = fmt.Errorf("list top: %w", err)
		metrics.RecordCatalogRequest("list_top", time.Since(start), metricErrorType(err))
		return nil, err
	}
	metrics.RecordCatalogRequest("list_top", time.Since(start), "")

	fetchedAt := time.Now().UTC()
	items := make([]models.CatalogItem, 0, len(payload))
	for _, p := range payload {
		if p.AppID == 0 || p.Name == "" {
			continue
		}
		items = append(items, p.toCatalogItem(fetchedAt))
	}

	// The upstream map is unordered; rank by review volume, the closest
	// proxy for its popularity listing, with id as a deterministic tie-break.
	sortByPopularity(items)

	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}
