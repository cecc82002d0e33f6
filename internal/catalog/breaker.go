// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package catalog

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/models"
)

// CircuitBreakerClient wraps a Client with the circuit breaker pattern.
// The breaker prevents cascading failures when the remote catalog is
// unavailable or slow: once open, calls fail fast with ErrUnavailable so
// the cache layer can move straight to degraded-mode reads.
//
// NotFound is an authoritative answer from the remote store and never
// counts as a failure toward tripping the breaker.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for
// its interval and timeout calculations. Tests should mock the wrapped
// client rather than the breaker.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps the given client with a circuit breaker
// configured from cfg:
//   - at most cfg.BreakerMaxRequests concurrent probes in half-open state
//   - counts reset every cfg.BreakerInterval while closed
//   - cfg.BreakerTimeout before an open breaker attempts recovery
//   - opens after cfg.BreakerMaxFailures consecutive failures
func NewCircuitBreakerClient(client Client, cfg *config.CatalogConfig) *CircuitBreakerClient {
	cbName := "catalog-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	maxFailures := cfg.BreakerMaxFailures

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= maxFailures

			if shouldTrip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		// An authoritative NotFound is a healthy answer, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a catalog call with circuit breaker protection.
// Breaker rejections surface as ErrUnavailable so callers only ever see
// the package's two failure conditions.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if errors.Is(err, ErrNotFound) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
			return nil, err
		}

		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		counts := cbc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)

	return result, nil
}

// castResult safely type-casts the circuit breaker result with error checking.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to a numeric value for metrics.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Fetch retrieves one item with circuit breaker protection.
func (cbc *CircuitBreakerClient) Fetch(ctx context.Context, id int64) (*models.CatalogItem, error) {
	return castResult[*models.CatalogItem](cbc.execute(func() (interface{}, error) {
		return cbc.client.Fetch(ctx, id)
	}))
}

// FetchMany retrieves multiple items with circuit breaker protection.
func (cbc *CircuitBreakerClient) FetchMany(ctx context.Context, ids []int64) (map[int64]*models.CatalogItem, error) {
	return castResult[map[int64]*models.CatalogItem](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchMany(ctx, ids)
	}))
}

// ListTop retrieves the popularity listing with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListTop(ctx context.Context, n int) ([]models.CatalogItem, error) {
	return castResult[[]models.CatalogItem](cbc.execute(func() (interface{}, error) {
		return cbc.client.ListTop(ctx, n)
	}))
}
