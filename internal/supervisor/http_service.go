// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer is the subset of *http.Server needed by HTTPServerService.
// Defined as an interface so tests can substitute a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps an HTTP server as a suture.Service with
// graceful shutdown.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService creates a supervised HTTP server service.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. It runs the server until the context
// is canceled, then shuts down gracefully within the configured timeout.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.server.ListenAndServe()
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		// The parent context is canceled, so shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *HTTPServerService) String() string {
	return s.name
}
