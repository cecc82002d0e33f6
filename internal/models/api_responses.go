// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package models

import (
	"time"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
// It provides consistent structure for both successful and error responses, with metadata
// for observability and caching information.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"items": [...]},
//	  "metadata": {
//	    "timestamp": "2026-08-29T12:00:00Z",
//	    "query_time_ms": 45,
//	    "cached": false
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "Invalid limit parameter",
//	    "details": {"field": "limit"}
//	  },
//	  "metadata": {"timestamp": "2026-08-29T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance tracking.
//
// Fields:
//   - Timestamp: Server time when response was generated (RFC3339 format)
//   - QueryTimeMS: Handler execution time in milliseconds (0 if served from cache)
//   - Cached: Whether the payload was served from the local cache (omitted if false)
//   - Stale: Whether the payload is a stale snapshot served under degraded mode
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	Stale       bool      `json:"stale,omitempty"`
}

// APIError represents an error response with structured error details.
// Provides consistent error format across all API endpoints for better client handling.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - NOT_FOUND: Resource doesn't exist upstream
//   - UPSTREAM_UNAVAILABLE: Remote catalog unreachable and no cached fallback
//   - STORE_ERROR: Local persisted state unreadable
//   - RATE_LIMITED: Too many requests
//
// Example:
//
//	{
//	  "code": "VALIDATION_ERROR",
//	  "message": "Invalid limit parameter (must be 1 to 100)",
//	  "details": {
//	    "field": "limit",
//	    "value": 500
//	  }
//	}
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
