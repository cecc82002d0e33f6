// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package models

// InteractionRequest is the body for click and wishlist recording.
type InteractionRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	ItemID int64  `json:"item_id" validate:"required,gt=0"`
}

// Reasons attached to an empty recommendation result. A recommendation
// request never fails outright on remote unavailability as long as any
// cached data exists for at least one candidate; when nothing at all can
// be resolved the response is empty with an explicit reason instead of a
// generic error.
const (
	ReasonNoCandidates      = "no_candidates"
	ReasonRemoteUnavailable = "remote_unavailable"
)

// RecommendationResult is an ordered ranking of catalog items for a user.
// Items are distinct by identifier and never include anything the user has
// already clicked. Reason is set only when Items is empty.
type RecommendationResult struct {
	UserID string        `json:"user_id"`
	Items  []CatalogItem `json:"items"`
	Reason string        `json:"reason,omitempty"`
}
