package dto

import "github.com/spec-kit/support-stream/internal/domain"

// TriggerEventRequest is the manual-trigger payload for the ops surface.
// Identity "*" (or empty) widens the scope: with a role it targets the
// whole role partition, without one it targets everyone.
type TriggerEventRequest struct {
	Identity  string         `json:"identity"`
	Role      domain.Role    `json:"role"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// StreamStatsResponse reports live connection counts.
type StreamStatsResponse struct {
	PerRole map[domain.Role]int `json:"per_role"`
	Total   int                 `json:"total"`
}
