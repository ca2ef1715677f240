package domain

import "time"

// PlacementRequestedEvent is published when a shopping list is accepted.
// The worker consumes it and drives the placement end to end.
type PlacementRequestedEvent struct {
	PlacementID string    `json:"placement_id"`
	Items       []string  `json:"items"`
	Timestamp   time.Time `json:"timestamp"`
}
