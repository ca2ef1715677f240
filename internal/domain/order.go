package domain

import "time"

// Line associates a shopping-list item with the product resolved for it.
// The product always comes from that item's own search results.
type Line struct {
	Item    string  `json:"item"`
	Product Product `json:"product"`
}

// Order is a resolved shopping list. It is a slice rather than a map so
// cart population iterates in the order items were submitted.
type Order []Line

// StoredOrder is the persisted projection of an order that was actually
// placed. Rows are append-only.
type StoredOrder struct {
	ID       string    `json:"id"`
	PlacedAt time.Time `json:"placed_at"`
	Items    []Line    `json:"items"`
}

type PlacementStatus string

const (
	PlacementPending   PlacementStatus = "pending"
	PlacementResolving PlacementStatus = "resolving"
	PlacementPlacing   PlacementStatus = "placing"
	PlacementPlaced    PlacementStatus = "placed"
	PlacementFailed    PlacementStatus = "failed"
)

// Placement is the task record for one background order placement. The
// submitting caller only ever sees "accepted"; this row is how the
// placement outcome becomes observable afterwards.
type Placement struct {
	ID        string          `json:"id"`
	Items     []string        `json:"items"`
	Status    PlacementStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
