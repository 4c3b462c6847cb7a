package types

import "time"

// Event is a single behavioral signal from the storefront: a product view or
// a completed purchase. Events are append-only and never mutated; every
// aggregator's derived state is reconstructible from the event log.
type Event struct {
	ID        string    `json:"id"`         // UUID assigned at ingest
	Type      EventType `json:"type"`       // view or purchase
	SubjectID string    `json:"subject_id"` // user ID or session ID from the auth layer
	ProductID string    `json:"product_id"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLine is one line item of a completed order. Quantity is carried for
// completeness but co-occurrence counting ignores it: a product pair counts
// once per order regardless of how many units were bought.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order is a completed order as reported by the order collaborator.
type Order struct {
	ID          string      `json:"id"`
	SubjectID   string      `json:"subject_id"`
	Lines       []OrderLine `json:"lines"`
	CompletedAt time.Time   `json:"completed_at"`
}

// ProductIDs returns the deduplicated set of product IDs in the order's
// line set, in first-seen order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]bool, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
		if line.ProductID == "" || seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		ids = append(ids, line.ProductID)
	}
	return ids
}
