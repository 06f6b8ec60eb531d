package clientreport

import (
	"github.com/beacon-sdk/beacon-go/internal/ratelimit"
)

// OutcomeKey uniquely identifies an outcome bucket for aggregation.
type OutcomeKey struct {
	Reason   Reason
	Category ratelimit.Category
}

// Outcome represents the accumulated quantity for one OutcomeKey.
type Outcome struct {
	Reason   Reason             `json:"reason"`
	Category ratelimit.Category `json:"category"`
	Quantity int64              `json:"quantity"`
}
