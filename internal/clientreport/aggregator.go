package clientreport

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beacon-sdk/beacon-go/internal/ratelimit"
)

// ClientReport is a snapshot of outcomes taken from an Aggregator.
type ClientReport struct {
	Timestamp time.Time `json:"timestamp"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Aggregator collects request outcomes.
// Uses atomic operations to be safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	outcomes map[OutcomeKey]*atomic.Int64
}

// NewAggregator creates a new client report Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes: make(map[OutcomeKey]*atomic.Int64),
	}
}

// Record records quantity occurrences of an outcome.
func (a *Aggregator) Record(reason Reason, category ratelimit.Category, quantity int64) {
	if a == nil || quantity <= 0 {
		return
	}

	key := OutcomeKey{Reason: reason, Category: category}

	a.mu.Lock()
	counter, exists := a.outcomes[key]
	if !exists {
		counter = &atomic.Int64{}
		a.outcomes[key] = counter
	}
	a.mu.Unlock()

	counter.Add(quantity)
}

// RecordOne is a helper method to record a single outcome.
func (a *Aggregator) RecordOne(reason Reason, category ratelimit.Category) {
	a.Record(reason, category, 1)
}

// Count returns the current quantity for reason summed across categories.
func (a *Aggregator) Count(reason Reason) int64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var total int64
	for key, counter := range a.outcomes {
		if key.Reason == reason {
			total += counter.Load()
		}
	}
	return total
}

// TakeReport atomically takes all accumulated outcomes and resets them.
// It returns nil when nothing was recorded since the last call.
func (a *Aggregator) TakeReport() *ClientReport {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var outcomes []Outcome
	for key, counter := range a.outcomes {
		if quantity := counter.Swap(0); quantity > 0 {
			outcomes = append(outcomes, Outcome{
				Reason:   key.Reason,
				Category: key.Category,
				Quantity: quantity,
			})
		}
		delete(a.outcomes, key)
	}

	if len(outcomes) == 0 {
		return nil
	}

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Reason != outcomes[j].Reason {
			return outcomes[i].Reason < outcomes[j].Reason
		}
		return outcomes[i].Category < outcomes[j].Category
	})

	return &ClientReport{
		Timestamp: time.Now(),
		Outcomes:  outcomes,
	}
}
