package beacon

import "github.com/beacon-sdk/beacon-go/internal/debuglog"

// Flags are computed for every outgoing request and merged into its payload.
type Flags struct {
	// ResetCookie asks the endpoint to regenerate its identity cookie.
	ResetCookie bool
	// Resync asks the endpoint to refresh the cached profile data.
	Resync bool
}

// Apply merges the set flags into p.
func (f Flags) Apply(p Payload) {
	if f.ResetCookie {
		p[FieldResetCookie] = true
	}
	if f.Resync {
		p[FieldResync] = true
	}
}

// FlagEvaluator decides the Flags of each request from the meta state.
type FlagEvaluator struct {
	meta                  *MetaState
	clock                 Clock
	personalizationActive func() bool
}

// NewFlagEvaluator returns an evaluator. Resync is only evaluated while
// personalizationActive returns true; a nil predicate disables it.
func NewFlagEvaluator(meta *MetaState, clock Clock, personalizationActive func() bool) *FlagEvaluator {
	if clock == nil {
		clock = systemClock{}
	}
	return &FlagEvaluator{meta: meta, clock: clock, personalizationActive: personalizationActive}
}

// Evaluate consumes the pending cookie reset, if any, and checks whether the
// profile sync window has expired.
func (e *FlagEvaluator) Evaluate() Flags {
	var f Flags
	if e.meta.TakeResetCookie() {
		f.ResetCookie = true
		debuglog.Println("reset cookie sent in request and cleared from meta for future requests.")
	}
	if e.personalizationActive != nil && e.personalizationActive() {
		f.Resync = e.resyncDue()
	}
	return f
}

func (e *FlagEvaluator) resyncDue() bool {
	lastSync, expiry, ok := e.meta.SyncWindow()
	if !ok {
		// Never synced.
		return true
	}
	return e.clock.Now().Unix() >= lastSync+expiry
}
