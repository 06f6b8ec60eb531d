package beacon

import "sync"

// ErrorState is a diagnostic error reported to the endpoint with the next
// beacon, under the wzrk_error field.
type ErrorState struct {
	Code        int    `json:"c"`
	Description string `json:"d"`
}

// Diagnostics holds at most one pending ErrorState. The enricher takes it
// when building the next request.
type Diagnostics struct {
	mu      sync.Mutex
	pending *ErrorState
}

// SetError replaces the pending error.
func (d *Diagnostics) SetError(code int, description string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = &ErrorState{Code: code, Description: description}
}

// Pending reports whether an error is waiting to be sent.
func (d *Diagnostics) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// TakeError returns the pending error and clears it.
func (d *Diagnostics) TakeError() (ErrorState, bool) {
	if d == nil {
		return ErrorState{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return ErrorState{}, false
	}
	state := *d.pending
	d.pending = nil
	return state, true
}
