package beacon

import (
	"sync"
	"time"
)

// FiredRequest is one hand-off recorded by MockTransport.
type FiredRequest struct {
	Query   string
	Options FireOptions
}

// MockTransport implements [Transport] for use in tests.
type MockTransport struct {
	mu       sync.Mutex
	requests []FiredRequest
	err      error
	failAt   int
}

func (t *MockTransport) FireRequest(query string, opts FireOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil && (t.failAt == 0 || len(t.requests)+1 >= t.failAt) {
		return t.err
	}
	t.requests = append(t.requests, FiredRequest{Query: query, Options: opts})
	return nil
}

// SetError makes every following FireRequest refuse with err. A nil err
// restores acceptance.
func (t *MockTransport) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
	t.failAt = 0
}

// FailFrom accepts n-1 more requests and refuses the following ones with err.
func (t *MockTransport) FailFrom(n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
	t.failAt = len(t.requests) + n
}

// Requests returns the accepted hand-offs in order.
func (t *MockTransport) Requests() []FiredRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]FiredRequest(nil), t.requests...)
}

// Queries returns the accepted queries in order.
func (t *MockTransport) Queries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	queries := make([]string, len(t.requests))
	for i, r := range t.requests {
		queries[i] = r.Query
	}
	return queries
}

func (t *MockTransport) Flush(_ time.Duration) bool { return true }
func (t *MockTransport) Close()                     {}
