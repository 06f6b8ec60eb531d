package beacon

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beacon-sdk/beacon-go/internal/debuglog"
	"github.com/beacon-sdk/beacon-go/internal/ratelimit"
)

const (
	defaultTimeout      = time.Second * 30
	defaultQueueSize    = 1000
	defaultMaxRetries   = 2
	defaultRetryBackoff = time.Second
)

// HeaderSendFlag carries FireOptions.SendFlag to the endpoint.
const HeaderSendFlag = "X-Beacon-Send-Flag"

// maxDrainResponseBytes is the maximum number of bytes that transport
// implementations will read from response bodies when draining them.
//
// The net/http HTTP client requires response bodies to be fully drained (and
// closed) for TCP keep-alive to work.
const maxDrainResponseBytes = 16 << 10

var (
	// ErrTransportQueueFull is returned when the transport queue is full,
	// providing backpressure signal to the caller.
	ErrTransportQueueFull = errors.New("transport queue full")

	// ErrTransportClosed is returned when trying to send on a closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrTransportRateLimited is returned while the endpoint has asked the
	// client to back off.
	ErrTransportRateLimited = errors.New("transport is rate limited")
)

// TransportOptions contains the configuration of the HTTP transports.
type TransportOptions struct {
	HTTPClient    *http.Client
	HTTPTransport http.RoundTripper
	HTTPProxy     string
	HTTPSProxy    string
	CaCerts       *x509.CertPool
	// Timeout of a single HTTP request. Defaults to 30 seconds.
	Timeout time.Duration
	// QueueSize of HTTPTransport. Defaults to 1000.
	QueueSize int
	// MaxRetries of HTTPTransport for network and 5xx errors. Defaults to 2;
	// a negative value disables retries.
	MaxRetries int
	// RetryBackoff is the first retry delay, doubled on every attempt.
	// Defaults to one second.
	RetryBackoff time.Duration
}

func getProxyConfig(options TransportOptions) func(*http.Request) (*url.URL, error) {
	if options.HTTPSProxy != "" {
		return func(*http.Request) (*url.URL, error) {
			return url.Parse(options.HTTPSProxy)
		}
	}

	if options.HTTPProxy != "" {
		return func(*http.Request) (*url.URL, error) {
			return url.Parse(options.HTTPProxy)
		}
	}

	return http.ProxyFromEnvironment
}

func getTLSConfig(options TransportOptions) *tls.Config {
	if options.CaCerts != nil {
		// #nosec G402 -- MinVersion is left to the Go defaults.
		return &tls.Config{
			RootCAs: options.CaCerts,
		}
	}

	return nil
}

func newHTTPClient(options TransportOptions) *http.Client {
	if options.HTTPClient != nil {
		return options.HTTPClient
	}
	timeout := options.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	rt := options.HTTPTransport
	if rt == nil {
		rt = &http.Transport{
			Proxy:           getProxyConfig(options),
			TLSClientConfig: getTLSConfig(options),
		}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

func newBeaconRequest(ctx context.Context, query string, opts FireOptions) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, err
	}
	r.Header.Set("User-Agent", SDKUserAgent)
	if opts.SendFlag {
		r.Header.Set(HeaderSendFlag, "1")
	}
	return r, nil
}

func categoryFor(opts FireOptions) ratelimit.Category {
	if opts.Replay {
		return ratelimit.CategoryReplay
	}
	return ratelimit.CategoryBeacon
}

// drainAndClose reads up to maxDrainResponseBytes and closes the body,
// allowing the transport to reuse TCP connections.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, maxDrainResponseBytes)
	_ = body.Close()
}

// ================================
// HTTPSyncTransport
// ================================

// HTTPSyncTransport is a blocking implementation of Transport.
//
// FireRequest returns only after the endpoint answered, and reports non-2xx
// answers as errors. Requests that fail therefore stay unfired in the backup
// log. Use it for short-lived processes and tools; prefer HTTPTransport for
// long-running clients.
type HTTPSyncTransport struct {
	client *http.Client

	mu     sync.Mutex
	limits ratelimit.Map
}

// NewHTTPSyncTransport returns a new HTTPSyncTransport.
func NewHTTPSyncTransport(options TransportOptions) *HTTPSyncTransport {
	return &HTTPSyncTransport{
		client: newHTTPClient(options),
		limits: make(ratelimit.Map),
	}
}

// FireRequest sends query and waits for the response.
func (t *HTTPSyncTransport) FireRequest(query string, opts FireOptions) error {
	return t.FireRequestWithContext(context.Background(), query, opts)
}

// FireRequestWithContext is FireRequest bound to ctx.
func (t *HTTPSyncTransport) FireRequestWithContext(ctx context.Context, query string, opts FireOptions) error {
	category := categoryFor(opts)
	if t.disabled(category) {
		return ErrTransportRateLimited
	}

	request, err := newBeaconRequest(ctx, query, opts)
	if err != nil {
		debuglog.Printf("There was an issue creating the request: %v", err)
		return err
	}
	response, err := t.client.Do(request)
	if err != nil {
		debuglog.Printf("There was an issue with sending a beacon: %v", err)
		return err
	}
	defer drainAndClose(response.Body)

	limits := ratelimit.FromResponse(response)
	t.mu.Lock()
	t.limits.Merge(limits)
	t.mu.Unlock()

	if response.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ErrTransportRateLimited, response.StatusCode)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("beacon rejected with status %d", response.StatusCode)
	}
	return nil
}

func (t *HTTPSyncTransport) disabled(c ratelimit.Category) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	disabled := t.limits.IsRateLimited(c)
	if disabled {
		debuglog.Printf("Too many requests for %q, backing off till: %v", c, t.limits.Deadline(c))
	}
	return disabled
}

// ================================
// HTTPTransport
// ================================

type queuedRequest struct {
	query string
	opts  FireOptions
}

// HTTPTransport is the default, fire-and-forget Transport. FireRequest only
// enqueues; a single worker goroutine performs the sends in order.
//
// Once FireRequest returned nil the request counts as delivered: a later
// network failure is logged and not reported back.
type HTTPTransport struct {
	client       *http.Client
	queue        chan queuedRequest
	maxRetries   int
	retryBackoff time.Duration

	mu     sync.RWMutex
	limits ratelimit.Map
	closed bool

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	discardMu sync.Mutex
	discarded []string

	pending      atomic.Int64
	sentCount    atomic.Int64
	droppedCount atomic.Int64
	errorCount   atomic.Int64
}

// NewHTTPTransport returns a new HTTPTransport. Call Start before use.
func NewHTTPTransport(options TransportOptions) *HTTPTransport {
	queueSize := options.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	maxRetries := options.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	retryBackoff := options.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &HTTPTransport{
		client:       newHTTPClient(options),
		queue:        make(chan queuedRequest, queueSize),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		limits:       make(ratelimit.Map),
		done:         make(chan struct{}),
	}
}

// Start starts the worker goroutine. This method can only be called once.
func (t *HTTPTransport) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.worker()
	})
}

// FireRequest enqueues query without blocking.
func (t *HTTPTransport) FireRequest(query string, opts FireOptions) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrTransportClosed
	}
	if t.limits.IsRateLimited(categoryFor(opts)) {
		return ErrTransportRateLimited
	}

	t.pending.Add(1)
	select {
	case t.queue <- queuedRequest{query: query, opts: opts}:
		return nil
	default:
		t.pending.Add(-1)
		t.droppedCount.Add(1)
		return ErrTransportQueueFull
	}
}

// Flush waits until every accepted request was processed, or timeout.
func (t *HTTPTransport) Flush(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.FlushWithContext(ctx)
}

// FlushWithContext waits until every accepted request was processed. It
// returns false if ctx is done first or the transport is closed.
func (t *HTTPTransport) FlushWithContext(ctx context.Context) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if t.pending.Load() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.done:
			return false
		case <-ticker.C:
		}
	}
}

// Close stops the worker after its current request. Requests still queued
// are discarded and reported by Discarded; call Flush first to deliver them.
func (t *HTTPTransport) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		close(t.done)
		t.wg.Wait()

		for drained := false; !drained; {
			select {
			case req := <-t.queue:
				t.discard(req)
				t.pending.Add(-1)
			default:
				drained = true
			}
		}
		if n := len(t.Discarded()); n > 0 {
			debuglog.Printf("Transport closed with %d undelivered beacons", n)
		}
	})
}

// Discarded returns the queries accepted but never delivered because the
// transport was closed first.
func (t *HTTPTransport) Discarded() []string {
	t.discardMu.Lock()
	defer t.discardMu.Unlock()
	return append([]string(nil), t.discarded...)
}

func (t *HTTPTransport) discard(req queuedRequest) {
	t.discardMu.Lock()
	defer t.discardMu.Unlock()
	t.discarded = append(t.discarded, req.query)
}

// Stats returns the number of sent, dropped and failed requests.
func (t *HTTPTransport) Stats() (sent, dropped, failed int64) {
	return t.sentCount.Load(), t.droppedCount.Load(), t.errorCount.Load()
}

func (t *HTTPTransport) worker() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		select {
		case <-t.done:
			return
		case req := <-t.queue:
			t.process(req)
			t.pending.Add(-1)
		}
	}
}

func (t *HTTPTransport) process(req queuedRequest) {
	backoff := t.retryBackoff

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		ok, retry := t.send(req)
		if ok {
			t.sentCount.Add(1)
			return
		}
		if !retry {
			break
		}
		if attempt < t.maxRetries {
			select {
			case <-t.done:
				t.discard(req)
				return
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	t.errorCount.Add(1)
	debuglog.Printf("Failed to send beacon %s", req.query)
}

func (t *HTTPTransport) send(req queuedRequest) (ok, retry bool) {
	category := categoryFor(req.opts)
	if t.isRateLimited(category) {
		return false, false
	}

	request, err := newBeaconRequest(context.Background(), req.query, req.opts)
	if err != nil {
		debuglog.Printf("Failed to create request: %v", err)
		return false, false
	}

	response, err := t.client.Do(request)
	if err != nil {
		debuglog.Printf("HTTP request failed: %v", err)
		return false, true
	}
	defer drainAndClose(response.Body)

	limits := ratelimit.FromResponse(response)
	t.mu.Lock()
	t.limits.Merge(limits)
	t.mu.Unlock()

	return handleResponse(response)
}

func handleResponse(response *http.Response) (ok, retry bool) {
	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return true, false
	case response.StatusCode == http.StatusTooManyRequests:
		debuglog.Printf("Rate limited by the endpoint")
		return false, false
	case response.StatusCode >= 400 && response.StatusCode < 500:
		if body, err := io.ReadAll(io.LimitReader(response.Body, maxDrainResponseBytes)); err == nil {
			debuglog.Printf("Client error %d: %s", response.StatusCode, string(body))
		}
		return false, false
	case response.StatusCode >= 500:
		debuglog.Printf("Server error %d - will retry", response.StatusCode)
		return false, true
	default:
		debuglog.Printf("Unexpected status code %d", response.StatusCode)
		return false, false
	}
}

func (t *HTTPTransport) isRateLimited(category ratelimit.Category) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	limited := t.limits.IsRateLimited(category)
	if limited {
		debuglog.Printf("Rate limited for category %q until %v", category, t.limits.Deadline(category))
	}
	return limited
}
