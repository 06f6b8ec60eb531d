package beacon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/beacon-sdk/beacon-go/internal/clientreport"
	"github.com/beacon-sdk/beacon-go/internal/debuglog"
	"github.com/beacon-sdk/beacon-go/internal/ratelimit"
	"github.com/beacon-sdk/beacon-go/storage"
	"github.com/beacon-sdk/beacon-go/storage/boltstore"
	"github.com/beacon-sdk/beacon-go/storage/sqlitestore"
)

const defaultShutdownTimeout = 2 * time.Second

// SendOptions qualify a single Send.
type SendOptions struct {
	// SkipTrim keeps unsupported characters in the payload.
	SkipTrim bool
	// Override sends even while requests are blocked.
	Override bool
	// SendFlag is forwarded to the transport.
	SendFlag bool
}

// Report counts request outcomes since the client was created.
type Report struct {
	Suppressed int64
	Dropped    int64
	Replayed   int64
}

// Client is the request manager. It builds beacons, persists them to the
// backup log, gates sending and hands them to the Transport. It is safe for
// concurrent use.
type Client struct {
	options   ClientOptions
	clock     Clock
	transport Transport
	closers   []io.Closer

	backup    *BackupLog
	meta      *MetaState
	flags     *FlagEvaluator
	enricher  *Enricher
	sequencer *Sequencer
	reports   *clientreport.Aggregator

	diagnostics *Diagnostics

	blocked     atomic.Bool
	resetCookie atomic.Bool
}

// NewClient creates a Client and replays the unfired requests left in its
// store before returning, so replayed requests precede any new traffic.
func NewClient(options ClientOptions) (*Client, error) {
	if options.DebugLogger != nil {
		debuglog.SetLogger(options.DebugLogger)
	} else if options.Debug {
		debugWriter := options.DebugWriter
		if debugWriter == nil {
			debugWriter = os.Stderr
		}
		debuglog.SetOutput(debugWriter)
	}

	codec, err := storage.CodecByName(options.StorageCodec)
	if err != nil {
		return nil, err
	}

	client := &Client{
		options: options,
		clock:   options.Clock,
		reports: clientreport.NewAggregator(),
	}
	if client.clock == nil {
		client.clock = systemClock{}
	}

	store, err := client.openStore()
	if err != nil {
		return nil, err
	}

	client.transport = options.Transport
	if client.transport == nil {
		if options.Endpoint == "" {
			debuglog.Println("Beacon client initialized with an empty endpoint")
		}
		t := NewHTTPTransport(TransportOptions{
			HTTPClient:    options.HTTPClient,
			HTTPTransport: options.HTTPTransport,
			HTTPProxy:     options.HTTPProxy,
			HTTPSProxy:    options.HTTPSProxy,
			CaCerts:       options.CaCerts,
			Timeout:       options.HTTPTimeout,
			QueueSize:     options.QueueSize,
		})
		t.Start()
		client.transport = t
	}

	client.diagnostics = options.Diagnostics
	if client.diagnostics == nil {
		client.diagnostics = &Diagnostics{}
	}
	account := options.Account
	if account == nil {
		account = StaticAccount(options.AccountID)
	}
	device := options.Device
	if device == nil {
		device = &DeviceState{}
	}
	session := options.Session
	if session == nil {
		session = NewSessionTracker(client.clock)
	}

	client.backup = NewBackupLog(store, codec)
	client.meta = NewMetaState(store, codec)
	client.flags = NewFlagEvaluator(client.meta, client.clock, options.PersonalizationActive)
	client.enricher = NewEnricher(account, device, session, client.diagnostics)
	client.blocked.Store(options.BlockRequests)

	start, err := client.backup.MaxRequestNumber()
	if err != nil {
		debuglog.Printf("cannot seed request number from backup log: %v", err)
	}
	client.sequencer = NewSequencer(start)

	client.ProcessBackup()

	return client, nil
}

func (client *Client) openStore() (storage.Store, error) {
	options := client.options
	if options.Store != nil {
		return options.Store, nil
	}

	var (
		primary storage.Store
		closer  io.Closer
		err     error
	)
	switch options.StorageBackend {
	case "", StorageMemory:
		return storage.NewMemory(), nil
	case StorageBolt:
		var s *boltstore.Store
		s, err = boltstore.Open(options.StoragePath)
		primary, closer = s, s
	case StorageSQLite:
		var s *sqlitestore.Store
		s, err = sqlitestore.Open(options.StoragePath)
		primary, closer = s, s
	default:
		return nil, fmt.Errorf("unknown storage backend %q", options.StorageBackend)
	}

	if err != nil {
		debuglog.Printf("%s storage unavailable, backup log will not survive a restart: %v", options.StorageBackend, err)
		return storage.NewMemory(), nil
	}
	client.closers = append(client.closers, closer)
	return storage.NewFallback(primary, storage.NewMemory()), nil
}

// Send enriches and flags p, encodes it into a beacon URL on the endpoint and
// passes it to BuildAndSend.
func (client *Client) Send(p Payload, opts SendOptions) (Envelope, Outcome) {
	p = client.enricher.Enrich(p, opts.SkipTrim)

	flags := client.flags.Evaluate()
	client.resetCookie.Store(flags.ResetCookie)
	flags.Apply(p)

	rawURL, err := encodePayload(client.options.Endpoint, p)
	if err != nil {
		debuglog.Printf("dropping beacon: %v", err)
		client.reports.RecordOne(clientreport.ReasonSendError, ratelimit.CategoryBeacon)
		return Envelope{}, OutcomeDropped
	}

	return client.buildAndSend(rawURL, opts.Override, opts.SendFlag, flags.ResetCookie)
}

// BuildAndSend numbers rawURL, persists it to the backup log and, unless
// sending is blocked, hands it to the transport.
//
// Sending happens when requests are not blocked, when override is set, or
// when the last evaluated flags carried a cookie reset. A suppressed or
// refused request stays unfired in the backup log and is replayed by the
// next client on the same store.
func (client *Client) BuildAndSend(rawURL string, override, sendFlag bool) (Envelope, Outcome) {
	return client.buildAndSend(rawURL, override, sendFlag, client.resetCookie.Load())
}

func (client *Client) buildAndSend(rawURL string, override, sendFlag, resetCookie bool) (Envelope, Outcome) {
	now := client.clock.Now().UnixMilli()
	requestNumber, sequence := client.sequencer.Next(now)

	query := addToURL(rawURL, ParamRequestNumber, strconv.FormatInt(requestNumber, 10))
	query = addToURL(query, ParamBuiltAt, strconv.FormatInt(now, 10))
	query = addToURL(query, ParamSequence, strconv.Itoa(sequence))

	envelope := Envelope{
		Query:         query,
		RequestNumber: requestNumber,
		BuiltAt:       now,
		Sequence:      sequence,
	}

	if err := client.backup.Persist(requestNumber, query); err != nil {
		debuglog.Printf("request %d not backed up: %v", requestNumber, err)
	}

	blocked := client.blocked.Load()
	if blocked && !override && !resetCookie {
		debuglog.Printf("Not fired due to block request - %t or clearCookie - %t", blocked, resetCookie)
		client.reports.RecordOne(clientreport.ReasonSuppressed, ratelimit.CategoryBeacon)
		return envelope, OutcomeSuppressed
	}

	if err := client.transport.FireRequest(query, FireOptions{SendFlag: sendFlag}); err != nil {
		debuglog.Printf("request %d not handed to transport, kept for replay: %v", requestNumber, err)
		client.reports.RecordOne(reasonFor(err), ratelimit.CategoryBeacon)
		return envelope, OutcomeDropped
	}

	if err := client.backup.MarkFired(requestNumber); err != nil {
		debuglog.Printf("request %d sent but not marked fired: %v", requestNumber, err)
	}
	return envelope, OutcomeSent
}

// ProcessBackup replays the unfired entries of the backup log and returns
// how many were handed to the transport.
func (client *Client) ProcessBackup() int {
	fired, err := client.backup.Replay(client.transport)
	if err != nil {
		debuglog.Printf("replay incomplete: %v", err)
		client.reports.RecordOne(reasonFor(err), ratelimit.CategoryReplay)
	}
	client.reports.Record(clientreport.ReasonReplayed, ratelimit.CategoryReplay, int64(fired))
	return fired
}

// ProcessingBackup reports whether a replay is in progress.
func (client *Client) ProcessingBackup() bool {
	return client.backup.Processing()
}

// SetBlockRequests blocks or unblocks sending.
func (client *Client) SetBlockRequests(blocked bool) {
	client.blocked.Store(blocked)
}

// BlockRequests reports whether sending is blocked.
func (client *Client) BlockRequests() bool {
	return client.blocked.Load()
}

// ArmResetCookie makes the next request carry the cookie-reset flag.
func (client *Client) ArmResetCookie() error {
	return client.meta.ArmResetCookie()
}

// RecordSync records a profile sync valid for expiry from now.
func (client *Client) RecordSync(expiry time.Duration) error {
	return client.meta.RecordSync(client.clock.Now(), expiry)
}

// Diagnostics returns the error state attached to the next request.
func (client *Client) Diagnostics() *Diagnostics {
	return client.diagnostics
}

// BackupLog returns the client's backup log.
func (client *Client) BackupLog() *BackupLog {
	return client.backup
}

// Report returns the outcome counters.
func (client *Client) Report() Report {
	return Report{
		Suppressed: client.reports.Count(clientreport.ReasonSuppressed),
		Dropped: client.reports.Count(clientreport.ReasonQueueOverflow) +
			client.reports.Count(clientreport.ReasonRateLimitBackoff) +
			client.reports.Count(clientreport.ReasonTransportClosed) +
			client.reports.Count(clientreport.ReasonSendError),
		Replayed: client.reports.Count(clientreport.ReasonReplayed),
	}
}

// Flush waits for the transport to deliver accepted requests, if it buffers.
func (client *Client) Flush(timeout time.Duration) bool {
	if f, ok := client.transport.(interface{ Flush(time.Duration) bool }); ok {
		return f.Flush(timeout)
	}
	return true
}

// Close flushes and closes the transport, when it supports it, and the
// stores the client opened itself. Requests the transport accepted but never
// delivered are marked unfired again so the next client replays them.
func (client *Client) Close() {
	timeout := client.options.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	if !client.Flush(timeout) {
		debuglog.Printf("transport not flushed within %s", timeout)
	}
	if c, ok := client.transport.(interface{ Close() }); ok {
		c.Close()
	}
	if d, ok := client.transport.(interface{ Discarded() []string }); ok {
		if queries := d.Discarded(); len(queries) > 0 {
			n, err := client.backup.MarkUnfired(queries...)
			if err != nil {
				debuglog.Printf("%d undelivered requests not returned to the backup log: %v", len(queries), err)
			} else {
				debuglog.Printf("%d undelivered requests kept for replay", n)
			}
		}
	}

	for _, closer := range client.closers {
		if err := closer.Close(); err != nil {
			debuglog.Printf("closing store: %v", err)
		}
	}
	client.closers = nil

	if report := client.reports.TakeReport(); report != nil {
		for _, o := range report.Outcomes {
			debuglog.Printf("%s %s: %d", o.Category, o.Reason, o.Quantity)
		}
	}
}

func reasonFor(err error) clientreport.Reason {
	switch {
	case errors.Is(err, ErrTransportQueueFull):
		return clientreport.ReasonQueueOverflow
	case errors.Is(err, ErrTransportRateLimited):
		return clientreport.ReasonRateLimitBackoff
	case errors.Is(err, ErrTransportClosed):
		return clientreport.ReasonTransportClosed
	default:
		return clientreport.ReasonSendError
	}
}
