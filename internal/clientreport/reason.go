package clientreport

// Reason represents why a built request did not reach the transport, or how
// it got there.
type Reason string

const (
	// ReasonSuppressed indicates sending was blocked and no override applied.
	ReasonSuppressed Reason = "send_suppressed"

	// ReasonQueueOverflow indicates the transport queue was full.
	ReasonQueueOverflow Reason = "queue_overflow"

	// ReasonRateLimitBackoff indicates the endpoint asked the client to back off.
	ReasonRateLimitBackoff Reason = "ratelimit_backoff"

	// ReasonTransportClosed indicates a hand-off after the transport was closed.
	ReasonTransportClosed Reason = "transport_closed"

	// ReasonSendError indicates a synchronous transport reported a failure.
	ReasonSendError Reason = "send_error"

	// ReasonReplayed counts entries re-sent from the backup log.
	ReasonReplayed Reason = "replayed"
)
