package beacon

import "time"

// Payload is an event object before it is encoded into a beacon URL.
type Payload map[string]interface{}

// Query-string and payload field names understood by the collection endpoint.
const (
	ParamRequestNumber = "rn"
	ParamBuiltAt       = "i"
	ParamSequence      = "sn"
	ParamData          = "d"

	FieldAccountID    = "id"
	FieldGlobalCookie = "g"
	FieldSession      = "s"
	FieldPageCount    = "pg"
	FieldError        = "wzrk_error"
	FieldResetCookie  = "rc"
	FieldResync       = "dsync"
)

// FireOptions qualify a single hand-off to a Transport.
type FireOptions struct {
	// Replay is set when the request comes from the backup log.
	Replay bool
	// SendFlag marks identity-change requests; transports forward it to the
	// endpoint.
	SendFlag bool
}

// Transport performs the network send of a fully built beacon URL.
//
// FireRequest reports only whether the hand-off was accepted. An accepted
// request counts as delivered for the backup log; a returned error leaves it
// queued for replay.
type Transport interface {
	FireRequest(query string, opts FireOptions) error
}

// Clock is the time source of a Client.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Envelope is one built outbound request and its ordering metadata.
type Envelope struct {
	Query         string
	RequestNumber int64
	// BuiltAt is the build time in Unix milliseconds.
	BuiltAt int64
	// Sequence is unique only among envelopes built in the same millisecond.
	Sequence int
}

// Outcome is the terminal-for-now state of a built request.
type Outcome int

const (
	// OutcomeSent means the transport accepted the request.
	OutcomeSent Outcome = iota
	// OutcomeSuppressed means sending was blocked; the request stays queued.
	OutcomeSuppressed
	// OutcomeDropped means the transport refused the hand-off; the request
	// stays queued.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}
