package beacon

import (
	"sync"

	"github.com/beacon-sdk/beacon-go/internal/sanitize"
)

// Account provides the account identity attached to every request.
type Account interface {
	ID() string
}

// Device provides the device-level global cookie, empty when unknown.
type Device interface {
	GlobalCookie() string
}

// SessionCookie identifies the current session. A zero PageCount means the
// session has not recorded a page view yet.
type SessionCookie struct {
	ID        int64
	PageCount int
}

// Session provides the current session cookie.
type Session interface {
	SessionCookie() SessionCookie
}

// StaticAccount is an Account with a fixed ID.
type StaticAccount string

func (a StaticAccount) ID() string { return string(a) }

// DeviceState is a Device whose global cookie is assigned by the endpoint
// after the first response.
type DeviceState struct {
	mu      sync.RWMutex
	gcookie string
}

func (d *DeviceState) GlobalCookie() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gcookie
}

// SetGlobalCookie stores the cookie issued by the endpoint.
func (d *DeviceState) SetGlobalCookie(gcookie string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gcookie = gcookie
}

// SessionTracker is a Session started lazily on first use. Its ID is the
// session start time in Unix seconds.
type SessionTracker struct {
	clock Clock

	mu    sync.Mutex
	id    int64
	pages int
}

// NewSessionTracker returns a tracker using clock; nil means the system clock.
func NewSessionTracker(clock Clock) *SessionTracker {
	if clock == nil {
		clock = systemClock{}
	}
	return &SessionTracker{clock: clock}
}

func (s *SessionTracker) SessionCookie() SessionCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
	return SessionCookie{ID: s.id, PageCount: s.pages}
}

// RecordPageView increments the page count of the current session.
func (s *SessionTracker) RecordPageView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
	s.pages++
}

// Reset ends the current session; the next use starts a new one.
func (s *SessionTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.pages = 0, 0
}

func (s *SessionTracker) startLocked() {
	if s.id != 0 {
		return
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	s.id = s.clock.Now().Unix()
}

// Enricher attaches identity, session and diagnostics fields to payloads.
type Enricher struct {
	account     Account
	device      Device
	session     Session
	diagnostics *Diagnostics
}

// NewEnricher returns an Enricher. Any collaborator may be nil; its fields
// are then omitted.
func NewEnricher(account Account, device Device, session Session, diagnostics *Diagnostics) *Enricher {
	return &Enricher{account: account, device: device, session: session, diagnostics: diagnostics}
}

// Enrich returns a copy of p with system fields added. Unless skipTrim is
// set, keys and string values are stripped of characters the endpoint does
// not support first. A pending diagnostics error is attached and cleared.
func (e *Enricher) Enrich(p Payload, skipTrim bool) Payload {
	var out Payload
	if skipTrim {
		out = make(Payload, len(p)+6)
		for k, v := range p {
			out[k] = v
		}
	} else {
		out = sanitize.Map(p)
		if out == nil {
			out = make(Payload, 6)
		}
	}

	if state, ok := e.diagnostics.TakeError(); ok {
		out[FieldError] = state
	}

	if e.account != nil {
		out[FieldAccountID] = e.account.ID()
	}

	if e.device != nil {
		if gcookie := e.device.GlobalCookie(); gcookie != "" {
			out[FieldGlobalCookie] = gcookie
		}
	}

	if e.session != nil {
		cookie := e.session.SessionCookie()
		out[FieldSession] = cookie.ID
		pages := cookie.PageCount
		if pages == 0 {
			pages = 1
		}
		out[FieldPageCount] = pages
	}

	return out
}
