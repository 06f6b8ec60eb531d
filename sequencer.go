package beacon

import "sync"

// Sequencer owns the request counters of a Client: the monotonic request
// number and the same-millisecond sequence number.
//
// The endpoint uses the sequence number as a stable tie-break between
// requests built within one millisecond.
type Sequencer struct {
	mu            sync.Mutex
	requestNumber int64
	lastMillis    int64
	counter       int
}

// NewSequencer returns a Sequencer whose first request number is start+1.
func NewSequencer(start int64) *Sequencer {
	return &Sequencer{requestNumber: start, lastMillis: -1}
}

// NextRequestNumber increments and returns the request number.
func (s *Sequencer) NextRequestNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestNumber++
	return s.requestNumber
}

// RequestNumber returns the last issued request number.
func (s *Sequencer) RequestNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestNumber
}

// NextSequence returns 0 for the first call in a millisecond and one more
// than the previous value for every further call in the same millisecond.
func (s *Sequencer) NextSequence(nowMillis int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSequenceLocked(nowMillis)
}

// Next issues a request number and a sequence number under one lock.
func (s *Sequencer) Next(nowMillis int64) (requestNumber int64, sequence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestNumber++
	return s.requestNumber, s.nextSequenceLocked(nowMillis)
}

func (s *Sequencer) nextSequenceLocked(nowMillis int64) int {
	if nowMillis == s.lastMillis {
		s.counter++
	} else {
		s.lastMillis = nowMillis
		s.counter = 0
	}
	return s.counter
}
