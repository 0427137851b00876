package jobs

import (
	"sync"
	"time"
)

// Event is one entry of a job's append-only progress log. Stage is the
// stage the job was in when the event fired; Payload carries optional
// stage-specific details.
type Event struct {
	Stage   Stage                  `json:"stage"`
	Time    time.Time              `json:"time"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// subscriberBuffer is the per-subscriber headroom on top of the replayed
// event log. A subscriber that falls this far behind is detached.
const subscriberBuffer = 256

// Stream delivers a job's events to one subscriber: first the full
// existing log, then live events until the job terminates or the
// subscriber is detached for being too slow.
type Stream struct {
	lock      sync.Mutex
	ch        chan Event
	closed    bool
	truncated bool
}

func newStream(replay []Event) *Stream {
	s := &Stream{
		ch: make(chan Event, len(replay)+subscriberBuffer),
	}
	for _, event := range replay {
		s.ch <- event
	}
	return s
}

// Events returns the receive channel. It is closed when the job reaches
// a terminal stage or the subscriber is detached.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Truncated reports whether the stream was closed early because the
// subscriber could not keep up.
func (s *Stream) Truncated() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.truncated
}

// Close detaches the subscriber. Safe to call more than once; job
// execution is unaffected.
func (s *Stream) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// deliver enqueues one live event without ever blocking the caller. A
// full buffer means the subscriber is too slow: the stream is marked
// truncated and closed.
func (s *Stream) deliver(event Event) (ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		return true
	default:
		s.truncated = true
		s.closeLocked()
		return false
	}
}
