package bot

import (
	"sync"
	"time"

	"firmament/internal/booking"
	"firmament/internal/events"
	"firmament/internal/schedule"
)

// Session is one user's booking wizard with the notices it emits.
type Session struct {
	Wizard  *booking.Wizard
	Notices *events.Collector
}

// NewSessionFunc builds a fresh session for a user.
type NewSessionFunc func() *Session

type userState struct {
	session   *Session
	// blocks is the last list shown to an admin, indexed by unblock buttons.
	blocks    []schedule.BlockGroup
	updatedAt time.Time
}

// defaultSessionTimeout is how long an idle user keeps their wizard.
const defaultSessionTimeout = 2 * time.Hour

type stateStore struct {
	mu         sync.Mutex
	m          map[int64]*userState
	newSession NewSessionFunc
	timeout    time.Duration
	now        func() time.Time
}

func newStateStore(newSession NewSessionFunc, timeout time.Duration) *stateStore {
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	return &stateStore{m: make(map[int64]*userState), newSession: newSession, timeout: timeout, now: time.Now}
}

// get returns the user's state, replacing it when missing or idle past the
// timeout.
func (s *stateStore) get(userID int64) (st *userState, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	st = s.m[userID]
	if st == nil || s.expired(st, now) {
		st = &userState{session: s.newSession()}
		s.m[userID] = st
		created = true
	}
	st.updatedAt = now
	return st, created
}

func (s *stateStore) expired(st *userState, now time.Time) bool {
	return now.Sub(st.updatedAt) > s.timeout
}

// cleanup drops idle users and returns how many were removed.
func (s *stateStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, st := range s.m {
		if s.expired(st, now) {
			delete(s.m, id)
			removed++
		}
	}
	return removed
}

func (s *stateStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
