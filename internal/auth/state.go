package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

const defaultStateTTL = 10 * time.Minute

// ErrStateInvalid is returned when a state value is unknown, expired,
// or has already been consumed.
var ErrStateInvalid = errors.New("invalid or expired state")

type stateEntry struct {
	createdAt    time.Time
	redirectHint string
}

// StateStore issues and consumes one-time CSRF state values binding an
// authorization request to its callback. Entries are single-use and
// expire after the configured TTL.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewStateStore creates a StateStore. A non-positive ttl falls back to
// ten minutes.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateStore{
		entries: make(map[string]stateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates a cryptographically random state value and records it
// together with an optional post-login redirect hint.
func (s *StateStore) Issue(redirectHint string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	s.entries[state] = stateEntry{createdAt: s.now(), redirectHint: redirectHint}
	return state, nil
}

// Consume validates and atomically retires a state value. A second call
// with the same value fails, including under concurrent callers. On
// success it returns the redirect hint recorded at issue time.
func (s *StateStore) Consume(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", ErrStateInvalid
	}
	delete(s.entries, state)

	if s.now().Sub(entry.createdAt) >= s.ttl {
		return "", ErrStateInvalid
	}
	return entry.redirectHint, nil
}

// SweepExpired removes expired entries and reports how many were dropped.
func (s *StateStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *StateStore) sweepLocked(now time.Time) int {
	removed := 0
	for state, entry := range s.entries {
		if now.Sub(entry.createdAt) >= s.ttl {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}
