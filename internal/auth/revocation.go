package auth

import (
	"sync"
	"time"
)

const defaultMaxRevoked = 100_000

// RevocationSet holds the ids of tokens revoked before their natural expiry.
// Each entry keeps the token's expiry so it can be dropped once the token
// would fail validation anyway.
type RevocationSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	maxSize int
	now     func() time.Time
}

func NewRevocationSet() *RevocationSet {
	return &RevocationSet{
		entries: make(map[string]time.Time),
		maxSize: defaultMaxRevoked,
		now:     time.Now,
	}
}

func (s *RevocationSet) WithClock(now func() time.Time) *RevocationSet {
	if now != nil {
		s.now = now
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s *RevocationSet) Add(id string, expiresAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return false
	}
	s.entries[id] = expiresAt

	if len(s.entries) > s.maxSize {
		s.pruneLocked(s.now())
	}
	return true
}

func (s *RevocationSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	return ok
}

// Prune removes entries whose token has expired and returns how many were
// removed.
func (s *RevocationSet) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pruneLocked(s.now())
}

func (s *RevocationSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *RevocationSet) pruneLocked(now time.Time) int {
	removed := 0
	for id, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
