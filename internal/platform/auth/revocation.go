package auth

import (
	"sort"
	"sync"
	"time"
)

const revocationSweepPeriod = 5 * time.Minute

// revocation records who a denylisted jti belonged to and when tracking it
// stops mattering.
type revocation struct {
	UserID    string
	ExpiresAt time.Time
}

// TokenRevocationStore is an in-memory JWT denylist keyed by jti. Entries
// drop out automatically once the underlying token would have expired
// anyway. Safe for concurrent use.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocation
	byUser  map[string]map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewTokenRevocationStore creates a store and starts its sweep goroutine.
func NewTokenRevocationStore() *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]revocation),
		byUser:  make(map[string]map[string]struct{}),
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Revoke denylists a jti until expiresAt, the token's natural expiry.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.RevokeForUser(jti, "", expiresAt)
}

// RevokeForUser denylists a jti and indexes it under userID so a user's
// revocations can be handled together.
func (s *TokenRevocationStore) RevokeForUser(jti, userID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[jti] = revocation{UserID: userID, ExpiresAt: expiresAt}
	if userID != "" {
		set, ok := s.byUser[userID]
		if !ok {
			set = make(map[string]struct{})
			s.byUser[userID] = set
		}
		set[jti] = struct{}{}
	}
}

// IsRevoked reports whether a jti is on the denylist.
func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[jti]
	return ok
}

// RevokeAllForUser reports how many of the user's tokens are currently
// denylisted.
func (s *TokenRevocationStore) RevokeAllForUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byUser[userID])
}

// Count returns the number of live denylist entries.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// RevocationInfo is the public form of a denylist entry.
type RevocationInfo struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Entries returns a snapshot of the denylist, ordered by jti.
func (s *TokenRevocationStore) Entries() []RevocationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RevocationInfo, 0, len(s.entries))
	for jti, entry := range s.entries {
		out = append(out, RevocationInfo{
			JTI:       jti,
			UserID:    entry.UserID,
			ExpiresAt: entry.ExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JTI < out[j].JTI })
	return out
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) sweepLoop() {
	ticker := time.NewTicker(revocationSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep drops entries whose tokens are past their natural expiry.
func (s *TokenRevocationStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if !now.After(entry.ExpiresAt) {
			continue
		}
		delete(s.entries, jti)
		if entry.UserID == "" {
			continue
		}
		set := s.byUser[entry.UserID]
		delete(set, jti)
		if len(set) == 0 {
			delete(s.byUser, entry.UserID)
		}
	}
}
