package auth

import (
	"context"
	"sort"
	"sync"
)

// InMemoryAPIKeyStore is a thread-safe APIKeyStore for development, tests and
// single-node deployments. Insertion order is preserved for stable listing.
type InMemoryAPIKeyStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	keys    map[string]storedKey
	hashes  map[string]string
}

type storedKey struct {
	seq uint64
	key *APIKey
}

// NewInMemoryAPIKeyStore creates an empty in-memory store.
func NewInMemoryAPIKeyStore() *InMemoryAPIKeyStore {
	return &InMemoryAPIKeyStore{
		keys:   make(map[string]storedKey),
		hashes: make(map[string]string),
	}
}

func (s *InMemoryAPIKeyStore) CreateKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.keys[key.ID] = storedKey{seq: s.nextSeq, key: key.clone()}
	if key.KeyHash != "" {
		s.hashes[key.KeyHash] = key.ID
	}
	return nil
}

func (s *InMemoryAPIKeyStore) GetByID(_ context.Context, id string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return stored.key.clone(), nil
}

func (s *InMemoryAPIKeyStore) GetByHash(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.hashes[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	stored, ok := s.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return stored.key.clone(), nil
}

func (s *InMemoryAPIKeyStore) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*APIKey, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.selectLocked(func(k *APIKey) bool { return k.TenantID == tenantID })
	total := len(matched)

	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	page := make([]*APIKey, len(matched))
	for i, stored := range matched {
		page[i] = stored.key.clone()
	}
	return page, total, nil
}

func (s *InMemoryAPIKeyStore) ListByClient(_ context.Context, clientID string) ([]*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.selectLocked(func(k *APIKey) bool { return k.ClientID == clientID })
	result := make([]*APIKey, len(matched))
	for i, stored := range matched {
		result[i] = stored.key.clone()
	}
	return result, nil
}

// selectLocked returns matching entries in insertion order. Callers hold the
// lock.
func (s *InMemoryAPIKeyStore) selectLocked(match func(*APIKey) bool) []storedKey {
	var out []storedKey
	for _, stored := range s.keys {
		if match(stored.key) {
			out = append(out, stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *InMemoryAPIKeyStore) UpdateKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.keys[key.ID]
	if !ok {
		return ErrKeyNotFound
	}

	if stored.key.KeyHash != key.KeyHash {
		delete(s.hashes, stored.key.KeyHash)
		if key.KeyHash != "" {
			s.hashes[key.KeyHash] = key.ID
		}
	}

	s.keys[key.ID] = storedKey{seq: stored.seq, key: key.clone()}
	return nil
}

func (s *InMemoryAPIKeyStore) DeleteKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.keys[id]
	if !ok {
		return ErrKeyNotFound
	}

	delete(s.hashes, stored.key.KeyHash)
	delete(s.keys, id)
	return nil
}
