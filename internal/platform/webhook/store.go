package webhook

import (
	"context"
	"fmt"
	"sync"
)

// Store persists endpoints and the delivery log. The shipped
// implementation is in-memory; registration is per-process.
type Store interface {
	SaveEndpoint(ctx context.Context, ep *Endpoint) error
	Endpoint(ctx context.Context, id string) (*Endpoint, error)
	Endpoints(ctx context.Context, tenantID string) ([]*Endpoint, error)
	RemoveEndpoint(ctx context.Context, id string) error

	SaveDelivery(ctx context.Context, d *Delivery) error
	Delivery(ctx context.Context, id string) (*Delivery, error)
	DeliveriesFor(ctx context.Context, endpointID string) ([]*Delivery, error)
}

// memoryStore keeps endpoints and deliveries in registration order so
// listings stay deterministic.
type memoryStore struct {
	mu         sync.RWMutex
	endpoints  []*Endpoint
	deliveries []*Delivery
}

// NewMemoryStore returns an empty in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) SaveEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.endpoints {
		if existing.ID == ep.ID {
			s.endpoints[i] = ep
			return nil
		}
	}
	s.endpoints = append(s.endpoints, ep)
	return nil
}

func (s *memoryStore) Endpoint(_ context.Context, id string) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.endpoints {
		if ep.ID == id {
			return ep, nil
		}
	}
	return nil, fmt.Errorf("endpoint %s not found", id)
}

func (s *memoryStore) Endpoints(_ context.Context, tenantID string) ([]*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if tenantID == "" || ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (s *memoryStore) RemoveEndpoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ep := range s.endpoints {
		if ep.ID == id {
			s.endpoints = append(s.endpoints[:i], s.endpoints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("endpoint %s not found", id)
}

func (s *memoryStore) SaveDelivery(_ context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.deliveries {
		if existing.ID == d.ID {
			s.deliveries[i] = d
			return nil
		}
	}
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *memoryStore) Delivery(_ context.Context, id string) (*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deliveries {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("delivery %s not found", id)
}

func (s *memoryStore) DeliveriesFor(_ context.Context, endpointID string) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Delivery
	for _, d := range s.deliveries {
		if d.EndpointID == endpointID {
			out = append(out, d)
		}
	}
	return out, nil
}
