package webhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sink adapts a Manager to the domain event sink interface. Emit returns
// immediately; delivery runs on a background goroutine detached from the
// request context.
type Sink struct {
	manager  *Manager
	tenantID string
}

// NewSink creates a Sink delivering events for the given tenant. An empty
// tenantID fans events out to every registered endpoint.
func NewSink(manager *Manager, tenantID string) *Sink {
	return &Sink{manager: manager, tenantID: tenantID}
}

// Emit serialises the payload and delivers the event to all subscribed
// endpoints. Marshal failures drop the event.
func (s *Sink) Emit(_ context.Context, eventType string, resourceID uuid.UUID, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	event := Event{
		ID:         newEventID(),
		Type:       eventType,
		Resource:   strings.SplitN(eventType, ".", 2)[0],
		ResourceID: resourceID.String(),
		TenantID:   s.tenantID,
		Data:       body,
		OccurredAt: time.Now(),
	}
	go s.manager.Publish(context.Background(), event)
}
