package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultBackoff spaces the automatic retries of a failed delivery.
var defaultBackoff = []time.Duration{2 * time.Second, 30 * time.Second}

// Manager fans events out to subscribed endpoints and owns the retry
// schedule.
type Manager struct {
	store   Store
	client  *http.Client
	logger  zerolog.Logger
	backoff []time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the delivery HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithLogger attaches a logger for delivery outcomes.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l.With().Str("component", "webhook").Logger() }
}

// WithBackoff replaces the automatic retry schedule. An empty schedule
// disables automatic retries; manual redelivery stays available.
func WithBackoff(delays []time.Duration) Option {
	return func(m *Manager) { m.backoff = delays }
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  zerolog.Nop(),
		backoff: defaultBackoff,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Registration is the subscriber-supplied half of an Endpoint.
type Registration struct {
	URL      string   `json:"url"`
	Secret   string   `json:"secret"`
	TenantID string   `json:"tenant_id"`
	ClientID string   `json:"client_id"`
	Events   []string `json:"events"`
}

// Register validates and stores a new endpoint. When no secret is
// supplied a random one is generated and returned once, in the response.
func (m *Manager) Register(ctx context.Context, reg Registration) (*Endpoint, error) {
	if err := checkEndpointURL(reg.URL); err != nil {
		return nil, err
	}
	if len(reg.Events) == 0 {
		return nil, fmt.Errorf("at least one event subscription is required")
	}
	secret := reg.Secret
	if secret == "" {
		s, err := newSecret()
		if err != nil {
			return nil, fmt.Errorf("generating secret: %w", err)
		}
		secret = s
	}
	ep := &Endpoint{
		ID:        uuid.New().String(),
		URL:       reg.URL,
		Secret:    secret,
		Events:    reg.Events,
		TenantID:  reg.TenantID,
		ClientID:  reg.ClientID,
		CreatedAt: time.Now(),
	}
	if err := m.store.SaveEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// SetPaused pauses or resumes an endpoint. Paused endpoints keep their
// subscriptions but receive no deliveries.
func (m *Manager) SetPaused(ctx context.Context, id string, paused bool) error {
	ep, err := m.store.Endpoint(ctx, id)
	if err != nil {
		return err
	}
	ep.Paused = paused
	return m.store.SaveEndpoint(ctx, ep)
}

// Result is the per-endpoint outcome of one Publish call.
type Result struct {
	EndpointID string `json:"endpoint_id"`
	Succeeded  bool   `json:"succeeded"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// Publish delivers the event to every active, subscribed endpoint of its
// tenant. Failed deliveries are retried in the background per the backoff
// schedule; the returned results reflect the first attempt only.
func (m *Manager) Publish(ctx context.Context, event Event) []Result {
	endpoints, err := m.store.Endpoints(ctx, event.TenantID)
	if err != nil {
		m.logger.Error().Err(err).Str("event", event.Type).Msg("listing endpoints")
		return nil
	}

	var results []Result
	for _, ep := range endpoints {
		if ep.Paused || !ep.subscribesTo(event.Type) {
			continue
		}
		d := m.send(ctx, ep, event, 1)
		results = append(results, Result{
			EndpointID: ep.ID,
			Succeeded:  d.Succeeded,
			StatusCode: d.StatusCode,
			Error:      d.Error,
		})
		if !d.Succeeded {
			m.retryLater(ep.ID, event, 2)
		}
	}
	return results
}

// retryLater schedules attempt n of event against the endpoint, giving up
// once the backoff schedule is exhausted.
func (m *Manager) retryLater(endpointID string, event Event, attempt int) {
	idx := attempt - 2
	if idx >= len(m.backoff) {
		m.logger.Warn().
			Str("endpoint_id", endpointID).
			Str("event", event.Type).
			Int("attempts", attempt-1).
			Msg("delivery abandoned")
		return
	}
	time.AfterFunc(m.backoff[idx], func() {
		ctx := context.Background()
		ep, err := m.store.Endpoint(ctx, endpointID)
		if err != nil || ep.Paused {
			return
		}
		if d := m.send(ctx, ep, event, attempt); !d.Succeeded {
			m.retryLater(endpointID, event, attempt+1)
		}
	})
}

// send signs and POSTs the event, recording the attempt regardless of
// outcome.
func (m *Manager) send(ctx context.Context, ep *Endpoint, event Event, attempt int) *Delivery {
	payload, _ := json.Marshal(event)
	d := &Delivery{
		ID:         uuid.New().String(),
		EndpointID: ep.ID,
		EventID:    event.ID,
		EventType:  event.Type,
		Payload:    payload,
		Signature:  Sign(payload, ep.Secret),
		Attempt:    attempt,
		At:         time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		d.Error = err.Error()
		m.record(ctx, d)
		return d
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cardia-Signature", "sha256="+d.Signature)
	req.Header.Set("X-Cardia-Event", event.Type)
	req.Header.Set("X-Cardia-Delivery", d.ID)

	start := time.Now()
	resp, err := m.client.Do(req)
	d.Elapsed = time.Since(start)
	if err != nil {
		d.Error = err.Error()
		m.record(ctx, d)
		return d
	}
	defer resp.Body.Close()

	d.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	d.Response = string(body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.Succeeded = true
	} else {
		d.Error = fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
	}
	m.record(ctx, d)
	return d
}

func (m *Manager) record(ctx context.Context, d *Delivery) {
	if err := m.store.SaveDelivery(ctx, d); err != nil {
		m.logger.Error().Err(err).Str("delivery_id", d.ID).Msg("recording delivery")
	}
	m.logger.Debug().
		Str("endpoint_id", d.EndpointID).
		Str("event", d.EventType).
		Int("attempt", d.Attempt).
		Bool("succeeded", d.Succeeded).
		Msg("webhook delivery")
}

// Redeliver re-sends the payload of a recorded delivery, continuing its
// attempt count.
func (m *Manager) Redeliver(ctx context.Context, deliveryID string) (*Delivery, error) {
	prev, err := m.store.Delivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	ep, err := m.store.Endpoint(ctx, prev.EndpointID)
	if err != nil {
		return nil, err
	}
	var event Event
	if err := json.Unmarshal(prev.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshaling recorded payload: %w", err)
	}
	return m.send(ctx, ep, event, prev.Attempt+1), nil
}

// Ping sends a synthetic endpoint.test event to verify connectivity and
// signature handling.
func (m *Manager) Ping(ctx context.Context, endpointID string) (*Delivery, error) {
	ep, err := m.store.Endpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	return m.send(ctx, ep, Event{
		ID:         newEventID(),
		Type:       EventEndpointTest,
		Resource:   "endpoint",
		ResourceID: ep.ID,
		TenantID:   ep.TenantID,
		Data:       json.RawMessage(`{"ping":true}`),
		OccurredAt: time.Now(),
	}, 1), nil
}
